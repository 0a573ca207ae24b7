package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/panel"
	"github.com/mycelian/mycelian-desk/store"
)

func newMemosCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memos",
		Short: "Read, send and acknowledge memos",
	}
	cmd.AddCommand(
		newMemosListCmd(o),
		newMemosMineCmd(o),
		newMemosShowCmd(o),
		newMemosSendCmd(o),
		newMemosReadCmd(o),
		newMemosSnoozeCmd(o),
		newMemosStatusCmd(o),
		newMemosDeleteCmd(o),
	)
	return cmd
}

func newMemosListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all memos, company-wide first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			memos := s.Memos.ListMemos(ctx)
			users, err := c.ListUsers(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("user list unavailable; company-wide memos shown as targeted")
			}
			wide, targeted := store.SplitCompanyWide(memos, users)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Company-wide:")
			printMemos(w, wide, s.Viewer().ID, s.Now())
			fmt.Fprintln(w, "Targeted:")
			printMemos(w, targeted, s.Viewer().ID, s.Now())
			return nil
		},
	}
}

func newMemosMineCmd(o *rootOptions) *cobra.Command {
	var watch time.Duration
	var pending bool

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List memos addressed to the acting user",
		Long: "List memos addressed to the acting user. With --watch the list is re-evaluated on an interval, " +
			"so snoozed memos reappear once their snooze ends.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()

			show := func(ctx context.Context) {
				reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
				defer cancel()
				memos := s.Memos.ListUserMemos(reqCtx, o.userID)
				if pending {
					memos = s.PendingMemos()
				}
				printMemos(cmd.OutOrStdout(), memos, o.userID, s.Now())
			}

			show(cmd.Context())
			if watch <= 0 {
				return nil
			}
			return watchLoop(cmd.Context(), watch, func(ctx context.Context) {
				fmt.Fprintf(cmd.OutOrStdout(), "\n-- %s --\n", s.Now().Format(time.TimeOnly))
				show(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "Refresh on this interval until interrupted")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only memos still awaiting acknowledgment")
	return cmd
}

// watchLoop calls fn every interval until ctx is done.
func watchLoop(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn(ctx)
		}
	}
}

func newMemosShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <memo-id>",
		Short: "Show a memo with its acknowledgment summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			s.Memos.ListMemos(ctx)
			m, ok := s.Memos.Memo(args[0])
			if !ok {
				return fmt.Errorf("memo %s not found", args[0])
			}
			users, err := c.ListUsers(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("user list unavailable")
			}
			p, err := panel.NewMemoPanel(m, s.Viewer().ID)
			if err != nil {
				return err
			}
			sum := p.Summary(users, s.Now())

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s  [%s]\n", m.ID, m.Title, sum.Display)
			if sum.CompanyWide {
				fmt.Fprintln(w, "to: everyone")
			} else {
				fmt.Fprintf(w, "to: %s\n", strings.Join(m.Recipients, ", "))
			}
			fmt.Fprintf(w, "acknowledged: %d  snoozed: %d  pending: %d\n", sum.Acknowledged, sum.Snoozed, sum.Pending)
			fmt.Fprintf(w, "\n%s\n", m.Content)
			return nil
		},
	}
}

func newMemosSendCmd(o *rootOptions) *cobra.Command {
	var title, content string
	var to []string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a memo; omit --to to send to everyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			m, err := s.Memos.SendMemo(ctx, client.SendMemoRequest{Title: title, Content: content, Recipients: to})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memo sent: %s to %d recipients\n", m.ID, len(m.Recipients))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Memo title")
	cmd.Flags().StringVar(&content, "content", "", "Memo body (required)")
	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient user ids")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newMemosReadCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <memo-id>",
		Short: "Acknowledge a memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			if err := s.Memos.MarkAsRead(ctx, args[0], o.userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memo %s acknowledged\n", args[0])
			return nil
		},
	}
}

func newMemosSnoozeCmd(o *rootOptions) *cobra.Command {
	var minutes int
	var comment string

	cmd := &cobra.Command{
		Use:   "snooze <memo-id>",
		Short: "Hide a memo for a while",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			if err := s.Memos.Snooze(ctx, args[0], o.userID, minutes, comment); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memo %s snoozed for %d minutes\n", args[0], minutes)
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 60, "Snooze duration in minutes")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional note")
	return cmd
}

func newMemosStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <memo-id> <status>",
		Short: "Set a memo's status for everyone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			m, err := s.Memos.UpdateStatus(ctx, args[0], client.MemoStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memo %s is now %s\n", m.ID, m.Status)
			return nil
		},
	}
}

func newMemosDeleteCmd(o *rootOptions) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "delete <memo-id>",
		Short: "Hide a memo for yourself, or delete it for everyone with --global",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.requireUser(); err != nil {
				return err
			}
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			if global {
				err = s.Memos.DeleteMemoGlobal(ctx, args[0], o.userID)
			} else {
				err = s.Memos.DeleteMemo(ctx, args[0], o.userID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memo %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Delete for every recipient (admin only)")
	return cmd
}

func newUsersCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			users, err := c.ListUsers(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROLE\tNAME\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Role, u.Name, u.Email)
			}
			return tw.Flush()
		},
	}
}

func printMemos(w io.Writer, memos []client.Memo, viewerID string, now time.Time) {
	if len(memos) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, m := range memos {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.ID, store.DisplayStatus(m, viewerID, now), m.Title)
	}
	_ = tw.Flush()
}
