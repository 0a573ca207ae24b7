package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/panel"
)

func newTasksCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and change tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(o),
		newTasksMineCmd(o),
		newTasksShowCmd(o),
		newTasksCreateCmd(o),
		newTasksUpdateCmd(o),
		newTasksStatusCmd(o),
		newTasksDeleteCmd(o),
		newTasksCommentCmd(o),
		newTasksCommentsCmd(o),
		newTasksAttachCmd(o),
		newTasksAttachmentsCmd(o),
		newTasksDetachCmd(o),
		newTasksAuditCmd(o),
	)
	return cmd
}

func newTasksListCmd(o *rootOptions) *cobra.Command {
	var status, priority, category, assignee, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			start := time.Now()
			tasks := s.Tasks.ListTasks(ctx, client.TaskFilter{
				Status:   client.TaskStatus(status),
				Priority: client.Priority(priority),
				Category: category,
				Assignee: assignee,
				Search:   search,
			})
			log.Debug().Int("count", len(tasks)).Dur("elapsed", time.Since(start)).Msg("list tasks completed")
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by assignee user id")
	cmd.Flags().StringVar(&search, "search", "", "Free-text search")
	return cmd
}

func newTasksMineCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List tasks assigned to the acting user",
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

			printTasks(cmd.OutOrStdout(), s.Tasks.ListUserTasks(ctx, o.userID))
			return nil
		},
	}
}

func newTasksShowCmd(o *rootOptions) *cobra.Command {
	var tab string

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one tab of a task's detail panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			s.Tasks.ListTasks(ctx, client.TaskFilter{})
			p, err := panel.NewTaskPanel(s.Tasks, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			v, err := p.Activate(ctx, panel.Tab(tab))
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(panel.TabDetails), "Tab to show: details, comments, attachments or audit")
	return cmd
}

func newTasksCreateCmd(o *rootOptions) *cobra.Command {
	var (
		title, description, status, priority, category, delegatedTo, due, recur string
		assignees                                                               []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title must not be blank")
			}
			draft := client.CreateTaskRequest{
				Title:       title,
				Description: description,
				Status:      client.TaskStatus(status),
				Priority:    client.Priority(priority),
				Category:    category,
				AssignedTo:  assignees,
				DelegatedTo: delegatedTo,
			}
			if due != "" {
				d, err := parseDate(due)
				if err != nil {
					return err
				}
				draft.DueDate = &d
			}
			if recur != "" {
				draft.Recurrence = &client.Recurrence{Frequency: recur}
			}

			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			t, err := s.Tasks.CreateTask(ctx, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task created: %s - %s\n", t.ID, t.Title)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "Task title (required)")
	f.StringVar(&description, "description", "", "Description")
	f.StringVar(&status, "status", "", "Initial status (default todo)")
	f.StringVar(&priority, "priority", "", "Priority (default medium)")
	f.StringVar(&category, "category", "", "Category")
	f.StringSliceVar(&assignees, "assign", nil, "Assignee user ids")
	f.StringVar(&delegatedTo, "delegate", "", "Delegate user id")
	f.StringVar(&due, "due", "", "Due date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&recur, "recur", "", "Recurrence: daily, weekly, monthly or yearly")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksUpdateCmd(o *rootOptions) *cobra.Command {
	var title, description, priority, category, delegatedTo, due string
	var assignees []string

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change task fields; only the flags given are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch client.UpdateTaskRequest
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("priority") {
				p := client.Priority(priority)
				patch.Priority = &p
			}
			if f.Changed("category") {
				patch.Category = &category
			}
			if f.Changed("delegate") {
				patch.DelegatedTo = &delegatedTo
			}
			if f.Changed("assign") {
				patch.AssignedTo = assignees
			}
			if f.Changed("due") {
				d, err := parseDate(due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update")
			}
			return o.updateTask(cmd, args[0], patch)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&description, "description", "", "New description")
	f.StringVar(&priority, "priority", "", "New priority")
	f.StringVar(&category, "category", "", "New category")
	f.StringVar(&delegatedTo, "delegate", "", "New delegate user id")
	f.StringSliceVar(&assignees, "assign", nil, "Replace assignees")
	f.StringVar(&due, "due", "", "New due date")
	return cmd
}

func newTasksStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := client.TaskStatus(args[1])
			return o.updateTask(cmd, args[0], client.UpdateTaskRequest{Status: &st})
		},
	}
}

func (o *rootOptions) updateTask(cmd *cobra.Command, id string, patch client.UpdateTaskRequest) error {
	s, _, err := o.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Logout() }()
	ctx, cancel := timeout(cmd)
	defer cancel()

	t, err := s.Tasks.UpdateTask(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task updated: %s [%s]\n", t.ID, t.Status)
	return nil
}

func newTasksDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			if err := s.Tasks.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %s\n", args[0])
			return nil
		},
	}
}

func newTasksCommentCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <task-id> <text>",
		Short: "Add a comment to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			c, err := s.Tasks.AddComment(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added: %s\n", c.ID)
			return nil
		},
	}
}

func newTasksCommentsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <task-id>",
		Short: "List a task's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			printView(cmd.OutOrStdout(), panel.View{Tab: panel.TabComments, Comments: s.Tasks.ListComments(ctx, args[0])})
			return nil
		},
	}
}

func newTasksAttachCmd(o *rootOptions) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "attach <task-id> <file>",
		Short: "Upload a file to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			a, err := s.Tasks.UploadAttachment(ctx, args[0], client.UploadAttachmentRequest{
				FileName:    filepath.Base(args[1]),
				ContentType: contentType,
				Body:        f,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attachment uploaded: %s (%d bytes)\n", a.ID, a.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type (default application/octet-stream)")
	return cmd
}

func newTasksAttachmentsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attachments <task-id>",
		Short: "List a task's attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			printView(cmd.OutOrStdout(), panel.View{Tab: panel.TabAttachments, Attachments: s.Tasks.ListAttachments(ctx, args[0])})
			return nil
		},
	}
}

func newTasksDetachCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <task-id> <attachment-id>",
		Short: "Remove an attachment from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			if err := s.Tasks.DeleteAttachment(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attachment removed: %s\n", args[1])
			return nil
		},
	}
}

func newTasksAuditCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <task-id>",
		Short: "Show a task's change history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			printView(cmd.OutOrStdout(), panel.View{Tab: panel.TabAudit, Audit: s.Tasks.AuditLog(ctx, args[0])})
			return nil
		},
	}
}

// ------------------------- output -------------------------

func printTasks(w io.Writer, tasks []client.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCATEGORY\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Category, t.Title)
	}
	_ = tw.Flush()
}

func printView(w io.Writer, v panel.View) {
	switch v.Tab {
	case panel.TabDetails:
		t := v.Task
		fmt.Fprintf(w, "%s  %s\n", t.ID, t.Title)
		fmt.Fprintf(w, "status: %s  priority: %s  category: %s\n", t.Status, t.Priority, t.Category)
		if len(t.AssignedTo) > 0 {
			fmt.Fprintf(w, "assigned: %s\n", strings.Join(t.AssignedTo, ", "))
		}
		if t.DueDate != nil {
			fmt.Fprintf(w, "due: %s\n", t.DueDate.Format("2006-01-02"))
		}
		if t.Description != "" {
			fmt.Fprintf(w, "\n%s\n", t.Description)
		}
	case panel.TabComments:
		if len(v.Comments) == 0 {
			fmt.Fprintln(w, "No comments")
		}
		for _, c := range v.Comments {
			fmt.Fprintf(w, "[%s] %s: %s\n", c.CreatedAt.Format(time.DateTime), c.Author, c.Content)
		}
	case panel.TabAttachments:
		if len(v.Attachments) == 0 {
			fmt.Fprintln(w, "No attachments")
		}
		for _, a := range v.Attachments {
			fmt.Fprintf(w, "%s  %s  %d bytes\n", a.ID, a.FileName, a.Size)
		}
	case panel.TabAudit:
		if len(v.Audit) == 0 {
			fmt.Fprintln(w, "No history")
		}
		for _, e := range v.Audit {
			line := fmt.Sprintf("[%s] %s %s", e.Timestamp.Format(time.DateTime), e.Actor, e.Action)
			if e.Field != "" {
				line += fmt.Sprintf(" %s: %q -> %q", e.Field, e.OldValue, e.NewValue)
			}
			fmt.Fprintln(w, line)
		}
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
