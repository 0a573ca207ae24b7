package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mycelian/mycelian-desk/board"
	"github.com/mycelian/mycelian-desk/client"
)

const columnWidth = 28

var (
	columnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(columnWidth).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	priorityUrgent = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	priorityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	priorityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	priorityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newBoardCmd(o *rootOptions) *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show tasks as a kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			var layout board.Layout
			if mine {
				if err := o.requireUser(); err != nil {
					return err
				}
				layout = board.Partition(s.Tasks.ListUserTasks(ctx, o.userID))
			} else {
				s.Tasks.ListTasks(ctx, client.TaskFilter{})
				layout = board.New(s.Tasks).Snapshot()
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderBoard(layout))
			return nil
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "Only tasks assigned to the acting user")
	cmd.AddCommand(newBoardMoveCmd(o))
	return cmd
}

func newBoardMoveCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Move a task to another column",
		Long:  "Move a task to another column. Columns: " + columnNames(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := o.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Logout() }()
			ctx, cancel := timeout(cmd)
			defer cancel()

			s.Tasks.ListTasks(ctx, client.TaskFilter{})
			b := board.New(s.Tasks)
			p, err := b.Move(ctx, args[0], client.TaskStatus(args[1]))
			if err != nil {
				return err
			}
			switch {
			case !p.Moved:
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s already in %s\n", p.Task.ID, board.Title(p.Column))
			case !p.Recognized:
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s moved; server reported unrecognized status %q\n", p.Task.ID, p.Task.Status)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s moved to %s\n", p.Task.ID, board.Title(p.Column))
			}
			return nil
		},
	}
}

// renderBoard draws each row of columns side by side, plus the fallback
// bucket when it is not empty.
func renderBoard(l board.Layout) string {
	var rows []string
	for _, row := range l.Rows() {
		var cols []string
		for _, c := range row {
			cols = append(cols, renderColumn(c.Title, c.Tasks))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	if len(l.Unrecognized) > 0 {
		rows = append(rows, renderColumn(board.Title(""), l.Unrecognized))
	}
	rows = append(rows, fmt.Sprintf("%d tasks", l.Total()))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderColumn(title string, tasks []client.Task) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(tasks))))
	for _, t := range tasks {
		b.WriteString("\n")
		b.WriteString(styleForPriority(t.Priority).Render("●"))
		b.WriteString(" ")
		b.WriteString(t.Title)
	}
	return columnStyle.Render(b.String())
}

func styleForPriority(p client.Priority) lipgloss.Style {
	switch p {
	case client.PriorityUrgent:
		return priorityUrgent
	case client.PriorityHigh:
		return priorityHigh
	case client.PriorityMedium:
		return priorityMedium
	default:
		return priorityLow
	}
}

func columnNames() string {
	var names []string
	for _, st := range client.TaskStatuses {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}
