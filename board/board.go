// Package board derives the kanban view of the task cache.
//
// Columns are fixed: todo, in progress and completed on the first row,
// blocked and cancelled on the second. Tasks whose status matches no column
// are collected in Unrecognized so they never silently disappear.
package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycelian/mycelian-desk/client"
)

// ErrUnknownColumn is returned when a move targets a status with no column.
var ErrUnknownColumn = errors.New("unknown kanban column")

// Rows is the fixed column layout.
var Rows = [][]client.TaskStatus{
	{client.StatusTodo, client.StatusInProgress, client.StatusCompleted},
	{client.StatusBlocked, client.StatusCancelled},
}

var titles = map[client.TaskStatus]string{
	client.StatusTodo:       "To Do",
	client.StatusInProgress: "In Progress",
	client.StatusCompleted:  "Completed",
	client.StatusBlocked:    "Blocked",
	client.StatusCancelled:  "Cancelled",
}

// Title returns the column heading for status.
func Title(status client.TaskStatus) string {
	if t, ok := titles[status]; ok {
		return t
	}
	return "Unrecognized"
}

// Column is one status bucket.
type Column struct {
	Status client.TaskStatus
	Title  string
	Tasks  []client.Task
}

// Layout is a partitioned task list.
type Layout struct {
	Columns      []Column // in Rows order
	Unrecognized []client.Task
}

// Partition buckets tasks by status in a single pass, preserving input order
// within each bucket.
func Partition(tasks []client.Task) Layout {
	var l Layout
	index := make(map[client.TaskStatus]int, len(client.TaskStatuses))
	for _, row := range Rows {
		for _, st := range row {
			index[st] = len(l.Columns)
			l.Columns = append(l.Columns, Column{Status: st, Title: Title(st)})
		}
	}
	for _, t := range tasks {
		i, ok := index[t.Status]
		if !ok {
			l.Unrecognized = append(l.Unrecognized, t)
			continue
		}
		l.Columns[i].Tasks = append(l.Columns[i].Tasks, t)
	}
	return l
}

// Column returns the bucket for status.
func (l Layout) Column(status client.TaskStatus) (Column, bool) {
	for _, c := range l.Columns {
		if c.Status == status {
			return c, true
		}
	}
	return Column{}, false
}

// Rows groups the columns by the fixed row layout.
func (l Layout) Rows() [][]Column {
	out := make([][]Column, 0, len(Rows))
	i := 0
	for _, row := range Rows {
		out = append(out, l.Columns[i:i+len(row)])
		i += len(row)
	}
	return out
}

// Total counts every task on the board including unrecognized ones.
func (l Layout) Total() int {
	n := len(l.Unrecognized)
	for _, c := range l.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Placement is where a moved task landed according to the server.
type Placement struct {
	Task       client.Task
	Column     client.TaskStatus
	Recognized bool // false when the server returned a status with no column
	Moved      bool // false when the drop was a no-op
}

// TaskMover is the part of store.TaskStore the board needs.
type TaskMover interface {
	Tasks() []client.Task
	Task(id string) (client.Task, bool)
	SetStatus(ctx context.Context, id string, status client.TaskStatus) (*client.Task, error)
}

// Board moves tasks between columns through the task store.
type Board struct {
	tasks TaskMover
}

// New returns a Board over tasks.
func New(tasks TaskMover) *Board { return &Board{tasks: tasks} }

// Snapshot partitions the store's current cache.
func (b *Board) Snapshot() Layout { return Partition(b.tasks.Tasks()) }

// Move handles a drop of taskID onto the column for to. Dropping onto the
// task's current column does nothing. The returned placement follows the
// status the server returned, which may differ from to.
func (b *Board) Move(ctx context.Context, taskID string, to client.TaskStatus) (Placement, error) {
	if taskID == "" {
		return Placement{}, fmt.Errorf("move task: %w", client.ErrMissingID)
	}
	if !to.Valid() {
		return Placement{}, fmt.Errorf("move task to %q: %w", to, ErrUnknownColumn)
	}
	if cur, ok := b.tasks.Task(taskID); ok && cur.Status == to {
		return Placement{Task: cur, Column: cur.Status, Recognized: true}, nil
	}
	updated, err := b.tasks.SetStatus(ctx, taskID, to)
	if err != nil {
		return Placement{}, err
	}
	return Placement{
		Task:       *updated,
		Column:     updated.Status,
		Recognized: updated.Status.Valid(),
		Moved:      true,
	}, nil
}
