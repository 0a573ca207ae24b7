package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/board"
	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/store"
)

var statusEnum = mcp.Enum("todo", "in_progress", "completed", "blocked", "cancelled")
var priorityEnum = mcp.Enum("low", "medium", "high", "urgent")

// TaskHandler exposes the task store and kanban board as tools.
type TaskHandler struct {
	tasks *store.TaskStore
	board *board.Board
}

// NewTaskHandler creates a task handler over s.
func NewTaskHandler(s *store.TaskStore) *TaskHandler {
	return &TaskHandler{tasks: s, board: board.New(s)}
}

// RegisterTools registers all task tools with the MCP server.
func (th *TaskHandler) RegisterTools(s *server.MCPServer) error {
	list := mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, optionally filtered; returns id, title, status, priority, category and assignees"),
		mcp.WithString("status", mcp.Description("Filter by status"), statusEnum),
		mcp.WithString("priority", mcp.Description("Filter by priority"), priorityEnum),
		mcp.WithString("category", mcp.Description("Filter by category")),
		mcp.WithString("assignee", mcp.Description("Filter by assignee user id")),
		mcp.WithString("search", mcp.Description("Free-text search")),
	)
	create := mcp.NewTool("create_task",
		mcp.WithDescription("Create a task; status defaults to todo and priority to medium"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", priorityEnum),
		mcp.WithString("category", mcp.Description("Free-text category")),
		mcp.WithArray("assigned_to", mcp.Description("Assignee user ids"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("due_date", mcp.Description("Due date, RFC3339")),
	)
	update := mcp.NewTool("update_task",
		mcp.WithDescription("Change task fields; only the arguments given are sent"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title"),
		mcp.WithString("description"),
		mcp.WithString("status", statusEnum),
		mcp.WithString("priority", priorityEnum),
		mcp.WithString("category"),
		mcp.WithArray("assigned_to", mcp.Items(map[string]any{"type": "string"})),
	)
	setStatus := mcp.NewTool("set_task_status",
		mcp.WithDescription("Move a task to another kanban column; the server's returned status decides where it lands"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("status", mcp.Required(), statusEnum),
	)
	del := mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	)
	comment := mcp.NewTool("add_task_comment",
		mcp.WithDescription("Add a comment to a task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Comment text")),
	)
	audit := mcp.NewTool("task_audit_log",
		mcp.WithDescription("Show a task's change history, including writes still in flight from this server"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	)
	kanban := mcp.NewTool("kanban_board",
		mcp.WithDescription("Return tasks grouped into kanban columns, plus any with an unrecognized status"),
	)

	s.AddTool(list, th.handleListTasks)
	s.AddTool(create, th.handleCreateTask)
	s.AddTool(update, th.handleUpdateTask)
	s.AddTool(setStatus, th.handleSetStatus)
	s.AddTool(del, th.handleDeleteTask)
	s.AddTool(comment, th.handleAddComment)
	s.AddTool(audit, th.handleAuditLog)
	s.AddTool(kanban, th.handleKanban)
	return nil
}

type taskLite struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Priority   string   `json:"priority"`
	Category   string   `json:"category,omitempty"`
	AssignedTo []string `json:"assignedTo,omitempty"`
}

func lite(t client.Task) taskLite {
	return taskLite{ID: t.ID, Title: t.Title, Status: string(t.Status), Priority: string(t.Priority), Category: t.Category, AssignedTo: t.AssignedTo}
}

func lites(tasks []client.Task) []taskLite {
	out := make([]taskLite, len(tasks))
	for i, t := range tasks {
		out[i] = lite(t)
	}
	return out
}

func (th *TaskHandler) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var f client.TaskFilter
	if v, ok := optString(req, "status"); ok {
		f.Status = client.TaskStatus(v)
	}
	if v, ok := optString(req, "priority"); ok {
		f.Priority = client.Priority(v)
	}
	f.Category, _ = optString(req, "category")
	f.Assignee, _ = optString(req, "assignee")
	f.Search, _ = optString(req, "search")

	log.Debug().Interface("filter", f).Msg("list_tasks invoked")
	start := time.Now()
	tasks := th.tasks.ListTasks(ctx, f)
	log.Debug().Int("count", len(tasks)).Dur("elapsed", time.Since(start)).Msg("list_tasks completed")
	return jsonResult(lites(tasks)), nil
}

func (th *TaskHandler) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil || title == "" {
		return mcp.NewToolResultError("title parameter is required"), nil
	}
	draft := client.CreateTaskRequest{Title: title}
	draft.Description, _ = optString(req, "description")
	draft.Category, _ = optString(req, "category")
	if v, ok := optString(req, "priority"); ok {
		draft.Priority = client.Priority(v)
	}
	draft.AssignedTo, _ = optStrings(req, "assigned_to")
	if v, ok := optString(req, "due_date"); ok && v != "" {
		d, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("due_date must be RFC3339: %v", err)), nil
		}
		draft.DueDate = &d
	}

	log.Debug().Str("title", title).Msg("create_task invoked")
	t, err := th.tasks.CreateTask(ctx, draft)
	if err != nil {
		log.Error().Err(err).Msg("create_task failed")
		return toolError("create task", err), nil
	}
	return jsonResult(lite(*t)), nil
}

func (th *TaskHandler) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("task_id")
	var patch client.UpdateTaskRequest
	if v, ok := optString(req, "title"); ok {
		patch.Title = &v
	}
	if v, ok := optString(req, "description"); ok {
		patch.Description = &v
	}
	if v, ok := optString(req, "status"); ok {
		st := client.TaskStatus(v)
		patch.Status = &st
	}
	if v, ok := optString(req, "priority"); ok {
		p := client.Priority(v)
		patch.Priority = &p
	}
	if v, ok := optString(req, "category"); ok {
		patch.Category = &v
	}
	if v, ok := optStrings(req, "assigned_to"); ok {
		patch.AssignedTo = v
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update"), nil
	}

	log.Debug().Str("task_id", id).Msg("update_task invoked")
	t, err := th.tasks.UpdateTask(ctx, id, patch)
	if err != nil {
		log.Error().Err(err).Str("task_id", id).Msg("update_task failed")
		return toolError("update task", err), nil
	}
	return jsonResult(lite(*t)), nil
}

func (th *TaskHandler) handleSetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("task_id")
	status, _ := req.RequireString("status")

	if _, ok := th.tasks.Task(id); !ok {
		th.tasks.ListTasks(ctx, client.TaskFilter{})
	}
	p, err := th.board.Move(ctx, id, client.TaskStatus(status))
	if err != nil {
		log.Error().Err(err).Str("task_id", id).Str("status", status).Msg("set_task_status failed")
		return toolError("move task", err), nil
	}
	return jsonResult(map[string]any{
		"task":       lite(p.Task),
		"column":     board.Title(p.Column),
		"moved":      p.Moved,
		"recognized": p.Recognized,
	}), nil
}

func (th *TaskHandler) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("task_id")
	if err := th.tasks.DeleteTask(ctx, id); err != nil {
		log.Error().Err(err).Str("task_id", id).Msg("delete_task failed")
		return toolError("delete task", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s deleted", id)), nil
}

func (th *TaskHandler) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("task_id")
	content, _ := req.RequireString("content")
	c, err := th.tasks.AddComment(ctx, id, content)
	if err != nil {
		return toolError("add comment", err), nil
	}
	return jsonResult(c), nil
}

func (th *TaskHandler) handleAuditLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("task_id")
	return jsonResult(th.tasks.AuditLog(ctx, id)), nil
}

func (th *TaskHandler) handleKanban(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	th.tasks.ListTasks(ctx, client.TaskFilter{})
	l := th.board.Snapshot()

	type column struct {
		Status string     `json:"status"`
		Title  string     `json:"title"`
		Tasks  []taskLite `json:"tasks"`
	}
	out := struct {
		Columns      []column   `json:"columns"`
		Unrecognized []taskLite `json:"unrecognized,omitempty"`
		Total        int        `json:"total"`
	}{Total: l.Total(), Unrecognized: lites(l.Unrecognized)}
	if len(l.Unrecognized) == 0 {
		out.Unrecognized = nil
	}
	for _, c := range l.Columns {
		out.Columns = append(out.Columns, column{Status: string(c.Status), Title: c.Title, Tasks: lites(c.Tasks)})
	}
	return jsonResult(out), nil
}

// toolError renders err for an agent: field errors are listed individually
// and auth failures get a hint instead of the raw status.
func toolError(op string, err error) *mcp.CallToolResult {
	switch {
	case client.IsUnauthenticated(err):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: the API token was rejected", op))
	case client.IsUnauthorized(err):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: permission denied", op))
	}
	if fes := client.FieldErrors(err); len(fes) > 0 {
		msg := fmt.Sprintf("failed to %s:", op)
		for _, fe := range fes {
			msg += fmt.Sprintf(" %s: %s;", fe.Field, fe.Message)
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
}
