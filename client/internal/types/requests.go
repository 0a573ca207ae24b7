package types

import (
	"io"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ------------------------------
// Request Types
// ------------------------------

// TaskFilter holds the optional query filters for GET /tasks.
type TaskFilter struct {
	Status   TaskStatus
	Priority Priority
	Category string
	Assignee string
	Search   string
}

// Matches reports whether t passes every non-empty filter. Category matches
// case-insensitively; Search is a case-insensitive substring of the title or
// description.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.Assignee != "" && !slices.Contains(t.AssignedTo, f.Assignee) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Query encodes the non-empty filters.
func (f TaskFilter) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Assignee != "" {
		q.Set("assignee", f.Assignee)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// CreateTaskRequest is the draft posted to create a task.
type CreateTaskRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      TaskStatus  `json:"status,omitempty"`
	Priority    Priority    `json:"priority,omitempty"`
	Category    string      `json:"category,omitempty"`
	AssignedTo  []string    `json:"assignedTo,omitempty"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
	LinkedMemos []string    `json:"linkedMemos,omitempty"`
	DelegatedTo string      `json:"delegatedTo,omitempty"`
}

// UpdateTaskRequest carries a partial update. Nil fields are not sent.
type UpdateTaskRequest struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	Category    *string     `json:"category,omitempty"`
	AssignedTo  []string    `json:"assignedTo,omitempty"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
	LinkedMemos []string    `json:"linkedMemos,omitempty"`
	DelegatedTo *string     `json:"delegatedTo,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil && r.Priority == nil &&
		r.Category == nil && r.AssignedTo == nil && r.DueDate == nil && r.Recurrence == nil &&
		r.LinkedMemos == nil && r.DelegatedTo == nil
}

// AddCommentRequest posts a comment on a task.
type AddCommentRequest struct {
	Content string `json:"content"`
}

// UploadAttachmentRequest describes a multipart file upload.
type UploadAttachmentRequest struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// SendMemoRequest broadcasts a memo. Omitting Recipients means all users;
// that expansion happens server-side only.
type SendMemoRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Recipients []string `json:"recipients,omitempty"`
}

// MarkMemoReadRequest acknowledges a memo for a user.
type MarkMemoReadRequest struct {
	UserID string `json:"userId"`
}

// SnoozeMemoRequest snoozes a memo for a user.
type SnoozeMemoRequest struct {
	UserID          string `json:"userId"`
	DurationMinutes int    `json:"durationMinutes"`
	Comments        string `json:"comments,omitempty"`
}

// UpdateMemoStatusRequest changes a memo's status for everyone.
type UpdateMemoStatusRequest struct {
	Status MemoStatus `json:"status"`
}
