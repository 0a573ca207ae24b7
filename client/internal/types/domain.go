package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// TaskStatus is the lifecycle state of a task. Kanban columns are keyed by it.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
	StatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every known status in board column order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked, StatusCancelled}

// Valid reports whether s is one of the five known statuses.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Recurrence describes a repeating task.
type Recurrence struct {
	Frequency string     `json:"frequency"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Comment is one entry in a task's discussion thread.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment references a file uploaded against a task.
type Attachment struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	URL         string    `json:"url,omitempty"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Task represents a task record as returned by the backend.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    Priority     `json:"priority"`
	Category    string       `json:"category,omitempty"`
	AssignedTo  []string     `json:"assignedTo,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Recurrence  *Recurrence  `json:"recurrence,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	LinkedMemos []string     `json:"linkedMemos,omitempty"`
	DelegatedTo string       `json:"delegatedTo,omitempty"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// AuditEntry is one row of a task's change history.
type AuditEntry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Field     string    `json:"field,omitempty"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoStatus is the server-side status of a memo.
type MemoStatus string

const (
	MemoActive    MemoStatus = "active"
	MemoDeleted   MemoStatus = "deleted"
	MemoExpired   MemoStatus = "expired"
	MemoCancelled MemoStatus = "cancelled"
)

// Valid reports whether s is a known memo status.
func (s MemoStatus) Valid() bool {
	switch s {
	case MemoActive, MemoDeleted, MemoExpired, MemoCancelled:
		return true
	}
	return false
}

// AckStatus records how a recipient responded to a memo.
type AckStatus string

const (
	AckAcknowledged AckStatus = "acknowledged"
	AckSnoozed      AckStatus = "snoozed"
)

// Acknowledgment is a per-user response to a memo.
type Acknowledgment struct {
	UserID       string     `json:"userId"`
	Status       AckStatus  `json:"status"`
	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	At           time.Time  `json:"at"`
}

// Memo is a broadcast or targeted notice.
type Memo struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	CreatedBy       string           `json:"createdBy"`
	Recipients      []string         `json:"recipients"`
	Status          MemoStatus       `json:"status"`
	Acknowledgments []Acknowledgment `json:"acknowledgments,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// AckFor returns the acknowledgment recorded by userID, if any.
func (m Memo) AckFor(userID string) (Acknowledgment, bool) {
	for _, a := range m.Acknowledgments {
		if a.UserID == userID {
			return a, true
		}
	}
	return Acknowledgment{}, false
}

// Role of a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// User is read-only to this SDK; consumed for display and assignment.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Active         bool   `json:"active"`
}
