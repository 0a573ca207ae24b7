package client

import "github.com/mycelian/mycelian-desk/client/internal/types"

// Public type aliases so SDK consumers can import only the client package.
type (
	// Requests
	TaskFilter              = types.TaskFilter
	CreateTaskRequest       = types.CreateTaskRequest
	UpdateTaskRequest       = types.UpdateTaskRequest
	UploadAttachmentRequest = types.UploadAttachmentRequest
	SendMemoRequest         = types.SendMemoRequest
	SnoozeMemoRequest       = types.SnoozeMemoRequest
	AddCommentRequest       = types.AddCommentRequest
	MarkMemoReadRequest     = types.MarkMemoReadRequest
	UpdateMemoStatusRequest = types.UpdateMemoStatusRequest

	// Domain entities
	Task           = types.Task
	TaskStatus     = types.TaskStatus
	Priority       = types.Priority
	Recurrence     = types.Recurrence
	Comment        = types.Comment
	Attachment     = types.Attachment
	AuditEntry     = types.AuditEntry
	Memo           = types.Memo
	MemoStatus     = types.MemoStatus
	AckStatus      = types.AckStatus
	Acknowledgment = types.Acknowledgment
	User           = types.User
	Role           = types.Role

	// Responses
	FieldError    = types.FieldError
	ErrorResponse = types.ErrorResponse
)

const (
	StatusTodo       = types.StatusTodo
	StatusInProgress = types.StatusInProgress
	StatusCompleted  = types.StatusCompleted
	StatusBlocked    = types.StatusBlocked
	StatusCancelled  = types.StatusCancelled

	PriorityLow    = types.PriorityLow
	PriorityMedium = types.PriorityMedium
	PriorityHigh   = types.PriorityHigh
	PriorityUrgent = types.PriorityUrgent

	MemoActive    = types.MemoActive
	MemoDeleted   = types.MemoDeleted
	MemoExpired   = types.MemoExpired
	MemoCancelled = types.MemoCancelled

	AckAcknowledged = types.AckAcknowledged
	AckSnoozed      = types.AckSnoozed

	RoleAdmin    = types.RoleAdmin
	RoleEmployee = types.RoleEmployee
)

// TaskStatuses lists every known status in board column order.
var TaskStatuses = types.TaskStatuses
