package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mycelian/mycelian-desk/client/internal/api"
	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/devmode"
	"golang.org/x/oauth2"
)

// Client is a thin wrapper over the desk REST API. Every request carries
// an Authorization: Bearer header. Task mutations (update, delete, attachment
// delete) run on a per-task FIFO lane so overlapping writes to the same task
// reach the server in the order they were issued.
type Client struct {
	baseURL     string
	http        *http.Client
	exec        executor
	token       string
	tokenSource oauth2.TokenSource
	execCfg     *shardqueue.Config

	closedOnce uint32 // ensures Close is idempotent
}

// New constructs a Client for baseURL authenticating with a static bearer
// token. Use WithTokenSource instead of token to refresh credentials.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}

	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.token == "" && c.tokenSource == nil {
		return nil, fmt.Errorf("a bearer token or token source is required")
	}
	if c.exec == nil {
		cfg := shardqueue.Config{}
		if c.execCfg != nil {
			cfg = *c.execCfg
		}
		c.exec = shardqueue.NewShardExecutor(cfg)
	}

	c.wrapTransport()
	return c, nil
}

// NewWithDevMode constructs a Client that authenticates with the shared
// development token accepted by desk-devserver.
func NewWithDevMode(baseURL string, opts ...Option) (*Client, error) {
	return New(baseURL, devmode.Token, opts...)
}

// wrapTransport installs, from the inside out: the configured base
// transport (possibly wrapped by debug logging), request metrics, and the
// bearer-token transport.
func (c *Client) wrapTransport() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	base = &metricsTransport{base: base}

	src := c.tokenSource
	if src == nil {
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"})
	}
	c.http.Transport = &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, src), Base: base}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Close stops the mutation lanes. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	if c.exec != nil {
		c.exec.Stop()
	}
	return nil
}

// AwaitConsistency blocks until every mutation already submitted for taskID
// has completed.
func (c *Client) AwaitConsistency(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.exec.Barrier(ctx, taskID)
}

// --------------------------------------------------------------------
// Tasks
// --------------------------------------------------------------------

// ListTasks fetches tasks matching filter.
func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	return api.ListTasks(ctx, c.http, c.baseURL, filter)
}

// ListUserTasks fetches the tasks of one user.
func (c *Client) ListUserTasks(ctx context.Context, userID string) ([]Task, error) {
	return api.ListUserTasks(ctx, c.http, c.baseURL, userID)
}

// CreateTask posts a new task and returns the server record.
func (c *Client) CreateTask(ctx context.Context, draft CreateTaskRequest) (*Task, error) {
	return api.CreateTask(ctx, c.http, c.baseURL, draft)
}

// UpdateTask applies a partial update on the task's mutation lane.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch UpdateTaskRequest) (*Task, error) {
	return api.UpdateTask(ctx, c.exec, c.http, c.baseURL, taskID, patch)
}

// DeleteTask deletes a task on its mutation lane.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return api.DeleteTask(ctx, c.exec, c.http, c.baseURL, taskID)
}

// AddComment posts a comment on a task.
func (c *Client) AddComment(ctx context.Context, taskID, content string) (*Comment, error) {
	return api.AddComment(ctx, c.http, c.baseURL, taskID, content)
}

// ListComments fetches a task's comments.
func (c *Client) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	return api.ListComments(ctx, c.http, c.baseURL, taskID)
}

// UploadAttachment uploads a file against a task.
func (c *Client) UploadAttachment(ctx context.Context, taskID string, in UploadAttachmentRequest) (*Attachment, error) {
	return api.UploadAttachment(ctx, c.http, c.baseURL, taskID, in)
}

// ListAttachments fetches a task's attachments.
func (c *Client) ListAttachments(ctx context.Context, taskID string) ([]Attachment, error) {
	return api.ListAttachments(ctx, c.http, c.baseURL, taskID)
}

// DeleteAttachment removes an attachment on the task's mutation lane.
func (c *Client) DeleteAttachment(ctx context.Context, taskID, attachmentID string) error {
	return api.DeleteAttachment(ctx, c.exec, c.http, c.baseURL, taskID, attachmentID)
}

// AuditLog fetches a task's history after draining its mutation lane.
func (c *Client) AuditLog(ctx context.Context, taskID string) ([]AuditEntry, error) {
	return api.GetAuditLog(ctx, c.exec, c.http, c.baseURL, taskID)
}

// --------------------------------------------------------------------
// Memos
// --------------------------------------------------------------------

// ListMemos fetches all memos, including deleted ones.
func (c *Client) ListMemos(ctx context.Context) ([]Memo, error) {
	return api.ListMemos(ctx, c.http, c.baseURL)
}

// ListUserMemos fetches the memos addressed to userID.
func (c *Client) ListUserMemos(ctx context.Context, userID string) ([]Memo, error) {
	return api.ListUserMemos(ctx, c.http, c.baseURL, userID)
}

// SendMemo broadcasts a memo.
func (c *Client) SendMemo(ctx context.Context, in SendMemoRequest) (*Memo, error) {
	return api.SendMemo(ctx, c.http, c.baseURL, in)
}

// MarkMemoRead acknowledges a memo for userID.
func (c *Client) MarkMemoRead(ctx context.Context, memoID, userID string) error {
	return api.MarkMemoRead(ctx, c.http, c.baseURL, memoID, userID)
}

// SnoozeMemo snoozes a memo for userID.
func (c *Client) SnoozeMemo(ctx context.Context, memoID string, in SnoozeMemoRequest) error {
	return api.SnoozeMemo(ctx, c.http, c.baseURL, memoID, in)
}

// UpdateMemoStatus changes a memo's status for everyone.
func (c *Client) UpdateMemoStatus(ctx context.Context, memoID string, status MemoStatus) (*Memo, error) {
	return api.UpdateMemoStatus(ctx, c.http, c.baseURL, memoID, status)
}

// DeleteMemo hides a memo for userID only.
func (c *Client) DeleteMemo(ctx context.Context, memoID, userID string) error {
	return api.DeleteMemo(ctx, c.http, c.baseURL, memoID, userID, false)
}

// DeleteMemoGlobal marks a memo deleted for every user. Admin only.
func (c *Client) DeleteMemoGlobal(ctx context.Context, memoID, userID string) error {
	return api.DeleteMemo(ctx, c.http, c.baseURL, memoID, userID, true)
}

// --------------------------------------------------------------------
// Users
// --------------------------------------------------------------------

// ListUsers fetches the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return api.ListUsers(ctx, c.http, c.baseURL)
}
