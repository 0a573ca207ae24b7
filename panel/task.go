// Package panel implements the task and memo detail views. Sub-resources
// are fetched lazily when their tab is activated, and a response that
// arrives after the user switched tabs or closed the panel is dropped.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mycelian/mycelian-desk/client"
)

// Tab names one section of the task panel.
type Tab string

const (
	TabDetails     Tab = "details"
	TabComments    Tab = "comments"
	TabAttachments Tab = "attachments"
	TabAudit       Tab = "audit"
)

// Tabs lists the task panel tabs in display order.
var Tabs = []Tab{TabDetails, TabComments, TabAttachments, TabAudit}

var (
	// ErrDiscarded is returned by Activate when its response arrived after
	// another tab was activated or the panel was closed.
	ErrDiscarded = errors.New("response discarded")
	// ErrClosed is returned by Activate on a closed panel.
	ErrClosed = errors.New("panel closed")
	// ErrUnknownTab is returned for a tab the panel does not have.
	ErrUnknownTab = errors.New("unknown tab")
	// ErrNotCached is returned for the details tab when the task is not in
	// the store's cache.
	ErrNotCached = errors.New("task not loaded")
)

// TaskSource is the part of store.TaskStore the panel reads. List methods
// return nil when the fetch failed.
type TaskSource interface {
	Task(id string) (client.Task, bool)
	ListComments(ctx context.Context, id string) []client.Comment
	ListAttachments(ctx context.Context, id string) []client.Attachment
	AuditLog(ctx context.Context, id string) []client.AuditEntry
}

// View is what a tab renders.
type View struct {
	Tab         Tab
	Task        client.Task
	Comments    []client.Comment
	Attachments []client.Attachment
	Audit       []client.AuditEntry
}

// TaskPanel is the detail view of one task.
type TaskPanel struct {
	src    TaskSource
	taskID string

	mu          sync.Mutex
	active      Tab
	token       uint64
	closed      bool
	comments    []client.Comment
	attachments []client.Attachment
}

// NewTaskPanel opens a panel for taskID. A task without an id is never
// shown.
func NewTaskPanel(src TaskSource, taskID string) (*TaskPanel, error) {
	if taskID == "" {
		return nil, fmt.Errorf("open task panel: %w", client.ErrMissingID)
	}
	return &TaskPanel{src: src, taskID: taskID, active: TabDetails}, nil
}

// TaskID returns the id of the task shown.
func (p *TaskPanel) TaskID() string { return p.taskID }

// Active returns the currently active tab.
func (p *TaskPanel) Active() Tab {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Activate switches to tab and returns its content. Comments and
// attachments are fetched on first activation and then served from the
// panel; the audit log is fetched on every activation. If another Activate
// or Close happens while the fetch is in flight, the result is dropped and
// ErrDiscarded returned.
func (p *TaskPanel) Activate(ctx context.Context, tab Tab) (View, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return View{}, ErrClosed
	}
	if !knownTab(tab) {
		p.mu.Unlock()
		return View{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	p.active = tab
	p.token++
	token := p.token
	cachedComments, cachedAttachments := p.comments, p.attachments
	p.mu.Unlock()

	v := View{Tab: tab}
	task, ok := p.src.Task(p.taskID)
	if ok {
		v.Task = task
	}

	switch tab {
	case TabDetails:
		if !ok {
			return View{}, fmt.Errorf("task %s: %w", p.taskID, ErrNotCached)
		}
		return v, nil
	case TabComments:
		if cachedComments != nil {
			v.Comments = cachedComments
			return v, nil
		}
		v.Comments = p.src.ListComments(ctx, p.taskID)
	case TabAttachments:
		if cachedAttachments != nil {
			v.Attachments = cachedAttachments
			return v, nil
		}
		v.Attachments = p.src.ListAttachments(ctx, p.taskID)
	case TabAudit:
		v.Audit = p.src.AuditLog(ctx, p.taskID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.token != token {
		return View{}, ErrDiscarded
	}
	if tab == TabComments && v.Comments != nil {
		p.comments = v.Comments
	}
	if tab == TabAttachments && v.Attachments != nil {
		p.attachments = v.Attachments
	}
	return v, nil
}

// Invalidate forgets the panel's copy of tab so the next activation
// refetches it, e.g. after adding a comment.
func (p *TaskPanel) Invalidate(tab Tab) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch tab {
	case TabComments:
		p.comments = nil
	case TabAttachments:
		p.attachments = nil
	}
}

// Close discards any in-flight responses. Further activations fail.
func (p *TaskPanel) Close() {
	p.mu.Lock()
	p.closed = true
	p.token++
	p.comments, p.attachments = nil, nil
	p.mu.Unlock()
}

func knownTab(t Tab) bool {
	for _, k := range Tabs {
		if k == t {
			return true
		}
	}
	return false
}
