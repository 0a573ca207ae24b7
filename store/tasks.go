package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mycelian/mycelian-desk/client"
)

// TaskAPI is the subset of *client.Client the TaskStore uses.
type TaskAPI interface {
	ListTasks(ctx context.Context, filter client.TaskFilter) ([]client.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]client.Task, error)
	CreateTask(ctx context.Context, draft client.CreateTaskRequest) (*client.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch client.UpdateTaskRequest) (*client.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	AddComment(ctx context.Context, taskID, content string) (*client.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]client.Comment, error)
	UploadAttachment(ctx context.Context, taskID string, in client.UploadAttachmentRequest) (*client.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]client.Attachment, error)
	DeleteAttachment(ctx context.Context, taskID, attachmentID string) error
	AuditLog(ctx context.Context, taskID string) ([]client.AuditEntry, error)
}

// TaskStore caches the tasks visible to the current actor in two slices:
// the general list and the current user's personal list.
type TaskStore struct {
	api      TaskAPI
	notifier Notifier
	log      zerolog.Logger

	mu        sync.RWMutex
	tasks     []client.Task
	userTasks []client.Task
	deleted   map[string]bool

	loading *loadingSet
	gens    *generations
	closed  atomic.Bool
}

// NewTaskStore returns an empty store backed by api.
func NewTaskStore(api TaskAPI, opts ...Option) *TaskStore {
	o := buildOptions(opts)
	return &TaskStore{
		api:      api,
		notifier: o.notifier,
		log:      o.logger.With().Str("store", "tasks").Logger(),
		deleted:  make(map[string]bool),
		loading:  newLoadingSet(),
		gens:     newGenerations(),
	}
}

// ------------------------------ readers ------------------------------

// Tasks returns a copy of the general task cache.
func (s *TaskStore) Tasks() []client.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// UserTasks returns a copy of the current user's task cache.
func (s *TaskStore) UserTasks() []client.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.userTasks)
}

// Task returns the cached task with id from either cache.
func (s *TaskStore) Task(id string) (client.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.tasks, id); i >= 0 {
		return cloneTask(s.tasks[i]), true
	}
	if i := indexOf(s.userTasks, id); i >= 0 {
		return cloneTask(s.userTasks[i]), true
	}
	return client.Task{}, false
}

// IsLoading reports whether the operation keyed by key is in flight.
func (s *TaskStore) IsLoading(key string) bool { return s.loading.isLoading(key) }

// ------------------------------ lists ------------------------------

// ListTasks replaces the general cache with the tasks matching filter. On
// failure the cache is emptied, an error is notified, and an empty slice is
// returned.
func (s *TaskStore) ListTasks(ctx context.Context, filter client.TaskFilter) []client.Task {
	return s.list(ctx, KeyTasks, "load tasks", filter, func(ctx context.Context) ([]client.Task, error) {
		return s.api.ListTasks(ctx, filter)
	})
}

// ListUserTasks replaces the personal cache with userID's tasks.
func (s *TaskStore) ListUserTasks(ctx context.Context, userID string) []client.Task {
	return s.list(ctx, KeyUserTasks, "load your tasks", client.TaskFilter{}, func(ctx context.Context) ([]client.Task, error) {
		return s.api.ListUserTasks(ctx, userID)
	})
}

func (s *TaskStore) list(ctx context.Context, key, op string, filter client.TaskFilter, fetch func(context.Context) ([]client.Task, error)) []client.Task {
	if s.closed.Load() {
		return []client.Task{}
	}
	done := s.loading.begin(key)
	defer done()

	token := s.gens.startList(key)
	fetched, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gens.listCurrent(key, token) || s.closed.Load() {
		staleResponsesTotal.WithLabelValues("tasks", key).Inc()
		s.log.Debug().Str("key", key).Msg("discarding superseded list response")
		return cloneTasks(*s.slice(key))
	}
	if err != nil {
		readFailuresTotal.WithLabelValues("tasks", key).Inc()
		*s.slice(key) = nil
		notifyError(s.notifier, op, err)
		return []client.Task{}
	}
	merged := s.merge(*s.slice(key), fetched, token, filter)
	*s.slice(key) = merged
	return cloneTasks(merged)
}

// merge reconciles a list response with the cache. Records mutated after
// the list request started keep their cached version (or stay deleted), and
// cached records created after it started are retained. A cached version
// that no longer passes filter is dropped.
func (s *TaskStore) merge(cached, fetched []client.Task, token uint64, filter client.TaskFilter) []client.Task {
	out := make([]client.Task, 0, len(fetched))
	seen := make(map[string]bool, len(fetched))
	for _, t := range fetched {
		seen[t.ID] = true
		if !s.gens.mutatedSince(t.ID, token) {
			out = append(out, cloneTask(t))
			continue
		}
		switch cur := s.findAny(t.ID); {
		case cur != nil:
			if filter.Matches(*cur) {
				out = append(out, cloneTask(*cur))
			}
		case !s.deleted[t.ID]:
			out = append(out, cloneTask(t))
		}
	}
	var fresh []client.Task
	for _, t := range cached {
		if !seen[t.ID] && s.gens.mutatedSince(t.ID, token) && filter.Matches(t) {
			fresh = append(fresh, t)
		}
	}
	return append(fresh, out...)
}

// findAny looks a task up in both caches. Callers hold s.mu.
func (s *TaskStore) findAny(id string) *client.Task {
	if i := indexOf(s.tasks, id); i >= 0 {
		return &s.tasks[i]
	}
	if i := indexOf(s.userTasks, id); i >= 0 {
		return &s.userTasks[i]
	}
	return nil
}

func (s *TaskStore) slice(key string) *[]client.Task {
	if key == KeyUserTasks {
		return &s.userTasks
	}
	return &s.tasks
}

// ------------------------------ mutations ------------------------------

// CreateTask posts draft, applying the todo/medium defaults, and prepends
// the server record to both caches. Validation failures are notified per
// field and returned so the caller can keep its form open.
func (s *TaskStore) CreateTask(ctx context.Context, draft client.CreateTaskRequest) (*client.Task, error) {
	const op = "create task"
	if s.closed.Load() {
		return nil, s.fail(op, ErrSessionClosed)
	}
	if draft.Status == "" {
		draft.Status = client.StatusTodo
	}
	if draft.Priority == "" {
		draft.Priority = client.PriorityMedium
	}
	done := s.loading.begin(KeyNewTask)
	defer done()

	created, err := s.api.CreateTask(ctx, draft)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.gens.next(created.ID)

	s.mu.Lock()
	delete(s.deleted, created.ID)
	s.tasks = prepend(s.tasks, *created)
	s.userTasks = prepend(s.userTasks, *created)
	s.mu.Unlock()

	notifySuccess(s.notifier, op, "Task created")
	out := cloneTask(*created)
	return &out, nil
}

// UpdateTask applies a partial update. Its generation is taken when the
// write reaches the front of the task's mutation lane, so generation order
// is the order the server applies writes in. The server's copy replaces the
// cached entry in both caches unless a later write of the same id started
// meanwhile, in which case the response is discarded; the server record is
// returned either way.
func (s *TaskStore) UpdateTask(ctx context.Context, id string, patch client.UpdateTaskRequest) (*client.Task, error) {
	const op = "update task"
	if id == "" {
		return nil, s.fail(op, fmt.Errorf("update task: %w", client.ErrMissingID))
	}
	if s.closed.Load() {
		return nil, s.fail(op, ErrSessionClosed)
	}
	done := s.loading.begin(TaskKey(id))
	defer done()

	var laneGen atomic.Uint64
	ctx = client.WithLaneStart(ctx, func() { laneGen.Store(s.gens.next(id)) })
	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, s.fail(op, err)
	}
	gen := laneGen.Load()
	if gen == 0 {
		gen = s.gens.next(id)
	}

	s.mu.Lock()
	applied := s.gens.current(id, gen) && !s.closed.Load()
	if applied {
		replace(s.tasks, *updated)
		replace(s.userTasks, *updated)
	}
	s.mu.Unlock()

	if !applied {
		staleResponsesTotal.WithLabelValues("tasks", "update").Inc()
		s.log.Debug().Str("task_id", id).Uint64("generation", gen).Msg("discarding stale update response")
	} else {
		notifySuccess(s.notifier, op, "Task updated")
	}
	out := cloneTask(*updated)
	return &out, nil
}

// SetStatus updates only the task's status.
func (s *TaskStore) SetStatus(ctx context.Context, id string, status client.TaskStatus) (*client.Task, error) {
	return s.UpdateTask(ctx, id, client.UpdateTaskRequest{Status: &status})
}

// SetPriority updates only the task's priority.
func (s *TaskStore) SetPriority(ctx context.Context, id string, p client.Priority) (*client.Task, error) {
	return s.UpdateTask(ctx, id, client.UpdateTaskRequest{Priority: &p})
}

// SetCategory updates only the task's category.
func (s *TaskStore) SetCategory(ctx context.Context, id, category string) (*client.Task, error) {
	return s.UpdateTask(ctx, id, client.UpdateTaskRequest{Category: &category})
}

// DeleteTask removes the task from both caches once the server confirms.
// A second delete (or a delete racing an update) of the same id returns
// ErrInFlight without a network call.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	const op = "delete task"
	if id == "" {
		return s.fail(op, fmt.Errorf("delete task: %w", client.ErrMissingID))
	}
	if s.closed.Load() {
		return s.fail(op, ErrSessionClosed)
	}
	done, ok := s.loading.tryBegin(TaskKey(id))
	if !ok {
		return s.fail(op, ErrInFlight)
	}
	defer done()

	var started atomic.Bool
	ctx = client.WithLaneStart(ctx, func() {
		started.Store(true)
		s.gens.next(id)
	})
	if err := s.api.DeleteTask(ctx, id); err != nil {
		return s.fail(op, err)
	}
	if !started.Load() {
		s.gens.next(id)
	}

	s.mu.Lock()
	s.tasks = remove(s.tasks, id)
	s.userTasks = remove(s.userTasks, id)
	s.deleted[id] = true
	s.mu.Unlock()

	notifySuccess(s.notifier, op, "Task deleted")
	return nil
}

// ------------------------------ sub-resources ------------------------------

// AddComment posts a comment and appends it to the cached task.
func (s *TaskStore) AddComment(ctx context.Context, id, content string) (*client.Comment, error) {
	const op = "add comment"
	if id == "" {
		return nil, s.fail(op, fmt.Errorf("add comment: %w", client.ErrMissingID))
	}
	done := s.loading.begin(CommentsKey(id))
	defer done()

	c, err := s.api.AddComment(ctx, id, content)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.editCached(id, func(t *client.Task) { t.Comments = append(t.Comments, *c) })
	notifySuccess(s.notifier, op, "Comment added")
	return c, nil
}

// ListComments fetches a task's comments. On failure it notifies and
// returns nil; a successful empty result is a non-nil empty slice.
func (s *TaskStore) ListComments(ctx context.Context, id string) []client.Comment {
	done := s.loading.begin(CommentsKey(id))
	defer done()

	out, err := s.api.ListComments(ctx, id)
	if err != nil {
		readFailuresTotal.WithLabelValues("tasks", "comments").Inc()
		notifyError(s.notifier, "load comments", err)
		return nil
	}
	if out == nil {
		out = []client.Comment{}
	}
	s.editCached(id, func(t *client.Task) { t.Comments = append([]client.Comment(nil), out...) })
	return out
}

// UploadAttachment uploads a file and appends it to the cached task.
func (s *TaskStore) UploadAttachment(ctx context.Context, id string, in client.UploadAttachmentRequest) (*client.Attachment, error) {
	const op = "upload attachment"
	if id == "" {
		return nil, s.fail(op, fmt.Errorf("upload attachment: %w", client.ErrMissingID))
	}
	done := s.loading.begin(AttachmentsKey(id))
	defer done()

	a, err := s.api.UploadAttachment(ctx, id, in)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.editCached(id, func(t *client.Task) { t.Attachments = append(t.Attachments, *a) })
	notifySuccess(s.notifier, op, "Attachment uploaded")
	return a, nil
}

// ListAttachments fetches a task's attachments. Nil means the fetch failed.
func (s *TaskStore) ListAttachments(ctx context.Context, id string) []client.Attachment {
	done := s.loading.begin(AttachmentsKey(id))
	defer done()

	out, err := s.api.ListAttachments(ctx, id)
	if err != nil {
		readFailuresTotal.WithLabelValues("tasks", "attachments").Inc()
		notifyError(s.notifier, "load attachments", err)
		return nil
	}
	if out == nil {
		out = []client.Attachment{}
	}
	s.editCached(id, func(t *client.Task) { t.Attachments = append([]client.Attachment(nil), out...) })
	return out
}

// DeleteAttachment removes an attachment and drops it from the cached task.
func (s *TaskStore) DeleteAttachment(ctx context.Context, id, attachmentID string) error {
	const op = "delete attachment"
	if id == "" || attachmentID == "" {
		return s.fail(op, fmt.Errorf("delete attachment: %w", client.ErrMissingID))
	}
	done := s.loading.begin(AttachmentsKey(id))
	defer done()

	if err := s.api.DeleteAttachment(ctx, id, attachmentID); err != nil {
		return s.fail(op, err)
	}
	s.editCached(id, func(t *client.Task) {
		kept := t.Attachments[:0]
		for _, a := range t.Attachments {
			if a.ID != attachmentID {
				kept = append(kept, a)
			}
		}
		t.Attachments = kept
	})
	notifySuccess(s.notifier, op, "Attachment deleted")
	return nil
}

// AuditLog fetches a task's change history. It is never cached. Nil means
// the fetch failed.
func (s *TaskStore) AuditLog(ctx context.Context, id string) []client.AuditEntry {
	done := s.loading.begin(AuditKey(id))
	defer done()

	out, err := s.api.AuditLog(ctx, id)
	if err != nil {
		readFailuresTotal.WithLabelValues("tasks", "audit").Inc()
		notifyError(s.notifier, "load audit log", err)
		return nil
	}
	if out == nil {
		out = []client.AuditEntry{}
	}
	return out
}

// reset drops both caches and rejects further mutations.
func (s *TaskStore) reset() {
	s.closed.Store(true)
	s.mu.Lock()
	s.tasks, s.userTasks = nil, nil
	s.deleted = make(map[string]bool)
	s.mu.Unlock()
	s.gens.reset()
}

func (s *TaskStore) fail(op string, err error) error {
	notifyError(s.notifier, op, err)
	return err
}

func (s *TaskStore) editCached(id string, fn func(*client.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range [][]client.Task{s.tasks, s.userTasks} {
		if i := indexOf(sl, id); i >= 0 {
			fn(&sl[i])
		}
	}
}

// ------------------------------ helpers ------------------------------

func indexOf(tasks []client.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func replace(tasks []client.Task, t client.Task) {
	if i := indexOf(tasks, t.ID); i >= 0 {
		tasks[i] = cloneTask(t)
	}
}

func prepend(tasks []client.Task, t client.Task) []client.Task {
	tasks = remove(tasks, t.ID)
	return append([]client.Task{cloneTask(t)}, tasks...)
}

func remove(tasks []client.Task, id string) []client.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func cloneTasks(in []client.Task) []client.Task {
	out := make([]client.Task, len(in))
	for i := range in {
		out[i] = cloneTask(in[i])
	}
	return out
}

func cloneTask(t client.Task) client.Task {
	t.AssignedTo = append([]string(nil), t.AssignedTo...)
	t.Comments = append([]client.Comment(nil), t.Comments...)
	t.Attachments = append([]client.Attachment(nil), t.Attachments...)
	t.LinkedMemos = append([]string(nil), t.LinkedMemos...)
	return t
}
