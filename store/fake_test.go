package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mycelian/mycelian-desk/client"
)

// fakeAPI is an in-memory backend. Hooks, when set, replace the default
// behaviour of a single call.
type fakeAPI struct {
	mu     sync.Mutex
	tasks  []client.Task
	memos  []client.Memo
	hidden map[string]map[string]bool // memo id -> user id -> hidden
	seq    int
	closed int

	listTasksHook  func(ctx context.Context) ([]client.Task, error)
	updateHook     func(ctx context.Context, id string, patch client.UpdateTaskRequest) (*client.Task, error)
	deleteHook     func(ctx context.Context, id string) error
	laneHook       func(ctx context.Context, id string) // replaces client.LaneStarted in UpdateTask
	createErr      error
	listMemosErr   error
	commentsErr    error
	calls          map[string]int
	lastSnooze     client.SnoozeMemoRequest
	snoozeDuration time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{hidden: make(map[string]map[string]bool), calls: make(map[string]int)}
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeAPI) ListTasks(ctx context.Context, filter client.TaskFilter) ([]client.Task, error) {
	f.count("ListTasks")
	if f.listTasksHook != nil {
		return f.listTasksHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Task
	for _, t := range f.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeAPI) ListUserTasks(ctx context.Context, userID string) ([]client.Task, error) {
	f.count("ListUserTasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Task
	for _, t := range f.tasks {
		for _, a := range t.AssignedTo {
			if a == userID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, d client.CreateTaskRequest) (*client.Task, error) {
	f.count("CreateTask")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := client.Task{ID: f.nextID("t"), Title: d.Title, Status: d.Status, Priority: d.Priority, AssignedTo: d.AssignedTo}
	f.tasks = append(f.tasks, t)
	return &t, nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
	f.count("UpdateTask")
	if f.laneHook != nil {
		f.laneHook(ctx, id)
	} else {
		client.LaneStarted(ctx)
	}
	if f.updateHook != nil {
		return f.updateHook(ctx, id, p)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if p.Status != nil {
			f.tasks[i].Status = *p.Status
		}
		if p.Priority != nil {
			f.tasks[i].Priority = *p.Priority
		}
		if p.Category != nil {
			f.tasks[i].Category = *p.Category
		}
		t := f.tasks[i]
		return &t, nil
	}
	return nil, client.NewAPIError(404, `{"message":"Task not found"}`, "update task")
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id string) error {
	f.count("DeleteTask")
	client.LaneStarted(ctx)
	if f.deleteHook != nil {
		return f.deleteHook(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return client.NewAPIError(404, "", "delete task")
}

func (f *fakeAPI) AddComment(ctx context.Context, id, content string) (*client.Comment, error) {
	f.count("AddComment")
	return &client.Comment{ID: "c-" + id, Content: content, Author: "u1"}, nil
}

func (f *fakeAPI) ListComments(ctx context.Context, id string) ([]client.Comment, error) {
	f.count("ListComments")
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return nil, nil
}

func (f *fakeAPI) UploadAttachment(ctx context.Context, id string, in client.UploadAttachmentRequest) (*client.Attachment, error) {
	f.count("UploadAttachment")
	return &client.Attachment{ID: "a-" + id, FileName: in.FileName}, nil
}

func (f *fakeAPI) ListAttachments(ctx context.Context, id string) ([]client.Attachment, error) {
	f.count("ListAttachments")
	return []client.Attachment{{ID: "a1", FileName: "spec.pdf"}}, nil
}

func (f *fakeAPI) DeleteAttachment(ctx context.Context, id, attachmentID string) error {
	f.count("DeleteAttachment")
	return nil
}

func (f *fakeAPI) AuditLog(ctx context.Context, id string) ([]client.AuditEntry, error) {
	f.count("AuditLog")
	return []client.AuditEntry{{ID: "e1", TaskID: id, Action: "created"}}, nil
}

func (f *fakeAPI) ListMemos(ctx context.Context) ([]client.Memo, error) {
	f.count("ListMemos")
	if f.listMemosErr != nil {
		return nil, f.listMemosErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.Memo(nil), f.memos...), nil
}

func (f *fakeAPI) ListUserMemos(ctx context.Context, userID string) ([]client.Memo, error) {
	f.count("ListUserMemos")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Memo
	for _, m := range f.memos {
		if f.hidden[m.ID][userID] {
			continue
		}
		for _, r := range m.Recipients {
			if r == userID {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) SendMemo(ctx context.Context, in client.SendMemoRequest) (*client.Memo, error) {
	f.count("SendMemo")
	f.mu.Lock()
	defer f.mu.Unlock()
	m := client.Memo{ID: f.nextID("m"), Title: in.Title, Content: in.Content, Recipients: in.Recipients, Status: client.MemoActive}
	f.memos = append(f.memos, m)
	return &m, nil
}

func (f *fakeAPI) MarkMemoRead(ctx context.Context, memoID, userID string) error {
	f.count("MarkMemoRead")
	return f.ack(memoID, client.Acknowledgment{UserID: userID, Status: client.AckAcknowledged})
}

func (f *fakeAPI) SnoozeMemo(ctx context.Context, memoID string, in client.SnoozeMemoRequest) error {
	f.count("SnoozeMemo")
	f.mu.Lock()
	f.lastSnooze = in
	f.mu.Unlock()
	until := time.Now().Add(time.Duration(in.DurationMinutes) * time.Minute)
	return f.ack(memoID, client.Acknowledgment{UserID: in.UserID, Status: client.AckSnoozed, SnoozedUntil: &until, Comment: in.Comments})
}

func (f *fakeAPI) ack(memoID string, a client.Acknowledgment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memos {
		if f.memos[i].ID != memoID {
			continue
		}
		acks := f.memos[i].Acknowledgments[:0:0]
		for _, x := range f.memos[i].Acknowledgments {
			if x.UserID != a.UserID {
				acks = append(acks, x)
			}
		}
		f.memos[i].Acknowledgments = append(acks, a)
		return nil
	}
	return client.NewAPIError(404, "", "ack memo")
}

func (f *fakeAPI) UpdateMemoStatus(ctx context.Context, memoID string, status client.MemoStatus) (*client.Memo, error) {
	f.count("UpdateMemoStatus")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memos {
		if f.memos[i].ID == memoID {
			f.memos[i].Status = status
			m := f.memos[i]
			return &m, nil
		}
	}
	return nil, client.NewAPIError(404, "", "update memo")
}

func (f *fakeAPI) DeleteMemo(ctx context.Context, memoID, userID string) error {
	f.count("DeleteMemo")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hidden[memoID] == nil {
		f.hidden[memoID] = make(map[string]bool)
	}
	f.hidden[memoID][userID] = true
	return nil
}

func (f *fakeAPI) DeleteMemoGlobal(ctx context.Context, memoID, userID string) error {
	f.count("DeleteMemoGlobal")
	_, err := f.UpdateMemoStatus(ctx, memoID, client.MemoDeleted)
	return err
}

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) errors() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.got {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}
