package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/mycelian-desk/client"
)

func TestNewSession_RequiresViewer(t *testing.T) {
	_, err := NewSession(newFakeAPI(), client.User{})
	assert.ErrorIs(t, err, client.ErrMissingID)
	_, err = NewSession(nil, client.User{ID: "u1"})
	assert.Error(t, err)
}

func TestSession_RefreshAndLogout(t *testing.T) {
	api := newFakeAPI()
	api.tasks = []client.Task{{ID: "t1", AssignedTo: []string{"u1"}}}
	api.memos = []client.Memo{{ID: "m1", Status: client.MemoActive, Recipients: []string{"u1"}}}

	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	sess, err := NewSession(api, client.User{ID: "u1", Role: client.RoleEmployee}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, fixed, sess.Now())

	ctx := context.Background()
	sess.Refresh(ctx)
	assert.Len(t, sess.Tasks.Tasks(), 1)
	assert.Len(t, sess.Tasks.UserTasks(), 1)
	assert.Len(t, sess.Memos.Memos(), 1)
	assert.Len(t, sess.PendingMemos(), 1)
	assert.Equal(t, DisplayActive, sess.DisplayStatus(sess.Memos.Memos()[0]))

	require.NoError(t, sess.Logout())
	require.NoError(t, sess.Logout())
	assert.Equal(t, 1, api.closed, "client closed exactly once")
	assert.Empty(t, sess.Tasks.Tasks())
	assert.Empty(t, sess.Memos.UserMemos())

	_, err = sess.Tasks.CreateTask(ctx, client.CreateTaskRequest{Title: "after logout"})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, sess.Tasks.ListTasks(ctx, client.TaskFilter{}))
	assert.Zero(t, api.callCount("CreateTask"))
}

func TestLoadingSet(t *testing.T) {
	l := newLoadingSet()
	a := l.begin("x")
	b := l.begin("x")
	assert.True(t, l.isLoading("x"))
	a()
	a() // releasing twice is harmless
	assert.True(t, l.isLoading("x"))
	b()
	assert.False(t, l.isLoading("x"))
	assert.False(t, l.any())

	release, ok := l.tryBegin("y")
	require.True(t, ok)
	_, ok = l.tryBegin("y")
	assert.False(t, ok)
	release()
	_, ok = l.tryBegin("y")
	assert.True(t, ok)
}

func TestLoadingKeys(t *testing.T) {
	assert.Equal(t, "task:t1", TaskKey("t1"))
	assert.Equal(t, "comments:t1", CommentsKey("t1"))
	assert.Equal(t, "attachments:t1", AttachmentsKey("t1"))
	assert.Equal(t, "audit:t1", AuditKey("t1"))
	assert.Equal(t, "memo:m1", MemoKey("m1"))
}

func TestLoadingKeys_RecordIDsNeverCollide(t *testing.T) {
	lists := []string{KeyTasks, KeyUserTasks, KeyMemos, KeyUserMemos, KeyNewTask, KeyNewMemo}
	ids := append([]string{"new", "t1", "task", "comments"}, lists...)

	seen := make(map[string]string)
	add := func(key, what string) {
		if prev, ok := seen[key]; ok {
			t.Fatalf("loading key %q shared by %s and %s", key, prev, what)
		}
		seen[key] = what
	}
	for _, k := range lists {
		add(k, "list "+k)
	}
	for _, id := range ids {
		add(TaskKey(id), "task "+id)
		add(CommentsKey(id), "comments "+id)
		add(AttachmentsKey(id), "attachments "+id)
		add(AuditKey(id), "audit "+id)
		add(MemoKey(id), "memo "+id)
	}
}

func TestTaskStore_TaskNamedLikeListKeepsSeparateFlag(t *testing.T) {
	api := newFakeAPI()
	api.tasks = []client.Task{{ID: KeyTasks, Status: client.StatusTodo}}
	s := NewTaskStore(api)

	started := make(chan struct{})
	release := make(chan struct{})
	api.updateHook = func(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
		close(started)
		<-release
		return &client.Task{ID: id, Status: *p.Status}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SetStatus(context.Background(), KeyTasks, client.StatusBlocked)
	}()
	<-started
	assert.True(t, s.IsLoading(TaskKey(KeyTasks)))
	assert.False(t, s.IsLoading(KeyTasks), "list flag must stay clear while the task updates")
	close(release)
	<-done
}
