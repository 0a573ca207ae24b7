package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/mycelian-desk/client"
)

func newTaskStoreT(t *testing.T) (*TaskStore, *fakeAPI, *recorder) {
	t.Helper()
	api := newFakeAPI()
	rec := &recorder{}
	return NewTaskStore(api, WithNotifier(rec)), api, rec
}

func TestListTasks_ReplacesCache(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{
		{ID: "t1", Status: client.StatusTodo},
		{ID: "t2", Status: client.StatusBlocked},
	}
	got := s.ListTasks(context.Background(), client.TaskFilter{})
	require.Len(t, got, 2)
	for _, task := range s.Tasks() {
		assert.True(t, task.Status.Valid(), "unexpected status %q", task.Status)
	}

	got = s.ListTasks(context.Background(), client.TaskFilter{Status: client.StatusBlocked})
	require.Len(t, got, 1)
	assert.Equal(t, "t2", s.Tasks()[0].ID)
}

func TestListTasks_FailureEmptiesCacheAndNotifies(t *testing.T) {
	s, api, rec := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Status: client.StatusTodo}}
	s.ListTasks(context.Background(), client.TaskFilter{})
	require.Len(t, s.Tasks(), 1)

	api.listTasksHook = func(context.Context) ([]client.Task, error) {
		return nil, client.NewAPIError(500, "", "list tasks")
	}
	got := s.ListTasks(context.Background(), client.TaskFilter{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, s.Tasks())
	require.Len(t, rec.errors(), 1)
	assert.False(t, s.IsLoading(KeyTasks))
}

func TestCreateTask_DefaultsAndRoundTrip(t *testing.T) {
	s, _, rec := newTaskStoreT(t)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, client.CreateTaskRequest{Title: "Quarterly report"})
	require.NoError(t, err)
	assert.Equal(t, client.StatusTodo, created.Status)
	assert.Equal(t, client.PriorityMedium, created.Priority)
	assert.Equal(t, created.ID, s.Tasks()[0].ID)
	assert.Equal(t, created.ID, s.UserTasks()[0].ID)
	assert.Empty(t, rec.errors())

	var titles []string
	for _, task := range s.ListTasks(ctx, client.TaskFilter{}) {
		titles = append(titles, task.Title)
	}
	assert.Contains(t, titles, "Quarterly report")
}

func TestCreateTask_FieldErrorsNotifiedIndividually(t *testing.T) {
	s, api, rec := newTaskStoreT(t)
	api.createErr = client.NewAPIError(400,
		`{"message":"Validation failed","errors":[{"field":"title","message":"Title is required"},{"field":"dueDate","message":"must be in the future"}]}`,
		"create task")

	_, err := s.CreateTask(context.Background(), client.CreateTaskRequest{})
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))

	notes := rec.errors()
	require.Len(t, notes, 2)
	assert.Equal(t, "title", notes[0].Field)
	assert.Equal(t, "dueDate", notes[1].Field)
	assert.Empty(t, s.Tasks())
}

func TestUpdateTask_MissingIDFailsFast(t *testing.T) {
	s, api, rec := newTaskStoreT(t)
	_, err := s.UpdateTask(context.Background(), "", client.UpdateTaskRequest{})
	assert.ErrorIs(t, err, client.ErrMissingID)
	assert.Zero(t, api.callCount("UpdateTask"))
	assert.Len(t, rec.errors(), 1)

	assert.ErrorIs(t, s.DeleteTask(context.Background(), ""), client.ErrMissingID)
	assert.Zero(t, api.callCount("DeleteTask"))
}

func TestUpdateTask_SameStatusTwiceNoDuplicates(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Status: client.StatusTodo, AssignedTo: []string{"u1"}}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})
	s.ListUserTasks(ctx, "u1")

	for i := 0; i < 2; i++ {
		_, err := s.SetStatus(ctx, "t1", client.StatusCompleted)
		require.NoError(t, err)
	}
	for _, cache := range [][]client.Task{s.Tasks(), s.UserTasks()} {
		n := 0
		for _, task := range cache {
			if task.ID == "t1" {
				n++
				assert.Equal(t, client.StatusCompleted, task.Status)
			}
		}
		assert.Equal(t, 1, n)
	}
}

// Two updates that reach the lane back to back where the first resolves
// last: the cache must end on the value of the later one.
func TestUpdateTask_LastIssuedWins(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Priority: client.PriorityMedium}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})

	highStarted := make(chan struct{})
	release := make(chan struct{})
	api.updateHook = func(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
		if *p.Priority == client.PriorityHigh {
			close(highStarted)
			<-release
		}
		return &client.Task{ID: id, Priority: *p.Priority}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var highResult *client.Task
	go func() {
		defer wg.Done()
		highResult, _ = s.SetPriority(ctx, "t1", client.PriorityHigh)
	}()
	<-highStarted

	low, err := s.SetPriority(ctx, "t1", client.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, client.PriorityLow, low.Priority)

	close(release)
	wg.Wait()

	require.NotNil(t, highResult)
	assert.Equal(t, client.PriorityHigh, highResult.Priority, "caller still receives the server record")
	task, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, client.PriorityLow, task.Priority)
}

// Two updates where the one issued first reaches the task's lane last. The
// server ends on that write, so the cache must too.
func TestUpdateTask_LaneOrderDecidesWinner(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Priority: client.PriorityMedium}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})

	var calls int32
	firstWaiting := make(chan struct{})
	secondStarted := make(chan struct{})
	firstStarted := make(chan struct{})
	api.laneHook = func(ctx context.Context, id string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstWaiting)
			<-secondStarted
			client.LaneStarted(ctx)
			close(firstStarted)
			return
		}
		client.LaneStarted(ctx)
		close(secondStarted)
	}
	secondApplied := make(chan struct{})
	var mu sync.Mutex
	var applied []client.Priority
	api.updateHook = func(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
		if *p.Priority == client.PriorityLow {
			<-firstStarted
			defer close(secondApplied)
		} else {
			<-secondApplied
		}
		mu.Lock()
		applied = append(applied, *p.Priority)
		mu.Unlock()
		return &client.Task{ID: id, Priority: *p.Priority}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SetPriority(ctx, "t1", client.PriorityHigh)
	}()
	<-firstWaiting
	_, err := s.SetPriority(ctx, "t1", client.PriorityLow)
	require.NoError(t, err)
	<-done

	mu.Lock()
	require.Len(t, applied, 2)
	last := applied[len(applied)-1]
	mu.Unlock()
	task, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, client.PriorityHigh, last)
	assert.Equal(t, last, task.Priority, "cache must match the write the server applied last")
}

func TestUpdateTask_AuthFailuresDistinguished(t *testing.T) {
	s, api, rec := newTaskStoreT(t)
	api.updateHook = func(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
		if id == "expired" {
			return nil, client.NewAPIError(401, "", "update task")
		}
		return nil, client.NewAPIError(403, "", "update task")
	}

	_, err := s.SetCategory(context.Background(), "expired", "ops")
	assert.True(t, client.IsUnauthenticated(err))
	_, err = s.SetCategory(context.Background(), "other", "ops")
	assert.True(t, client.IsUnauthorized(err))

	notes := rec.errors()
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Message, "log in again")
	assert.Contains(t, notes[1].Message, "permission")
}

func TestDeleteTask_RemovesFromCaches(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", AssignedTo: []string{"u1"}}, {ID: "t2"}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})
	s.ListUserTasks(ctx, "u1")

	require.NoError(t, s.DeleteTask(ctx, "t1"))
	_, ok := s.Task("t1")
	assert.False(t, ok)
	assert.Len(t, s.Tasks(), 1)
	assert.Empty(t, s.UserTasks())
}

func TestDeleteTask_RepeatedClickGuard(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	started := make(chan struct{})
	release := make(chan struct{})
	api.deleteHook = func(ctx context.Context, id string) error {
		close(started)
		<-release
		return nil
	}

	errc := make(chan error, 1)
	go func() { errc <- s.DeleteTask(context.Background(), "t1") }()
	<-started

	assert.True(t, s.IsLoading(TaskKey("t1")))
	assert.False(t, s.IsLoading(TaskKey("t2")))
	assert.ErrorIs(t, s.DeleteTask(context.Background(), "t1"), ErrInFlight)

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, api.callCount("DeleteTask"))
	assert.False(t, s.IsLoading(TaskKey("t1")))
}

func TestDeleteTask_LateUpdateCannotResurrect(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Status: client.StatusTodo}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})

	started := make(chan struct{})
	release := make(chan struct{})
	api.updateHook = func(ctx context.Context, id string, p client.UpdateTaskRequest) (*client.Task, error) {
		close(started)
		<-release
		return &client.Task{ID: id, Status: *p.Status}, nil
	}
	api.deleteHook = func(context.Context, string) error { return nil }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SetStatus(ctx, "t1", client.StatusBlocked)
	}()
	<-started
	// Update holds the task's loading key, so the delete guard trips.
	assert.ErrorIs(t, s.DeleteTask(ctx, "t1"), ErrInFlight)
	close(release)
	<-done

	require.NoError(t, s.DeleteTask(ctx, "t1"))
	_, ok := s.Task("t1")
	assert.False(t, ok)
}

func TestListTasks_DoesNotClobberNewerMutation(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Status: client.StatusTodo}, {ID: "t2", Status: client.StatusTodo}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})

	listStarted := make(chan struct{})
	release := make(chan struct{})
	snapshot := []client.Task{{ID: "t1", Status: client.StatusTodo}, {ID: "t2", Status: client.StatusTodo}}
	api.listTasksHook = func(context.Context) ([]client.Task, error) {
		close(listStarted)
		<-release
		return snapshot, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ListTasks(ctx, client.TaskFilter{})
	}()
	<-listStarted

	_, err := s.SetStatus(ctx, "t1", client.StatusCompleted)
	require.NoError(t, err)
	created, err := s.CreateTask(ctx, client.CreateTaskRequest{Title: "new"})
	require.NoError(t, err)

	close(release)
	<-done

	t1, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, client.StatusCompleted, t1.Status)
	_, ok = s.Task(created.ID)
	assert.True(t, ok, "task created while the list was in flight must survive")
	assert.Len(t, s.Tasks(), 3)
}

func TestListTasks_FilteredListDropsTaskMovedOut(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Status: client.StatusTodo}, {ID: "t2", Status: client.StatusTodo}}
	ctx := context.Background()
	todo := client.TaskFilter{Status: client.StatusTodo}
	s.ListTasks(ctx, todo)

	listStarted := make(chan struct{})
	release := make(chan struct{})
	snapshot := []client.Task{{ID: "t1", Status: client.StatusTodo}, {ID: "t2", Status: client.StatusTodo}}
	api.listTasksHook = func(context.Context) ([]client.Task, error) {
		close(listStarted)
		<-release
		return snapshot, nil
	}

	done := make(chan struct{})
	var got []client.Task
	go func() {
		defer close(done)
		got = s.ListTasks(ctx, todo)
	}()
	<-listStarted

	_, err := s.SetStatus(ctx, "t1", client.StatusCompleted)
	require.NoError(t, err)
	created, err := s.CreateTask(ctx, client.CreateTaskRequest{Title: "later", Status: client.StatusInProgress})
	require.NoError(t, err)

	close(release)
	<-done

	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
	for _, task := range s.Tasks() {
		assert.NotEqual(t, "t1", task.ID, "completed task must leave the todo list")
		assert.NotEqual(t, created.ID, task.ID, "in-progress task must not join the todo list")
	}
}

func TestTaskFilter_Matches(t *testing.T) {
	task := client.Task{
		Title: "Fix DB index", Description: "slow query", Status: client.StatusBlocked,
		Priority: client.PriorityHigh, Category: "Ops", AssignedTo: []string{"u1"},
	}
	assert.True(t, client.TaskFilter{}.Matches(task))
	assert.True(t, client.TaskFilter{Status: client.StatusBlocked, Category: "ops", Assignee: "u1", Search: "QUERY"}.Matches(task))
	assert.False(t, client.TaskFilter{Status: client.StatusTodo}.Matches(task))
	assert.False(t, client.TaskFilter{Priority: client.PriorityLow}.Matches(task))
	assert.False(t, client.TaskFilter{Assignee: "u2"}.Matches(task))
	assert.False(t, client.TaskFilter{Search: "deploy"}.Matches(task))
}

func TestListTasks_SupersededResponseDiscarded(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	var n int32
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	api.listTasksHook = func(context.Context) ([]client.Task, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			close(firstStarted)
			<-release
			return []client.Task{{ID: "old"}}, nil
		}
		return []client.Task{{ID: "new"}}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ListTasks(context.Background(), client.TaskFilter{})
	}()
	<-firstStarted
	s.ListTasks(context.Background(), client.TaskFilter{})
	close(release)
	<-done

	got := s.Tasks()
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestSubResources(t *testing.T) {
	s, api, rec := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1"}}
	ctx := context.Background()
	s.ListTasks(ctx, client.TaskFilter{})

	c, err := s.AddComment(ctx, "t1", "looks good")
	require.NoError(t, err)
	task, _ := s.Task("t1")
	require.Len(t, task.Comments, 1)
	assert.Equal(t, c.ID, task.Comments[0].ID)

	comments := s.ListComments(ctx, "t1")
	assert.NotNil(t, comments, "successful empty result is non-nil")
	assert.Empty(t, comments)

	a, err := s.UploadAttachment(ctx, "t1", client.UploadAttachmentRequest{FileName: "x.txt", Body: strings.NewReader("x")})
	require.NoError(t, err)
	task, _ = s.Task("t1")
	require.Len(t, task.Attachments, 1)

	require.NoError(t, s.DeleteAttachment(ctx, "t1", a.ID))
	task, _ = s.Task("t1")
	assert.Empty(t, task.Attachments)

	assert.Len(t, s.ListAttachments(ctx, "t1"), 1)
	assert.Len(t, s.AuditLog(ctx, "t1"), 1)
	assert.Len(t, s.AuditLog(ctx, "t1"), 1)
	assert.Equal(t, 2, api.callCount("AuditLog"), "audit log is never cached")
	assert.Empty(t, rec.errors())

	api.commentsErr = errors.New("boom")
	assert.Nil(t, s.ListComments(ctx, "t1"))
	assert.Len(t, rec.errors(), 1)
}

func TestReadersReturnCopies(t *testing.T) {
	s, api, _ := newTaskStoreT(t)
	api.tasks = []client.Task{{ID: "t1", Title: "orig", AssignedTo: []string{"u1"}}}
	s.ListTasks(context.Background(), client.TaskFilter{})

	got := s.Tasks()
	got[0].Title = "mutated"
	got[0].AssignedTo[0] = "u2"

	task, _ := s.Task("t1")
	assert.Equal(t, "orig", task.Title)
	assert.Equal(t, "u1", task.AssignedTo[0])
}
