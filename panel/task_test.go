package panel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/mycelian-desk/client"
)

type fakeSource struct {
	task        *client.Task
	commentsN   int32
	auditN      int32
	failComment atomic.Bool
	block       chan struct{} // when set, ListComments waits on it
	entered     chan struct{}
}

func (f *fakeSource) Task(id string) (client.Task, bool) {
	if f.task == nil || f.task.ID != id {
		return client.Task{}, false
	}
	return *f.task, true
}

func (f *fakeSource) ListComments(ctx context.Context, id string) []client.Comment {
	atomic.AddInt32(&f.commentsN, 1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.failComment.Load() {
		return nil
	}
	return []client.Comment{{ID: "c1", Content: "hello"}}
}

func (f *fakeSource) ListAttachments(ctx context.Context, id string) []client.Attachment {
	return []client.Attachment{}
}

func (f *fakeSource) AuditLog(ctx context.Context, id string) []client.AuditEntry {
	atomic.AddInt32(&f.auditN, 1)
	return []client.AuditEntry{{ID: "a1", TaskID: id}}
}

func TestNewTaskPanel_RequiresID(t *testing.T) {
	_, err := NewTaskPanel(&fakeSource{}, "")
	assert.ErrorIs(t, err, client.ErrMissingID)
}

func TestActivate_LazyAndCached(t *testing.T) {
	src := &fakeSource{task: &client.Task{ID: "t1", Title: "Ship"}}
	p, err := NewTaskPanel(src, "t1")
	require.NoError(t, err)
	ctx := context.Background()

	v, err := p.Activate(ctx, TabDetails)
	require.NoError(t, err)
	assert.Equal(t, "Ship", v.Task.Title)
	assert.Zero(t, atomic.LoadInt32(&src.commentsN), "no sub-resource fetched for details")

	for i := 0; i < 3; i++ {
		v, err = p.Activate(ctx, TabComments)
		require.NoError(t, err)
		assert.Len(t, v.Comments, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.commentsN))

	p.Invalidate(TabComments)
	_, err = p.Activate(ctx, TabComments)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.commentsN))

	for i := 0; i < 2; i++ {
		_, err = p.Activate(ctx, TabAudit)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.auditN), "audit refetched every activation")

	v, err = p.Activate(ctx, TabAttachments)
	require.NoError(t, err)
	assert.NotNil(t, v.Attachments)
	assert.Equal(t, TabAttachments, p.Active())
}

func TestActivate_FailedFetchNotCached(t *testing.T) {
	src := &fakeSource{task: &client.Task{ID: "t1"}}
	src.failComment.Store(true)
	p, _ := NewTaskPanel(src, "t1")

	v, err := p.Activate(context.Background(), TabComments)
	require.NoError(t, err)
	assert.Empty(t, v.Comments)

	src.failComment.Store(false)
	v, err = p.Activate(context.Background(), TabComments)
	require.NoError(t, err)
	assert.Len(t, v.Comments, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.commentsN))
}

func TestActivate_LateResponseAfterTabSwitchDiscarded(t *testing.T) {
	src := &fakeSource{task: &client.Task{ID: "t1"}, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p, _ := NewTaskPanel(src, "t1")

	var (
		wg      sync.WaitGroup
		lateErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, lateErr = p.Activate(context.Background(), TabComments)
	}()
	<-src.entered

	_, err := p.Activate(context.Background(), TabAudit)
	require.NoError(t, err)

	close(src.block)
	wg.Wait()
	assert.ErrorIs(t, lateErr, ErrDiscarded)
	assert.Equal(t, TabAudit, p.Active())
}

func TestActivate_LateResponseAfterCloseDiscarded(t *testing.T) {
	src := &fakeSource{task: &client.Task{ID: "t1"}, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p, _ := NewTaskPanel(src, "t1")

	errc := make(chan error, 1)
	go func() {
		_, err := p.Activate(context.Background(), TabComments)
		errc <- err
	}()
	<-src.entered
	p.Close()
	close(src.block)

	assert.ErrorIs(t, <-errc, ErrDiscarded)
	_, err := p.Activate(context.Background(), TabDetails)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestActivate_Errors(t *testing.T) {
	p, _ := NewTaskPanel(&fakeSource{}, "missing")
	_, err := p.Activate(context.Background(), "history")
	assert.ErrorIs(t, err, ErrUnknownTab)
	_, err = p.Activate(context.Background(), TabDetails)
	assert.ErrorIs(t, err, ErrNotCached)
}
