package store

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mycelian/mycelian-desk/client"
)

// API is everything a Session needs from the backend client.
type API interface {
	TaskAPI
	MemoAPI
	io.Closer
}

// Session owns the stores for one logged-in user. Construct it once after
// login and call Logout when the user signs out.
type Session struct {
	Tasks *TaskStore
	Memos *MemoStore

	viewer client.User
	api    API
	now    func() time.Time
	log    zerolog.Logger

	logoutOnce sync.Once
	logoutErr  error
}

// NewSession builds both stores over api for viewer. Options apply to both
// stores.
func NewSession(api API, viewer client.User, opts ...Option) (*Session, error) {
	if api == nil {
		return nil, fmt.Errorf("new session: nil api")
	}
	if viewer.ID == "" {
		return nil, fmt.Errorf("new session: viewer: %w", client.ErrMissingID)
	}
	o := buildOptions(opts)
	return &Session{
		Tasks:  NewTaskStore(api, opts...),
		Memos:  NewMemoStore(api, opts...),
		viewer: viewer,
		api:    api,
		now:    o.now,
		log:    o.logger.With().Str("viewer", viewer.ID).Logger(),
	}, nil
}

// Viewer returns the user the session belongs to.
func (s *Session) Viewer() client.User { return s.viewer }

// Now returns the session clock's current time.
func (s *Session) Now() time.Time { return s.now() }

// Refresh reloads all four caches. Failures degrade per cache.
func (s *Session) Refresh(ctx context.Context) {
	s.Tasks.ListTasks(ctx, client.TaskFilter{})
	s.Tasks.ListUserTasks(ctx, s.viewer.ID)
	s.Memos.ListMemos(ctx)
	s.Memos.ListUserMemos(ctx, s.viewer.ID)
}

// PendingMemos is PendingFor over the viewer's cached memos at the session clock.
func (s *Session) PendingMemos() []client.Memo {
	return PendingFor(s.Memos.UserMemos(), s.viewer.ID, s.now())
}

// DisplayStatus is DisplayStatus for the viewer at the session clock.
func (s *Session) DisplayStatus(m client.Memo) DisplayState {
	return DisplayStatus(m, s.viewer.ID, s.now())
}

// Logout clears both caches and closes the client. It is idempotent.
func (s *Session) Logout() error {
	s.logoutOnce.Do(func() {
		s.Tasks.reset()
		s.Memos.reset()
		s.logoutErr = s.api.Close()
		s.log.Debug().Msg("session closed")
	})
	return s.logoutErr
}
