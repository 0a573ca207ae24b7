package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mycelian/mycelian-desk/client"
)

// MemoAPI is the subset of *client.Client the MemoStore uses.
type MemoAPI interface {
	ListMemos(ctx context.Context) ([]client.Memo, error)
	ListUserMemos(ctx context.Context, userID string) ([]client.Memo, error)
	SendMemo(ctx context.Context, in client.SendMemoRequest) (*client.Memo, error)
	MarkMemoRead(ctx context.Context, memoID, userID string) error
	SnoozeMemo(ctx context.Context, memoID string, in client.SnoozeMemoRequest) error
	UpdateMemoStatus(ctx context.Context, memoID string, status client.MemoStatus) (*client.Memo, error)
	DeleteMemo(ctx context.Context, memoID, userID string) error
	DeleteMemoGlobal(ctx context.Context, memoID, userID string) error
}

// MemoStore caches the company-wide candidate pool (every non-deleted memo)
// and the current user's slice. Acknowledgment state is multi-party, so
// mutations refetch the affected caches instead of editing them in place.
type MemoStore struct {
	api      MemoAPI
	notifier Notifier
	log      zerolog.Logger

	mu        sync.RWMutex
	memos     []client.Memo
	userMemos []client.Memo

	loading *loadingSet
	gens    *generations
	closed  atomic.Bool
}

// NewMemoStore returns an empty store backed by api.
func NewMemoStore(api MemoAPI, opts ...Option) *MemoStore {
	o := buildOptions(opts)
	return &MemoStore{
		api:      api,
		notifier: o.notifier,
		log:      o.logger.With().Str("store", "memos").Logger(),
		loading:  newLoadingSet(),
		gens:     newGenerations(),
	}
}

// Memos returns a copy of the general memo cache.
func (s *MemoStore) Memos() []client.Memo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMemos(s.memos)
}

// UserMemos returns a copy of the current user's memo cache.
func (s *MemoStore) UserMemos() []client.Memo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMemos(s.userMemos)
}

// Memo returns the cached memo with id from either cache.
func (s *MemoStore) Memo(id string) (client.Memo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range [][]client.Memo{s.userMemos, s.memos} {
		for _, m := range sl {
			if m.ID == id {
				return cloneMemo(m), true
			}
		}
	}
	return client.Memo{}, false
}

// IsLoading reports whether the operation keyed by key is in flight.
func (s *MemoStore) IsLoading(key string) bool { return s.loading.isLoading(key) }

// ListMemos replaces the general cache with every memo whose status is not
// deleted. On failure the cache is emptied and an empty slice returned.
func (s *MemoStore) ListMemos(ctx context.Context) []client.Memo {
	return s.list(ctx, KeyMemos, "load memos", s.api.ListMemos)
}

// ListUserMemos replaces the user cache with userID's non-deleted memos.
func (s *MemoStore) ListUserMemos(ctx context.Context, userID string) []client.Memo {
	return s.list(ctx, KeyUserMemos, "load your memos", func(ctx context.Context) ([]client.Memo, error) {
		return s.api.ListUserMemos(ctx, userID)
	})
}

func (s *MemoStore) list(ctx context.Context, key, op string, fetch func(context.Context) ([]client.Memo, error)) []client.Memo {
	if s.closed.Load() {
		return []client.Memo{}
	}
	done := s.loading.begin(key)
	defer done()

	token := s.gens.startList(key)
	fetched, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	target := &s.memos
	if key == KeyUserMemos {
		target = &s.userMemos
	}
	if !s.gens.listCurrent(key, token) || s.closed.Load() {
		staleResponsesTotal.WithLabelValues("memos", key).Inc()
		s.log.Debug().Str("key", key).Msg("discarding superseded list response")
		return cloneMemos(*target)
	}
	if err != nil {
		readFailuresTotal.WithLabelValues("memos", key).Inc()
		*target = nil
		notifyError(s.notifier, op, err)
		return []client.Memo{}
	}
	*target = withoutDeleted(fetched)
	return cloneMemos(*target)
}

// SendMemo broadcasts a memo and prepends it to the general cache. Empty
// recipients are left out of the request so the server addresses every
// current user; the store never expands the list itself.
func (s *MemoStore) SendMemo(ctx context.Context, in client.SendMemoRequest) (*client.Memo, error) {
	const op = "send memo"
	if strings.TrimSpace(in.Content) == "" {
		return nil, s.fail(op, client.ErrContentRequired)
	}
	if s.closed.Load() {
		return nil, s.fail(op, ErrSessionClosed)
	}
	done := s.loading.begin(KeyNewMemo)
	defer done()

	m, err := s.api.SendMemo(ctx, in)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.mu.Lock()
	if m.Status != client.MemoDeleted {
		s.memos = append([]client.Memo{cloneMemo(*m)}, s.memos...)
	}
	s.mu.Unlock()

	notifySuccess(s.notifier, op, "Memo sent")
	return m, nil
}

// MarkAsRead acknowledges a memo for userID and refetches that user's slice.
func (s *MemoStore) MarkAsRead(ctx context.Context, memoID, userID string) error {
	const op = "mark memo as read"
	if err := s.guard(op, memoID, userID); err != nil {
		return err
	}
	done := s.loading.begin(MemoKey(memoID))
	defer done()

	if err := s.api.MarkMemoRead(ctx, memoID, userID); err != nil {
		return s.fail(op, err)
	}
	notifySuccess(s.notifier, op, "Memo marked as read")
	s.ListUserMemos(ctx, userID)
	return nil
}

// Snooze hides a memo from userID for durationMinutes and refetches the
// user's slice. The server computes snoozedUntil.
func (s *MemoStore) Snooze(ctx context.Context, memoID, userID string, durationMinutes int, comment string) error {
	const op = "snooze memo"
	if err := s.guard(op, memoID, userID); err != nil {
		return err
	}
	if durationMinutes <= 0 {
		return s.fail(op, client.ErrInvalidDuration)
	}
	done := s.loading.begin(MemoKey(memoID))
	defer done()

	in := client.SnoozeMemoRequest{UserID: userID, DurationMinutes: durationMinutes, Comments: comment}
	if err := s.api.SnoozeMemo(ctx, memoID, in); err != nil {
		return s.fail(op, err)
	}
	notifySuccess(s.notifier, op, fmt.Sprintf("Memo snoozed for %d minutes", durationMinutes))
	s.ListUserMemos(ctx, userID)
	return nil
}

// UpdateStatus changes a memo's status for every user and refetches the
// general cache.
func (s *MemoStore) UpdateStatus(ctx context.Context, memoID string, status client.MemoStatus) (*client.Memo, error) {
	const op = "update memo"
	if memoID == "" {
		return nil, s.fail(op, fmt.Errorf("update memo: %w", client.ErrMissingID))
	}
	if s.closed.Load() {
		return nil, s.fail(op, ErrSessionClosed)
	}
	done := s.loading.begin(MemoKey(memoID))
	defer done()

	m, err := s.api.UpdateMemoStatus(ctx, memoID, status)
	if err != nil {
		return nil, s.fail(op, err)
	}
	notifySuccess(s.notifier, op, "Memo updated")
	s.ListMemos(ctx)
	return m, nil
}

// DeleteMemo hides a memo for userID only; other recipients still see it.
func (s *MemoStore) DeleteMemo(ctx context.Context, memoID, userID string) error {
	return s.delete(ctx, memoID, userID, false)
}

// DeleteMemoGlobal flips a memo to deleted for every user. The server
// rejects the call unless userID is an admin.
func (s *MemoStore) DeleteMemoGlobal(ctx context.Context, memoID, userID string) error {
	return s.delete(ctx, memoID, userID, true)
}

func (s *MemoStore) delete(ctx context.Context, memoID, userID string, global bool) error {
	op := "delete memo"
	if global {
		op = "delete memo for everyone"
	}
	if err := s.guard(op, memoID, userID); err != nil {
		return err
	}
	done := s.loading.begin(MemoKey(memoID))
	defer done()

	var err error
	if global {
		err = s.api.DeleteMemoGlobal(ctx, memoID, userID)
	} else {
		err = s.api.DeleteMemo(ctx, memoID, userID)
	}
	if err != nil {
		return s.fail(op, err)
	}
	notifySuccess(s.notifier, op, "Memo deleted")
	s.ListMemos(ctx)
	s.ListUserMemos(ctx, userID)
	return nil
}

func (s *MemoStore) guard(op, memoID, userID string) error {
	if memoID == "" {
		return s.fail(op, fmt.Errorf("%s: memo: %w", op, client.ErrMissingID))
	}
	if userID == "" {
		return s.fail(op, fmt.Errorf("%s: user: %w", op, client.ErrMissingID))
	}
	if s.closed.Load() {
		return s.fail(op, ErrSessionClosed)
	}
	return nil
}

func (s *MemoStore) fail(op string, err error) error {
	notifyError(s.notifier, op, err)
	return err
}

func (s *MemoStore) reset() {
	s.closed.Store(true)
	s.mu.Lock()
	s.memos, s.userMemos = nil, nil
	s.mu.Unlock()
	s.gens.reset()
}

func withoutDeleted(in []client.Memo) []client.Memo {
	out := make([]client.Memo, 0, len(in))
	for _, m := range in {
		if m.Status == client.MemoDeleted {
			continue
		}
		out = append(out, cloneMemo(m))
	}
	return out
}

func cloneMemos(in []client.Memo) []client.Memo {
	out := make([]client.Memo, len(in))
	for i := range in {
		out[i] = cloneMemo(in[i])
	}
	return out
}

func cloneMemo(m client.Memo) client.Memo {
	m.Recipients = append([]string(nil), m.Recipients...)
	m.Acknowledgments = append([]client.Acknowledgment(nil), m.Acknowledgments...)
	return m
}
