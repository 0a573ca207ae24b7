package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devserver/storage"
)

// MemoHandler serves /memos.
type MemoHandler struct {
	store *storage.Store
	now   func() time.Time
}

func NewMemoHandler(st *storage.Store) *MemoHandler {
	return &MemoHandler{store: st, now: time.Now}
}

func (h *MemoHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	memos, err := h.store.ListMemos(r.Context())
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memos)
}

func (h *MemoHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !h.selfOrAdmin(w, r, userID, "view another user's memos") {
		return
	}
	memos, err := h.store.ListUserMemos(r.Context(), userID)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memos)
}

func (h *MemoHandler) GetMemo(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMemo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Broadcast creates a memo. No recipients means every active user.
func (h *MemoHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var in client.SendMemoRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	var errs fieldErrors
	validateContent(&errs, in.Content)
	if len(in.Title) > maxTitleLen {
		errs.add("title", "Title must be at most %d characters", maxTitleLen)
	}
	if err := errs.users(r.Context(), h.store, "recipients", in.Recipients); err != nil {
		h.internal(w, err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	recipients := dedupe(in.Recipients)
	if len(recipients) == 0 {
		all, err := h.store.ActiveUserIDs(r.Context())
		if err != nil {
			h.internal(w, err)
			return
		}
		recipients = all
	}
	m, err := h.store.CreateMemo(r.Context(), actorFrom(r).ID, in.Title, in.Content, recipients)
	if err != nil {
		h.internal(w, err)
		return
	}
	log.Info().Str("memo_id", m.ID).Int("recipients", len(recipients)).Msg("memo broadcast")
	writeJSON(w, http.StatusCreated, m)
}

func (h *MemoHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var in client.MarkMemoReadRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.UserID == "" {
		writeValidation(w, []client.FieldError{{Field: "userId", Message: "User is required"}})
		return
	}
	if !h.selfOrAdmin(w, r, in.UserID, "acknowledge memos for another user") {
		return
	}
	if !h.recipient(w, r, in.UserID) {
		return
	}
	if err := h.store.Acknowledge(r.Context(), mux.Vars(r)["id"], in.UserID, client.AckAcknowledged, nil, ""); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Snooze hides a memo for durationMinutes. The server owns the clock.
func (h *MemoHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var in client.SnoozeMemoRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	var errs fieldErrors
	if in.UserID == "" {
		errs.add("userId", "User is required")
	}
	if in.DurationMinutes <= 0 {
		errs.add("durationMinutes", "Duration must be a positive number of minutes")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if !h.selfOrAdmin(w, r, in.UserID, "snooze memos for another user") {
		return
	}
	if !h.recipient(w, r, in.UserID) {
		return
	}
	until := h.now().Add(time.Duration(in.DurationMinutes) * time.Minute)
	if err := h.store.Acknowledge(r.Context(), mux.Vars(r)["id"], in.UserID, client.AckSnoozed, &until, in.Comments); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemoHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in client.UpdateMemoStatusRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if !in.Status.Valid() {
		writeValidation(w, []client.FieldError{{Field: "status", Message: "Unknown status " + string(in.Status)}})
		return
	}
	m, err := h.store.GetMemo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	actor := actorFrom(r)
	if m.CreatedBy != actor.ID && !isAdmin(actor) {
		writeError(w, http.StatusForbidden, "Only the sender or an admin can change a memo's status")
		return
	}
	out, err := h.store.SetMemoStatus(r.Context(), m.ID, in.Status)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Delete hides a memo for ?userId, or with ?global=true marks it deleted for
// everyone. Global delete is admin only.
func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	actor := actorFrom(r)
	if q.Get("global") == "true" {
		if !isAdmin(actor) {
			writeError(w, http.StatusForbidden, "Only admins can delete memos for everyone")
			return
		}
		if _, err := h.store.SetMemoStatus(r.Context(), id, client.MemoDeleted); err != nil {
			h.storeError(w, err)
			return
		}
		log.Info().Str("memo_id", id).Str("actor", actor.ID).Msg("memo deleted globally")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	userID := q.Get("userId")
	if userID == "" {
		userID = actor.ID
	}
	if !h.selfOrAdmin(w, r, userID, "delete memos for another user") {
		return
	}
	if err := h.store.HideMemo(r.Context(), id, userID); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemoHandler) selfOrAdmin(w http.ResponseWriter, r *http.Request, userID, action string) bool {
	actor := actorFrom(r)
	if userID == actor.ID || isAdmin(actor) {
		return true
	}
	writeError(w, http.StatusForbidden, "You do not have permission to "+action)
	return false
}

// recipient checks userID is addressed by memo {id}.
func (h *MemoHandler) recipient(w http.ResponseWriter, r *http.Request, userID string) bool {
	m, err := h.store.GetMemo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return false
	}
	for _, id := range m.Recipients {
		if id == userID {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "User is not a recipient of this memo")
	return false
}

func (h *MemoHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.internal(w, err)
}

func (h *MemoHandler) internal(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("memo handler failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
