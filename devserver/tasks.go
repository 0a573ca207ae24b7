package devserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devserver/storage"
)

// maxUploadBytes caps a single attachment.
const maxUploadBytes = 10 << 20

// TaskHandler serves /tasks and its sub-resources.
type TaskHandler struct {
	store *storage.Store
}

func NewTaskHandler(st *storage.Store) *TaskHandler { return &TaskHandler{store: st} }

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.TaskQuery{TaskFilter: client.TaskFilter{
		Status:   client.TaskStatus(q.Get("status")),
		Priority: client.Priority(q.Get("priority")),
		Category: q.Get("category"),
		Assignee: q.Get("assignee"),
		Search:   q.Get("search"),
	}}
	if actor := actorFrom(r); !isAdmin(actor) {
		query.VisibleTo = actor.ID
	}
	tasks, err := h.store.ListTasks(r.Context(), query)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	actor := actorFrom(r)
	if userID != actor.ID && !isAdmin(actor) {
		writeError(w, http.StatusForbidden, "You do not have permission to view another user's tasks")
		return
	}
	tasks, err := h.store.ListTasks(r.Context(), storage.TaskQuery{VisibleTo: userID})
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var in client.CreateTaskRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	errs, err := validateCreateTask(r.Context(), h.store, in)
	if err != nil {
		h.internal(w, err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	t, err := h.store.CreateTask(r.Context(), actorFrom(r).ID, in)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	var in client.UpdateTaskRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	errs, err := validateUpdateTask(r.Context(), h.store, in)
	if err != nil {
		h.internal(w, err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	out, err := h.store.UpdateTask(r.Context(), actorFrom(r).ID, t.ID, in)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)
	if t.CreatedBy != actor.ID && !isAdmin(actor) {
		writeError(w, http.StatusForbidden, "Only the creator or an admin can delete a task")
		return
	}
	if err := h.store.DeleteTask(r.Context(), actor.ID, t.ID); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	var in client.AddCommentRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	var errs fieldErrors
	validateContent(&errs, in.Content)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	c, err := h.store.AddComment(r.Context(), actorFrom(r).ID, t.ID, in.Content)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Comments)
}

func (h *TaskHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, []client.FieldError{{Field: "file", Message: "File is required"}})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		writeValidation(w, []client.FieldError{{Field: "file", Message: "File must be at most " + strconv.Itoa(maxUploadBytes>>20) + " MB"}})
		return
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	a, err := h.store.AddAttachment(r.Context(), actorFrom(r).ID, t.ID, hdr.Filename, ct, data)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *TaskHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Attachments)
}

func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	data, ct, name, err := h.store.AttachmentContent(r.Context(), t.ID, mux.Vars(r)["attachmentId"])
	if err != nil {
		h.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *TaskHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAttachment(r.Context(), actorFrom(r).ID, t.ID, mux.Vars(r)["attachmentId"]); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	t, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	entries, err := h.store.AuditLog(r.Context(), t.ID)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// visibleTask loads {id} and checks the actor may see it. It writes the
// error reply itself and reports false when the handler should stop.
func (h *TaskHandler) visibleTask(w http.ResponseWriter, r *http.Request) (client.Task, bool) {
	t, err := h.store.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, err)
		return client.Task{}, false
	}
	actor := actorFrom(r)
	if !isAdmin(actor) && !storage.Involves(t, actor.ID) {
		writeError(w, http.StatusForbidden, "You do not have permission to access this task")
		return client.Task{}, false
	}
	return t, true
}

func (h *TaskHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.internal(w, err)
}

func (h *TaskHandler) internal(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("task handler failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
