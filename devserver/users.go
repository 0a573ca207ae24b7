package devserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devserver/storage"
)

// UserHandler serves /users.
type UserHandler struct {
	store *storage.Store
}

func NewUserHandler(st *storage.Store) *UserHandler { return &UserHandler{store: st} }

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list users failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// PutUser creates or replaces a user and its token. Dev backend only; the
// production API manages users elsewhere.
func (h *UserHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(actorFrom(r)) {
		writeError(w, http.StatusForbidden, "Only admins can manage users")
		return
	}
	var in struct {
		client.User
		Active *bool  `json:"active"`
		Token  string `json:"token"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	var errs fieldErrors
	if strings.TrimSpace(in.Name) == "" {
		errs.add("name", "Name is required")
	}
	if in.Role != client.RoleAdmin && in.Role != client.RoleEmployee {
		errs.add("role", "Role must be admin or employee")
	}
	if in.Token == "" {
		errs.add("token", "Token is required")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.User.Active = in.Active == nil || *in.Active
	if err := h.store.UpsertUser(r.Context(), in.User, in.Token); err != nil {
		log.Error().Err(err).Msg("upsert user failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, in.User)
}
