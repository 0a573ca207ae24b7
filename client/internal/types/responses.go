package types

import clienterrors "github.com/mycelian/mycelian-desk/client/internal/errors"

// ------------------------------
// Response Types
// ------------------------------

// FieldError is one field-level validation message.
type FieldError = clienterrors.FieldError

// ErrorResponse mirrors the backend's 4xx/5xx body: {message, errors[]}.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}
