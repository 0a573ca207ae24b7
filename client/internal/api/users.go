package api

import (
	"context"
	"net/http"

	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// ListUsers fetches the current user directory.
func ListUsers(ctx context.Context, httpClient HTTPClient, baseURL string) ([]types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := newJSONRequest(ctx, http.MethodGet, baseURL+"/users", nil)
	if err != nil {
		return nil, err
	}
	var users []types.User
	if err := do(httpClient, req, "list users", &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}
