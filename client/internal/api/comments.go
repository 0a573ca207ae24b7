package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// AddComment posts a comment on a task.
func AddComment(ctx context.Context, httpClient HTTPClient, baseURL, taskID, content string) (*types.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("comment: %w", types.ErrContentRequired)
	}
	u := fmt.Sprintf("%s/tasks/%s/comments", baseURL, url.PathEscape(taskID))
	req, err := newJSONRequest(ctx, http.MethodPost, u, types.AddCommentRequest{Content: content})
	if err != nil {
		return nil, err
	}
	var c types.Comment
	if err := do(httpClient, req, "add comment", &c, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments fetches a task's comment thread.
func ListComments(ctx context.Context, httpClient HTTPClient, baseURL, taskID string) ([]types.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/tasks/%s/comments", baseURL, url.PathEscape(taskID))
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []types.Comment
	if err := do(httpClient, req, "list comments", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}
