package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// ListMemos fetches every memo visible to the caller. The response is
// returned as-is; filtering deleted memos is the store's job.
func ListMemos(ctx context.Context, httpClient HTTPClient, baseURL string) ([]types.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := newJSONRequest(ctx, http.MethodGet, baseURL+"/memos/all", nil)
	if err != nil {
		return nil, err
	}
	var memos []types.Memo
	if err := do(httpClient, req, "list memos", &memos, http.StatusOK); err != nil {
		return nil, err
	}
	return memos, nil
}

// ListUserMemos fetches the memos addressed to one user.
func ListUserMemos(ctx context.Context, httpClient HTTPClient, baseURL, userID string) ([]types.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(userID, "userId"); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/memos/user/%s", baseURL, url.PathEscape(userID))
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var memos []types.Memo
	if err := do(httpClient, req, "list user memos", &memos, http.StatusOK); err != nil {
		return nil, err
	}
	return memos, nil
}

// SendMemo broadcasts a memo. An empty recipient list is omitted from the
// body so the server addresses every user.
func SendMemo(ctx context.Context, httpClient HTTPClient, baseURL string, in types.SendMemoRequest) (*types.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, types.ErrContentRequired
	}
	if len(in.Recipients) == 0 {
		in.Recipients = nil
	}
	req, err := newJSONRequest(ctx, http.MethodPost, baseURL+"/memos/broadcast", in)
	if err != nil {
		return nil, err
	}
	var m types.Memo
	if err := do(httpClient, req, "send memo", &m, http.StatusCreated); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMemoRead records an acknowledgment for userID.
func MarkMemoRead(ctx context.Context, httpClient HTTPClient, baseURL, memoID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(memoID, "memoId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(userID, "userId"); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/memos/%s/read", baseURL, url.PathEscape(memoID))
	req, err := newJSONRequest(ctx, http.MethodPatch, u, types.MarkMemoReadRequest{UserID: userID})
	if err != nil {
		return err
	}
	return do(httpClient, req, "mark memo read", nil)
}

// SnoozeMemo snoozes a memo for userID. The server computes snoozedUntil.
func SnoozeMemo(ctx context.Context, httpClient HTTPClient, baseURL, memoID string, in types.SnoozeMemoRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(memoID, "memoId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(in.UserID, "userId"); err != nil {
		return err
	}
	if in.DurationMinutes <= 0 {
		return types.ErrInvalidDuration
	}
	u := fmt.Sprintf("%s/memos/%s/snooze", baseURL, url.PathEscape(memoID))
	req, err := newJSONRequest(ctx, http.MethodPatch, u, in)
	if err != nil {
		return err
	}
	return do(httpClient, req, "snooze memo", nil)
}

// UpdateMemoStatus changes a memo's status for everyone.
func UpdateMemoStatus(ctx context.Context, httpClient HTTPClient, baseURL, memoID string, status types.MemoStatus) (*types.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(memoID, "memoId"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("update memo status: unknown status %q", status)
	}
	u := fmt.Sprintf("%s/memos/%s", baseURL, url.PathEscape(memoID))
	req, err := newJSONRequest(ctx, http.MethodPut, u, types.UpdateMemoStatusRequest{Status: status})
	if err != nil {
		return nil, err
	}
	var m types.Memo
	if err := do(httpClient, req, "update memo status", &m, http.StatusOK); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMemo removes a memo. With global=false only userID stops seeing it;
// with global=true its status flips to deleted for every user.
func DeleteMemo(ctx context.Context, httpClient HTTPClient, baseURL, memoID, userID string, global bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(memoID, "memoId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(userID, "userId"); err != nil {
		return err
	}
	q := url.Values{}
	if global {
		q.Set("global", "true")
	}
	q.Set("userId", userID)
	u := fmt.Sprintf("%s/memos/%s?%s", baseURL, url.PathEscape(memoID), q.Encode())
	req, err := newJSONRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	op := "delete memo"
	if global {
		op = "delete memo globally"
	}
	return do(httpClient, req, op, nil)
}
