package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	clienterrors "github.com/mycelian/mycelian-desk/client/internal/errors"
	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// HTTPClient is the subset of *http.Client the API functions need.
type HTTPClient = types.HTTPClient

// maxErrorBody caps how much of a failed response is kept for classification.
const maxErrorBody = 64 << 10

// newJSONRequest builds a request with an optional JSON body.
func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a successful response into out (when non-nil).
// Any status outside want is returned as a *ClassifiedError; transport
// failures become recoverable network errors.
func do(httpClient HTTPClient, req *http.Request, op string, out any, want ...int) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return clienterrors.NewNetworkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !statusIn(resp.StatusCode, want) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return clienterrors.NewHTTPError(resp.StatusCode, string(raw), op)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func statusIn(code int, want []int) bool {
	if len(want) == 0 {
		return code >= 200 && code < 300
	}
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}
