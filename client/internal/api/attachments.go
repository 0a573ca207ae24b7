package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// UploadAttachment sends a file as multipart/form-data under the "file" field.
func UploadAttachment(ctx context.Context, httpClient HTTPClient, baseURL, taskID string, in types.UploadAttachmentRequest) (*types.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(in.FileName, "fileName"); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, fmt.Errorf("upload attachment: nil body")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.FileName))
	ct := in.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, in.Body); err != nil {
		return nil, fmt.Errorf("upload attachment: read body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/tasks/%s/attachments", baseURL, url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var a types.Attachment
	if err := do(httpClient, req, "upload attachment", &a, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttachments fetches a task's attachment references.
func ListAttachments(ctx context.Context, httpClient HTTPClient, baseURL, taskID string) ([]types.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/tasks/%s/attachments", baseURL, url.PathEscape(taskID))
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []types.Attachment
	if err := do(httpClient, req, "list attachments", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAttachment removes one attachment. It shares the task's mutation lane.
func DeleteAttachment(ctx context.Context, exec types.Executor, httpClient HTTPClient, baseURL, taskID, attachmentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(attachmentID, "attachmentId"); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/tasks/%s/attachments/%s", baseURL, url.PathEscape(taskID), url.PathEscape(attachmentID))
	return exec.SubmitWait(ctx, taskID, shardqueue.JobFunc(func(jobCtx context.Context) error {
		req, err := newJSONRequest(jobCtx, http.MethodDelete, u, nil)
		if err != nil {
			return err
		}
		return do(httpClient, req, "delete attachment", nil)
	}))
}
