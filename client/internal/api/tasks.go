package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"github.com/mycelian/mycelian-desk/client/internal/types"
)

// ListTasks fetches the tasks matching filter.
func ListTasks(ctx context.Context, httpClient HTTPClient, baseURL string, filter types.TaskFilter) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := baseURL + "/tasks"
	if q := filter.Query(); len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	if err := do(httpClient, req, "list tasks", &tasks, http.StatusOK); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListUserTasks fetches the tasks of one user.
func ListUserTasks(ctx context.Context, httpClient HTTPClient, baseURL, userID string) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(userID, "userId"); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/tasks/getUserTasks/%s", baseURL, url.PathEscape(userID))
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	if err := do(httpClient, req, "list user tasks", &tasks, http.StatusOK); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask posts a new task. Status and priority default to todo and medium.
func CreateTask(ctx context.Context, httpClient HTTPClient, baseURL string, draft types.CreateTaskRequest) (*types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if draft.Status == "" {
		draft.Status = types.StatusTodo
	}
	if draft.Priority == "" {
		draft.Priority = types.PriorityMedium
	}
	req, err := newJSONRequest(ctx, http.MethodPost, baseURL+"/tasks", draft)
	if err != nil {
		return nil, err
	}
	var task types.Task
	if err := do(httpClient, req, "create task", &task, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask sends a partial update on the task's mutation lane and returns
// the server's copy of the task.
func UpdateTask(ctx context.Context, exec types.Executor, httpClient HTTPClient, baseURL, taskID string, patch types.UpdateTaskRequest) (*types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/tasks/%s", baseURL, url.PathEscape(taskID))

	var task types.Task
	started := types.LaneStartOnce(ctx)
	updateJob := shardqueue.JobFunc(func(jobCtx context.Context) error {
		started()
		req, err := newJSONRequest(jobCtx, http.MethodPatch, u, patch)
		if err != nil {
			return err
		}
		task = types.Task{}
		return do(httpClient, req, "update task", &task, http.StatusOK)
	})
	if err := exec.SubmitWait(ctx, taskID, updateJob); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task on its mutation lane.
func DeleteTask(ctx context.Context, exec types.Executor, httpClient HTTPClient, baseURL, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/tasks/%s", baseURL, url.PathEscape(taskID))

	started := types.LaneStartOnce(ctx)
	deleteJob := shardqueue.JobFunc(func(jobCtx context.Context) error {
		started()
		req, err := newJSONRequest(jobCtx, http.MethodDelete, u, nil)
		if err != nil {
			return err
		}
		return do(httpClient, req, "delete task", nil)
	})
	return exec.SubmitWait(ctx, taskID, deleteJob)
}

// GetAuditLog fetches a task's change history. It waits for the task's
// mutation lane to drain first so the log reflects the caller's own writes.
func GetAuditLog(ctx context.Context, exec types.Executor, httpClient HTTPClient, baseURL, taskID string) ([]types.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(taskID, "taskId"); err != nil {
		return nil, err
	}
	if err := exec.Barrier(ctx, taskID); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/tasks/%s/audit", baseURL, url.PathEscape(taskID))
	req, err := newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var entries []types.AuditEntry
	if err := do(httpClient, req, "get audit log", &entries, http.StatusOK); err != nil {
		return nil, err
	}
	return entries, nil
}
