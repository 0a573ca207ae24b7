package devserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devserver/storage"
)

const (
	maxTitleLen   = 200
	maxContentLen = 10000
)

var frequencies = map[string]bool{"daily": true, "weekly": true, "monthly": true, "yearly": true}

type fieldErrors []client.FieldError

func (f *fieldErrors) add(field, format string, args ...any) {
	*f = append(*f, client.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f *fieldErrors) title(v string) {
	switch {
	case strings.TrimSpace(v) == "":
		f.add("title", "Title is required")
	case len(v) > maxTitleLen:
		f.add("title", "Title must be at most %d characters", maxTitleLen)
	}
}

func (f *fieldErrors) status(s client.TaskStatus) {
	if !s.Valid() {
		f.add("status", "Unknown status %q", s)
	}
}

func (f *fieldErrors) priority(p client.Priority) {
	if !p.Valid() {
		f.add("priority", "Unknown priority %q", p)
	}
}

func (f *fieldErrors) recurrence(r *client.Recurrence) {
	if r != nil && !frequencies[r.Frequency] {
		f.add("recurrence", "Recurrence frequency must be daily, weekly, monthly or yearly")
	}
}

// users flags every id in ids that has no user row.
func (f *fieldErrors) users(ctx context.Context, st *storage.Store, field string, ids []string) error {
	missing, err := st.UsersExist(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range missing {
		f.add(field, "Unknown user %q", id)
	}
	return nil
}

func validateCreateTask(ctx context.Context, st *storage.Store, in client.CreateTaskRequest) (fieldErrors, error) {
	var errs fieldErrors
	errs.title(in.Title)
	if in.Status != "" {
		errs.status(in.Status)
	}
	if in.Priority != "" {
		errs.priority(in.Priority)
	}
	errs.recurrence(in.Recurrence)
	if err := errs.users(ctx, st, "assignedTo", in.AssignedTo); err != nil {
		return nil, err
	}
	if in.DelegatedTo != "" {
		if err := errs.users(ctx, st, "delegatedTo", []string{in.DelegatedTo}); err != nil {
			return nil, err
		}
	}
	return errs, nil
}

func validateUpdateTask(ctx context.Context, st *storage.Store, in client.UpdateTaskRequest) (fieldErrors, error) {
	var errs fieldErrors
	if in.Title != nil {
		errs.title(*in.Title)
	}
	if in.Status != nil {
		errs.status(*in.Status)
	}
	if in.Priority != nil {
		errs.priority(*in.Priority)
	}
	errs.recurrence(in.Recurrence)
	if err := errs.users(ctx, st, "assignedTo", in.AssignedTo); err != nil {
		return nil, err
	}
	if in.DelegatedTo != nil && *in.DelegatedTo != "" {
		if err := errs.users(ctx, st, "delegatedTo", []string{*in.DelegatedTo}); err != nil {
			return nil, err
		}
	}
	return errs, nil
}

func validateContent(errs *fieldErrors, v string) {
	switch {
	case strings.TrimSpace(v) == "":
		errs.add("content", "Content is required")
	case len(v) > maxContentLen:
		errs.add("content", "Content must be at most %d characters", maxContentLen)
	}
}
