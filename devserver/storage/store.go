package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mycelian/mycelian-desk/client"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the dev backend persistence layer.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: time.Now}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, rebind(s.dialect, q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, rebind(s.dialect, q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, rebind(s.dialect, q), args...)
}

// tsLayout is fixed width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(v string) []string {
	var out []string
	_ = json.Unmarshal([]byte(v), &out)
	return out
}

// ------------------------------ users ------------------------------

// UpsertUser inserts or replaces a user together with its bearer token.
func (s *Store) UpsertUser(ctx context.Context, u client.User, token string) error {
	_, err := s.exec(ctx, `INSERT INTO users (id, name, email, role, profile_picture, active, token)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role,
			profile_picture = excluded.profile_picture, active = excluded.active, token = excluded.token`,
		u.ID, u.Name, u.Email, string(u.Role), u.ProfilePicture, u.Active, token)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, role, profile_picture, active`

func scanUser(sc interface{ Scan(...any) error }) (client.User, error) {
	var u client.User
	var role string
	if err := sc.Scan(&u.ID, &u.Name, &u.Email, &role, &u.ProfilePicture, &u.Active); err != nil {
		return client.User{}, err
	}
	u.Role = client.Role(role)
	return u, nil
}

// UserByToken resolves a bearer token to its user.
func (s *Store) UserByToken(ctx context.Context, token string) (client.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return client.User{}, ErrNotFound
	}
	return u, err
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]client.User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []client.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ActiveUserIDs returns the ids of all active users.
func (s *Store) ActiveUserIDs(ctx context.Context) ([]string, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.Active {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// UsersExist returns the subset of ids that have no user row.
func (s *Store) UsersExist(ctx context.Context, ids []string) (missing []string, err error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ------------------------------ tasks ------------------------------

const taskColumns = `id, title, description, status, priority, category, assigned_to, due_date,
	recurrence, linked_memos, delegated_to, created_by, created_at, updated_at`

func scanTask(sc interface{ Scan(...any) error }) (client.Task, error) {
	var (
		t                                  client.Task
		status, priority                   string
		assigned, linked, created, updated string
		due, recurrence                    sql.NullString
	)
	err := sc.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.Category, &assigned, &due,
		&recurrence, &linked, &t.DelegatedTo, &t.CreatedBy, &created, &updated)
	if err != nil {
		return client.Task{}, err
	}
	t.Status = client.TaskStatus(status)
	t.Priority = client.Priority(priority)
	t.AssignedTo = decodeList(assigned)
	t.LinkedMemos = decodeList(linked)
	t.DueDate = parseTimePtr(due)
	if recurrence.Valid && recurrence.String != "" {
		var r client.Recurrence
		if json.Unmarshal([]byte(recurrence.String), &r) == nil {
			t.Recurrence = &r
		}
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func encodeRecurrence(r *client.Recurrence) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	b, _ := json.Marshal(r)
	return sql.NullString{String: string(b), Valid: true}
}

// TaskQuery narrows ListTasks. Empty fields match everything.
type TaskQuery struct {
	client.TaskFilter
	// VisibleTo limits results to tasks created by, assigned to or delegated
	// to this user. Empty means no restriction.
	VisibleTo string
}

func (q TaskQuery) match(t client.Task) bool {
	if !q.TaskFilter.Matches(t) {
		return false
	}
	return q.VisibleTo == "" || Involves(t, q.VisibleTo)
}

// Involves reports whether userID created, is assigned to, or was delegated t.
func Involves(t client.Task, userID string) bool {
	return t.CreatedBy == userID || t.DelegatedTo == userID || contains(t.AssignedTo, userID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ListTasks returns tasks matching q, newest first.
func (s *Store) ListTasks(ctx context.Context, q TaskQuery) ([]client.Task, error) {
	rows, err := s.query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	out := []client.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if q.match(t) {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// GetTask returns one task with its comments and attachments.
func (s *Store) GetTask(ctx context.Context, id string) (client.Task, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return client.Task{}, ErrNotFound
	}
	if err != nil {
		return client.Task{}, fmt.Errorf("get task: %w", err)
	}
	if t.Comments, err = s.ListComments(ctx, id); err != nil {
		return client.Task{}, err
	}
	if t.Attachments, err = s.ListAttachments(ctx, id); err != nil {
		return client.Task{}, err
	}
	return t, nil
}

// CreateTask inserts a task authored by actor and records a created audit row.
func (s *Store) CreateTask(ctx context.Context, actor string, in client.CreateTaskRequest) (client.Task, error) {
	now := s.now()
	t := client.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Category:    in.Category,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		Recurrence:  in.Recurrence,
		LinkedMemos: in.LinkedMemos,
		DelegatedTo: in.DelegatedTo,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = client.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = client.PriorityMedium
	}
	_, err := s.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.Category, encodeList(t.AssignedTo),
		fmtTimePtr(t.DueDate), encodeRecurrence(t.Recurrence), encodeList(t.LinkedMemos), t.DelegatedTo,
		t.CreatedBy, fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return client.Task{}, fmt.Errorf("create task: %w", err)
	}
	if err := s.appendAudit(ctx, t.ID, actor, "created", "", "", t.Title); err != nil {
		return client.Task{}, err
	}
	return t, nil
}

// change is one field diff recorded in the audit trail.
type change struct{ field, from, to string }

// UpdateTask applies a partial update and records one audit row per changed
// field. It returns the updated task.
func (s *Store) UpdateTask(ctx context.Context, actor, id string, p client.UpdateTaskRequest) (client.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return client.Task{}, err
	}
	var changes []change
	setStr := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			changes = append(changes, change{field, *dst, *v})
			*dst = *v
		}
	}
	setStr("title", &t.Title, p.Title)
	setStr("description", &t.Description, p.Description)
	setStr("category", &t.Category, p.Category)
	setStr("delegatedTo", &t.DelegatedTo, p.DelegatedTo)
	if p.Status != nil && *p.Status != t.Status {
		changes = append(changes, change{"status", string(t.Status), string(*p.Status)})
		t.Status = *p.Status
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		changes = append(changes, change{"priority", string(t.Priority), string(*p.Priority)})
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil && encodeList(p.AssignedTo) != encodeList(t.AssignedTo) {
		changes = append(changes, change{"assignedTo", strings.Join(t.AssignedTo, ","), strings.Join(p.AssignedTo, ",")})
		t.AssignedTo = p.AssignedTo
	}
	if p.LinkedMemos != nil && encodeList(p.LinkedMemos) != encodeList(t.LinkedMemos) {
		changes = append(changes, change{"linkedMemos", strings.Join(t.LinkedMemos, ","), strings.Join(p.LinkedMemos, ",")})
		t.LinkedMemos = p.LinkedMemos
	}
	if p.DueDate != nil && fmtTimePtr(p.DueDate) != fmtTimePtr(t.DueDate) {
		changes = append(changes, change{"dueDate", fmtTimePtr(t.DueDate).String, fmtTime(*p.DueDate)})
		t.DueDate = p.DueDate
	}
	if p.Recurrence != nil && encodeRecurrence(p.Recurrence) != encodeRecurrence(t.Recurrence) {
		changes = append(changes, change{"recurrence", encodeRecurrence(t.Recurrence).String, encodeRecurrence(p.Recurrence).String})
		t.Recurrence = p.Recurrence
	}
	if len(changes) == 0 {
		return t, nil
	}
	t.UpdatedAt = s.now()
	_, err = s.exec(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, category = ?,
		assigned_to = ?, due_date = ?, recurrence = ?, linked_memos = ?, delegated_to = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.Category, encodeList(t.AssignedTo),
		fmtTimePtr(t.DueDate), encodeRecurrence(t.Recurrence), encodeList(t.LinkedMemos), t.DelegatedTo,
		fmtTime(t.UpdatedAt), id)
	if err != nil {
		return client.Task{}, fmt.Errorf("update task: %w", err)
	}
	for _, c := range changes {
		if err := s.appendAudit(ctx, id, actor, "updated", c.field, c.from, c.to); err != nil {
			return client.Task{}, err
		}
	}
	return t, nil
}

// DeleteTask removes a task with its comments and attachments. The audit
// trail is kept.
func (s *Store) DeleteTask(ctx context.Context, actor, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, rebind(s.dialect, `DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, q := range []string{`DELETE FROM comments WHERE task_id = ?`, `DELETE FROM attachments WHERE task_id = ?`} {
		if _, err := tx.ExecContext(ctx, rebind(s.dialect, q), id); err != nil {
			return fmt.Errorf("delete task children: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.appendAudit(ctx, id, actor, "deleted", "", "", "")
}

// ------------------------------ comments ------------------------------

// AddComment appends a comment to a task.
func (s *Store) AddComment(ctx context.Context, actor, taskID, content string) (client.Comment, error) {
	c := client.Comment{ID: uuid.NewString(), Author: actor, Content: content, CreatedAt: s.now()}
	_, err := s.exec(ctx, `INSERT INTO comments (id, task_id, author, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, taskID, c.Author, c.Content, fmtTime(c.CreatedAt))
	if err != nil {
		return client.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	if err := s.appendAudit(ctx, taskID, actor, "commented", "", "", ""); err != nil {
		return client.Comment{}, err
	}
	return c, nil
}

// ListComments returns a task's comments oldest first.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]client.Comment, error) {
	rows, err := s.query(ctx, `SELECT id, author, content, created_at FROM comments WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out := []client.Comment{}
	for rows.Next() {
		var c client.Comment
		var at string
		if err := rows.Scan(&c.ID, &c.Author, &c.Content, &at); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ------------------------------ attachments ------------------------------

// AttachmentURL is the download path for an attachment, relative to the API base.
func AttachmentURL(taskID, id string) string {
	return fmt.Sprintf("/tasks/%s/attachments/%s/content", taskID, id)
}

// AddAttachment stores file content against a task.
func (s *Store) AddAttachment(ctx context.Context, actor, taskID, fileName, contentType string, data []byte) (client.Attachment, error) {
	a := client.Attachment{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedBy:  actor,
		UploadedAt:  s.now(),
	}
	a.URL = AttachmentURL(taskID, a.ID)
	_, err := s.exec(ctx, `INSERT INTO attachments (id, task_id, file_name, content_type, size, uploaded_by, uploaded_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, taskID, a.FileName, a.ContentType, a.Size, a.UploadedBy, fmtTime(a.UploadedAt), data)
	if err != nil {
		return client.Attachment{}, fmt.Errorf("add attachment: %w", err)
	}
	if err := s.appendAudit(ctx, taskID, actor, "attached", "", "", fileName); err != nil {
		return client.Attachment{}, err
	}
	return a, nil
}

// ListAttachments returns attachment metadata for a task.
func (s *Store) ListAttachments(ctx context.Context, taskID string) ([]client.Attachment, error) {
	rows, err := s.query(ctx, `SELECT id, file_name, content_type, size, uploaded_by, uploaded_at
		FROM attachments WHERE task_id = ? ORDER BY uploaded_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	out := []client.Attachment{}
	for rows.Next() {
		var a client.Attachment
		var at string
		if err := rows.Scan(&a.ID, &a.FileName, &a.ContentType, &a.Size, &a.UploadedBy, &at); err != nil {
			return nil, err
		}
		a.UploadedAt = parseTime(at)
		a.URL = AttachmentURL(taskID, a.ID)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttachmentContent returns the stored bytes and content type.
func (s *Store) AttachmentContent(ctx context.Context, taskID, id string) (data []byte, contentType, fileName string, err error) {
	err = s.queryRow(ctx, `SELECT data, content_type, file_name FROM attachments WHERE task_id = ? AND id = ?`, taskID, id).
		Scan(&data, &contentType, &fileName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", "", ErrNotFound
	}
	return data, contentType, fileName, err
}

// DeleteAttachment removes one attachment from a task.
func (s *Store) DeleteAttachment(ctx context.Context, actor, taskID, id string) error {
	var name string
	err := s.queryRow(ctx, `SELECT file_name FROM attachments WHERE task_id = ? AND id = ?`, taskID, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, `DELETE FROM attachments WHERE task_id = ? AND id = ?`, taskID, id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return s.appendAudit(ctx, taskID, actor, "detached", "", name, "")
}

// ------------------------------ audit ------------------------------

func (s *Store) appendAudit(ctx context.Context, taskID, actor, action, field, oldV, newV string) error {
	_, err := s.exec(ctx, `INSERT INTO audit (id, task_id, actor, action, field, old_value, new_value, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), taskID, actor, action, field, oldV, newV, fmtTime(s.now()))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditLog returns a task's history oldest first.
func (s *Store) AuditLog(ctx context.Context, taskID string) ([]client.AuditEntry, error) {
	rows, err := s.query(ctx, `SELECT id, actor, action, field, old_value, new_value, at
		FROM audit WHERE task_id = ? ORDER BY at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	defer rows.Close()
	out := []client.AuditEntry{}
	for rows.Next() {
		e := client.AuditEntry{TaskID: taskID}
		var at string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Field, &e.OldValue, &e.NewValue, &at); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ------------------------------ memos ------------------------------

// CreateMemo stores a memo with the given (already expanded) recipients.
func (s *Store) CreateMemo(ctx context.Context, actor, title, content string, recipients []string) (client.Memo, error) {
	m := client.Memo{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    content,
		CreatedBy:  actor,
		Recipients: recipients,
		Status:     client.MemoActive,
		CreatedAt:  s.now(),
	}
	_, err := s.exec(ctx, `INSERT INTO memos (id, title, content, created_by, recipients, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Content, m.CreatedBy, encodeList(m.Recipients), string(m.Status), fmtTime(m.CreatedAt))
	if err != nil {
		return client.Memo{}, fmt.Errorf("create memo: %w", err)
	}
	return m, nil
}

func scanMemo(sc interface{ Scan(...any) error }) (client.Memo, error) {
	var m client.Memo
	var recipients, status, created string
	if err := sc.Scan(&m.ID, &m.Title, &m.Content, &m.CreatedBy, &recipients, &status, &created); err != nil {
		return client.Memo{}, err
	}
	m.Recipients = decodeList(recipients)
	m.Status = client.MemoStatus(status)
	m.CreatedAt = parseTime(created)
	return m, nil
}

const memoColumns = `id, title, content, created_by, recipients, status, created_at`

// GetMemo returns one memo with its acknowledgments.
func (s *Store) GetMemo(ctx context.Context, id string) (client.Memo, error) {
	m, err := scanMemo(s.queryRow(ctx, `SELECT `+memoColumns+` FROM memos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return client.Memo{}, ErrNotFound
	}
	if err != nil {
		return client.Memo{}, fmt.Errorf("get memo: %w", err)
	}
	acks, err := s.acks(ctx)
	if err != nil {
		return client.Memo{}, err
	}
	m.Acknowledgments = acks[m.ID]
	return m, nil
}

// ListMemos returns every memo newest first, including deleted ones.
func (s *Store) ListMemos(ctx context.Context) ([]client.Memo, error) {
	rows, err := s.query(ctx, `SELECT `+memoColumns+` FROM memos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	defer rows.Close()
	out := []client.Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	acks, err := s.acks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Acknowledgments = acks[out[i].ID]
	}
	return out, nil
}

// ListUserMemos returns active memos addressed to userID that the user has
// not hidden.
func (s *Store) ListUserMemos(ctx context.Context, userID string) ([]client.Memo, error) {
	all, err := s.ListMemos(ctx)
	if err != nil {
		return nil, err
	}
	hidden, err := s.hiddenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []client.Memo{}
	for _, m := range all {
		if m.Status != client.MemoActive || hidden[m.ID] || !contains(m.Recipients, userID) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) acks(ctx context.Context) (map[string][]client.Acknowledgment, error) {
	rows, err := s.query(ctx, `SELECT memo_id, user_id, status, snoozed_until, comment, at FROM memo_acks`)
	if err != nil {
		return nil, fmt.Errorf("list acknowledgments: %w", err)
	}
	defer rows.Close()
	out := map[string][]client.Acknowledgment{}
	for rows.Next() {
		var (
			memoID, status, at string
			until              sql.NullString
			a                  client.Acknowledgment
		)
		if err := rows.Scan(&memoID, &a.UserID, &status, &until, &a.Comment, &at); err != nil {
			return nil, err
		}
		a.Status = client.AckStatus(status)
		a.SnoozedUntil = parseTimePtr(until)
		a.At = parseTime(at)
		out[memoID] = append(out[memoID], a)
	}
	for id := range out {
		acks := out[id]
		sort.Slice(acks, func(i, j int) bool { return acks[i].UserID < acks[j].UserID })
	}
	return out, rows.Err()
}

func (s *Store) hiddenFor(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.query(ctx, `SELECT memo_id FROM memo_hidden WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list hidden memos: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// Acknowledge records or replaces userID's response to a memo. until is only
// meaningful for snoozes.
func (s *Store) Acknowledge(ctx context.Context, memoID, userID string, status client.AckStatus, until *time.Time, comment string) error {
	if _, err := s.GetMemo(ctx, memoID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `INSERT INTO memo_acks (memo_id, user_id, status, snoozed_until, comment, at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (memo_id, user_id) DO UPDATE SET status = excluded.status,
			snoozed_until = excluded.snoozed_until, comment = excluded.comment, at = excluded.at`,
		memoID, userID, string(status), fmtTimePtr(until), comment, fmtTime(s.now()))
	if err != nil {
		return fmt.Errorf("acknowledge memo: %w", err)
	}
	return nil
}

// SetMemoStatus changes the status for every recipient.
func (s *Store) SetMemoStatus(ctx context.Context, memoID string, status client.MemoStatus) (client.Memo, error) {
	res, err := s.exec(ctx, `UPDATE memos SET status = ? WHERE id = ?`, string(status), memoID)
	if err != nil {
		return client.Memo{}, fmt.Errorf("set memo status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return client.Memo{}, ErrNotFound
	}
	return s.GetMemo(ctx, memoID)
}

// HideMemo removes a memo from userID's list only.
func (s *Store) HideMemo(ctx context.Context, memoID, userID string) error {
	if _, err := s.GetMemo(ctx, memoID); err != nil {
		return err
	}
	_, err := s.exec(ctx, `INSERT INTO memo_hidden (memo_id, user_id) VALUES (?, ?) ON CONFLICT (memo_id, user_id) DO NOTHING`,
		memoID, userID)
	if err != nil {
		return fmt.Errorf("hide memo: %w", err)
	}
	return nil
}
