package store

import "sync"

// Loading keys shared by the stores. Per-record keys are built with the
// helpers below; each carries its own "kind:" prefix so no record key can
// equal a list key or a key of another kind.
const (
	KeyTasks     = "tasks"
	KeyUserTasks = "userTasks"
	KeyMemos     = "memos"
	KeyUserMemos = "userMemos"
	KeyNewTask   = "new:task"
	KeyNewMemo   = "new:memo"
)

// TaskKey is the loading key for mutations of one task.
func TaskKey(id string) string { return "task:" + id }

// CommentsKey is the loading key for a task's comments.
func CommentsKey(id string) string { return "comments:" + id }

// AttachmentsKey is the loading key for a task's attachments.
func AttachmentsKey(id string) string { return "attachments:" + id }

// AuditKey is the loading key for a task's audit log.
func AuditKey(id string) string { return "audit:" + id }

// MemoKey is the loading key for mutations of one memo.
func MemoKey(id string) string { return "memo:" + id }

// loadingSet is a reference-counted set of in-flight operation keys.
type loadingSet struct {
	mu sync.Mutex
	n  map[string]int
}

func newLoadingSet() *loadingSet { return &loadingSet{n: make(map[string]int)} }

// begin marks key as loading until the returned func is called.
func (l *loadingSet) begin(key string) func() {
	l.mu.Lock()
	l.n[key]++
	l.mu.Unlock()
	return l.releaser(key)
}

// tryBegin is begin that fails if key is already loading.
func (l *loadingSet) tryBegin(key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n[key] > 0 {
		return nil, false
	}
	l.n[key]++
	return l.releaser(key), true
}

func (l *loadingSet) releaser(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.n[key]--; l.n[key] <= 0 {
				delete(l.n, key)
			}
			l.mu.Unlock()
		})
	}
}

func (l *loadingSet) isLoading(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n[key] > 0
}

func (l *loadingSet) any() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.n) > 0
}
