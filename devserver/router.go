package devserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mycelian/mycelian-desk/devserver/storage"
)

// APIPrefix is where the REST routes are mounted.
const APIPrefix = "/api"

// NewRouter wires every route. health may be nil in tests that do not need it.
func NewRouter(st *storage.Store, health http.Handler) *mux.Router {
	root := mux.NewRouter()
	root.Use(recoverMiddleware)

	if health != nil {
		root.Handle("/health", health).Methods("GET")
		root.Handle(APIPrefix+"/health", health).Methods("GET")
	}
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := root.PathPrefix(APIPrefix).Subrouter()
	api.Use(metricsMiddleware, authMiddleware(st))

	users := NewUserHandler(st)
	api.HandleFunc("/users", users.ListUsers).Methods("GET")
	api.HandleFunc("/users", users.PutUser).Methods("POST")

	tasks := NewTaskHandler(st)
	api.HandleFunc("/tasks", tasks.ListTasks).Methods("GET")
	api.HandleFunc("/tasks", tasks.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/getUserTasks/{userId}", tasks.ListUserTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", tasks.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}", tasks.UpdateTask).Methods("PATCH")
	api.HandleFunc("/tasks/{id}", tasks.DeleteTask).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/comments", tasks.ListComments).Methods("GET")
	api.HandleFunc("/tasks/{id}/comments", tasks.AddComment).Methods("POST")
	api.HandleFunc("/tasks/{id}/attachments", tasks.ListAttachments).Methods("GET")
	api.HandleFunc("/tasks/{id}/attachments", tasks.UploadAttachment).Methods("POST")
	api.HandleFunc("/tasks/{id}/attachments/{attachmentId}", tasks.DeleteAttachment).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/attachments/{attachmentId}/content", tasks.DownloadAttachment).Methods("GET")
	api.HandleFunc("/tasks/{id}/audit", tasks.AuditLog).Methods("GET")

	memos := NewMemoHandler(st)
	api.HandleFunc("/memos/all", memos.ListAll).Methods("GET")
	api.HandleFunc("/memos/user/{userId}", memos.ListForUser).Methods("GET")
	api.HandleFunc("/memos/broadcast", memos.Broadcast).Methods("POST")
	api.HandleFunc("/memos/{id}", memos.GetMemo).Methods("GET")
	api.HandleFunc("/memos/{id}", memos.UpdateStatus).Methods("PUT")
	api.HandleFunc("/memos/{id}", memos.Delete).Methods("DELETE")
	api.HandleFunc("/memos/{id}/read", memos.MarkRead).Methods("PATCH")
	api.HandleFunc("/memos/{id}/snooze", memos.Snooze).Methods("PATCH")

	return root
}
