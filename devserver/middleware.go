package devserver

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devserver/storage"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desk_devserver_requests_total",
		Help: "HTTP requests handled by the dev backend.",
	}, []string{"method", "route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "desk_devserver_request_duration_seconds",
		Help:    "Handler latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// recoverMiddleware turns handler panics into a 500 JSON reply.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Str("remote", r.RemoteAddr).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("code", rec.code).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Msg("request")
	})
}

type actorKey struct{}

// extractToken parses "Bearer <token>" from the Authorization header.
func extractToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.Split(h, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// authMiddleware resolves the bearer token to a user and stores it in the
// request context. Unknown or inactive tokens get 401.
func authMiddleware(st *storage.Store) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := extractToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			u, err := st.UserByToken(r.Context(), tok)
			if errors.Is(err, storage.ErrNotFound) || (err == nil && !u.Active) {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("token lookup failed")
				writeError(w, http.StatusInternalServerError, "token lookup failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, u)))
		})
	}
}

func actorFrom(r *http.Request) client.User {
	u, _ := r.Context().Value(actorKey{}).(client.User)
	return u
}

func isAdmin(u client.User) bool { return u.Role == client.RoleAdmin }
