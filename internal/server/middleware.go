package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
)

type contextKey int

const userKey contextKey = 0

// UserFromContext returns the user resolved by the identity middleware.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// RequestID returns the id middleware.RequestID assigned to the current
// request, if any.
func RequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// echoRequestID copies the request id into the response headers. It must run
// after middleware.RequestID.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := RequestID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", RequestID(r.Context()))
	})
}

// identify resolves the user named by the identity header. Requests without
// the header, or naming an unknown user, are rejected with 401.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(IdentityHeader))
		if username == "" {
			s.writeError(w, r, common.ErrUnauthenticated)
			return
		}

		user, err := s.store.GetUserByUsername(r.Context(), username)
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, r, common.ErrUnauthenticated)
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRoles lets a request through when its user is a superuser or holds
// one of roles. Everyone else gets 403, including users without a role.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: common.ErrUnauthenticated.Error()})
				return
			}
			if !user.HasAnyRole(roles...) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: common.ErrForbidden.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
