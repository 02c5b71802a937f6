package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type userIDKey struct{}

// requireUser resolves the subscriber identity from the X-User-ID
// header set by the authenticating edge.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "missing or invalid user identity")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey{}).(uuid.UUID)
	return id
}
