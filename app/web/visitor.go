package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// VisitorCookie holds the anonymous visitor id.
const VisitorCookie = "pulse_visitor"

const visitorCookieTTL = 365 * 24 * time.Hour

type visitorKey struct{}

func visitorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

// visitor identifies the visitor by the cookie, issuing a new id
// when the cookie is missing or malformed.
func (s *Server) visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(VisitorCookie); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}

		if id == "" {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(visitorCookieTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey{}, id)))
	})
}
