package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"castlink/internal/domain"
	"castlink/internal/security"
)

type contextKey string

const participantContextKey contextKey = "currentParticipant"

// WithParticipant returns a new context carrying the current participant.
func WithParticipant(ctx context.Context, p *domain.Participant) context.Context {
	return context.WithValue(ctx, participantContextKey, p)
}

// CurrentParticipant extracts the current participant from context, if any.
func CurrentParticipant(r *http.Request) *domain.Participant {
	if v := r.Context().Value(participantContextKey); v != nil {
		if p, ok := v.(*domain.Participant); ok {
			return p
		}
	}
	return nil
}

// AuthMiddleware validates the Bearer token issued by the external auth
// system and attaches the participant's profile to the context.
func AuthMiddleware(tokens *security.TokenService, profiles domain.ProfileRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			id, err := tokens.ParseSubject(tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			participant, err := profiles.GetByID(r.Context(), id)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					logger.Error("load participant profile", "participant", id, "error", err)
				}
				http.Error(w, "user not found", http.StatusUnauthorized)
				return
			}

			ctx := WithParticipant(r.Context(), participant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
