package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/sirupsen/logrus"
)

// TokenParser verifies a bearer token and returns its user id.
type TokenParser interface {
	Parse(token string) (int64, error)
}

// UserLookup reads users from the identity store.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
}

// AuthMiddleware verifies the bearer token and stores the caller's principal
// in the request context. The admin flag comes from the identity store; the
// lookup is bounded by timeout.
func AuthMiddleware(tokens TokenParser, users UserLookup, timeout time.Duration, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				log.WithError(err).Debug("Rejected token")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			lookupCtx, cancel := context.WithTimeout(r.Context(), timeout)
			user, err := users.GetUser(lookupCtx, userID)
			cancel()
			switch {
			case errors.Is(err, repository.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			case errors.Is(err, repository.ErrTransient), errors.Is(err, context.DeadlineExceeded):
				log.WithError(err).Warn("Identity store unavailable")
				writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry later")
				return
			case err != nil:
				log.WithError(err).Error("Failed to load user")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{
				UserID:  user.ID,
				Email:   user.Email,
				IsAdmin: user.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
