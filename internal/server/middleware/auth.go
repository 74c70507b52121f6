package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jumpman786/omcgill/internal/auth"
)

// TokenVerifier resolves a bearer credential to a stable user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware authenticates the websocket handshake. The bearer token
// comes from the Authorization header, or from the "token" query parameter
// for browser WebSocket clients, which cannot set headers.
func NewAuthMiddleware(logger *slog.Logger, verifier TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// Metadata middleware must run first.
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tokenString = strings.TrimPrefix(h, "Bearer ")
			}
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				logger.Warn("Handshake missing bearer token", slog.String("ip", reqMeta.IP))
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(tokenString)
			if err != nil {
				var authErr *auth.AuthError
				reason := auth.ReasonUnknown
				if errors.As(err, &authErr) {
					reason = authErr.Reason
				}
				logger.Warn("Rejected handshake token",
					slog.String("ip", reqMeta.IP),
					slog.String("reason", string(reason)))
				http.Error(w, "Unauthorized: "+string(reason), http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = userID
			next.ServeHTTP(w, r)
		})
	}
}
