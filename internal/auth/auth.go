// Package auth verifies the bearer credential presented on the transport
// handshake. Two token shapes are accepted: a federated identity token from
// the external provider, and a locally issued session token. The federated
// check runs first; on signature or expiry failure the resolver falls back
// to the session verifier.
package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// Reason classifies an authentication failure.
type Reason string

const (
	ReasonExpired   Reason = "expired"
	ReasonRevoked   Reason = "revoked"
	ReasonMalformed Reason = "malformed"
	ReasonUnknown   Reason = "unknown"
)

// AuthError closes the connection with a typed reason.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Claims carried by both token shapes. Subject is the stable user id (an
// email in practice); Email overrides Subject when present, matching the
// federated provider's layout.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) userID() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

type Config struct {
	// SessionSecret signs locally issued session tokens (HS256).
	SessionSecret string
	// FederatedIssuer is the expected "iss" of provider tokens. Empty
	// disables the federated verifier.
	FederatedIssuer string
	// FederatedSecret is the HMAC secret shared with the provider.
	FederatedSecret string
}

// Resolver implements the identity side of the handshake. It performs a
// single verification per call and keeps no validity cache; the transport
// layer authenticates each connection exactly once.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger, cfg Config) *Resolver {
	return &Resolver{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth_resolver")),
	}
}

// Verify resolves a bearer token to a UserID or returns an *AuthError.
func (r *Resolver) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", &AuthError{Reason: ReasonMalformed, Err: errors.New("empty token")}
	}

	if r.cfg.FederatedIssuer != "" {
		userID, fedErr := r.verifyWith(tokenString, r.cfg.FederatedSecret, r.cfg.FederatedIssuer)
		if fedErr == nil {
			return userID, nil
		}
		r.logger.Debug("Federated verification failed, trying session token", slog.Any("error", fedErr))
	}

	userID, err := r.verifyWith(tokenString, r.cfg.SessionSecret, "")
	if err != nil {
		return "", classify(err)
	}
	return userID, nil
}

func (r *Resolver) verifyWith(tokenString, secret, issuer string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	userID := claims.userID()
	if userID == "" {
		return "", errors.New("token missing subject")
	}
	return userID, nil
}

func classify(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &AuthError{Reason: ReasonExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return &AuthError{Reason: ReasonRevoked, Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &AuthError{Reason: ReasonMalformed, Err: err}
	default:
		return &AuthError{Reason: ReasonUnknown, Err: err}
	}
}
