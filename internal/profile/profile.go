// Package profile resolves a user's {faculty, yearOfStudy} attributes for
// filtered matching. Lookups may be cached briefly; transient store failures
// are surfaced as ErrTransient so the matcher can fail open.
package profile

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the user has no stored profile.
	ErrNotFound = errors.New("profile not found")
	// ErrTransient means the store is temporarily unreachable. Callers
	// are expected to degrade to unfiltered matching.
	ErrTransient = errors.New("profile store unavailable")
)

// Attributes are the matchable profile fields.
type Attributes struct {
	Faculty     string
	YearOfStudy string
}

// Store is the external profile source.
type Store interface {
	Attributes(ctx context.Context, userID string) (Attributes, error)
}
