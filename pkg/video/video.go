package video

import (
	"context"
	"time"
)

// TokenOptions controls a client access token for a video session.
type TokenOptions struct {
	// Role is the participant role, e.g. "publisher".
	Role string
	// ExpiresAt bounds how long the token can be used to join.
	ExpiresAt time.Time
	// Data is opaque connection metadata (name, role, user id) surfaced to
	// the other participants.
	Data string
}

// Provider is the conferencing collaborator. CreateSession is called inside
// the booking transaction; a failure there must abort the booking.
type Provider interface {
	CreateSession(ctx context.Context) (string, error)
	GenerateToken(sessionID string, opts TokenOptions) (string, error)
}
