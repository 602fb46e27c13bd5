package session

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository is the durable home of sessions.
type Repository interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Upsert stamps UpdatedAt (and CreatedAt for new sessions) before writing.
	Upsert(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
