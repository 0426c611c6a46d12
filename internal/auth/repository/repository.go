package repository

import (
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
)

// SessionRepository stores portal session records
type SessionRepository interface {
	// Create stores a new session, assigning its ID
	Create(session *authdomain.SessionRecord) error

	// FindByID returns nil, nil when the session does not exist
	FindByID(id string) (*authdomain.SessionRecord, error)

	// Update saves identity and refresh bookkeeping
	Update(session *authdomain.SessionRecord) error

	// Delete destroys a single session
	Delete(id string) error

	// DeleteByUser destroys every session of a user
	DeleteByUser(userID string) error

	// DeleteExpired removes sessions that expired before now
	DeleteExpired(now time.Time) (int64, error)
}
