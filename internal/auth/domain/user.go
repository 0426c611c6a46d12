package domain

import (
	"strings"
	"time"

	"github.com/AveryLor/BiasBreaker-sub000/pkg/fuzzy"
)

// Identity is the authenticated user's profile as the news backend reports it.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// DisplayName falls back to the email when the backend sent no name.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Session providers
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// SessionRecord is the server side of a portal session. The browser only
// holds a signed cookie naming the record.
type SessionRecord struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;not null"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	UserCreated string    `json:"user_created_at,omitempty"`
	AccessToken string    `json:"-"` // backend bearer token, empty for federated sessions
	Provider    string    `json:"provider"`
	ExpiresAt   time.Time `json:"expires_at" gorm:"index"`
	RefreshedAt time.Time `json:"refreshed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *SessionRecord) Identity() *Identity {
	return &Identity{
		ID:        s.UserID,
		Name:      s.Name,
		Email:     s.Email,
		CreatedAt: s.UserCreated,
	}
}

func (s *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// QueryHistoryEntry is a past search made by a user. Read-only on the portal.
type QueryHistoryEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Query     string `json:"query"`
	Timestamp string `json:"timestamp,omitempty"`
}

// FilterHistory keeps the entries whose query fuzzy-matches filter, best
// match first. An empty filter returns entries unchanged.
func FilterHistory(filter string, entries []QueryHistoryEntry) []QueryHistoryEntry {
	if strings.TrimSpace(filter) == "" {
		return entries
	}
	queries := make([]string, len(entries))
	for i, e := range entries {
		queries[i] = e.Query
	}
	ranked := fuzzy.Rank(filter, queries)
	out := make([]QueryHistoryEntry, 0, len(ranked))
	for _, i := range ranked {
		out = append(out, entries[i])
	}
	return out
}
