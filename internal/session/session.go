// Package session holds per-user conversation state: the current search
// result set, the last rendered message, and the input mode flag.
package session

import (
	"context"

	"codeberg.org/arekan/animeshot/internal/search"
)

// Mode is the closed set of per-user input states.
type Mode int

const (
	// ModeIdle means the next message is interpreted normally.
	ModeIdle Mode = iota
	// ModeAwaitingAnimeQuery means the next text message is a title to
	// look up.
	ModeAwaitingAnimeQuery
	// ModeAwaitingAdminMessage means the next message is relayed to the
	// admin.
	ModeAwaitingAdminMessage
)

func (m Mode) String() string {
	switch m {
	case ModeAwaitingAnimeQuery:
		return "awaiting_anime_query"
	case ModeAwaitingAdminMessage:
		return "awaiting_admin_message"
	default:
		return "idle"
	}
}

// Session is one user's conversation state. Created lazily on first
// interaction and kept for the process lifetime.
type Session struct {
	// LastResult is the current search result set, replaced wholesale
	// by each new search.
	LastResult *search.Result `json:"last_result,omitempty"`

	// LastMessageID is the message produced by the most recent render
	// of LastResult. Zero means the next render must send fresh.
	LastMessageID int64 `json:"last_message_id,omitempty"`

	// Mode guards multi-step input flows.
	Mode Mode `json:"mode,omitempty"`
}

// SetResult installs a new result set. The previous rendered message
// no longer describes the current result, so it is invalidated.
func (s *Session) SetResult(r *search.Result) {
	s.LastResult = r
	s.LastMessageID = 0
}

// Store is the per-user session registry. Implementations must be safe
// for concurrent use across users; within one user the bot serializes
// access.
type Store interface {
	// Get returns the user's session, creating an idle one if absent.
	Get(ctx context.Context, userID int64) (*Session, error)

	// Put persists the user's session.
	Put(ctx context.Context, userID int64, s *Session) error
}
