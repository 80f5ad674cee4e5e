// Package repository defines persistence for scan session history.
package repository

import (
	"context"
	"errors"

	"wifiscout/internal/domain"
)

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("session not found")

// SessionRepository stores finished scan sessions and the hosts they found.
// History is informational; it never feeds back into network selection.
type SessionRepository interface {
	// SaveSession inserts or replaces a session and its hosts
	SaveSession(ctx context.Context, session *domain.ScanSession) error
	GetSession(ctx context.Context, id string) (*domain.ScanSession, error)
	// ListSessions returns the newest sessions first; limit <= 0 means all
	ListSessions(ctx context.Context, limit int) ([]domain.ScanSession, error)
	// Stats returns aggregate counts across all sessions
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats summarizes the stored history
type Stats struct {
	Sessions  int `json:"sessions" yaml:"sessions"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	HostsUp   int `json:"hosts_up" yaml:"hosts_up"`
}
