package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
	"wifiscout/internal/repository"
)

// HistoryService records finished scan sessions and serves them back
type HistoryService struct {
	repo     repository.SessionRepository
	eventBus Publisher
	log      logrus.FieldLogger
}

// NewHistoryService creates a new history service
func NewHistoryService(repo repository.SessionRepository, eventBus Publisher, log logrus.FieldLogger) *HistoryService {
	return &HistoryService{
		repo:     repo,
		eventBus: eventBus,
		log:      log,
	}
}

// Record persists a session and announces it
func (s *HistoryService) Record(ctx context.Context, session *domain.ScanSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session without id")
	}
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}

	s.eventBus.Publish(Event{
		Type: EventSessionFinished,
		Payload: map[string]interface{}{
			"id":       session.ID,
			"ssid":     session.SSID,
			"outcome":  session.Outcome,
			"stage":    session.Stage,
			"hosts_up": session.HostsUp,
			"artifact": session.Artifact,
		},
	})
	s.log.WithFields(logrus.Fields{
		"ssid":    session.SSID,
		"outcome": session.Outcome,
	}).Debug("History: session recorded")
	return nil
}

// List returns the newest sessions first; limit <= 0 returns all
func (s *HistoryService) List(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	return s.repo.ListSessions(ctx, limit)
}

// Get returns a single session
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.ScanSession, error) {
	return s.repo.GetSession(ctx, id)
}

// Stats returns aggregate history counts
func (s *HistoryService) Stats(ctx context.Context) (*repository.Stats, error) {
	return s.repo.Stats(ctx)
}
