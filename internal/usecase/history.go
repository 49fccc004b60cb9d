package usecase

import (
	"context"
	"log/slog"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/ports"
)

// HistoryService exposes the stored topic history for display.
type HistoryService struct {
	store  ports.HistoryStore
	logger *slog.Logger
}

// NewHistoryService wraps a history store; a nil store yields empty history.
func NewHistoryService(store ports.HistoryStore, log *slog.Logger) *HistoryService {
	return &HistoryService{store: store, logger: logging.OrDiscard(log)}
}

// FetchHistory returns every category's recent topics, newest first.
func (s *HistoryService) FetchHistory(ctx context.Context) (map[domain.Category][]string, error) {
	if s.store == nil {
		return map[domain.Category][]string{}, nil
	}

	all, err := s.store.ReadAll(ctx)
	if err != nil {
		s.logger.Warn("history read failed", "error", err)
		return nil, err
	}
	if all == nil {
		all = map[domain.Category][]string{}
	}
	return all, nil
}

// ReadCategory returns one category's recent topics.
func (s *HistoryService) ReadCategory(ctx context.Context, category domain.Category) ([]string, error) {
	if s.store == nil {
		return []string{}, nil
	}
	return s.store.Read(ctx, category)
}
