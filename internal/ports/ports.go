package ports

import (
	"context"
	"encoding/json"
	"time"

	"ProSocialFlow/internal/contract"
	"ProSocialFlow/internal/domain"
)

// GenerationRequest is a single structured prompt for the generation service.
type GenerationRequest struct {
	System   string
	Prompt   string
	ImageURL string
	Contract contract.Contract
}

// Generator calls a large-language-model and returns the raw structured reply.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
}

// HistoryStore persists recently used topics per category.
type HistoryStore interface {
	Read(ctx context.Context, category domain.Category) ([]string, error)
	Record(ctx context.Context, category domain.Category, topic string) error
	ReadAll(ctx context.Context) (map[domain.Category][]string, error)
}

// Notifier publishes finished posts to an outbound channel.
type Notifier interface {
	PublishPost(ctx context.Context, post domain.SocialPost) error
}

// Scheduler triggers periodic maintenance jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
