package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ProSocialFlow/internal/contract"
	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/infrastructure/parser"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/metrics"
	"ProSocialFlow/internal/ports"
	"ProSocialFlow/internal/prompts"
)

const flowIdeas = "ideas"

// IdeaGenerator produces exactly one topic idea per requested category.
type IdeaGenerator struct {
	generator ports.Generator
	history   ports.HistoryStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewIdeaGenerator wires the generation service and, optionally, the history store
// used to steer ideas away from recent topics.
func NewIdeaGenerator(gen ports.Generator, history ports.HistoryStore, m *metrics.Metrics, log *slog.Logger) *IdeaGenerator {
	return &IdeaGenerator{
		generator: gen,
		history:   history,
		metrics:   m,
		logger:    logging.OrDiscard(log),
	}
}

// ideasContract requires one string property per category and nothing else.
func ideasContract(categories []domain.Category) contract.Contract {
	props := make(map[string]any, len(categories))
	for _, c := range categories {
		props[c] = contract.String("A topic idea for the category: " + c)
	}
	return contract.Contract{
		Name: "topic_ideas",
		Schema: contract.Object(map[string]any{
			"ideas": contract.Object(props),
		}),
	}
}

// GenerateIdeas returns a map whose key set equals the (deduplicated) input set.
// Either every idea is returned or an error is.
func (g *IdeaGenerator) GenerateIdeas(ctx context.Context, categories []domain.Category) (map[domain.Category]string, error) {
	cats, err := checkCategories(categories)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return map[domain.Category]string{}, nil
	}
	if g.generator == nil {
		return nil, &domain.GenerationError{Flow: flowIdeas, Err: errNoGenerator}
	}

	prompt, err := prompts.Ideas(cats, g.recentHistory(ctx, cats))
	if err != nil {
		return nil, &domain.GenerationError{Flow: flowIdeas, Err: err}
	}

	c := ideasContract(cats)
	started := time.Now()
	raw, err := g.generator.Generate(ctx, ports.GenerationRequest{
		System:   prompts.IdeasSystem(),
		Prompt:   prompt,
		Contract: c,
	})
	if err != nil {
		g.metrics.ObserveGeneration(flowIdeas, metrics.OutcomeFailure, started)
		return nil, &domain.GenerationError{Flow: flowIdeas, Err: err}
	}

	ideas, err := decodeIdeas(c, raw, cats)
	if err != nil {
		g.metrics.ObserveGeneration(flowIdeas, metrics.OutcomeFailure, started)
		g.logger.Warn("unusable idea output", "error", err, "categories", len(cats))
		return nil, &domain.GenerationError{Flow: flowIdeas, Err: err}
	}

	g.metrics.ObserveGeneration(flowIdeas, metrics.OutcomeSuccess, started)
	g.logger.Debug("ideas generated", "categories", len(cats), "elapsed", time.Since(started))
	return ideas, nil
}

// recentHistory is best effort; a store failure only loses the steering hint.
func (g *IdeaGenerator) recentHistory(ctx context.Context, cats []domain.Category) []prompts.CategoryHistory {
	if g.history == nil {
		return nil
	}

	out := make([]prompts.CategoryHistory, 0, len(cats))
	for _, c := range cats {
		topics, err := g.history.Read(ctx, c)
		if err != nil {
			g.logger.Warn("history unavailable for idea steering", "category", c, "error", err)
			continue
		}
		out = append(out, prompts.CategoryHistory{Category: c, Topics: topics})
	}
	return out
}

func decodeIdeas(c contract.Contract, raw json.RawMessage, cats []domain.Category) (map[domain.Category]string, error) {
	if _, err := c.Validate(raw); err != nil {
		return nil, err
	}

	var reply struct {
		Ideas map[string]string `json:"ideas"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode ideas: %w", err)
	}
	if err := contract.RequireExactKeys(reply.Ideas, cats); err != nil {
		return nil, err
	}

	ideas := make(map[domain.Category]string, len(cats))
	for _, c := range cats {
		idea := parser.PlainText(reply.Ideas[c])
		if idea == "" {
			return nil, fmt.Errorf("blank idea for category %q", c)
		}
		ideas[c] = idea
	}
	return ideas, nil
}

// checkCategories deduplicates caller-supplied names. Names are keys, so a
// blank or space-padded name is rejected rather than silently trimmed.
func checkCategories(categories []domain.Category) ([]domain.Category, error) {
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			return nil, domain.NewValidationError("Category names must not be blank.")
		}
		if strings.TrimSpace(c) != c {
			return nil, domain.NewValidationError("Category %q has leading or trailing spaces.", c)
		}
	}
	return uniqueCategories(categories), nil
}

func uniqueCategories(categories []domain.Category) []domain.Category {
	seen := make(map[domain.Category]struct{}, len(categories))
	out := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
