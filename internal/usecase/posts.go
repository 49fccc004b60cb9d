package usecase

import (
	"context"
	"encoding/json"
	"errors"
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

const flowPosts = "posts"

// PostGeneratorDeps wires all driven adapters into the post generator.
type PostGeneratorDeps struct {
	Generator ports.Generator
	History   ports.HistoryStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// PostGenerator turns selected topics into posts and records them in history.
type PostGenerator struct {
	generator ports.Generator
	history   ports.HistoryStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// PostBatch is the outcome of a successful generation.
// HistoryErr reports failed history writes; the posts are valid regardless.
type PostBatch struct {
	Posts      []domain.SocialPost
	HistoryErr error
}

// NewPostGenerator constructs the post generator.
func NewPostGenerator(deps PostGeneratorDeps) *PostGenerator {
	return &PostGenerator{
		generator: deps.Generator,
		history:   deps.History,
		metrics:   deps.Metrics,
		logger:    logging.OrDiscard(deps.Logger),
	}
}

var postsContract = contract.Contract{
	Name: "social_media_posts",
	Schema: contract.Object(map[string]any{
		"posts": contract.Array(contract.Object(map[string]any{
			"topic":    contract.String("The topic of the post."),
			"category": contract.String(`The category of the post (e.g., "STEM", "AI and Machine Learning").`),
			"post":     contract.String("The generated social media post content."),
		})),
	}),
}

type generatedPost struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Post     string `json:"post"`
}

// GeneratePosts returns one post per input, in input order, each carrying
// the input's category and topic verbatim.
func (g *PostGenerator) GeneratePosts(ctx context.Context, topics []domain.SelectedTopic) (PostBatch, error) {
	if len(topics) == 0 {
		return PostBatch{Posts: []domain.SocialPost{}}, nil
	}
	for i, t := range topics {
		if strings.TrimSpace(t.Category) == "" || strings.TrimSpace(t.Topic) == "" {
			return PostBatch{}, domain.NewValidationError("selected topic %d needs both a category and a topic", i+1)
		}
	}
	if g.generator == nil {
		return PostBatch{}, &domain.GenerationError{Flow: flowPosts, Err: errNoGenerator}
	}

	pairs := make([]prompts.TopicPair, len(topics))
	for i, t := range topics {
		pairs[i] = prompts.TopicPair{Category: t.Category, Topic: t.Topic}
	}
	prompt, err := prompts.Posts(pairs)
	if err != nil {
		return PostBatch{}, &domain.GenerationError{Flow: flowPosts, Err: err}
	}

	started := time.Now()
	raw, err := g.generator.Generate(ctx, ports.GenerationRequest{
		System:   prompts.PostsSystem(),
		Prompt:   prompt,
		Contract: postsContract,
	})
	if err != nil {
		g.metrics.ObserveGeneration(flowPosts, metrics.OutcomeFailure, started)
		return PostBatch{}, &domain.GenerationError{Flow: flowPosts, Err: err}
	}

	posts, err := g.decodePosts(raw, topics)
	if err != nil {
		g.metrics.ObserveGeneration(flowPosts, metrics.OutcomeFailure, started)
		g.logger.Warn("unusable post output", "error", err, "topics", len(topics))
		return PostBatch{}, &domain.GenerationError{Flow: flowPosts, Err: err}
	}
	g.metrics.ObserveGeneration(flowPosts, metrics.OutcomeSuccess, started)

	for _, p := range posts {
		if n := len(parser.Hashtags(p.Content)); n > prompts.MaxHashtags {
			g.metrics.ObserveHashtagOverflow()
			g.logger.Warn("post exceeds hashtag budget", "category", p.Category, "hashtags", n)
		}
	}

	batch := PostBatch{Posts: posts, HistoryErr: g.recordHistory(ctx, posts)}
	g.logger.Info("posts generated", "count", len(posts), "history_ok", batch.HistoryErr == nil)
	return batch, nil
}

func (g *PostGenerator) decodePosts(raw json.RawMessage, topics []domain.SelectedTopic) ([]domain.SocialPost, error) {
	if _, err := postsContract.Validate(raw); err != nil {
		return nil, err
	}

	var reply struct {
		Posts []generatedPost `json:"posts"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts, rewritten, err := pairPosts(topics, reply.Posts)
	if err != nil {
		return nil, err
	}
	if rewritten > 0 {
		g.logger.Warn("model altered category or topic; restored input values", "posts", rewritten)
	}
	return posts, nil
}

// pairPosts assigns generated posts to inputs: exact (category, topic) matches
// first, then remaining outputs in order. It reports how many outputs had
// their category or topic replaced by the input's values.
func pairPosts(inputs []domain.SelectedTopic, outputs []generatedPost) ([]domain.SocialPost, int, error) {
	if len(outputs) != len(inputs) {
		return nil, 0, fmt.Errorf("expected %d posts, got %d", len(inputs), len(outputs))
	}

	used := make([]bool, len(outputs))
	assigned := make([]int, len(inputs))
	for i, in := range inputs {
		assigned[i] = -1
		for j, out := range outputs {
			if !used[j] && out.Category == in.Category && out.Topic == in.Topic {
				assigned[i] = j
				used[j] = true
				break
			}
		}
	}

	rewritten := 0
	next := 0
	for i := range inputs {
		if assigned[i] >= 0 {
			continue
		}
		for used[next] {
			next++
		}
		assigned[i] = next
		used[next] = true
		rewritten++
	}

	posts := make([]domain.SocialPost, len(inputs))
	for i, in := range inputs {
		content := parser.PlainText(outputs[assigned[i]].Post)
		if content == "" {
			return nil, 0, fmt.Errorf("blank post for %s / %q", in.Category, in.Topic)
		}
		posts[i] = domain.SocialPost{
			Category: in.Category,
			Topic:    in.Topic,
			Content:  content,
		}
	}
	return posts, rewritten, nil
}

// recordHistory writes one record per post in order; failures never stop the loop.
func (g *PostGenerator) recordHistory(ctx context.Context, posts []domain.SocialPost) error {
	if g.history == nil {
		return nil
	}

	var errs []error
	for _, p := range posts {
		err := g.history.Record(ctx, p.Category, p.Topic)
		g.metrics.ObserveHistoryWrite(err)
		if err != nil {
			g.logger.Warn("history write failed", "category", p.Category, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
