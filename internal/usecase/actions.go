package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/logging"
)

// Result is the uniform outcome returned to callers of an action.
// Err keeps the classified cause for transports that map it to a status code.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Err     error  `json:"-"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// fail converts err into a failed result. Validation messages are shown as-is;
// everything else is prefixed with the action name.
func fail[T any](action string, err error) Result[T] {
	msg := err.Error()
	if !domain.IsValidation(err) {
		msg = fmt.Sprintf("Failed to %s: %s", action, err.Error())
	}
	return Result[T]{Success: false, Error: msg, Err: err}
}

// recoverInto turns a panic below the boundary into a failed result.
func recoverInto[T any](action string, res *Result[T], log *slog.Logger) {
	if r := recover(); r != nil {
		log.Error("action panicked", "action", action, "panic", r)
		*res = fail[T](action, fmt.Errorf("internal error: %v", r))
	}
}

// Actions is the stateless boundary over the generators and the history store.
type Actions struct {
	ideas   *IdeaGenerator
	posts   *PostGenerator
	image   *ImageGenerator
	history *HistoryService
	logger  *slog.Logger
}

// NewActions groups the use cases behind the action boundary.
func NewActions(ideas *IdeaGenerator, posts *PostGenerator, image *ImageGenerator, history *HistoryService, log *slog.Logger) *Actions {
	return &Actions{
		ideas:   ideas,
		posts:   posts,
		image:   image,
		history: history,
		logger:  logging.OrDiscard(log),
	}
}

// GenerateIdeas returns one idea per requested category.
func (a *Actions) GenerateIdeas(ctx context.Context, categories []domain.Category) (res Result[map[domain.Category]string]) {
	const action = "generate ideas"
	defer recoverInto(action, &res, a.logger)

	cats, err := checkCategories(categories)
	if err != nil {
		return fail[map[domain.Category]string](action, err)
	}
	if len(cats) == 0 {
		return fail[map[domain.Category]string](action, domain.NewValidationError("No categories provided."))
	}
	ideas, err := a.ideas.GenerateIdeas(ctx, cats)
	if err != nil {
		return fail[map[domain.Category]string](action, err)
	}
	return ok(ideas)
}

// GeneratePosts returns one post per selected topic. A history write failure
// does not fail the action; it is reported as a warning.
func (a *Actions) GeneratePosts(ctx context.Context, topics []domain.SelectedTopic) (res Result[[]domain.SocialPost]) {
	const action = "generate posts"
	defer recoverInto(action, &res, a.logger)

	if len(topics) == 0 {
		return fail[[]domain.SocialPost](action, domain.NewValidationError("No topics selected."))
	}
	batch, err := a.posts.GeneratePosts(ctx, topics)
	if err != nil {
		return fail[[]domain.SocialPost](action, err)
	}

	res = ok(batch.Posts)
	if batch.HistoryErr != nil {
		res.Warning = historyWarning(batch.HistoryErr)
	}
	return res
}

// GenerateImage returns today's image with alt text.
func (a *Actions) GenerateImage(ctx context.Context) (res Result[domain.ImageOfTheDay]) {
	const action = "generate image"
	defer recoverInto(action, &res, a.logger)

	image, err := a.image.GenerateImageOfTheDay(ctx)
	if err != nil {
		return fail[domain.ImageOfTheDay](action, err)
	}
	return ok(image)
}

// FetchHistory returns the full topic history.
func (a *Actions) FetchHistory(ctx context.Context) (res Result[map[domain.Category][]string]) {
	const action = "fetch history"
	defer recoverInto(action, &res, a.logger)

	history, err := a.history.FetchHistory(ctx)
	if err != nil {
		return fail[map[domain.Category][]string](action, err)
	}
	return ok(history)
}

func historyWarning(err error) string {
	return "Posts were generated but topic history could not be updated: " + err.Error()
}

// NewResult builds a result for action from a data/error pair.
func NewResult[T any](action string, data T, err error) Result[T] {
	if err != nil {
		return fail[T](action, err)
	}
	return ok(data)
}
