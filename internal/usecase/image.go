package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ProSocialFlow/internal/contract"
	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/infrastructure/parser"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/metrics"
	"ProSocialFlow/internal/ports"
	"ProSocialFlow/internal/prompts"
)

const flowImage = "image"

// ImageSource yields a fresh placeholder image URL per call.
type ImageSource interface {
	NextURL() (string, error)
}

// ImageGenerator picks an image and asks the generation service for alt text.
type ImageGenerator struct {
	generator ports.Generator
	source    ImageSource
	location  *time.Location
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// ImageGeneratorOption customises an ImageGenerator.
type ImageGeneratorOption func(*ImageGenerator)

// WithClock overrides the wall clock used for the date context.
func WithClock(now func() time.Time) ImageGeneratorOption {
	return func(g *ImageGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLocation sets the timezone the date context is computed in.
func WithLocation(loc *time.Location) ImageGeneratorOption {
	return func(g *ImageGenerator) {
		if loc != nil {
			g.location = loc
		}
	}
}

// NewImageGenerator constructs the image-of-the-day generator.
func NewImageGenerator(gen ports.Generator, source ImageSource, m *metrics.Metrics, log *slog.Logger, opts ...ImageGeneratorOption) *ImageGenerator {
	g := &ImageGenerator{
		generator: gen,
		source:    source,
		location:  time.UTC,
		now:       time.Now,
		metrics:   m,
		logger:    logging.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var altTextContract = contract.Contract{
	Name: "image_alt_text",
	Schema: contract.Object(map[string]any{
		"altText": contract.String("A single sentence describing the image and how it relates to the date."),
	}),
}

// DayOfYear returns the 1-based ordinal of t within its calendar year.
func DayOfYear(t time.Time) int {
	zero := time.Date(t.Year(), time.January, 0, 0, 0, 0, 0, t.Location())
	return int(t.Sub(zero) / (24 * time.Hour))
}

// DateContext renders t as "October 15, 2026 (Thursday, day 288 of the year)".
func DateContext(t time.Time) string {
	return fmt.Sprintf("%s (%s, day %d of the year)", t.Format("January 2, 2006"), t.Weekday(), DayOfYear(t))
}

// FallbackAltText is used whenever the generation service cannot describe the image.
func FallbackAltText(dateContext string) string {
	return "An image for " + dateContext + "."
}

// GenerateImageOfTheDay always yields an image; alt text falls back when generation fails.
// The only error is a misconfigured image source.
func (g *ImageGenerator) GenerateImageOfTheDay(ctx context.Context) (domain.ImageOfTheDay, error) {
	if g.source == nil {
		return domain.ImageOfTheDay{}, fmt.Errorf("image source is not configured")
	}
	imageURL, err := g.source.NextURL()
	if err != nil {
		return domain.ImageOfTheDay{}, fmt.Errorf("compose image url: %w", err)
	}

	dateContext := DateContext(g.now().In(g.location))
	image := domain.ImageOfTheDay{ImageURL: imageURL}

	started := time.Now()
	alt, err := g.describe(ctx, imageURL, dateContext)
	if err != nil {
		g.metrics.ObserveGeneration(flowImage, metrics.OutcomeFallback, started)
		g.logger.Warn("alt text generation failed; using fallback", "error", err)
		image.AltText = FallbackAltText(dateContext)
		return image, nil
	}

	g.metrics.ObserveGeneration(flowImage, metrics.OutcomeSuccess, started)
	image.AltText = alt
	return image, nil
}

func (g *ImageGenerator) describe(ctx context.Context, imageURL, dateContext string) (string, error) {
	if g.generator == nil {
		return "", errNoGenerator
	}

	prompt, err := prompts.Image(dateContext)
	if err != nil {
		return "", err
	}
	raw, err := g.generator.Generate(ctx, ports.GenerationRequest{
		Prompt:   prompt,
		ImageURL: imageURL,
		Contract: altTextContract,
	})
	if err != nil {
		return "", err
	}
	if _, err := altTextContract.Validate(raw); err != nil {
		return "", err
	}

	var reply struct {
		AltText string `json:"altText"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode alt text: %w", err)
	}
	alt := parser.FirstSentence(parser.PlainText(reply.AltText))
	if alt == "" {
		return "", fmt.Errorf("blank alt text")
	}
	return alt, nil
}
