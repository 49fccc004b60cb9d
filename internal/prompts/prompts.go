// Package prompts renders the prompt texts sent to the generation service.
package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed ideas_system.txt
var ideasSystem string

//go:embed ideas.tmpl
var ideasText string

//go:embed posts_system.txt
var postsSystem string

//go:embed posts.tmpl
var postsText string

//go:embed image.tmpl
var imageText string

var (
	ideasTmpl = template.Must(template.New("ideas").Parse(ideasText))
	postsTmpl = template.Must(template.New("posts").Parse(postsText))
	imageTmpl = template.Must(template.New("image").Parse(imageText))
)

// MaxHashtags is the hard ceiling stated to the model.
const MaxHashtags = 2

// CategoryHistory lists topics already used in a category.
type CategoryHistory struct {
	Category string
	Topics   []string
}

// TopicPair is the JSON shape of a selected topic inside the posts prompt.
type TopicPair struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
}

// IdeasSystem returns the brainstormer persona.
func IdeasSystem() string { return strings.TrimSpace(ideasSystem) }

// PostsSystem returns the post-writer persona.
func PostsSystem() string { return strings.TrimSpace(postsSystem) }

// Ideas renders the idea prompt for categories, listing history to avoid.
func Ideas(categories []string, history []CategoryHistory) (string, error) {
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}

	var withTopics []CategoryHistory
	for _, h := range history {
		if len(h.Topics) > 0 {
			withTopics = append(withTopics, h)
		}
	}

	return render(ideasTmpl, map[string]any{
		"CategoriesJSON": string(categoriesJSON),
		"History":        withTopics,
	})
}

// Posts renders the post prompt for the selected topics.
func Posts(topics []TopicPair) (string, error) {
	topicsJSON, err := json.MarshalIndent(topics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode topics: %w", err)
	}
	return render(postsTmpl, map[string]any{
		"TopicsJSON":  string(topicsJSON),
		"MaxHashtags": MaxHashtags,
	})
}

// Image renders the alt-text prompt for a date context.
func Image(dateContext string) (string, error) {
	return render(imageTmpl, map[string]any{"DateContext": dateContext})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
