package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/ports"
)

// fakeGenerator answers every request with reply(req) and records the calls.
type fakeGenerator struct {
	mu       sync.Mutex
	reply    func(req ports.GenerationRequest) (json.RawMessage, error)
	requests []ports.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req ports.GenerationRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return nil, errors.New("no reply configured")
	}
	return reply(req)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGenerator) lastRequest() ports.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func staticReply(raw string) func(ports.GenerationRequest) (json.RawMessage, error) {
	return func(ports.GenerationRequest) (json.RawMessage, error) {
		return json.RawMessage(raw), nil
	}
}

func failingReply(err error) func(ports.GenerationRequest) (json.RawMessage, error) {
	return func(ports.GenerationRequest) (json.RawMessage, error) {
		return nil, err
	}
}

// ideasFor answers an ideas request with "<category> idea" for every category
// named in the request's contract.
func ideasFor(req ports.GenerationRequest) (json.RawMessage, error) {
	ideasSchema := req.Contract.Schema["properties"].(map[string]any)["ideas"].(map[string]any)
	props := ideasSchema["properties"].(map[string]any)
	ideas := make(map[string]string, len(props))
	for c := range props {
		ideas[c] = c + " idea"
	}
	return json.Marshal(map[string]any{"ideas": ideas})
}

// postsFor answers a posts request by echoing every topic in the prompt's JSON list.
func postsFor(req ports.GenerationRequest) (json.RawMessage, error) {
	start := strings.Index(req.Prompt, "[")
	end := strings.LastIndex(req.Prompt, "]")
	var topics []struct {
		Category string `json:"category"`
		Topic    string `json:"topic"`
	}
	if err := json.Unmarshal([]byte(req.Prompt[start:end+1]), &topics); err != nil {
		return nil, err
	}
	posts := make([]map[string]string, len(topics))
	for i, t := range topics {
		posts[i] = map[string]string{
			"category": t.Category,
			"topic":    t.Topic,
			"post":     "Thinking about " + t.Topic + " today. #" + strings.ReplaceAll(t.Category, " ", ""),
		}
	}
	return json.Marshal(map[string]any{"posts": posts})
}

// routingReply dispatches by contract name so one fake can serve a whole session.
func routingReply(req ports.GenerationRequest) (json.RawMessage, error) {
	switch req.Contract.Name {
	case "topic_ideas":
		return ideasFor(req)
	case "social_media_posts":
		return postsFor(req)
	case "image_alt_text":
		return json.RawMessage(`{"altText":"A quiet harbour at dawn. Boats rest."}`), nil
	}
	return nil, errors.New("unexpected contract " + req.Contract.Name)
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Read(_ context.Context, c domain.Category) ([]string, error) {
	return nil, &domain.StoreError{Op: "read", Category: c, Err: errors.New("unavailable")}
}

func (brokenStore) Record(_ context.Context, c domain.Category, _ string) error {
	return &domain.StoreError{Op: "record", Category: c, Err: errors.New("unavailable")}
}

func (brokenStore) ReadAll(context.Context) (map[domain.Category][]string, error) {
	return nil, &domain.StoreError{Op: "read all", Err: errors.New("unavailable")}
}

var _ ports.HistoryStore = brokenStore{}
