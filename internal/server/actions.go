package server

import (
	"net/http"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/usecase"
)

type ideasRequest struct {
	Categories []string `json:"categories" validate:"max=50,dive,max=100"`
}

type selectedTopicRequest struct {
	Category string `json:"category" validate:"required,max=100"`
	Topic    string `json:"topic" validate:"required,max=500"`
}

type postsRequest struct {
	SelectedTopics []selectedTopicRequest `json:"selectedTopics" validate:"max=50,dive"`
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, usecase.NewResult("list categories", s.sessions.Categories(), nil))
}

func (s *Server) generateIdeas(w http.ResponseWriter, r *http.Request) {
	var req ideasRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeResult(w, usecase.NewResult[map[domain.Category]string]("generate ideas", nil, err))
		return
	}
	writeResult(w, s.actions.GenerateIdeas(r.Context(), req.Categories))
}

func (s *Server) generatePosts(w http.ResponseWriter, r *http.Request) {
	var req postsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeResult(w, usecase.NewResult[[]domain.SocialPost]("generate posts", nil, err))
		return
	}

	topics := make([]domain.SelectedTopic, len(req.SelectedTopics))
	for i, t := range req.SelectedTopics {
		topics[i] = domain.SelectedTopic{Category: t.Category, Topic: t.Topic}
	}
	writeResult(w, s.actions.GeneratePosts(r.Context(), topics))
}

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.actions.GenerateImage(r.Context()))
}

func (s *Server) fetchHistory(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.actions.FetchHistory(r.Context()))
}
