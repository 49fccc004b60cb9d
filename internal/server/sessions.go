package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/usecase"
)

type createSessionRequest struct {
	Categories []string `json:"categories" validate:"max=50,dive,max=100"`
}

type lockRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

type updatePostRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request, action string) (*usecase.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeResult(w, usecase.NewResult[any](action, nil, err))
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	const action = "create session"
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeResult(w, usecase.NewResult[any](action, nil, err))
		return
	}

	sess, err := s.sessions.Create(req.Categories)
	if err != nil {
		writeResult(w, usecase.NewResult[any](action, nil, err))
		return
	}
	writeJSON(w, http.StatusCreated, usecase.NewResult(action, sess.Snapshot(), nil))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, "load session")
	if !ok {
		return
	}
	writeResult(w, usecase.NewResult("load session", sess.Snapshot(), nil))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.Delete(chi.URLParam(r, "sessionID"))
	writeResult(w, usecase.NewResult[any]("delete session", nil, err))
}

// sessionIdeas serves both "all unlocked" and single-category regeneration.
func (s *Server) sessionIdeas(w http.ResponseWriter, r *http.Request) {
	const action = "generate ideas"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	snap, err := sess.GenerateIdeas(r.Context(), chi.URLParam(r, "category"))
	writeResult(w, usecase.NewResult(action, snap, err))
}

func (s *Server) setLock(w http.ResponseWriter, r *http.Request) {
	const action = "update lock"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	var req lockRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeResult(w, usecase.NewResult[any](action, nil, err))
		return
	}
	snap, err := sess.SetLocked(chi.URLParam(r, "category"), *req.Locked)
	writeResult(w, usecase.NewResult(action, snap, err))
}

func (s *Server) sessionPosts(w http.ResponseWriter, r *http.Request) {
	const action = "generate posts"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	out, err := sess.GeneratePosts(r.Context())
	res := usecase.NewResult(action, out, err)
	res.Warning = out.Warning
	writeResult(w, res)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	const action = "update post"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	var req updatePostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeResult(w, usecase.NewResult[any](action, nil, err))
		return
	}
	post, err := sess.UpdatePost(chi.URLParam(r, "postID"), req.Content)
	writeResult(w, usecase.NewResult(action, post, err))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	const action = "delete post"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	err := sess.DeletePost(chi.URLParam(r, "postID"))
	writeResult(w, usecase.NewResult[any](action, nil, err))
}

func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	const action = "publish post"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	post, err := sess.PublishPost(r.Context(), chi.URLParam(r, "postID"))
	writeResult(w, usecase.NewResult(action, post, err))
}

func (s *Server) sessionImage(w http.ResponseWriter, r *http.Request) {
	const action = "generate image"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	image, err := sess.GenerateImage(r.Context())
	writeResult(w, usecase.NewResult(action, image, err))
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	const action = "fetch history"
	sess, ok := s.session(w, r, action)
	if !ok {
		return
	}
	history, err := sess.FetchHistory(r.Context())
	writeResult(w, usecase.NewResult[map[domain.Category][]string](action, history, err))
}
