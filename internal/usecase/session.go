package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/metrics"
	"ProSocialFlow/internal/ports"
)

// SessionServices are the shared use cases every session drives.
type SessionServices struct {
	Ideas    *IdeaGenerator
	Posts    *PostGenerator
	Image    *ImageGenerator
	History  *HistoryService
	Notifier ports.Notifier
}

// SessionSnapshot is a consistent copy of a session's state.
type SessionSnapshot struct {
	ID             string                       `json:"id"`
	Categories     []CategoryView               `json:"categories"`
	Posts          []domain.SocialPost          `json:"posts"`
	PostsPending   bool                         `json:"postsPending"`
	Image          *domain.ImageOfTheDay        `json:"image,omitempty"`
	ImagePending   bool                         `json:"imagePending"`
	History        map[domain.Category][]string `json:"history,omitempty"`
	HistoryPending bool                         `json:"historyPending"`
	CreatedAt      time.Time                    `json:"createdAt"`
	LastActive     time.Time                    `json:"lastActive"`
}

// PostsOutcome is the result of generating posts inside a session.
type PostsOutcome struct {
	Posts   []domain.SocialPost `json:"posts"`
	Session SessionSnapshot     `json:"session"`
	Warning string              `json:"-"`
}

// Session is one user's workflow. The mutex guards state only and is never
// held across a generation or store call.
type Session struct {
	id       string
	services *SessionServices
	logger   *slog.Logger
	now      func() time.Time

	mu             sync.Mutex
	workflow       *Workflow
	posts          []domain.SocialPost
	postsPending   bool
	image          *domain.ImageOfTheDay
	imagePending   bool
	history        map[domain.Category][]string
	historyPending bool
	createdAt      time.Time
	lastActive     time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// Snapshot copies the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		ID:             s.id,
		Categories:     s.workflow.Snapshot(),
		Posts:          append([]domain.SocialPost{}, s.posts...),
		PostsPending:   s.postsPending,
		ImagePending:   s.imagePending,
		HistoryPending: s.historyPending,
		CreatedAt:      s.createdAt,
		LastActive:     s.lastActive,
	}
	if s.image != nil {
		img := *s.image
		snap.Image = &img
	}
	if s.history != nil {
		snap.History = make(map[domain.Category][]string, len(s.history))
		for c, topics := range s.history {
			snap.History[c] = append([]string(nil), topics...)
		}
	}
	return snap
}

// GenerateIdeas requests ideas for every unlocked category, or for one category.
func (s *Session) GenerateIdeas(ctx context.Context, category domain.Category) (SessionSnapshot, error) {
	s.mu.Lock()
	s.touchLocked()
	targets, err := s.workflow.BeginIdeas(category)
	s.mu.Unlock()
	if err != nil {
		return SessionSnapshot{}, err
	}

	ideas, genErr := s.services.Ideas.GenerateIdeas(ctx, targets)

	s.mu.Lock()
	defer s.mu.Unlock()
	if genErr != nil {
		s.workflow.FailIdeas(targets)
		s.logger.Warn("idea generation failed", "session", s.id, "categories", len(targets), "error", genErr)
		return SessionSnapshot{}, genErr
	}
	s.workflow.CompleteIdeas(targets, ideas)
	return s.snapshotLocked(), nil
}

// SetLocked locks or unlocks one category's idea.
func (s *Session) SetLocked(category domain.Category, locked bool) (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if err := s.workflow.SetLocked(category, locked); err != nil {
		return SessionSnapshot{}, err
	}
	return s.snapshotLocked(), nil
}

// GeneratePosts turns locked ideas into posts, prepends them to the queue and
// resets the idea cycle.
func (s *Session) GeneratePosts(ctx context.Context) (PostsOutcome, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.postsPending {
		s.mu.Unlock()
		return PostsOutcome{}, domain.NewValidationError("Post generation is already in progress.")
	}
	topics, err := s.workflow.SubmitPosts()
	if err != nil {
		s.mu.Unlock()
		return PostsOutcome{}, err
	}
	s.postsPending = true
	s.mu.Unlock()

	batch, genErr := s.services.Posts.GeneratePosts(ctx, topics)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.postsPending = false
	if genErr != nil {
		return PostsOutcome{}, genErr
	}

	posts := make([]domain.SocialPost, len(batch.Posts))
	for i, p := range batch.Posts {
		p.ID = uuid.NewString()
		posts[i] = p
	}
	s.posts = append(append([]domain.SocialPost{}, posts...), s.posts...)
	s.workflow.Reset()
	s.history = nil

	out := PostsOutcome{Posts: posts, Session: s.snapshotLocked()}
	if batch.HistoryErr != nil {
		out.Warning = historyWarning(batch.HistoryErr)
	}
	return out, nil
}

func (s *Session) postIndexLocked(id string) (int, error) {
	for i, p := range s.posts {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, &domain.NotFoundError{Kind: "post", ID: id}
}

// UpdatePost replaces a queued post's content.
func (s *Session) UpdatePost(id, content string) (domain.SocialPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.SocialPost{}, domain.NewValidationError("Post content cannot be empty.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	i, err := s.postIndexLocked(id)
	if err != nil {
		return domain.SocialPost{}, err
	}
	s.posts[i].Content = content
	return s.posts[i], nil
}

// DeletePost removes a post from the queue.
func (s *Session) DeletePost(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	i, err := s.postIndexLocked(id)
	if err != nil {
		return err
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	return nil
}

// PublishPost sends a queued post through the notifier.
func (s *Session) PublishPost(ctx context.Context, id string) (domain.SocialPost, error) {
	s.mu.Lock()
	s.touchLocked()
	i, err := s.postIndexLocked(id)
	var post domain.SocialPost
	if err == nil {
		post = s.posts[i]
	}
	s.mu.Unlock()
	if err != nil {
		return domain.SocialPost{}, err
	}

	if s.services.Notifier == nil {
		return domain.SocialPost{}, domain.NewValidationError("Publishing is not configured.")
	}
	if err := s.services.Notifier.PublishPost(ctx, post); err != nil {
		return domain.SocialPost{}, fmt.Errorf("publish post %s: %w", id, err)
	}
	s.logger.Info("post published", "session", s.id, "post", id, "category", post.Category)
	return post, nil
}

// GenerateImage refreshes the session's image of the day.
func (s *Session) GenerateImage(ctx context.Context) (domain.ImageOfTheDay, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.imagePending {
		s.mu.Unlock()
		return domain.ImageOfTheDay{}, domain.NewValidationError("An image is already being generated.")
	}
	s.imagePending = true
	s.mu.Unlock()

	image, err := s.services.Image.GenerateImageOfTheDay(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.imagePending = false
	if err != nil {
		return domain.ImageOfTheDay{}, err
	}
	s.image = &image
	return image, nil
}

// FetchHistory loads the full topic history into the session.
func (s *Session) FetchHistory(ctx context.Context) (map[domain.Category][]string, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.historyPending {
		s.mu.Unlock()
		return nil, domain.NewValidationError("History is already being loaded.")
	}
	s.historyPending = true
	s.mu.Unlock()

	history, err := s.services.History.FetchHistory(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyPending = false
	if err != nil {
		return nil, err
	}
	s.history = history
	return history, nil
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

// SessionManagerConfig configures session defaults and expiry.
type SessionManagerConfig struct {
	Categories  []domain.Category
	IdleTimeout time.Duration
	Now         func() time.Time
}

// SessionManager owns the in-memory session set.
type SessionManager struct {
	services    *SessionServices
	categories  []domain.Category
	idleTimeout time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session set.
func NewSessionManager(services SessionServices, cfg SessionManagerConfig, m *metrics.Metrics, log *slog.Logger) *SessionManager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	categories := uniqueCategories(cfg.Categories)
	if len(categories) == 0 {
		categories = append([]domain.Category(nil), domain.DefaultCategories...)
	}
	return &SessionManager{
		services:    &services,
		categories:  categories,
		idleTimeout: cfg.IdleTimeout,
		now:         now,
		metrics:     m,
		logger:      logging.OrDiscard(log),
		sessions:    make(map[string]*Session),
	}
}

// Categories returns the default category order for new sessions.
func (m *SessionManager) Categories() []domain.Category {
	return append([]domain.Category(nil), m.categories...)
}

// Create starts a session over categories, or the defaults when none are given.
func (m *SessionManager) Create(categories []domain.Category) (*Session, error) {
	cats := m.categories
	if len(categories) > 0 {
		var err error
		if cats, err = checkCategories(categories); err != nil {
			return nil, err
		}
		if len(cats) == 0 {
			return nil, domain.NewValidationError("No categories provided.")
		}
	}

	now := m.now()
	s := &Session{
		id:         uuid.NewString(),
		services:   m.services,
		logger:     m.logger,
		now:        m.now,
		workflow:   NewWorkflow(cats),
		posts:      []domain.SocialPost{},
		createdAt:  now,
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	m.logger.Debug("session created", "session", s.id, "categories", len(cats))
	return s, nil
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "session", ID: id}
	}
	return s, nil
}

// Delete discards a session.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return &domain.NotFoundError{Kind: "session", ID: id}
	}
	m.metrics.SetSessions(n)
	return nil
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle longer than the configured timeout.
func (m *SessionManager) Sweep(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.idleTimeout {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	if removed > 0 {
		m.logger.Info("idle sessions swept", "removed", removed, "remaining", n)
	}
	return removed
}
