package usecase

import (
	"fmt"

	"ProSocialFlow/internal/domain"
)

// IdeaState is the per-category position in the idea/lock cycle.
type IdeaState int

const (
	StateUnrequested IdeaState = iota
	StatePending
	StateAvailable
	StateLocked
)

func (s IdeaState) String() string {
	switch s {
	case StatePending:
		return "idea-pending"
	case StateAvailable:
		return "idea-available"
	case StateLocked:
		return "locked"
	default:
		return "unrequested"
	}
}

// MarshalText renders the state tag in JSON.
func (s IdeaState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state tag.
func (s *IdeaState) UnmarshalText(text []byte) error {
	for _, st := range []IdeaState{StateUnrequested, StatePending, StateAvailable, StateLocked} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown idea state %q", text)
}

// CategoryView is a read-only copy of one category's slot.
type CategoryView struct {
	Category domain.Category `json:"category"`
	State    IdeaState       `json:"state"`
	Idea     string          `json:"idea,omitempty"`
}

type slot struct {
	state IdeaState
	idea  string

	// restored when a pending request fails
	prevState IdeaState
	prevIdea  string
}

// Workflow holds the idea/lock state for an ordered set of categories.
// It performs no I/O and is not safe for concurrent use.
type Workflow struct {
	categories []domain.Category
	slots      map[domain.Category]*slot
}

// NewWorkflow starts every category in the unrequested state.
func NewWorkflow(categories []domain.Category) *Workflow {
	cats := uniqueCategories(categories)
	w := &Workflow{
		categories: cats,
		slots:      make(map[domain.Category]*slot, len(cats)),
	}
	for _, c := range cats {
		w.slots[c] = &slot{}
	}
	return w
}

// Categories returns the session's category order.
func (w *Workflow) Categories() []domain.Category {
	return append([]domain.Category(nil), w.categories...)
}

// BeginIdeas marks the target categories pending and returns them.
// An empty category targets every unlocked category.
func (w *Workflow) BeginIdeas(category domain.Category) ([]domain.Category, error) {
	var targets []domain.Category

	if category == "" {
		locked := 0
		for _, c := range w.categories {
			switch w.slots[c].state {
			case StateLocked:
				locked++
			case StateUnrequested, StateAvailable:
				targets = append(targets, c)
			}
		}
		if len(w.categories) > 0 && locked == len(w.categories) {
			return nil, domain.NewValidationError("All ideas are locked. Unlock some ideas if you want to generate new ones.")
		}
		if len(targets) == 0 {
			return nil, domain.NewValidationError("Idea generation is already in progress.")
		}
	} else {
		s, ok := w.slots[category]
		if !ok {
			return nil, domain.NewValidationError("Unknown category %q.", category)
		}
		switch s.state {
		case StateLocked:
			return nil, domain.NewValidationError("%s is locked. Unlock it to generate a new idea.", category)
		case StatePending:
			return nil, domain.NewValidationError("An idea for %s is already being generated.", category)
		}
		targets = []domain.Category{category}
	}

	for _, c := range targets {
		s := w.slots[c]
		s.prevState, s.prevIdea = s.state, s.idea
		s.state = StatePending
	}
	return targets, nil
}

// CompleteIdeas moves pending targets to available. Targets without an idea
// in the result revert as if the request had failed.
func (w *Workflow) CompleteIdeas(targets []domain.Category, ideas map[domain.Category]string) {
	for _, c := range targets {
		s, ok := w.slots[c]
		if !ok || s.state != StatePending {
			continue
		}
		idea, found := ideas[c]
		if !found || idea == "" {
			s.state, s.idea = s.prevState, s.prevIdea
			continue
		}
		s.state, s.idea = StateAvailable, idea
	}
}

// FailIdeas restores pending targets to their state before BeginIdeas.
func (w *Workflow) FailIdeas(targets []domain.Category) {
	for _, c := range targets {
		if s, ok := w.slots[c]; ok && s.state == StatePending {
			s.state, s.idea = s.prevState, s.prevIdea
		}
	}
}

// SetLocked locks an available idea or unlocks a locked one.
func (w *Workflow) SetLocked(category domain.Category, locked bool) error {
	s, ok := w.slots[category]
	if !ok {
		return domain.NewValidationError("Unknown category %q.", category)
	}

	if locked {
		switch {
		case s.state == StateLocked:
			return nil
		case s.state != StateAvailable || s.idea == "":
			return domain.NewValidationError("%s has no idea to lock in.", category)
		}
		s.state = StateLocked
		return nil
	}

	switch s.state {
	case StateAvailable:
		return nil
	case StateLocked:
		s.state = StateAvailable
		return nil
	default:
		return domain.NewValidationError("%s is not locked.", category)
	}
}

// Eligible lists locked categories with their ideas in category order.
func (w *Workflow) Eligible() []domain.SelectedTopic {
	var out []domain.SelectedTopic
	for _, c := range w.categories {
		s := w.slots[c]
		if s.state == StateLocked && s.idea != "" {
			out = append(out, domain.SelectedTopic{Category: c, Topic: s.idea})
		}
	}
	return out
}

// SubmitPosts returns the eligible topics or rejects an empty selection.
func (w *Workflow) SubmitPosts() ([]domain.SelectedTopic, error) {
	topics := w.Eligible()
	if len(topics) == 0 {
		return nil, domain.NewValidationError("Please lock in at least one topic idea before generating posts.")
	}
	return topics, nil
}

// Reset clears every category's idea and lock.
func (w *Workflow) Reset() {
	for _, c := range w.categories {
		w.slots[c] = &slot{}
	}
}

// Snapshot copies the current state in category order.
func (w *Workflow) Snapshot() []CategoryView {
	out := make([]CategoryView, 0, len(w.categories))
	for _, c := range w.categories {
		s := w.slots[c]
		out = append(out, CategoryView{Category: c, State: s.state, Idea: s.idea})
	}
	return out
}

// State reports one category's state and idea.
func (w *Workflow) State(category domain.Category) (IdeaState, string, error) {
	s, ok := w.slots[category]
	if !ok {
		return StateUnrequested, "", fmt.Errorf("unknown category %q", category)
	}
	return s.state, s.idea, nil
}
