package runtime

import (
	"sort"
	"sync"
	"time"

	"formbuilder/internal/form"
)

// Session is one user filling in one template.
type Session struct {
	ID         string
	TemplateID string
	StartedAt  time.Time

	mu        sync.Mutex
	answers   form.Answers
	submitted bool
	pending   map[string]struct{}
	lastSeen  time.Time
}

func newSession(id, templateID string, now time.Time) *Session {
	return &Session{
		ID:         id,
		TemplateID: templateID,
		StartedAt:  now,
		answers:    form.Answers{},
		pending:    map[string]struct{}{},
		lastSeen:   now,
	}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string       `json:"id"`
	TemplateID string       `json:"templateId"`
	Answers    form.Answers `json:"answers"`
	Submitted  bool         `json:"submitted"`
	Uploading  []string     `json:"uploading"`
	StartedAt  time.Time    `json:"startedAt"`
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	uploading := make([]string, 0, len(s.pending))
	for id := range s.pending {
		uploading = append(uploading, id)
	}
	sort.Strings(uploading)
	return Snapshot{
		ID:         s.ID,
		TemplateID: s.TemplateID,
		Answers:    s.answers.Clone(),
		Submitted:  s.submitted,
		Uploading:  uploading,
		StartedAt:  s.StartedAt,
	}
}

// set stores v as the answer of fieldID. The zero Value removes the answer.
func (s *Session) set(fieldID string, v form.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.IsZero() {
		delete(s.answers, fieldID)
		return
	}
	s.answers[fieldID] = v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

// idleSince reports whether the session has not been used after cutoff and has no upload
// pending.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0 && s.lastSeen.Before(cutoff)
}

// begin marks fieldID as uploading. It reports false if an upload is already pending.
func (s *Session) begin(fieldID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[fieldID]; busy {
		return false
	}
	s.pending[fieldID] = struct{}{}
	return true
}

func (s *Session) settle(fieldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, fieldID)
}
