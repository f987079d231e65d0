// Package session provides the thread-safe store for narration sessions.
//
// Information Hiding:
// - Map storage structure hidden from users
// - All mutation serialized through a single lock
// - Callers only ever see copies of session state
package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const (
	recentStepWindow         = 5
	recentConversationWindow = 3
)

// Store owns the mapping of session ID to session state. Every operation
// runs inside one exclusive lock over the whole store; operations are short
// and call frequency is bounded by human-paced reasoning steps, so the
// coarse lock is not a contention concern at current scale.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	order    []string // creation order, scanned in reverse by ActiveSessionID
	logger   *slog.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*model.Session),
		logger:   logger,
	}
}

// CreateSession creates a new session for the given ID. If a session with
// this ID already exists it is returned unchanged unless reset is true, in
// which case it is replaced with a fresh one.
func (s *Store) CreateSession(id string, reset bool) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok && !reset {
		return copySession(existing)
	}

	sess := &model.Session{
		SessionID: id,
		IsActive:  true,
		StartedAt: time.Now(),
	}
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = sess
	s.logger.Info("session created", "session_id", id, "reset", reset)
	return copySession(sess)
}

// GetSession returns a copy of the session, if present.
func (s *Store) GetSession(id string) (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return copySession(sess), true
}

// GetOrCreate returns the existing session or creates a new one.
func (s *Store) GetOrCreate(id string) *model.Session {
	if sess, ok := s.GetSession(id); ok {
		return sess
	}
	return s.CreateSession(id, false)
}

// AppendStep appends a reasoning step and advances the session's current
// step. Unknown session IDs are logged and ignored so that narration
// plumbing never blocks the calling agent.
func (s *Store) AppendStep(id string, step model.ReasoningStep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Warn("session not found", "session_id", id, "op", "append_step")
		return
	}
	sess.Steps = append(sess.Steps, step)
	n := step.StepNumber
	sess.CurrentStep = &n
	s.logger.Info("step recorded",
		"session_id", id,
		"step", step.StepNumber,
		"thinking_type", step.ThinkingType,
		"description", truncate(step.Description, 50))
}

// AppendNarration stores a generated narration entry. Same not-found
// policy as AppendStep.
func (s *Store) AppendNarration(id string, entry model.NarrationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Warn("session not found", "session_id", id, "op", "append_narration")
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	sess.Narrations = append(sess.Narrations, entry)
}

// AppendConversation records a Q&A exchange, stamping it with the step
// that was current when the question was asked.
func (s *Store) AppendConversation(id, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Warn("session not found", "session_id", id, "op", "append_conversation")
		return
	}
	entry := model.ConversationEntry{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	}
	if sess.CurrentStep != nil {
		n := *sess.CurrentStep
		entry.AskedAtStep = &n
	}
	sess.Conversation = append(sess.Conversation, entry)
	s.logger.Info("conversation recorded",
		"session_id", id,
		"at_step", sess.CurrentStep,
		"question", truncate(question, 40))
}

// SetPaused sets the pause flag for a session.
func (s *Store) SetPaused(id string, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Warn("session not found", "session_id", id, "op", "set_paused")
		return
	}
	sess.IsPaused = paused
}

// EndSession marks a session inactive and returns a snapshot of it.
// Session data remains queryable afterwards; calling EndSession twice is
// harmless.
func (s *Store) EndSession(id string) (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.IsActive = false
	s.logger.Info("session ended", "session_id", id)
	return copySession(sess), true
}

// ActiveSessionID returns the most recently created session that is still
// active.
func (s *Store) ActiveSessionID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		if sess, ok := s.sessions[s.order[i]]; ok && sess.IsActive {
			return s.order[i], true
		}
	}
	return "", false
}

// Status returns a point-in-time snapshot of a session. Unknown IDs yield
// the zero status (Active=false).
func (s *Store) Status(id string) model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.SessionStatus{}
	}
	return model.SessionStatus{
		Active:          sess.IsActive,
		Paused:          sess.IsPaused,
		CurrentStep:     copyStepPtr(sess.CurrentStep),
		TotalSteps:      len(sess.Steps),
		TotalNarrations: len(sess.Narrations),
		DurationSeconds: time.Since(sess.StartedAt).Seconds(),
	}
}

// QuestionContext builds the bounded window used to answer listener
// questions: the last 5 steps, the last 3 conversation entries, and the
// deduplicated set of all files touched.
func (s *Store) QuestionContext(id string) model.QuestionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.QuestionContext{}
	}

	recent := sess.Steps
	if len(recent) > recentStepWindow {
		recent = recent[len(recent)-recentStepWindow:]
	}
	steps := make([]model.StepSummary, 0, len(recent))
	for _, st := range recent {
		steps = append(steps, summarizeStep(st))
	}

	convo := sess.Conversation
	if len(convo) > recentConversationWindow {
		convo = convo[len(convo)-recentConversationWindow:]
	}
	exchanges := make([]model.ConversationSummary, 0, len(convo))
	for _, c := range convo {
		exchanges = append(exchanges, model.ConversationSummary{
			Question: c.Question,
			Answer:   c.Answer,
			AtStep:   copyStepPtr(c.AskedAtStep),
		})
	}

	return model.QuestionContext{
		SessionID:       id,
		CurrentStep:     copyStepPtr(sess.CurrentStep),
		TotalSteps:      len(sess.Steps),
		RecentSteps:     steps,
		Conversation:    exchanges,
		FilesInvolved:   uniqueFiles(sess.Steps),
		DurationSeconds: time.Since(sess.StartedAt).Seconds(),
	}
}

// FullSessionData returns everything needed to build a session summary.
func (s *Store) FullSessionData(id string) (model.SessionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.SessionData{}, false
	}

	steps := make([]model.StepSummary, 0, len(sess.Steps))
	for _, st := range sess.Steps {
		steps = append(steps, summarizeStep(st))
	}
	narrations := make([]model.NarrationEntry, len(sess.Narrations))
	copy(narrations, sess.Narrations)

	return model.SessionData{
		SessionID:       id,
		CurrentStep:     copyStepPtr(sess.CurrentStep),
		TotalSteps:      len(sess.Steps),
		DurationSeconds: time.Since(sess.StartedAt).Seconds(),
		FilesInvolved:   uniqueFiles(sess.Steps),
		Steps:           steps,
		Narrations:      narrations,
	}, true
}

// Narrations returns stored narration entries, optionally limited to the
// last N. lastN <= 0 means all.
func (s *Store) Narrations(id string, lastN int) []model.NarrationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	entries := sess.Narrations
	if lastN > 0 && len(entries) > lastN {
		entries = entries[len(entries)-lastN:]
	}
	out := make([]model.NarrationEntry, len(entries))
	copy(out, entries)
	return out
}

// PreviousSteps returns all steps except the most recent one, in order.
// Used as context for narration generation of the latest step.
func (s *Store) PreviousSteps(id string) []model.ReasoningStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || len(sess.Steps) == 0 {
		return nil
	}
	prev := sess.Steps[:len(sess.Steps)-1]
	out := make([]model.ReasoningStep, len(prev))
	copy(out, prev)
	return out
}

// ConversationHistory returns the full Q&A history for a session.
func (s *Store) ConversationHistory(id string) []model.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]model.ConversationEntry, len(sess.Conversation))
	copy(out, sess.Conversation)
	return out
}

func summarizeStep(st model.ReasoningStep) model.StepSummary {
	files := make([]string, len(st.FilesInvolved))
	copy(files, st.FilesInvolved)
	return model.StepSummary{
		StepNumber:  st.StepNumber,
		Description: st.Description,
		Type:        st.ThinkingType,
		Files:       files,
	}
}

func uniqueFiles(steps []model.ReasoningStep) []string {
	seen := make(map[string]struct{})
	for _, st := range steps {
		for _, f := range st.FilesInvolved {
			seen[f] = struct{}{}
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func copySession(sess *model.Session) *model.Session {
	out := &model.Session{
		SessionID:   sess.SessionID,
		CurrentStep: copyStepPtr(sess.CurrentStep),
		IsPaused:    sess.IsPaused,
		IsActive:    sess.IsActive,
		StartedAt:   sess.StartedAt,
	}
	out.Steps = make([]model.ReasoningStep, len(sess.Steps))
	copy(out.Steps, sess.Steps)
	out.Narrations = make([]model.NarrationEntry, len(sess.Narrations))
	copy(out.Narrations, sess.Narrations)
	out.Conversation = make([]model.ConversationEntry, len(sess.Conversation))
	copy(out.Conversation, sess.Conversation)
	return out
}

func copyStepPtr(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
