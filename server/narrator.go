// Package server exposes the narration orchestrator and its HTTP tool
// surface.
//
// The Narrator ties the pieces together: reasoning steps come in, are
// recorded in the session store, rendered to speech text, and pushed over
// the bridge. Bridge delivery is advisory; every operation commits session
// state first and reports delivery as a status flag, never as an error.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Karthik-Ragunath/lock-in/model"
	"github.com/Karthik-Ragunath/lock-in/narrate"
	"github.com/Karthik-Ragunath/lock-in/session"
	"github.com/Karthik-Ragunath/lock-in/storage"
)

const (
	minRewindSteps = 1
	maxRewindSteps = 10
)

// Sender is the outbound half of the bridge as the orchestrator sees it.
// bridge.Conn satisfies it; tests substitute a recorder.
type Sender interface {
	Send(env model.Envelope) bool
	PollQuestion() (string, bool)
}

// Narrator orchestrates one narration pipeline: session store, narration
// generator, bridge sender, and optional transcript archive.
type Narrator struct {
	store   *session.Store
	gen     *narrate.Generator
	sender  Sender
	archive *storage.Archive
	logger  *slog.Logger
}

// NewNarrator wires the orchestrator. sender may be nil (narration stays
// local); archive may be nil (ended sessions are not persisted).
func NewNarrator(store *session.Store, gen *narrate.Generator, sender Sender, archive *storage.Archive, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{
		store:   store,
		gen:     gen,
		sender:  sender,
		archive: archive,
		logger:  logger,
	}
}

// StepRequest carries one reasoning step from the agent.
type StepRequest struct {
	SessionID         string   `json:"session_id"`
	StepNumber        int      `json:"step_number"`
	Description       string   `json:"step_description"`
	ThinkingType      string   `json:"thinking_type"`
	EstimatedDuration float64  `json:"estimated_duration_seconds"`
	FilesInvolved     []string `json:"files_involved"`
}

// StepResult reports the outcome of streaming one step. Status is
// "narrated" when the speech side received the envelope and
// "narrated_locally" when delivery failed but state was committed.
// UserQuestion surfaces a pending listener question, if any.
type StepResult struct {
	Status       string `json:"status"`
	SessionID    string `json:"session_id"`
	StepNumber   int    `json:"step_number"`
	Narration    string `json:"narration"`
	UserQuestion string `json:"user_question,omitempty"`
}

// StreamStep records a reasoning step, generates its narration, and pushes
// it over the bridge. A missing session ID binds to the active session,
// creating a fresh one when none exists.
func (n *Narrator) StreamStep(ctx context.Context, req StepRequest) StepResult {
	sessionID := n.resolveSession(req.SessionID)
	n.store.GetOrCreate(sessionID)

	step := model.ReasoningStep{
		StepNumber:        req.StepNumber,
		Description:       req.Description,
		ThinkingType:      model.NormalizeThinkingType(req.ThinkingType),
		EstimatedDuration: req.EstimatedDuration,
		FilesInvolved:     req.FilesInvolved,
		Timestamp:         time.Now(),
	}

	n.store.AppendStep(sessionID, step)
	previous := n.store.PreviousSteps(sessionID)

	text := n.gen.Generate(ctx, step, previous)
	entry := model.NarrationEntry{
		StepNumber:   step.StepNumber,
		Text:         text,
		ThinkingType: step.ThinkingType,
		Timestamp:    time.Now(),
	}
	n.store.AppendNarration(sessionID, entry)

	result := StepResult{
		Status:     "narrated_locally",
		SessionID:  sessionID,
		StepNumber: step.StepNumber,
		Narration:  text,
	}
	if n.sender != nil {
		if n.sender.Send(model.NarrationEnvelope(sessionID, entry, step.Description)) {
			result.Status = "narrated"
		}
		if q, ok := n.sender.PollQuestion(); ok {
			result.UserQuestion = q
		}
	}
	return result
}

// AnswerResult reports a generated answer and whether the speech side was
// notified.
type AnswerResult struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Delivered bool   `json:"delivered"`
}

// AnswerQuestion answers a listener question from bounded session context,
// records the exchange, and pushes the answer envelope. extra is optional
// caller-supplied context merged into the question context before
// answering. Always returns non-empty answer text.
func (n *Narrator) AnswerQuestion(ctx context.Context, sessionID, question string, extra map[string]any) AnswerResult {
	sessionID = n.resolveSession(sessionID)
	n.store.GetOrCreate(sessionID)

	qctx := n.store.QuestionContext(sessionID)
	qctx.Extra = extra
	answer := n.gen.AnswerQuestion(ctx, question, qctx)
	n.store.AppendConversation(sessionID, question, answer)

	delivered := false
	if n.sender != nil {
		delivered = n.sender.Send(model.AnswerEnvelope(sessionID, question, answer))
	}
	return AnswerResult{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Delivered: delivered,
	}
}

// ControlResult reports a pause/resume/end outcome.
type ControlResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Notified  bool   `json:"speech_side_notified"`
}

// Pause suspends narration for the session and notifies the speech side.
func (n *Narrator) Pause(sessionID string) ControlResult {
	sessionID = n.resolveSession(sessionID)
	n.store.SetPaused(sessionID, true)

	notified := false
	if n.sender != nil {
		notified = n.sender.Send(model.NewEnvelope(model.EnvelopePause, sessionID, nil))
	}
	n.logger.Info("narration paused", "session_id", sessionID, "notified", notified)
	return ControlResult{SessionID: sessionID, Status: "paused", Notified: notified}
}

// Resume reactivates narration for the session and notifies the speech side.
func (n *Narrator) Resume(sessionID string) ControlResult {
	sessionID = n.resolveSession(sessionID)
	n.store.SetPaused(sessionID, false)

	notified := false
	if n.sender != nil {
		notified = n.sender.Send(model.NewEnvelope(model.EnvelopeResume, sessionID, nil))
	}
	n.logger.Info("narration resumed", "session_id", sessionID, "notified", notified)
	return ControlResult{SessionID: sessionID, Status: "resumed", Notified: notified}
}

// RewindEntry is one replayed narration with its delivery flag.
type RewindEntry struct {
	StepNumber int    `json:"step_number"`
	Text       string `json:"narration_text"`
	Sent       bool   `json:"sent"`
}

// RewindResult reports a narration replay.
type RewindResult struct {
	SessionID    string        `json:"session_id"`
	StepsRewound int           `json:"steps_rewound"`
	Entries      []RewindEntry `json:"entries"`
}

// RewindNarration re-sends the last stepsBack stored narrations as rewind
// envelopes. stepsBack is clamped to [1, 10]. Stored history is untouched;
// a replay never mutates session state.
func (n *Narrator) RewindNarration(sessionID string, stepsBack int) RewindResult {
	sessionID = n.resolveSession(sessionID)
	if stepsBack < minRewindSteps {
		stepsBack = minRewindSteps
	}
	if stepsBack > maxRewindSteps {
		stepsBack = maxRewindSteps
	}

	entries := n.store.Narrations(sessionID, stepsBack)
	result := RewindResult{SessionID: sessionID, StepsRewound: len(entries)}
	for _, entry := range entries {
		sent := false
		if n.sender != nil {
			sent = n.sender.Send(model.RewindEnvelope(sessionID, entry))
		}
		result.Entries = append(result.Entries, RewindEntry{
			StepNumber: entry.StepNumber,
			Text:       entry.Text,
			Sent:       sent,
		})
	}
	n.logger.Info("narration rewound", "session_id", sessionID, "steps", len(entries))
	return result
}

// SummaryResult carries the spoken session summary.
type SummaryResult struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

// Summary builds a spoken summary of the session so far.
func (n *Narrator) Summary(sessionID string) SummaryResult {
	sessionID = n.resolveSession(sessionID)
	data, ok := n.store.FullSessionData(sessionID)
	if !ok {
		return SummaryResult{SessionID: sessionID, Summary: "No session data available yet."}
	}
	return SummaryResult{SessionID: sessionID, Summary: narrate.BuildSummary(data)}
}

// History returns the full Q&A history for the session.
func (n *Narrator) History(sessionID string) []model.ConversationEntry {
	sessionID = n.resolveSession(sessionID)
	entries := n.store.ConversationHistory(sessionID)
	if entries == nil {
		entries = []model.ConversationEntry{}
	}
	return entries
}

// Status returns the point-in-time session snapshot.
func (n *Narrator) Status(sessionID string) model.SessionStatus {
	return n.store.Status(n.resolveSession(sessionID))
}

// EndSession marks the session inactive, archives its transcript when an
// archive is configured, and notifies the speech side. Ending an unknown
// or already-ended session is harmless.
func (n *Narrator) EndSession(ctx context.Context, sessionID string) ControlResult {
	sessionID = n.resolveSession(sessionID)
	snapshot, ok := n.store.EndSession(sessionID)
	if !ok {
		return ControlResult{SessionID: sessionID, Status: "not_found"}
	}

	if n.archive != nil {
		if err := n.archive.ArchiveSession(ctx, snapshot); err != nil {
			n.logger.Error("transcript archive failed", "session_id", sessionID, "error", err)
		}
	}

	notified := false
	if n.sender != nil {
		notified = n.sender.Send(model.NewEnvelope(model.EnvelopeSessionEnd, sessionID, map[string]any{
			"total_steps": len(snapshot.Steps),
		}))
	}
	return ControlResult{SessionID: sessionID, Status: "ended", Notified: notified}
}

// resolveSession maps an empty session ID to the active session, minting a
// fresh UUID when nothing is active yet.
func (n *Narrator) resolveSession(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	if active, ok := n.store.ActiveSessionID(); ok {
		return active
	}
	return uuid.New().String()
}
