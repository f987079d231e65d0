package model

import "time"

// EnvelopeType identifies the kind of message carried over the bridge.
type EnvelopeType string

const (
	EnvelopeNarration    EnvelopeType = "narration"
	EnvelopeQuestion     EnvelopeType = "question"
	EnvelopeAnswer       EnvelopeType = "answer"
	EnvelopeStatus       EnvelopeType = "status"
	EnvelopePause        EnvelopeType = "pause"
	EnvelopeResume       EnvelopeType = "resume"
	EnvelopeRewind       EnvelopeType = "rewind"
	EnvelopeSessionStart EnvelopeType = "session_start"
	EnvelopeSessionEnd   EnvelopeType = "session_end"
	EnvelopeError        EnvelopeType = "error"
)

// Envelope is the wire format for messages between the reasoning side and
// the speech side. Payload shape depends on Type: narration envelopes carry
// narration_text/step_number/thinking_type/description, question envelopes
// carry question, answer envelopes carry question/answer, rewind envelopes
// carry narration_text/step_number per replayed item.
type Envelope struct {
	Type      EnvelopeType   `json:"type"`
	Payload   map[string]any `json:"payload"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEnvelope creates an envelope stamped with the current time.
func NewEnvelope(t EnvelopeType, sessionID string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		Type:      t,
		Payload:   payload,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// NarrationEnvelope builds the envelope announcing a freshly generated narration.
func NarrationEnvelope(sessionID string, entry NarrationEntry, description string) Envelope {
	return NewEnvelope(EnvelopeNarration, sessionID, map[string]any{
		"narration_text": entry.Text,
		"step_number":    entry.StepNumber,
		"thinking_type":  string(entry.ThinkingType),
		"description":    description,
	})
}

// RewindEnvelope builds the envelope for one replayed narration entry.
func RewindEnvelope(sessionID string, entry NarrationEntry) Envelope {
	return NewEnvelope(EnvelopeRewind, sessionID, map[string]any{
		"narration_text": entry.Text,
		"step_number":    entry.StepNumber,
	})
}

// QuestionEnvelope builds the envelope carrying a spoken listener question.
func QuestionEnvelope(sessionID, question string) Envelope {
	return NewEnvelope(EnvelopeQuestion, sessionID, map[string]any{
		"question": question,
	})
}

// AnswerEnvelope builds the envelope carrying the answer to a question.
func AnswerEnvelope(sessionID, question, answer string) Envelope {
	return NewEnvelope(EnvelopeAnswer, sessionID, map[string]any{
		"question": question,
		"answer":   answer,
	})
}
