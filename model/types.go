// Package model provides domain types shared across packages.
package model

import "time"

// ThinkingType categorizes a reasoning step.
type ThinkingType string

const (
	ThinkingPlanning     ThinkingType = "planning"
	ThinkingAnalyzing    ThinkingType = "analyzing"
	ThinkingImplementing ThinkingType = "implementing"
	ThinkingDebugging    ThinkingType = "debugging"
	ThinkingTesting      ThinkingType = "testing"
)

// NormalizeThinkingType coerces arbitrary input to a valid thinking type.
// Anything unrecognized becomes "analyzing".
func NormalizeThinkingType(s string) ThinkingType {
	switch ThinkingType(s) {
	case ThinkingPlanning, ThinkingAnalyzing, ThinkingImplementing, ThinkingDebugging, ThinkingTesting:
		return ThinkingType(s)
	default:
		return ThinkingAnalyzing
	}
}

// ReasoningStep represents a single step in an agent's reasoning process.
// Steps are immutable once created; FilesInvolved holds deduplicated paths.
type ReasoningStep struct {
	StepNumber        int          `json:"step_number"`
	Description       string       `json:"step_description"`
	ThinkingType      ThinkingType `json:"thinking_type"`
	EstimatedDuration float64      `json:"estimated_duration_seconds"`
	FilesInvolved     []string     `json:"files_involved"`
	Timestamp         time.Time    `json:"timestamp"`
}

// NarrationEntry is the spoken-text rendering of a reasoning step.
// StepNumber is a lookup reference only; it does not imply ownership.
type NarrationEntry struct {
	StepNumber   int          `json:"step_number"`
	Text         string       `json:"narration_text"`
	ThinkingType ThinkingType `json:"thinking_type"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ConversationEntry is a single Q&A exchange during a session.
// AskedAtStep is nil when no reasoning step was active at the time.
type ConversationEntry struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	AskedAtStep *int      `json:"asked_at_step"`
	Timestamp   time.Time `json:"timestamp"`
}

// Session holds the full state of one agent run: its reasoning steps,
// generated narrations, and conversation history. Sessions are owned by
// the session store; callers receive copies.
type Session struct {
	SessionID    string              `json:"session_id"`
	Steps        []ReasoningStep     `json:"reasoning_steps"`
	Narrations   []NarrationEntry    `json:"narration_texts"`
	Conversation []ConversationEntry `json:"conversation_history"`
	CurrentStep  *int                `json:"current_step"`
	IsPaused     bool                `json:"is_paused"`
	IsActive     bool                `json:"is_active"`
	StartedAt    time.Time           `json:"started_at"`
}

// SessionStatus is a point-in-time snapshot of a session.
type SessionStatus struct {
	Active          bool    `json:"active"`
	Paused          bool    `json:"paused"`
	CurrentStep     *int    `json:"current_step"`
	TotalSteps      int     `json:"total_steps"`
	TotalNarrations int     `json:"total_narrations"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// StepSummary is a compact view of a reasoning step used in bounded
// context windows and session summaries.
type StepSummary struct {
	StepNumber  int          `json:"step_number"`
	Description string       `json:"description"`
	Type        ThinkingType `json:"type"`
	Files       []string     `json:"files"`
}

// ConversationSummary is a compact view of a Q&A exchange.
type ConversationSummary struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	AtStep   *int   `json:"at_step"`
}

// QuestionContext is the bounded window of session state used to answer
// a listener question without scanning the full history. Extra carries
// caller-supplied context merged in at question time.
type QuestionContext struct {
	SessionID       string                `json:"session_id"`
	CurrentStep     *int                  `json:"current_step"`
	TotalSteps      int                   `json:"total_steps"`
	RecentSteps     []StepSummary         `json:"recent_steps"`
	Conversation    []ConversationSummary `json:"conversation_history"`
	FilesInvolved   []string              `json:"files_involved"`
	DurationSeconds float64               `json:"session_duration_seconds"`
	Extra           map[string]any        `json:"current_context,omitempty"`
}

// SessionData is the full dump of a session used for summary generation.
type SessionData struct {
	SessionID       string           `json:"session_id"`
	CurrentStep     *int             `json:"current_step"`
	TotalSteps      int              `json:"total_steps"`
	DurationSeconds float64          `json:"duration_seconds"`
	FilesInvolved   []string         `json:"files_involved"`
	Steps           []StepSummary    `json:"steps"`
	Narrations      []NarrationEntry `json:"narrations"`
}
