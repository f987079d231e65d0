package config

import (
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TEMPERATURE",
		"VOICE_WS_URL", "BRIDGE_DIAL_TIMEOUT_MS", "BRIDGE_SEND_TIMEOUT_MS",
		"QUESTION_RESUME_DELAY_MS", "DELIVERY_POLL_MS",
		"NARRATION_MAX_LENGTH", "PORT", "SERVER_PORT", "ARCHIVE_DB_PATH",
	} {
		t.Setenv(key, "")
	}

	s, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if s.LLM.Provider != "" {
		t.Errorf("LLM.Provider = %q, want empty (disabled)", s.LLM.Provider)
	}
	if s.LLM.MaxTokens != 100 {
		t.Errorf("LLM.MaxTokens = %d, want 100", s.LLM.MaxTokens)
	}
	if s.LLM.Temperature != 0.8 {
		t.Errorf("LLM.Temperature = %v, want 0.8", s.LLM.Temperature)
	}
	if s.Bridge.VoiceWSURL != "ws://localhost:8766/ws" {
		t.Errorf("Bridge.VoiceWSURL = %q", s.Bridge.VoiceWSURL)
	}
	if s.Bridge.QuestionResumeDelay != 2*time.Second {
		t.Errorf("Bridge.QuestionResumeDelay = %v, want 2s", s.Bridge.QuestionResumeDelay)
	}
	if s.Bridge.DeliveryPoll != 500*time.Millisecond {
		t.Errorf("Bridge.DeliveryPoll = %v, want 500ms", s.Bridge.DeliveryPoll)
	}
	if s.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", s.Server.Port)
	}
	if s.Narration.MaxLength != 250 {
		t.Errorf("Narration.MaxLength = %d, want 250", s.Narration.MaxLength)
	}
	if s.Archive.Path != "" {
		t.Errorf("Archive.Path = %q, want empty (disabled)", s.Archive.Path)
	}
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_MODEL", "claude-3-5-haiku-latest")
	t.Setenv("LLM_MAX_TOKENS", "256")
	t.Setenv("VOICE_WS_URL", "ws://voice.internal:9000/ws")
	t.Setenv("QUESTION_RESUME_DELAY_MS", "750")
	t.Setenv("NARRATION_MAX_LENGTH", "180")
	t.Setenv("ARCHIVE_DB_PATH", "/tmp/transcripts.db")

	s, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if s.LLM.Provider != "anthropic" || s.LLM.Model != "claude-3-5-haiku-latest" {
		t.Errorf("LLM = %+v", s.LLM)
	}
	if s.LLM.MaxTokens != 256 {
		t.Errorf("LLM.MaxTokens = %d, want 256", s.LLM.MaxTokens)
	}
	if s.Bridge.VoiceWSURL != "ws://voice.internal:9000/ws" {
		t.Errorf("Bridge.VoiceWSURL = %q", s.Bridge.VoiceWSURL)
	}
	if s.Bridge.QuestionResumeDelay != 750*time.Millisecond {
		t.Errorf("Bridge.QuestionResumeDelay = %v", s.Bridge.QuestionResumeDelay)
	}
	if s.Narration.MaxLength != 180 {
		t.Errorf("Narration.MaxLength = %d", s.Narration.MaxLength)
	}
	if s.Archive.Path != "/tmp/transcripts.db" {
		t.Errorf("Archive.Path = %q", s.Archive.Path)
	}
}

func TestPortPrecedence(t *testing.T) {
	t.Setenv("SERVER_PORT", "8100")
	t.Setenv("PORT", "9100")

	s, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want PORT to win over SERVER_PORT", s.Server.Port)
	}

	t.Setenv("PORT", "")
	s, err = New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, want SERVER_PORT fallback", s.Server.Port)
	}
}

func TestNewRejectsBadValues(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "lots")

	_, err := New()
	if err == nil {
		t.Fatal("expected error for non-numeric LLM_MAX_TOKENS")
	}
	if !strings.Contains(err.Error(), "LLM_MAX_TOKENS") {
		t.Errorf("error should name the offending variable, got: %v", err)
	}
}

func TestNewRejectsBadTemperature(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "warm")

	if _, err := New(); err == nil {
		t.Fatal("expected error for non-numeric LLM_TEMPERATURE")
	}
}
