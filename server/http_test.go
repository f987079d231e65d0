package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeSender) {
	t.Helper()
	sender := &fakeSender{ok: true}
	srv := httptest.NewServer(New(newTestNarrator(sender)).Routes())
	t.Cleanup(srv.Close)
	return srv, sender
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]string
	getJSON(t, srv.URL+"/health", &out)
	if out["status"] != "ok" {
		t.Errorf("health = %v", out)
	}
}

func TestStreamStepEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var result StepResult
	postJSON(t, srv.URL+"/stream_step", StepRequest{
		SessionID:    "s1",
		StepNumber:   1,
		Description:  "reading the config loader",
		ThinkingType: "analyzing",
	}, &result)

	if result.Status != "narrated" {
		t.Errorf("status = %q", result.Status)
	}
	if result.Narration == "" {
		t.Error("narration missing from response")
	}

	var status map[string]any
	getJSON(t, srv.URL+"/status?session_id=s1", &status)
	if n, _ := status["total_steps"].(float64); int(n) != 1 {
		t.Errorf("total_steps = %v", status["total_steps"])
	}
}

func TestStreamStepRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/stream_step", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnswerQuestionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: 1, Description: "building"}, nil)

	var result AnswerResult
	postJSON(t, srv.URL+"/answer_question", map[string]string{
		"session_id": "s1",
		"question":   "why?",
	}, &result)
	if result.Answer == "" {
		t.Error("answer missing from response")
	}

	var history []map[string]any
	getJSON(t, srv.URL+"/history?session_id=s1", &history)
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestAnswerQuestionCarriesCurrentContext(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: 1, Description: "building"}, nil)

	var result AnswerResult
	postJSON(t, srv.URL+"/answer_question", map[string]any{
		"session_id":      "s1",
		"question":        "what now?",
		"current_context": map[string]any{"current_task": "tuning the scheduler"},
	}, &result)
	if !bytes.Contains([]byte(result.Answer), []byte("tuning the scheduler")) {
		t.Errorf("answer %q should carry the request's current_context", result.Answer)
	}
}

func TestAnswerQuestionRequiresQuestion(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/answer_question", map[string]string{"session_id": "s1"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing question", resp.StatusCode)
	}
}

func TestPauseResumeEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: 1, Description: "x"}, nil)

	var pause ControlResult
	postJSON(t, srv.URL+"/pause", map[string]string{"session_id": "s1"}, &pause)
	if pause.Status != "paused" {
		t.Errorf("pause = %+v", pause)
	}

	var status map[string]any
	getJSON(t, srv.URL+"/status?session_id=s1", &status)
	if paused, _ := status["paused"].(bool); !paused {
		t.Error("session should be paused")
	}

	var resume ControlResult
	postJSON(t, srv.URL+"/resume", map[string]string{"session_id": "s1"}, &resume)
	if resume.Status != "resumed" {
		t.Errorf("resume = %+v", resume)
	}
}

func TestBodylessControlRequestsAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: 1, Description: "x"}, nil)

	for _, path := range []string{"/pause", "/resume", "/end_session"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("POST %s with no body: status %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRewindEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := 1; i <= 4; i++ {
		postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: i, Description: "x"}, nil)
	}

	var result RewindResult
	postJSON(t, srv.URL+"/rewind", map[string]any{"session_id": "s1", "steps_back": 2}, &result)
	if result.StepsRewound != 2 {
		t.Errorf("steps_rewound = %d, want 2", result.StepsRewound)
	}
}

func TestEndSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/stream_step", StepRequest{SessionID: "s1", StepNumber: 1, Description: "x"}, nil)

	var result ControlResult
	postJSON(t, srv.URL+"/end_session", map[string]string{"session_id": "s1"}, &result)
	if result.Status != "ended" {
		t.Errorf("end = %+v", result)
	}

	var summary SummaryResult
	getJSON(t, srv.URL+"/summary?session_id=s1", &summary)
	if summary.Summary == "" {
		t.Error("summary should still be available after session end")
	}
}
