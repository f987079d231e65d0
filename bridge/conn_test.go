package bridge

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendFailsWithoutServer(t *testing.T) {
	conn := NewConn("ws://127.0.0.1:1/ws", nil, WithTimeouts(200*time.Millisecond, 200*time.Millisecond))

	env := model.NewEnvelope(model.EnvelopeNarration, "s1", nil)
	if conn.Send(env) {
		t.Error("Send should report non-delivery when nothing is listening")
	}
	if conn.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", conn.State())
	}
}

func TestSendConnectsAndDelivers(t *testing.T) {
	endpoint := NewEndpoint(nil)
	received := make(chan model.Envelope, 4)
	endpoint.OnEnvelope = func(env model.Envelope) { received <- env }

	srv := httptest.NewServer(endpoint)
	defer srv.Close()

	conn := NewConn(wsURL(srv), nil)
	defer conn.Close()

	entry := model.NarrationEntry{StepNumber: 3, Text: "building the parser", ThinkingType: model.ThinkingImplementing}
	if !conn.Send(model.NarrationEnvelope("s1", entry, "parser work")) {
		t.Fatal("Send should succeed with a live endpoint")
	}
	if conn.State() != StateConnected {
		t.Errorf("state = %s, want connected", conn.State())
	}

	select {
	case env := <-received:
		if env.Type != model.EnvelopeNarration {
			t.Errorf("received type = %s, want narration", env.Type)
		}
		if env.SessionID != "s1" {
			t.Errorf("session_id = %q, want s1", env.SessionID)
		}
		if text, _ := env.Payload["narration_text"].(string); text != "building the parser" {
			t.Errorf("narration_text = %q", text)
		}
		// JSON round-trips numbers as float64.
		if n, _ := env.Payload["step_number"].(float64); int(n) != 3 {
			t.Errorf("step_number = %v, want 3", env.Payload["step_number"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("endpoint never received the envelope")
	}
}

func TestOrderPreservedPerConnection(t *testing.T) {
	endpoint := NewEndpoint(nil)
	received := make(chan model.Envelope, 8)
	endpoint.OnEnvelope = func(env model.Envelope) { received <- env }

	srv := httptest.NewServer(endpoint)
	defer srv.Close()

	conn := NewConn(wsURL(srv), nil)
	defer conn.Close()

	for i := 1; i <= 5; i++ {
		entry := model.NarrationEntry{StepNumber: i, Text: "t"}
		if !conn.Send(model.RewindEnvelope("s1", entry)) {
			t.Fatalf("send %d failed", i)
		}
	}

	for i := 1; i <= 5; i++ {
		select {
		case env := <-received:
			if n, _ := env.Payload["step_number"].(float64); int(n) != i {
				t.Fatalf("message %d arrived with step_number %v", i, env.Payload["step_number"])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d never arrived", i)
		}
	}
}

func TestQuestionsRoutedBack(t *testing.T) {
	endpoint := NewEndpoint(nil)
	srv := httptest.NewServer(endpoint)
	defer srv.Close()

	conn := NewConn(wsURL(srv), nil)
	defer conn.Close()

	// Establish the connection from the producer side first.
	if !conn.Send(model.NewEnvelope(model.EnvelopeStatus, "s1", nil)) {
		t.Fatal("initial send failed")
	}

	deadline := time.After(2 * time.Second)
	for !endpoint.Connected() {
		select {
		case <-deadline:
			t.Fatal("endpoint never saw the peer")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !endpoint.Send(model.QuestionEnvelope("s1", "what are you doing?")) {
		t.Fatal("endpoint send failed")
	}

	select {
	case q := <-conn.Questions():
		if q != "what are you doing?" {
			t.Errorf("question = %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("question never reached the producer side")
	}

	if _, ok := conn.PollQuestion(); ok {
		t.Error("question buffer should be empty after consumption")
	}
}

func TestReconnectAfterEndpointRestart(t *testing.T) {
	endpoint := NewEndpoint(nil)
	srv := httptest.NewServer(endpoint)
	defer srv.Close()

	conn := NewConn(wsURL(srv), nil)
	defer conn.Close()

	if !conn.Send(model.NewEnvelope(model.EnvelopeStatus, "s1", nil)) {
		t.Fatal("first send failed")
	}

	// Drop the peer server-side; the next producer send makes its single
	// reconnect attempt and succeeds against the still-running server.
	endpoint.Close()
	time.Sleep(50 * time.Millisecond)

	delivered := false
	for i := 0; i < 3 && !delivered; i++ {
		delivered = conn.Send(model.NewEnvelope(model.EnvelopeStatus, "s1", nil))
		time.Sleep(20 * time.Millisecond)
	}
	if !delivered {
		t.Error("send never recovered after endpoint restart")
	}
}
