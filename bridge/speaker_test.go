package bridge

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

func TestSpeakerQueuesNarrationEnvelopes(t *testing.T) {
	s := NewSpeaker(time.Hour, 10*time.Millisecond, nil)

	entry := model.NarrationEntry{StepNumber: 1, Text: "working on it"}
	s.handleEnvelope(model.NarrationEnvelope("s1", entry, "desc"))
	if s.Queue.Pending() != 1 {
		t.Errorf("pending = %d, want 1", s.Queue.Pending())
	}

	s.handleEnvelope(model.RewindEnvelope("s1", entry))
	if s.Queue.Pending() != 2 {
		t.Errorf("pending = %d, want 2 after rewind envelope", s.Queue.Pending())
	}
}

func TestSpeakerPauseAndResumeEnvelopes(t *testing.T) {
	s := NewSpeaker(time.Hour, 10*time.Millisecond, nil)

	s.handleEnvelope(model.NewEnvelope(model.EnvelopePause, "s1", nil))
	if !s.Queue.Paused() {
		t.Error("pause envelope should pause the queue")
	}

	entry := model.NarrationEntry{StepNumber: 1, Text: "silenced"}
	s.handleEnvelope(model.NarrationEnvelope("s1", entry, ""))
	if s.Queue.Pending() != 0 {
		t.Error("narration while paused must be discarded, not queued")
	}

	s.handleEnvelope(model.NewEnvelope(model.EnvelopeResume, "s1", nil))
	if s.Queue.Paused() {
		t.Error("resume envelope should unpause the queue")
	}
}

func TestHandleQuestionPausesAndSchedulesResume(t *testing.T) {
	s := NewSpeaker(50*time.Millisecond, 10*time.Millisecond, nil)

	// No peer connected: question forwarding reports non-delivery but the
	// pause/resume cycle still runs locally.
	if s.HandleQuestion("s1", "what is this?") {
		t.Error("question delivery should fail with no peer")
	}
	if !s.Queue.Paused() {
		t.Fatal("question should pause narration")
	}

	deadline := time.After(2 * time.Second)
	for s.Queue.Paused() {
		select {
		case <-deadline:
			t.Fatal("narration never resumed after the question window")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAnswerEnvelopeResumesAndSpeaks(t *testing.T) {
	s := NewSpeaker(time.Hour, 10*time.Millisecond, nil)

	s.HandleQuestion("s1", "why?")
	if !s.Queue.Paused() {
		t.Fatal("queue should be paused while the question is in flight")
	}

	s.handleEnvelope(model.AnswerEnvelope("s1", "why?", "because the tests said so"))
	if s.Queue.Paused() {
		t.Error("answer arrival should resume delivery")
	}
	if s.Queue.Pending() != 1 {
		t.Errorf("pending = %d, want the answer queued for speech", s.Queue.Pending())
	}
}

func TestSpeakerEndToEndQuestionRoundTrip(t *testing.T) {
	s := NewSpeaker(50*time.Millisecond, 10*time.Millisecond, nil)
	srv := httptest.NewServer(s.Endpoint)
	defer srv.Close()

	conn := NewConn(wsURL(srv), nil)
	defer conn.Close()

	entry := model.NarrationEntry{StepNumber: 1, Text: "first narration"}
	if !conn.Send(model.NarrationEnvelope("s1", entry, "")) {
		t.Fatal("narration send failed")
	}

	deadline := time.After(2 * time.Second)
	for s.Queue.Pending() == 0 {
		select {
		case <-deadline:
			t.Fatal("narration never reached the speech-side queue")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !s.HandleQuestion("s1", "which file?") {
		t.Fatal("question forwarding failed with live peer")
	}

	select {
	case q := <-conn.Questions():
		if q != "which file?" {
			t.Errorf("question = %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("question never arrived on the producer side")
	}
}
