package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const defaultResumeDelay = 2 * time.Second

// Speaker is the speech-side assembly: it hosts the channel endpoint,
// feeds inbound narration into the delivery queue, and routes detected
// listener questions back to the reasoning side.
//
// Question flow: pause narration, forward the question envelope, then
// resume unconditionally after a fixed delay. Resumption is time-based,
// not acknowledgment-based - an answer that arrives later is still spoken
// even though narration has already resumed.
type Speaker struct {
	Endpoint *Endpoint
	Queue    *DeliveryQueue

	resumeDelay time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	resumeTimer *time.Timer
}

// NewSpeaker wires an endpoint and delivery queue together. resumeDelay
// <= 0 selects the default.
func NewSpeaker(resumeDelay, pollInterval time.Duration, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	if resumeDelay <= 0 {
		resumeDelay = defaultResumeDelay
	}
	s := &Speaker{
		Endpoint:    NewEndpoint(logger),
		Queue:       NewDeliveryQueue(pollInterval, logger),
		resumeDelay: resumeDelay,
		logger:      logger,
	}
	s.Endpoint.OnEnvelope = s.handleEnvelope
	return s
}

// HandleQuestion routes a spoken listener question to the reasoning side.
func (s *Speaker) HandleQuestion(sessionID, question string) bool {
	if question == "" {
		return false
	}
	s.Queue.Pause()
	sent := s.Endpoint.Send(model.QuestionEnvelope(sessionID, question))
	s.scheduleResume()
	return sent
}

// handleEnvelope dispatches inbound control and narration envelopes.
func (s *Speaker) handleEnvelope(env model.Envelope) {
	switch env.Type {
	case model.EnvelopeNarration, model.EnvelopeRewind:
		text, _ := env.Payload["narration_text"].(string)
		s.Queue.Inject(text)
	case model.EnvelopeAnswer:
		// A late answer is still spoken: delivery resumes immediately
		// so the answer is not discarded by the question pause.
		answer, _ := env.Payload["answer"].(string)
		if answer != "" {
			s.resumeNow()
			s.Queue.Inject(answer)
		}
	case model.EnvelopePause:
		s.Queue.Pause()
	case model.EnvelopeResume:
		s.Queue.Resume()
	case model.EnvelopeSessionEnd:
		s.Queue.Resume()
	}
}

func (s *Speaker) resumeNow() {
	s.mu.Lock()
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
	s.mu.Unlock()
	s.Queue.Resume()
}

func (s *Speaker) scheduleResume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
	}
	s.resumeTimer = time.AfterFunc(s.resumeDelay, func() {
		s.Queue.Resume()
		s.logger.Info("narration resumed after question window")
	})
}
