// Package bridge implements the duplex channel between the reasoning side
// and the speech side.
//
// The channel carries typed envelopes over a websocket. Delivery is
// best-effort: a send against a dead connection makes a single reconnect
// attempt and then degrades to a local no-op reporting non-delivery.
// Session state is always committed by the caller before a send, so a
// failed delivery never needs a rollback.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Karthik-Ragunath/lock-in/model"
)

// ConnState describes the connection lifecycle.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

const (
	defaultDialTimeout = 3 * time.Second
	defaultSendTimeout = 2 * time.Second
	questionBufferSize = 16
)

// Conn is the producer side of the channel: it dials the speech side and
// pushes envelopes to it, while listening for question envelopes coming
// back.
type Conn struct {
	url         string
	dialTimeout time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	ws    *websocket.Conn
	state ConnState

	questions chan string
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithTimeouts overrides the dial and send deadlines.
func WithTimeouts(dial, send time.Duration) ConnOption {
	return func(c *Conn) {
		c.dialTimeout = dial
		c.sendTimeout = send
	}
}

// NewConn creates a connection to the speech side at the given ws:// URL.
// No dial happens until the first Send.
func NewConn(url string, logger *slog.Logger, opts ...ConnOption) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		url:         url,
		dialTimeout: defaultDialTimeout,
		sendTimeout: defaultSendTimeout,
		logger:      logger,
		state:       StateDisconnected,
		questions:   make(chan string, questionBufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send delivers one envelope to the speech side. If disconnected, exactly
// one reconnect attempt is made; on any failure the envelope is dropped
// and false is returned. Callers must treat the speech side as advisory.
func (c *Conn) Send(env model.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		if !c.connectLocked() {
			return false
		}
	}

	c.ws.SetWriteDeadline(time.Now().Add(c.sendTimeout))
	if err := c.ws.WriteJSON(env); err != nil {
		c.logger.Warn("bridge send failed", "type", env.Type, "error", err)
		c.dropLocked()
		return false
	}
	return true
}

// PollQuestion returns a pending listener question without blocking.
func (c *Conn) PollQuestion() (string, bool) {
	select {
	case q := <-c.questions:
		return q, true
	default:
		return "", false
	}
}

// Questions exposes the stream of listener questions received over the
// channel.
func (c *Conn) Questions() <-chan string {
	return c.questions
}

// Close tears down the connection. A later Send will dial again.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

// connectLocked performs the single dial attempt. Caller holds c.mu.
func (c *Conn) connectLocked() bool {
	c.state = StateConnecting
	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	ws, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		c.logger.Warn("could not connect to speech side", "url", c.url, "error", err)
		c.state = StateDisconnected
		return false
	}
	c.ws = ws
	c.state = StateConnected
	c.logger.Info("connected to speech side", "url", c.url)
	go c.readLoop(ws)
	return true
}

// dropLocked closes the socket and marks the connection down. Caller
// holds c.mu.
func (c *Conn) dropLocked() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.state = StateDisconnected
}

// readLoop consumes inbound envelopes until the socket dies, routing
// question envelopes to the question channel.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var env model.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.logger.Info("speech side connection closed", "error", err)
			c.mu.Lock()
			if c.ws == ws {
				c.dropLocked()
			}
			c.mu.Unlock()
			return
		}

		if env.Type != model.EnvelopeQuestion {
			continue
		}
		question, _ := env.Payload["question"].(string)
		if question == "" {
			continue
		}
		select {
		case c.questions <- question:
			c.logger.Info("received listener question", "question", head(question, 60))
		default:
			c.logger.Warn("question buffer full, dropping", "question", head(question, 60))
		}
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
