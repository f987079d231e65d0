package bridge

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Karthik-Ragunath/lock-in/model"
)

// Endpoint is the accept side of the channel: an HTTP handler that
// upgrades to websocket and holds a single active peer. The speech-side
// process hosts one of these; the reasoning side dials it with Conn.
//
// A new peer replaces the old one; per-connection message order is
// preserved, but nothing is retransmitted across reconnects.
type Endpoint struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.Mutex
	peer *websocket.Conn

	// OnEnvelope, when set, is invoked for every envelope received from
	// the peer. It runs on the read goroutine; implementations must not
	// block.
	OnEnvelope func(model.Envelope)
}

// NewEndpoint creates an endpoint ready to be mounted on an HTTP mux.
func NewEndpoint(logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and adopts the connection as the active
// peer.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	e.mu.Lock()
	if e.peer != nil {
		e.peer.Close()
	}
	e.peer = ws
	e.mu.Unlock()
	e.logger.Info("reasoning side connected", "remote", r.RemoteAddr)

	e.readLoop(ws)
}

// Send delivers an envelope to the connected peer, reporting success.
func (e *Endpoint) Send(env model.Envelope) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.peer == nil {
		return false
	}
	e.peer.SetWriteDeadline(time.Now().Add(defaultSendTimeout))
	if err := e.peer.WriteJSON(env); err != nil {
		e.logger.Warn("endpoint send failed", "type", env.Type, "error", err)
		e.peer.Close()
		e.peer = nil
		return false
	}
	return true
}

// Connected reports whether a peer is attached.
func (e *Endpoint) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer != nil
}

// Close drops the active peer, if any.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.peer != nil {
		e.peer.Close()
		e.peer = nil
	}
}

func (e *Endpoint) readLoop(ws *websocket.Conn) {
	for {
		var env model.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			e.logger.Info("peer connection closed", "error", err)
			e.mu.Lock()
			if e.peer == ws {
				e.peer = nil
			}
			e.mu.Unlock()
			return
		}
		if e.OnEnvelope != nil {
			e.OnEnvelope(env)
		}
	}
}
