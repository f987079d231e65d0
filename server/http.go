package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Server is the HTTP tool surface the agent calls between reasoning steps.
type Server struct {
	narrator *Narrator
}

// New creates the HTTP surface around a narrator.
func New(narrator *Narrator) *Server {
	return &Server{narrator: narrator}
}

// Routes returns the request mux for the tool surface.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stream_step", s.handleStreamStep)
	mux.HandleFunc("/answer_question", s.handleAnswerQuestion)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/resume", s.handleResume)
	mux.HandleFunc("/rewind", s.handleRewind)
	mux.HandleFunc("/end_session", s.handleEndSession)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/history", s.handleHistory)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStreamStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, s.narrator.StreamStep(r.Context(), req))
}

type answerRequest struct {
	SessionID      string         `json:"session_id"`
	Question       string         `json:"question"`
	CurrentContext map[string]any `json:"current_context"`
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.narrator.AnswerQuestion(r.Context(), req.SessionID, req.Question, req.CurrentContext))
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, s.narrator.Pause(req.SessionID))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, s.narrator.Resume(req.SessionID))
}

type rewindRequest struct {
	SessionID string `json:"session_id"`
	StepsBack int    `json:"steps_back"`
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	var req rewindRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, s.narrator.RewindNarration(req.SessionID, req.StepsBack))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	writeJSON(w, s.narrator.EndSession(r.Context(), req.SessionID))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.narrator.Status(r.URL.Query().Get("session_id")))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.narrator.Summary(r.URL.Query().Get("session_id")))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.narrator.History(r.URL.Query().Get("session_id")))
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// An empty body is a valid request with no fields.
		if errors.Is(err, io.EOF) {
			return true
		}
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}
