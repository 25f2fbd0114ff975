package authority

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"mateboard/internal/protocol"
)

// Server exposes an Engine over the board protocol.
type Server struct {
	engine *Engine
	router *mux.Router
}

// NewServer registers the protocol routes for e. Access logging is enabled
// when accessLog is set.
func NewServer(e *Engine, accessLog bool) *Server {
	s := &Server{engine: e, router: mux.NewRouter()}
	if accessLog {
		s.router.Use(func(next http.Handler) http.Handler {
			return handlers.LoggingHandler(os.Stdout, next)
		})
	}
	s.router.HandleFunc(protocol.PathBoard, s.handleBoard).Methods(http.MethodGet)
	s.router.HandleFunc(protocol.PathMove, s.handleMove).Methods(http.MethodPost)
	s.router.HandleFunc(protocol.PathLoadFEN, s.handleLoadFEN).Methods(http.MethodPost)
	s.router.HandleFunc(protocol.PathMoveCount, s.handleMoveCount).Methods(http.MethodPost)
	s.router.HandleFunc(protocol.PathAgentMove, s.handleAgentMove).Methods(http.MethodPost)
	s.router.HandleFunc(protocol.PathThinkTime, s.handleThinkTime).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrIllegalMove), errors.Is(err, ErrBadFEN), errors.Is(err, ErrGameOver):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, protocol.Error{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

func (s *Server) reply(w http.ResponseWriter, b protocol.Board, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.Board()
	s.reply(w, b, err)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var m protocol.Move
	if err := decode(r, &m); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.engine.Move(r.Context(), m)
	s.reply(w, b, err)
}

func (s *Server) handleLoadFEN(w http.ResponseWriter, r *http.Request) {
	var body protocol.LoadFEN
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.engine.LoadFEN(r.Context(), body.FEN)
	s.reply(w, b, err)
}

func (s *Server) handleAgentMove(w http.ResponseWriter, r *http.Request) {
	reply, err := s.engine.AgentMove(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleThinkTime(w http.ResponseWriter, r *http.Request) {
	var body protocol.ThinkTime
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	d := time.Duration(body.TimeToThink * float64(time.Second))
	if err := s.engine.SetThinkTime(d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.ThinkTime{TimeToThink: s.engine.ThinkTime().Seconds()})
}

func (s *Server) handleMoveCount(w http.ResponseWriter, r *http.Request) {
	var body protocol.MoveCountRequest
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.engine.CountMoves(body.Depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
