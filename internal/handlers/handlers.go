package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mateboard/internal/logging"
	"mateboard/internal/selection"
	"mateboard/internal/session"
	"mateboard/internal/templates"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const heartbeat = 15 * time.Second

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Hub      *session.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler creates a new handler instance
func NewHandler(hub *session.Hub) *Handler {
	return &Handler{
		Hub: hub,
		log: logging.For("handlers"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes registers every browser route on a new router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(NoStore)
	r.HandleFunc("/", h.HandleHome).Methods(http.MethodGet)
	r.HandleFunc("/new", h.HandleNew).Methods(http.MethodGet)
	r.HandleFunc("/state/{id}", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/cell/{id}/{index:[0-9]+}", h.HandleCell).Methods(http.MethodPost)
	r.HandleFunc("/fen/{id}", h.HandleFEN).Methods(http.MethodPost)
	r.HandleFunc("/agent/{id}", h.HandleAgent).Methods(http.MethodPost)
	r.HandleFunc("/think/{id}", h.HandleThink).Methods(http.MethodPost)
	r.HandleFunc("/count/{id}", h.HandleCount).Methods(http.MethodPost)
	r.HandleFunc("/sse/{id}", h.HandleSSE).Methods(http.MethodGet)
	r.HandleFunc("/ws/{id}", h.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.HandlePage).Methods(http.MethodGet)
	return r
}

// HandleNew creates a new session and redirects to it
func (h *Handler) HandleNew(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	http.Redirect(w, r, "/"+id, http.StatusFound)
}

// HandleHome serves the home page
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	templates.WriteHomeHTML(w)
}

// HandlePage serves the board page
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "index.html" {
		templates.WriteHomeHTML(w)
		return
	}
	h.Hub.Get(id)
	templates.WriteBoardHTML(w, id)
}

// open returns the session for the request, fetching its first board if
// that has not happened yet.
func (h *Handler) open(r *http.Request) (*session.Session, error) {
	s := h.Hub.Get(mux.Vars(r)["id"])
	s.Touch()
	return s, s.Start(r.Context())
}

func reply(w http.ResponseWriter, s *session.Session, err error, extra map[string]any) {
	body := map[string]any{"ok": err == nil, "state": s.State()}
	if err != nil {
		body["error"] = err.Error()
	}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, http.StatusOK, body)
}

// HandleState returns the session's current display state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err == nil {
		h.sync(r.Context(), s)
	}
	reply(w, s, err, nil)
}

// sync pulls changes made on the authority by other clients.
func (h *Handler) sync(ctx context.Context, s *session.Session) {
	if err := s.Ctrl.Sync(ctx); err != nil && !errors.Is(err, selection.ErrAwaitingServer) {
		h.log.Debug("sync failed", "session", s.ID, "error", err)
	}
}

// HandleCell activates one board cell
func (h *Handler) HandleCell(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad cell"})
		return
	}
	s, err := h.open(r)
	if err != nil {
		reply(w, s, err, nil)
		return
	}
	res, err := s.Ctrl.Activate(r.Context(), index)
	if err != nil {
		h.logCellError(r, s.ID, index, err)
	}
	reply(w, s, err, map[string]any{"action": res.Action.String()})
}

func (h *Handler) logCellError(r *http.Request, id string, index int, err error) {
	switch {
	case errors.Is(err, selection.ErrInvalidSelection),
		errors.Is(err, selection.ErrIllegalDestination),
		errors.Is(err, selection.ErrAwaitingServer):
		h.log.Debug("cell refused", "session", id, "cell", index, "client", ClientIP(r), "error", err)
	default:
		h.log.Warn("cell failed", "session", id, "cell", index, "client", ClientIP(r), "error", err)
	}
}

// HandleFEN loads a position; an empty FEN loads the starting position
func (h *Handler) HandleFEN(w http.ResponseWriter, r *http.Request) {
	var body session.FENRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	s, err := h.open(r)
	if err == nil {
		err = s.Ctrl.LoadPosition(r.Context(), strings.TrimSpace(body.FEN))
	}
	reply(w, s, err, nil)
}

// HandleAgent asks the remote agent to move
func (h *Handler) HandleAgent(w http.ResponseWriter, r *http.Request) {
	s, err := h.open(r)
	if err == nil {
		_, err = s.Ctrl.RequestAgentMove(r.Context())
	}
	reply(w, s, err, nil)
}

// HandleThink sets the agent's think time
func (h *Handler) HandleThink(w http.ResponseWriter, r *http.Request) {
	var body session.ThinkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	s, err := h.open(r)
	if err == nil {
		d := time.Duration(body.Seconds * float64(time.Second))
		err = s.Ctrl.SetThinkTime(r.Context(), d)
	}
	reply(w, s, err, map[string]any{"seconds": body.Seconds})
}

// HandleCount runs a move count on the current position
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	var body session.CountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	s, err := h.open(r)
	var extra map[string]any
	if err == nil {
		var n session.CountResult
		mc, cerr := s.Ctrl.CountMoves(r.Context(), body.Depth)
		if err = cerr; err == nil {
			n = session.CountResult{Depth: body.Depth, Moves: mc.Moves, ElapsedMs: mc.Elapsed.Milliseconds()}
			extra = map[string]any{"count": n}
		}
	}
	reply(w, s, err, extra)
}

// HandleSSE handles Server-Sent Events for real-time board updates
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	s := h.Hub.Get(mux.Vars(r)["id"])
	if err := s.Start(r.Context()); err != nil {
		h.log.Warn("first board failed", "session", s.ID, "error", err)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)

	initial, _ := json.Marshal(s.State())
	_, _ = fmt.Fprintf(w, "data: %s\n\n", initial)
	flusher.Flush()

	s.Touch()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	defer s.RemoveWatcher(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// heartbeat
			_, _ = w.Write([]byte("data: {}\n\n"))
			flusher.Flush()
			s.Touch()
			go h.sync(ctx, s)
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// HandleWS streams state over a websocket and accepts cell activations
// from it.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	s := h.Hub.Get(mux.Vars(r)["id"])
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session", s.ID, "client", ClientIP(r), "error", err)
		return
	}
	defer conn.Close()
	h.log.Debug("websocket connected", "session", s.ID, "client", conn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		h.log.Warn("first board failed", "session", s.ID, "error", err)
	}

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)
	defer s.RemoveWatcher(ch)

	initial, _ := json.Marshal(s.State())
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	// only this goroutine writes to conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}()

	for {
		var m session.CellMessage
		if err := conn.ReadJSON(&m); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.log.Debug("websocket read", "session", s.ID, "error", err)
			}
			break
		}
		s.Touch()
		if _, err := s.Ctrl.Activate(ctx, m.Cell); err != nil {
			h.logCellError(r, s.ID, m.Cell, err)
		}
	}
	cancel()
	<-done
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
