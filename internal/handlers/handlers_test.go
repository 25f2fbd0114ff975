package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mateboard/internal/authority"
	"mateboard/internal/controller"
	"mateboard/internal/gateway"
	"mateboard/internal/session"

	"github.com/gorilla/websocket"
)

type envelope struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error"`
	Action string        `json:"action"`
	State  session.State `json:"state"`
	Count  session.CountResult
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	auth := httptest.NewServer(authority.NewServer(authority.NewEngine(authority.WithDepth(1)), false))
	t.Cleanup(auth.Close)
	hub := session.NewHub(func(id string, notify func()) *controller.Controller {
		return controller.New(gateway.New(auth.URL), controller.WithNotify(notify))
	})
	t.Cleanup(hub.Close)
	return NewHandler(hub).Routes()
}

func call(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w, env
}

func TestHandleNewRedirects(t *testing.T) {
	h := newRouter(t)
	w, _ := call(t, h, http.MethodGet, "/new", "")
	if w.Code != http.StatusFound || len(w.Header().Get("Location")) != 37 {
		t.Fatalf("redirect %d to %q", w.Code, w.Header().Get("Location"))
	}
}

func TestBoardPageCarriesSessionID(t *testing.T) {
	h := newRouter(t)
	w, _ := call(t, h, http.MethodGet, "/abc123", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "abc123") {
		t.Fatalf("page %d missing id", w.Code)
	}
}

// Test that a pawn can be selected and moved with two cell posts.
func TestHandleCellMove(t *testing.T) {
	h := newRouter(t)
	_, env := call(t, h, http.MethodPost, "/cell/g1/52", "")
	if !env.OK || env.Action != "selected" || env.State.Board.Selected != 52 {
		t.Fatalf("select: %+v", env)
	}
	_, env = call(t, h, http.MethodPost, "/cell/g1/36", "")
	if !env.OK || env.Action != "moved" {
		t.Fatalf("move: ok=%v action=%s error=%s", env.OK, env.Action, env.Error)
	}
	if env.State.Board.SideToMove != "Black" || env.State.Board.LastMove != "e4" {
		t.Fatalf("after move: %s to move, last %q", env.State.Board.SideToMove, env.State.Board.LastMove)
	}
}

// Test that selecting an opponent piece is refused.
func TestHandleCellNotYourTurn(t *testing.T) {
	h := newRouter(t)
	_, env := call(t, h, http.MethodPost, "/cell/g2/12", "")
	if env.OK {
		t.Fatalf("expected the click to be refused")
	}
	if env.State.Board.Notice != "Not your turn" {
		t.Fatalf("notice %q", env.State.Board.Notice)
	}
}

func TestHandleCellRejectsNonNumericIndex(t *testing.T) {
	h := newRouter(t)
	w, _ := call(t, h, http.MethodPost, "/cell/g3/e2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestHandleFEN(t *testing.T) {
	h := newRouter(t)
	w, _ := call(t, h, http.MethodPost, "/fen/g4", "{")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status %d", w.Code)
	}
	_, env := call(t, h, http.MethodPost, "/fen/g4", `{"fen":"4k3/8/8/8/8/8/8/4K2R w K - 0 1"}`)
	if !env.OK || env.State.Board.FEN != "4k3/8/8/8/8/8/8/4K2R w K - 0 1" {
		t.Fatalf("load: %+v", env.Error)
	}
	_, env = call(t, h, http.MethodPost, "/fen/g4", `{"fen":"not a fen"}`)
	if env.OK || env.Error == "" {
		t.Fatalf("bad fen accepted")
	}
}

func TestHandleCountAndThink(t *testing.T) {
	h := newRouter(t)
	_, env := call(t, h, http.MethodPost, "/count/g5", `{"depth":1}`)
	if !env.OK || env.Count.Moves != 20 || env.Count.Depth != 1 {
		t.Fatalf("count: %+v", env)
	}
	_, env = call(t, h, http.MethodPost, "/count/g5", `{"depth":0}`)
	if env.OK {
		t.Fatalf("depth 0 accepted")
	}
	_, env = call(t, h, http.MethodPost, "/think/g5", `{"seconds":0.5}`)
	if !env.OK {
		t.Fatalf("think: %s", env.Error)
	}
	_, env = call(t, h, http.MethodPost, "/think/g5", `{"seconds":-1}`)
	if env.OK {
		t.Fatalf("negative think time accepted")
	}
}

func TestHandleAgent(t *testing.T) {
	h := newRouter(t)
	_, env := call(t, h, http.MethodPost, "/agent/g6", "")
	if !env.OK || env.State.Board.SideToMove != "Black" || env.State.Board.Agent == "" {
		t.Fatalf("agent: %+v", env)
	}
}

func TestWebsocketActivatesCells(t *testing.T) {
	srv := httptest.NewServer(newRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/g7"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st session.State
	if err := conn.ReadJSON(&st); err != nil || st.Kind != "state" {
		t.Fatalf("initial state: %v %+v", err, st)
	}
	if err := conn.WriteJSON(session.CellMessage{Cell: 52}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for st.Board.Selected != 52 {
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("waiting for selection: %v", err)
		}
	}
}
