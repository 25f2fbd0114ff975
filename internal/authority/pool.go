package authority

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"mateboard/internal/storage"
)

// DefaultGame is the game served at the root paths.
const DefaultGame = "default"

// GamePrefix is the path prefix of per-game routes: /games/{id}/board and so on.
const GamePrefix = "/games/"

type entry struct {
	server   *Server
	lastSeen time.Time
}

// Pool serves one Engine per game id, created on first use and restored
// from the store when one is configured.
type Pool struct {
	mu     sync.Mutex
	games  map[string]*entry
	store  *storage.Store
	opts   []Option
	router *mux.Router
}

// NewPool returns a pool whose engines are built with opts. store may be nil.
func NewPool(store *storage.Store, accessLog bool, opts ...Option) *Pool {
	p := &Pool{
		games:  make(map[string]*entry),
		store:  store,
		opts:   opts,
		router: mux.NewRouter(),
	}
	if accessLog {
		p.router.Use(func(next http.Handler) http.Handler {
			return handlers.LoggingHandler(os.Stdout, next)
		})
	}
	p.router.PathPrefix(GamePrefix + "{id}").HandlerFunc(p.serveGame)
	p.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, DefaultGame, "")
	})
	return p
}

// GameID maps a game id to its storage key. UUIDs are used as they are;
// other ids get a name-based UUID.
func GameID(id string) uuid.UUID {
	if u, err := uuid.Parse(id); err == nil {
		return u
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}

// Engine returns the engine for id, creating and restoring it if needed.
func (p *Pool) Engine(ctx context.Context, id string) (*Engine, error) {
	s, err := p.server(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine, nil
}

func (p *Pool) server(ctx context.Context, id string) (*Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.games[id]; ok {
		g.lastSeen = time.Now()
		return g.server, nil
	}
	opts := p.opts
	if p.store != nil {
		opts = append(append([]Option(nil), p.opts...), WithStore(p.store, GameID(id)))
	}
	e := NewEngine(opts...)
	if err := e.Restore(ctx); err != nil {
		return nil, err
	}
	s := NewServer(e, false)
	p.games[id] = &entry{server: s, lastSeen: time.Now()}
	return s, nil
}

// Sweep drops engines idle for longer than maxIdle and returns their ids.
// Persisted games come back from the store on the next request.
func (p *Pool) Sweep(maxIdle time.Duration) []string {
	var dropped []string
	p.mu.Lock()
	for id, g := range p.games {
		if id != DefaultGame && time.Since(g.lastSeen) > maxIdle {
			delete(p.games, id)
			dropped = append(dropped, id)
		}
	}
	p.mu.Unlock()
	return dropped
}

// Len returns the number of live engines.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.games)
}

func (p *Pool) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

func (p *Pool) serveGame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p.serve(w, r, id, GamePrefix+id)
}

func (p *Pool) serve(w http.ResponseWriter, r *http.Request, id, prefix string) {
	s, err := p.server(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if prefix == "" {
		s.ServeHTTP(w, r)
		return
	}
	http.StripPrefix(prefix, s).ServeHTTP(w, r)
}
