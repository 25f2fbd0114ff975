// Command authority serves the board protocol for development. The root
// paths play one default game; /games/{id}/... plays a game per id.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mateboard/internal/authority"
	"mateboard/internal/config"
	"mateboard/internal/logging"
	"mateboard/internal/session"
	"mateboard/internal/storage"
)

func main() {
	cfg, err := config.Load("authority", os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Setup(cfg.Debug)
	log := logging.For("authority")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *storage.Store
	if cfg.DSN != "" {
		db, err := storage.New(cfg.DSN)
		if err != nil {
			log.Error("open store", "error", err)
			os.Exit(1)
		}
		store = storage.NewStore(db)
		if st, err := store.FetchStats(ctx); err == nil {
			log.Info("store ready", "positions", st.Positions, "moves", st.Moves, "agentMoves", st.Agent)
		}
	}

	pool := authority.NewPool(store, cfg.AccessLog,
		authority.WithThinkTime(cfg.Think),
		authority.WithDepth(cfg.Depth),
	)
	// restore the default game before serving
	if _, err := pool.Engine(ctx, authority.DefaultGame); err != nil {
		log.Error("restore default game", "error", err)
		os.Exit(1)
	}

	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, id := range pool.Sweep(session.MaxIdle) {
					log.Debug("game dropped", "id", id)
				}
			}
		}
	}()

	srv := &http.Server{Addr: cfg.Addr, Handler: pool}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("authority listening", "addr", cfg.Addr, "think", cfg.Think, "depth", cfg.Depth, "persistent", store != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}
