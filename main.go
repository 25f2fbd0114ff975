package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mateboard/internal/authority"
	"mateboard/internal/config"
	"mateboard/internal/controller"
	"mateboard/internal/gateway"
	"mateboard/internal/handlers"
	"mateboard/internal/logging"
	"mateboard/internal/session"
	"mateboard/internal/storage"
	"mateboard/internal/templates"
)

func main() {
	cfg, err := config.Load("mateboard", os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Setup(cfg.Debug)
	log := logging.For("main")
	templates.SetCommit(commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := cfg.Authority
	perGame := false
	if base == "" {
		// no authority configured: serve a pool of engines on loopback,
		// one game per session
		base, err = startAuthority(ctx, cfg)
		if err != nil {
			log.Error("start authority", "error", err)
			os.Exit(1)
		}
		perGame = true
	}
	side, auto, _ := cfg.AgentSide()

	hub := session.NewHub(func(id string, notify func()) *controller.Controller {
		url := base
		if perGame {
			url = base + authority.GamePrefix + id
		}
		opts := []controller.Option{
			controller.WithOrientation(cfg.Orientation),
			controller.WithNotify(notify),
		}
		if auto {
			opts = append(opts, controller.WithAutoAgent(side))
		}
		return controller.New(gateway.New(url, gateway.WithTimeout(cfg.Timeout)), opts...)
	})
	defer hub.Close()

	var h http.Handler = handlers.NewHandler(hub).Routes()
	if cfg.AccessLog {
		h = handlers.AccessLog(h)
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: h}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("mateboard listening", "addr", cfg.Addr, "authority", base,
		"orientation", cfg.Orientation.String(), "build", commit, "date", buildDate)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}

// startAuthority serves an authority pool on a loopback port and returns
// its base URL.
func startAuthority(ctx context.Context, cfg config.Config) (string, error) {
	var store *storage.Store
	if cfg.DSN != "" {
		db, err := storage.New(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("open store: %w", err)
		}
		store = storage.NewStore(db)
	}
	pool := authority.NewPool(store, cfg.Debug,
		authority.WithThinkTime(cfg.Think),
		authority.WithDepth(cfg.Depth),
	)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if dropped := pool.Sweep(session.MaxIdle); len(dropped) > 0 {
					logging.Debugf("authority: dropped %d idle games", len(dropped))
				}
			}
		}
	}()
	srv := &http.Server{Handler: pool}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() { _ = srv.Serve(ln) }()
	return "http://" + ln.Addr().String(), nil
}
