// Command mateterm plays against an authority from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rivo/tview"

	"mateboard/internal/config"
	"mateboard/internal/controller"
	"mateboard/internal/gateway"
	"mateboard/internal/logging"
	"mateboard/internal/terminal"
)

func main() {
	cfg, err := config.Load("mateterm", os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.Authority == "" {
		cfg.Authority = "http://localhost:8080"
	}
	// the screen belongs to tview; logs go to a file when debugging
	logging.SetupTo(io.Discard, false)
	if cfg.Debug {
		f, err := os.OpenFile("mateterm.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logging.SetupTo(f, true)
	}

	app := tview.NewApplication()
	hint := tview.NewTextView().SetDynamicColors(false)
	ui := terminal.New(app, hint)

	opts := []controller.Option{
		controller.WithOrientation(cfg.Orientation),
		controller.WithNotify(ui.Changed),
	}
	if side, auto, _ := cfg.AgentSide(); auto {
		opts = append(opts, controller.WithAutoAgent(side))
	}
	ctrl := controller.New(gateway.New(cfg.Authority, gateway.WithTimeout(cfg.Timeout)), opts...)
	ui.Attach(ctrl)

	flex := tview.NewFlex().
		AddItem(ui.Box, 28, 0, true).
		AddItem(hint, 0, 1, false)
	flex.SetBorder(true).SetTitle(" mateboard " + cfg.Authority + " ")

	go func() {
		if err := ctrl.Refresh(context.Background()); err != nil {
			logging.Debugf("first board: %v", err)
		}
	}()

	if err := app.SetRoot(flex, true).EnableMouse(true).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
