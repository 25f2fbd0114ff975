// Package config reads settings for the mateboard binaries from flags, with
// defaults taken from MATEBOARD_* environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mateboard/internal/board"
	"mateboard/internal/codec"
)

const envPrefix = "MATEBOARD_"

// Config holds every setting. Each binary reads the fields it needs.
type Config struct {
	Addr        string
	Authority   string
	Timeout     time.Duration
	Orientation codec.Orientation
	Debug       bool
	DSN         string
	Think       time.Duration
	Depth       int
	// AutoAgent is the side the remote agent plays automatically; empty
	// disables it.
	AutoAgent string
	AccessLog bool
}

// Defaults returns the settings used when neither a flag nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Addr:    ":8080",
		Timeout: 10 * time.Second,
		Think:   2 * time.Second,
		Depth:   4,
	}
}

// Load parses args for the binary called name. lookup supplies environment
// values; nil uses os.LookupEnv.
func Load(name string, args []string, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	c := Defaults()
	env := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		if !ok && key == "DSN" {
			v, ok = lookup("DATABASE_URL")
		}
		return v, ok && v != ""
	}

	var err error
	if v, ok := env("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := env("AUTHORITY"); ok {
		c.Authority = v
	}
	if v, ok := env("DSN"); ok {
		c.DSN = v
	}
	if v, ok := env("AUTO_AGENT"); ok {
		c.AutoAgent = v
	}
	if v, ok := env("TIMEOUT"); ok {
		if c.Timeout, err = time.ParseDuration(v); err != nil {
			return c, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err)
		}
	}
	if v, ok := env("THINK"); ok {
		if c.Think, err = time.ParseDuration(v); err != nil {
			return c, fmt.Errorf("%sTHINK: %w", envPrefix, err)
		}
	}
	if v, ok := env("DEPTH"); ok {
		if c.Depth, err = strconv.Atoi(v); err != nil {
			return c, fmt.Errorf("%sDEPTH: %w", envPrefix, err)
		}
	}
	if v, ok := env("DEBUG"); ok {
		if c.Debug, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("%sDEBUG: %w", envPrefix, err)
		}
	}
	if v, ok := env("ACCESS_LOG"); ok {
		if c.AccessLog, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("%sACCESS_LOG: %w", envPrefix, err)
		}
	}
	orientation := "plain"
	if v, ok := env("ORIENTATION"); ok {
		orientation = v
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.Authority, "authority", c.Authority, "authority base URL; empty runs one in process")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "authority request timeout")
	fs.StringVar(&orientation, "orientation", orientation, "board orientation: plain or mirrored")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "postgres DSN for authority persistence")
	fs.DurationVar(&c.Think, "think", c.Think, "agent think time")
	fs.IntVar(&c.Depth, "depth", c.Depth, "agent maximum search depth")
	fs.StringVar(&c.AutoAgent, "auto-agent", c.AutoAgent, "side the agent plays automatically: white or black")
	fs.BoolVar(&c.AccessLog, "access-log", c.AccessLog, "log every HTTP request")
	if err := fs.Parse(args); err != nil {
		return c, err
	}

	if c.Orientation, err = codec.ParseOrientation(orientation); err != nil {
		return c, err
	}
	if c.Timeout <= 0 {
		return c, fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Think <= 0 {
		return c, fmt.Errorf("think time must be positive, got %s", c.Think)
	}
	if c.Depth < 1 {
		return c, fmt.Errorf("depth must be at least 1, got %d", c.Depth)
	}
	if _, _, err := c.AgentSide(); err != nil {
		return c, err
	}
	c.Authority = strings.TrimRight(c.Authority, "/")
	return c, nil
}

// AgentSide reports the side set by AutoAgent.
func (c Config) AgentSide() (board.Color, bool, error) {
	switch strings.ToLower(c.AutoAgent) {
	case "":
		return board.White, false, nil
	case "white", "w":
		return board.White, true, nil
	case "black", "b":
		return board.Black, true, nil
	}
	return board.White, false, fmt.Errorf("auto-agent must be white or black, got %q", c.AutoAgent)
}
