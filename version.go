package main

import (
	"os/exec"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags "-X main.commit=... -X main.buildDate=..." or filled
// from the embedded VCS stamp.
var (
	commit    = "dev"
	buildDate = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(info.Settings)
	}
	if commit == "dev" {
		if c, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
			commit = strings.TrimSpace(string(c))
		}
	}
	if buildDate == "" {
		buildDate = time.Now().Format(time.DateOnly)
	}
}

func applyBuildSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		if s.Value == "" {
			continue
		}
		switch s.Key {
		case "vcs.revision":
			if commit == "dev" {
				commit = s.Value[:min(7, len(s.Value))]
			}
		case "vcs.time":
			if buildDate != "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				buildDate = t.Format(time.DateOnly)
			}
		case "vcs.modified":
			if s.Value == "true" && commit != "dev" && !strings.HasSuffix(commit, "+") {
				commit += "+"
			}
		}
	}
}
