package main

import (
	"runtime/debug"
	"testing"
)

func TestApplyBuildSettings(t *testing.T) {
	commit, buildDate = "dev", ""
	applyBuildSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-03-05T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	if commit != "0123456+" || buildDate != "2024-03-05" {
		t.Fatalf("commit=%q buildDate=%q", commit, buildDate)
	}
}
