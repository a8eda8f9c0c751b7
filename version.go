package main

import (
	"runtime/debug"
	"time"
)

var commit = "dev"
var buildDate = ""

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "dev" && s.Value != "" {
				commit = s.Value
				if len(commit) > 7 {
					commit = commit[:7]
				}
			}
		case "vcs.time":
			if buildDate == "" && s.Value != "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					buildDate = t.Format("2006-01-02")
				}
			}
		}
	}
}

// versionString is shown in page footers and the startup log.
func versionString() string {
	if buildDate == "" {
		return commit
	}
	return commit + " (" + buildDate + ")"
}
