// Package main is the entry point for the tour tracker.
//
// The binary is a cobra command tree:
//
//	tour-tracker serve     HTTP API
//	tour-tracker migrate   apply Postgres migrations
//	tour-tracker ingest    one Ticketmaster pass for a DMA
//	tour-tracker consume   resolve events pushed over AMQP
//
// All actual logic lives in imported packages (internal/server,
// internal/ingest, ...). This package only reads configuration, builds
// dependencies and hands them over.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
