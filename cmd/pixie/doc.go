// Package main hosts the pixie CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into fetch
// and download runs, archive ledger queries, and configuration scaffolding.
// It centralizes configuration resolution, logging setup, and the
// single-instance lock so subcommands can focus on user experience instead
// of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
