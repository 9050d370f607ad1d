// Package daemon coordinates the long-running Alchemist process.
//
// It wires configuration, the SQLite store, and the workflow manager into a
// single lifecycle with flock-based locking so only one scheduler claims task
// runs against a data directory. Status snapshots and notification tests are
// exposed for the CLI.
//
// Keep orchestration logic here: stage behavior lives in the stage packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
