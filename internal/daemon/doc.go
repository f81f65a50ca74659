// Package daemon coordinates the long-running memedex process.
//
// It wires configuration, the catalog store, the submission gateway, the
// callback receiver, the bulk operation coordinator, the auto-scan scheduler,
// and the status broadcast hub into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon also owns the HTTP API
// server, which is the only surface the CLI and the inference worker talk to.
//
// Keep orchestration logic here: the individual subsystems live in their own
// packages while the daemon focuses on startup, shutdown, and wiring.
package daemon
