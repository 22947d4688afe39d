// Package core is the orchestration layer.  It composes the transport,
// the session client, and the HTTP adapter into a runnable bridge and
// provides a builder that wires them from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  fix  →  session  →  httpapi  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of fixbridge.  It owns its full
// lifecycle from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
