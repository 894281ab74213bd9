// Package logging provides a minimal logging interface and adapters for SessionMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, the conversation loop and the stores use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - With for binding session attributes to every entry
//
// Usage:
//
//	logger := logging.New(&logging.Config{Level: logging.LevelInfo, Format: "json"})
//	mesh, err := sessionmesh.New(func(o *sessionmesh.Options) { o.Logger = logger })
//
// The interface is kept minimal so any structured logger can be plugged in.
package logging
