// Package engine drives the execution of an expanded pipeline over its
// dependency graph: run-request selection, command construction, sequential
// and parallel scheduling, process lifecycle and cancellation.
//
// The graph and expanded pipeline are read-only for the engine's lifetime;
// the engine mutates only per-step outcome state. All status transitions
// surface synchronously through the Notifier so a presentation layer can
// stream them live.
package engine
