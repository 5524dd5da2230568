// Package app wires the application together: configuration loading,
// expansion, graph construction and the execution engine, behind a single
// Run entrypoint driven by the CLI.
package app
