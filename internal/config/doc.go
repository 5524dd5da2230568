// Package config defines the pipeline model: the typed, validated in-memory
// representation of a pipeline configuration document.
//
// The model is the single source of truth for the `expand`, `dag` and
// `engine` packages. Parsing is purely structural: it never touches the
// file system beyond reading the documents themselves, and path existence is
// deliberately not checked here.
package config
