// Package cli parses command-line arguments into an application config and a
// run request. It owns usage text and argument validation; everything past
// that point belongs to the app package.
package cli
