// Package logging configures log/slog for the console binaries.
//
// The text format prints one line per record:
//
//	10:42:07 INF request completed component=gateway method=GET status=200
//
// Colour is used only when writing to a terminal.
package logging
