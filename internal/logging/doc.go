// Package logging configures the shared slog logger for memedex processes.
// Console output is human readable when attached to a terminal; a JSON
// stream is written to the log file for machine consumption.
package logging
