// Package log provides a structured trace of network join attempts.
//
// The trace is separate from operational logging (slog). Every join
// attempt produces a sequence of Events sharing one AttemptID: the start
// of the attempt, each connectivity event the driver delivered, each
// connect request issued in response, and the terminal outcome. Late
// events arriving after the outcome are recorded with KindLateEvent.
//
// # Basic Usage
//
//	// Development: trace to console via slog
//	trace := log.NewSlogAdapter(slog.Default())
//
//	// Field units: append to a binary file
//	trace, _ := log.NewFileLogger("/data/join.jlog")
//
//	// Both
//	trace = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events using integer keys, with
// the .jlog extension. The taskboot-log command views and summarises them.
package log
