// Package log provides structured protocol event logging for the
// engine. Events are captured at the transport, wire and observation
// layers and handed to a pluggable Logger.
//
// Events encode to CBOR with integer keys, so a FileLogger capture is
// compact and machine-readable; Reader streams a capture back with
// optional filtering. SlogAdapter bridges events into a standard
// slog.Logger for console output during development, and MultiLogger
// fans one event stream out to several sinks.
//
// Logging never disrupts the message path: implementations are expected
// to be fast or to queue, and encoding errors are swallowed.
package log
