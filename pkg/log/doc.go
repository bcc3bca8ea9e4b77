// Package log provides structured protocol event logging for the CMS hub.
//
// Components emit Event values describing frames, decoded messages,
// session state changes, and errors. Applications choose a sink by
// implementing Logger or using one of the provided implementations:
//
//   - FileLogger: appends CBOR-encoded events to a file
//   - SlogAdapter: bridges events to a *slog.Logger for console output
//   - MultiLogger: fans out to several sinks
//   - NoopLogger: discards everything
//
// Events use CBOR integer keys so long-running capture files stay small.
package log
