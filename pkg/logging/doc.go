// Package logging provides the gateway's process-wide diagnostic logger: a
// single log/slog TextHandler with subsystem-tagged helper functions.
//
// # Log Levels
//
//   - **Debug**, **Info**, **Warn**, **Error**, converted to the matching
//     slog levels by LogLevel.SlogLevel (unknown values map to Info).
//
// # Initialization and Use
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("gateway", "starting with %d servers", n)
//	logging.Error("reload", err, "configuration reload failed")
//
// Init and InitForCLI install a slog.TextHandler over the given writer that
// drops messages below the chosen level, and make it slog's default logger.
// The gateway passes os.Stderr, because its stdio transport owns stdout.
// Until one of them has been called, every logging function is a no-op.
//
// # Entry Contents
//
// Each line carries slog's time, level and message, a "subsystem"
// attribute, and, for Error with a non-nil error, an "error" attribute
// holding the error text.
//
// # Audit Lines
//
// Audit writes an AuditEvent as one INFO line prefixed "[AUDIT]" with
// key=value fields; empty optional fields are omitted. These lines are a
// diagnostic signal, separate from the JSONL decision log in internal/audit.
//
// # Helpers
//
// TruncateID shortens identifiers longer than eight characters to their
// first eight followed by "...", and Now is the package's clock seam.
//
// # Concurrency
//
// Once initialized, the logging functions may be called from many
// goroutines. Init itself is not synchronized with concurrent logging
// calls.
package logging
