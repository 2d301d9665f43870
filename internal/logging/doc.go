// Package logging provides structured logging for lockstep.
//
// This package wraps Go's log/slog to emit JSON lines. Every lock grant,
// release, conflict and resolution is logged with the holder, task and
// normalized path so that contention can be reconstructed after a work cycle.
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers created via With* methods
// share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/.lockstep", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithHolder("agent-a").WithPath("src/x.go").Info("lock granted", "operation", "write")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"lock granted","holder":"agent-a","path":"src/x.go","operation":"write"}
//
// Components that are constructed without a logger fall back to [NopLogger].
package logging
