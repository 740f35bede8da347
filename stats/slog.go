package stats

import (
	"log/slog"

	"github.com/bjaus/hoard"
)

// LogSink writes outcome events to a structured logger: failures at
// warn, evictions and expirations at info, everything else at debug.
type LogSink struct {
	log *slog.Logger
}

// Compile-time interface assertion.
var _ hoard.Sink = (*LogSink)(nil)

// Logging returns a sink writing to log, or to slog.Default() when log
// is nil.
func Logging(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

// Record implements hoard.Sink.
func (s *LogSink) Record(ev hoard.Event) {
	switch {
	case ev.Result == hoard.ResultFailure:
		s.log.Warn("cache operation failed",
			"op", string(ev.Op), "key", ev.Key, "error", ev.Err)
	case ev.Op == hoard.OpEviction || ev.Op == hoard.OpExpiry:
		s.log.Info("cache entry removed",
			"op", string(ev.Op), "key", ev.Key)
	default:
		s.log.Debug("cache operation",
			"op", string(ev.Op), "result", string(ev.Result), "key", ev.Key)
	}
}
