package store

import "log/slog"

// Reporter receives the full detail of every terminal failure just before it
// is sanitized: the original error plus contextual metadata (database,
// collection, action, arguments). Nothing the Reporter sees is ever echoed
// to the caller.
type Reporter interface {
	ReportError(err error, meta map[string]any)
}

// slogReporter logs failures through a slog.Logger.
type slogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a Reporter that logs at error level. A nil logger
// uses slog.Default().
func NewLogReporter(logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogReporter{logger: logger}
}

// ReportError implements Reporter.
func (r *slogReporter) ReportError(err error, meta map[string]any) {
	attrs := make([]any, 0, 2+2*len(meta))
	attrs = append(attrs, "error", err)
	for k, v := range meta {
		attrs = append(attrs, k, v)
	}
	r.logger.Error("datastore operation failed", attrs...)
}
