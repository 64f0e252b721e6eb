package subset

import "log/slog"

// logger is used for the Debug/Info/Warn progress messages emitted while
// rewriting (memo reuse, dropped commits, empty trees). Call SetLogger to
// redirect it; the zero value falls back to slog's default handler.
var logger = slog.Default()

// SetLogger replaces the package-level logger. Passing nil restores the
// default logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
}
