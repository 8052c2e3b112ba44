package cli

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// NewLogger returns the logger handed to the orchestrator. Diagnostics go
// to w (stderr in production) so they never mix with command output.
//
// The default level is Warn; --verbose selects Info and --debug selects
// Debug, which also reports the caller.
func NewLogger(w io.Writer, verbose, debug bool) *slog.Logger {
	level := log.WarnLevel
	switch {
	case debug:
		level = log.DebugLevel
	case verbose:
		level = log.InfoLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "kompass",
		ReportTimestamp: debug,
		ReportCaller:    debug,
	})
	return slog.New(handler)
}
