package sentrykit

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Package-level, swappable ambient logger for this module's own
// non-crash-path diagnostics (install/reinstall outcomes and install
// errors) — never the crash report itself,
// which is written exclusively through package report's docenc pipeline.
// Grounded on eventloop/logging.go's SetStructuredLogger/getGlobalLogger
// shape, adapted to hold a *logiface.Logger[*stumpy.Event] rather than a
// bespoke interface, since logiface+stumpy is this module's chosen
// structured-logging stack.
var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[*stumpy.Event]
}

func init() {
	globalLogger.logger = stumpy.L.New(stumpy.L.WithStumpy())
}

// SetLogger replaces the package-level logger used for this module's own
// diagnostics. Passing nil falls back to a disabled logger (every Build
// call becomes a no-op, per logiface.Logger's nil-safety).
func SetLogger(logger *logiface.Logger[*stumpy.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// Logger returns the current package-level logger.
func Logger() *logiface.Logger[*stumpy.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

func logInstall(crashReportPath string, installed int) {
	Logger().Info().
		Str(`crash_report_path`, crashReportPath).
		Int(`sources_installed`, installed).
		Log(`sentrykit installed`)
}

func logInstallError(err error) {
	Logger().Err().
		Err(err).
		Log(`sentrykit install failed`)
}
