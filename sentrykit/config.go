package sentrykit

import (
	"github.com/sentrykit/sentrykit/crashctx"
)

// Option configures an Installer's crashctx.Configuration. Grounded on
// logiface-stumpy/factory.go's Option/optionFunc functional-option shape.
type Option interface {
	apply(c *crashctx.Configuration)
}

type optionFunc func(c *crashctx.Configuration)

func (f optionFunc) apply(c *crashctx.Configuration) { f(c) }

// WithEnabledSources selects which crash sources InstallWithContext
// installs; the default is crashctx.AllSources.
func WithEnabledSources(sources crashctx.SourceTypeSet) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.EnabledSources = sources
	})
}

// WithIntrospection enables or disables notable-address analysis in the
// report writer (report/notable.go).
func WithIntrospection(enabled bool) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.Introspection.Enabled = enabled
	})
}

// WithRestrictedClasses sets the class names the report writer must never
// deeply introspect (crashctx.IntrospectionPolicy.IsRestricted).
func WithRestrictedClasses(names []string) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.Introspection.SetDoNotIntrospectClasses(names)
	})
}

// WithSearchThreadNames enables per-thread name lookup in the report.
func WithSearchThreadNames(enabled bool) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.SearchThreadNames = enabled
	})
}

// WithSearchQueueNames enables per-thread dispatch-queue name lookup in
// the report.
func WithSearchQueueNames(enabled bool) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.SearchQueueNames = enabled
	})
}

// WithDeadlockWatchdogInterval sets the heartbeat timeout, in seconds,
// after which the deadlock sentry reports a synthetic crash. Zero
// disables the watchdog.
func WithDeadlockWatchdogInterval(seconds float64) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.DeadlockWatchdogInterval = seconds
	})
}

// WithZombieCacheSize stores n in Configuration.ZombieCacheSize. Nothing in
// this module reads it back; the recent-deallocation oracle that populates
// the report's "process" (zombie-object) field is not given it.
func WithZombieCacheSize(n int) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.ZombieCacheSize = n
	})
}

// WithUserInfoJSON sets pre-serialized, caller-supplied structured text
// inserted verbatim into the report's "user" field.
func WithUserInfoJSON(json string) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.UserInfoJSON = json
	})
}

// WithSystemInfoJSON sets pre-serialized, caller-supplied structured text
// inserted verbatim into the report's "system" field.
func WithSystemInfoJSON(json string) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.SystemInfoJSON = json
	})
}

// WithOnCrashNotify sets the callback invoked at crash time to produce the
// report's "user_atcrash" field; it receives the in-progress report writer
// and returns pre-serialized structured text, or "" to omit the field.
func WithOnCrashNotify(f func(w any) string) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.OnCrashNotify = f
	})
}

// WithPrintTraceToStdout mirrors the crash report to stdout in addition to
// the crash report file, for interactive debugging.
func WithPrintTraceToStdout(enabled bool) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.PrintTraceToStdout = enabled
	})
}

// WithSuspendThreadsForUserReported controls whether ReportUserException
// suspends every other thread before invoking the on-crash callback.
func WithSuspendThreadsForUserReported(enabled bool) Option {
	return optionFunc(func(c *crashctx.Configuration) {
		c.SuspendThreadsForUserReported = enabled
	})
}
