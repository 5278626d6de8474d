// Package sentrykit is the public install/control surface for the crash
// reporter: it owns the single process-wide crashctx.Context, wires it to
// the sentry registry and the report writer, and exposes the
// configuration surface described by spec.md §6.
package sentrykit
