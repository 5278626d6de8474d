package sentry

import (
	"sync"
	"sync/atomic"

	"github.com/sentrykit/sentrykit/crashctx"
)

// The foreign-exception sentry models an exception crossing an FFI
// boundary (e.g. a cgo callback unwinding through a C++ terminate
// handler): per original_source/KSCrash's BugsnagKSCrashSentry_CPPException,
// by the time the catch-all runs, the original stack is gone, so the
// caller supplies a pre-captured trace rather than this sentry re-unwinding
// one itself. Install/uninstall only arm and disarm the
// ReportForeignException entry point; there is no OS-level signal to
// subscribe to from pure Go.
var (
	foreignMu        sync.Mutex
	foreignCtx       *crashctx.Context
	foreignInstalled atomic.Bool

	// foreignTerminate is called after the on-crash callback returns, by
	// default terminating the process the way an uncaught foreign
	// exception would. Tests override it to observe the call without
	// exiting.
	foreignTerminate = func(code int) { terminateProcess(code) }
)

func installForeignException(ctx *crashctx.Context) error {
	foreignMu.Lock()
	defer foreignMu.Unlock()
	foreignCtx = ctx
	foreignInstalled.Store(true)
	return nil
}

func uninstallForeignException(ctx *crashctx.Context) {
	foreignMu.Lock()
	defer foreignMu.Unlock()
	foreignInstalled.Store(false)
	foreignCtx = nil
}

// ReportForeignException reports an exception caught at an FFI boundary.
// name and reason populate the exception payload; trace is the
// pre-captured stack supplied by the caller, since no stack remains to
// walk by the time a foreign terminate handler runs.
func ReportForeignException(name, reason string, trace []crashctx.Frame) {
	if !foreignInstalled.Load() {
		return
	}

	foreignMu.Lock()
	ctx := foreignCtx
	foreignMu.Unlock()
	if ctx == nil {
		return
	}

	wasHandling := beginHandlingCrash(ctx)
	ctx.Sentry.Source = crashctx.SourceForeignException
	ctx.Sentry.Exception = crashctx.ExceptionPayload{
		Name:       name,
		Reason:     reason,
		StackTrace: trace,
	}
	ctx.Sentry.CrashedDuringCrashHandling = wasHandling

	registry := globalRegistry()

	if wasHandling {
		registry.UninstallAsyncSafe(ctx)
	}

	registry.SuspendForHandling(ctx.Sentry.ReservedThreads, false)

	if ctx.Sentry.OnCrash != nil {
		ctx.Sentry.OnCrash(ctx)
	}

	registry.ResumeAfterHandling()

	foreignTerminate(1)
}
