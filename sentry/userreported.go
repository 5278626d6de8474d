package sentry

import (
	"sync"
	"sync/atomic"

	"github.com/sentrykit/sentrykit/crashctx"
)

// The user-reported sentry has no OS hook at all: it only arms the
// ReportUserException entry point described by spec.md's external
// interfaces section, honoring Configuration.SuspendThreadsForUserReported
// so a caller that opted out of suspending other threads for a
// non-fatal report gets that behavior.
var (
	userMu        sync.Mutex
	userCtx       *crashctx.Context
	userInstalled atomic.Bool
	userRegistry  *Registry
)

func installUserReported(ctx *crashctx.Context) error {
	userMu.Lock()
	defer userMu.Unlock()
	userCtx = ctx
	userRegistry = globalRegistry()
	userInstalled.Store(true)
	return nil
}

func uninstallUserReported(ctx *crashctx.Context) {
	userMu.Lock()
	defer userMu.Unlock()
	userInstalled.Store(false)
	userCtx = nil
	userRegistry = nil
}

// ReportUserException implements spec.md's user-reported external
// interface: name/reason/lineOfCode/stackTrace populate the
// UserReportedPayload; terminateAfter decides whether the process is
// terminated once the report completes, matching the original's
// reportUserException(..., terminate) signature. When it is false, the
// fault record (recursion guard included) is cleared before other threads
// are resumed.
func ReportUserException(name, reason, lineOfCode string, stackTrace []string, terminateAfter bool) {
	if !userInstalled.Load() {
		return
	}

	userMu.Lock()
	ctx := userCtx
	registry := userRegistry
	userMu.Unlock()
	if ctx == nil {
		return
	}

	wasHandling := beginHandlingCrash(ctx)
	ctx.Sentry.Source = crashctx.SourceUserReported
	ctx.Sentry.UserReported = crashctx.UserReportedPayload{
		Name:           name,
		Reason:         reason,
		LineOfCode:     lineOfCode,
		StackTrace:     stackTrace,
		TerminateAfter: terminateAfter,
	}
	ctx.Sentry.CrashedDuringCrashHandling = wasHandling

	if wasHandling {
		globalRegistry().UninstallAsyncSafe(ctx)
	}

	skipSuspend := !ctx.Config.SuspendThreadsForUserReported
	if registry != nil {
		registry.SuspendForHandling(ctx.Sentry.ReservedThreads, skipSuspend)
	}

	if ctx.Sentry.OnCrash != nil {
		ctx.Sentry.OnCrash(ctx)
	}

	if !terminateAfter {
		ctx.ClearSentry()
	}

	if registry != nil {
		registry.ResumeAfterHandling()
	}

	if terminateAfter {
		terminateProcess(1)
	}
}
