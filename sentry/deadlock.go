package sentry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/sentrykit/sentrykit/crashctx"
)

// The deadlock watchdog is a heartbeat monitor: the application's main
// run loop calls Heartbeat periodically; if DeadlockWatchdogInterval
// elapses with no heartbeat, the watchdog treats the loop as wedged and
// fires the crash protocol from its own goroutine. A catrate.Limiter
// throttles how often that firing is allowed to re-arm after a recovered
// heartbeat, so a loop that is merely slow (rather than truly deadlocked)
// cannot produce a flood of reports (spec.md §4.D: "deadlock watchdog,
// catrate-limited re-arm").
var (
	deadlockMu      sync.Mutex
	deadlockCtx     *crashctx.Context
	deadlockStop    chan struct{}
	deadlockLast    atomic.Int64 // unix nanos of last heartbeat
	deadlockLimiter = catrate.NewLimiter(map[time.Duration]int{
		time.Minute: 3,
	})
)

// Heartbeat records that the watched run loop made progress. Call it from
// the loop being monitored; calling it from any other thread defeats the
// watchdog's purpose.
func Heartbeat() {
	deadlockLast.Store(time.Now().UnixNano())
}

func installDeadlockWatchdog(ctx *crashctx.Context) error {
	if ctx.Config.DeadlockWatchdogInterval <= 0 {
		return nil
	}

	deadlockMu.Lock()
	defer deadlockMu.Unlock()

	deadlockCtx = ctx
	deadlockLast.Store(time.Now().UnixNano())
	deadlockStop = make(chan struct{})

	interval := time.Duration(ctx.Config.DeadlockWatchdogInterval * float64(time.Second))
	go watchForDeadlock(interval, deadlockStop)
	return nil
}

func uninstallDeadlockWatchdog(ctx *crashctx.Context) {
	deadlockMu.Lock()
	defer deadlockMu.Unlock()
	if deadlockStop != nil {
		close(deadlockStop)
		deadlockStop = nil
	}
	deadlockCtx = nil
}

func watchForDeadlock(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval / 4)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			last := time.Unix(0, deadlockLast.Load())
			if time.Since(last) < interval {
				continue
			}
			if _, ok := deadlockLimiter.Allow("deadlock"); !ok {
				continue
			}
			handleDeadlock()
			// give the loop a chance to recover (or the process to exit via
			// on_crash) before re-checking, so a single stall does not fire
			// on every tick while still within the same unresolved stall.
			deadlockLast.Store(time.Now().UnixNano())
		}
	}
}

func handleDeadlock() {
	deadlockMu.Lock()
	ctx := deadlockCtx
	deadlockMu.Unlock()
	if ctx == nil {
		return
	}

	wasHandling := beginHandlingCrash(ctx)
	ctx.Sentry.Source = crashctx.SourceDeadlock
	ctx.Sentry.CrashedDuringCrashHandling = wasHandling

	registry := globalRegistry()

	if wasHandling {
		registry.UninstallAsyncSafe(ctx)
	}

	registry.SuspendForHandling(ctx.Sentry.ReservedThreads, false)

	if ctx.Sentry.OnCrash != nil {
		ctx.Sentry.OnCrash(ctx)
	}
	if !wasHandling {
		// the process keeps running after a deadlock report; release the
		// recursion guard so the next trip is handled as a fresh one.
		ctx.Sentry.HandlingCrash.Store(false)
	}

	registry.ResumeAfterHandling()
}
