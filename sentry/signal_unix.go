//go:build darwin || linux

package sentry

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sentrykit/sentrykit/crashctx"
)

// fatalSignals is the set this sentry traps, per spec.md §4.D's "fatal
// signal sentry": SIGABRT, SIGBUS, SIGFPE, SIGILL, SIGPIPE, SIGSEGV,
// SIGSYS, SIGTRAP. Pure Go cannot install a raw sigaction handler (no cgo
// trampoline is available here), so this sentry rides the one hook the
// runtime actually offers for synchronous fault signals: os/signal's
// documented cooperation with signal.Notify for SIGSEGV/SIGBUS/SIGFPE (and,
// by extension, the other members of this set) — "the Go runtime will not
// itself terminate the program" once a channel is notified, leaving the
// trap routine responsible for re-raising.
var fatalSignals = []os.Signal{
	syscall.SIGABRT,
	syscall.SIGBUS,
	syscall.SIGFPE,
	syscall.SIGILL,
	syscall.SIGPIPE,
	syscall.SIGSEGV,
	syscall.SIGSYS,
	syscall.SIGTRAP,
}

var (
	signalMu   sync.Mutex
	signalCtx  *crashctx.Context
	signalCh   chan os.Signal
	signalStop chan struct{}
)

func installSignalSentry(ctx *crashctx.Context) error {
	signalMu.Lock()
	defer signalMu.Unlock()

	signalCtx = ctx
	signalCh = make(chan os.Signal, len(fatalSignals))
	signalStop = make(chan struct{})
	signal.Notify(signalCh, fatalSignals...)

	go signalLoop(signalCh, signalStop)
	return nil
}

func uninstallSignalSentry(ctx *crashctx.Context) {
	signalMu.Lock()
	defer signalMu.Unlock()

	if signalCh != nil {
		signal.Stop(signalCh)
		close(signalStop)
		signalCh = nil
	}
	signalCtx = nil
}

func signalLoop(ch chan os.Signal, stop chan struct{}) {
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return
			}
			handleFatalSignal(sig)
		case <-stop:
			return
		}
	}
}

// handleFatalSignal is the trap routine invoked on receipt of any signal in
// fatalSignals. It implements spec.md §4.D's shared protocol: recursion
// guard, payload capture, suspend, invoke on_crash, re-raise. FaultAddress
// and the signal's siginfo code are left zero: os/signal's Notify channel
// carries only the signal number, never siginfo_t, in the absence of cgo.
func handleFatalSignal(sig os.Signal) {
	signalMu.Lock()
	ctx := signalCtx
	signalMu.Unlock()
	if ctx == nil {
		return
	}

	unixSig, _ := sig.(syscall.Signal)

	wasHandling := beginHandlingCrash(ctx)
	ctx.Sentry.Source = crashctx.SourceSignal
	ctx.Sentry.Signal = crashctx.SignalPayload{Signal: int32(unixSig)}
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

	reraiseFunc(unixSig)
}

// reraiseFunc releases the signal back to its default disposition and
// re-delivers it to the process, per os/signal's documented contract
// ("the program must release the signal ... and may then reraise [it] to
// cause a core dump or a clean exit, as appropriate") and spec.md §4.D's
// final step. It is a var so tests can observe a trap firing without
// actually terminating the test binary.
var reraiseFunc = func(sig syscall.Signal) {
	signal.Reset(sig)
	_ = unix.Kill(unix.Getpid(), sig)
}
