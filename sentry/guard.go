// Package sentry implements spec.md component D: the registry of crash
// sources (kernel exception, fatal signal, language-runtime exception,
// foreign exception, deadlock watchdog, user report), their shared
// recursion guard, and the thread-suspension protocol.
package sentry

import (
	"sync/atomic"

	"github.com/sentrykit/sentrykit/crashctx"
)

// suspendState is an idempotent atomic flag tracking whether
// suspend_all_threads_except has suspended the non-reserved threads,
// mirroring eventloop's FastState CAS-driven state machine (see
// eventloop/state.go), but collapsed to the two states this protocol
// needs: threads running / threads suspended. A mutex is not used because
// this flag must be flippable from signal-handler context (spec.md §5).
type suspendState struct {
	running atomic.Bool
}

func newSuspendState() *suspendState {
	s := &suspendState{}
	s.running.Store(true)
	return s
}

// trySuspend transitions running->suspended. Returns false if already
// suspended (double-suspend is a no-op, per spec.md §5).
func (s *suspendState) trySuspend() bool {
	return s.running.CompareAndSwap(true, false)
}

// tryResume transitions suspended->running. Returns false if already
// running (double-resume is a no-op).
func (s *suspendState) tryResume() bool {
	return s.running.CompareAndSwap(false, true)
}

// beginHandlingCrash implements the opening protocol shared by every
// sentry's trap routine (spec.md §4.D, steps 1-2): read handling_crash,
// then unconditionally clear and re-arm the context. It returns
// wasHandling, the value observed before this call; the caller (per step
// 4) is responsible for setting CrashedDuringCrashHandling when
// wasHandling is true and for uninstalling async-safe sources.
func beginHandlingCrash(ctx *crashctx.Context) (wasHandling bool) {
	wasHandling = ctx.Sentry.HandlingCrash.Load()
	ctx.Sentry.Clear()
	ctx.Sentry.HandlingCrash.Store(true)
	return wasHandling
}
