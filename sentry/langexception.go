package sentry

import (
	"bufio"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sentrykit/sentrykit/crashctx"
)

// The original implementation's language-runtime exception sentry
// (original_source/KSCrash's uncaught-C++-exception std::set_terminate
// hook) has no direct Go analogue: Go has no catchable uncaught-exception
// event distinct from a panic. The closest process-wide hook Go's own
// runtime offers is runtime/debug.SetCrashOutput (Go 1.23+), which mirrors
// any fatal runtime crash report — unrecovered panics and runtime-detected
// faults like concurrent map writes — to a second file descriptor before
// the process exits. This sentry reads that stream and synthesizes an
// ExceptionPayload from it, satisfying the same "process is already
// terminating, capture what we can before it's gone" shape as the
// original.
var (
	langMu     sync.Mutex
	langCtx    *crashctx.Context
	langReader *os.File
	langWriter *os.File
)

func installLanguageException(ctx *crashctx.Context) error {
	langMu.Lock()
	defer langMu.Unlock()

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	if err := debug.SetCrashOutput(w, debug.CrashOptions{}); err != nil {
		_ = r.Close()
		_ = w.Close()
		return err
	}

	langCtx = ctx
	langReader = r
	langWriter = w
	go watchLanguageExceptionStream(r)
	return nil
}

func uninstallLanguageException(ctx *crashctx.Context) {
	langMu.Lock()
	defer langMu.Unlock()

	_ = debug.SetCrashOutput(nil, debug.CrashOptions{})
	if langWriter != nil {
		_ = langWriter.Close()
		langWriter = nil
	}
	if langReader != nil {
		_ = langReader.Close()
		langReader = nil
	}
	langCtx = nil
}

// watchLanguageExceptionStream parses the runtime crash report's first
// line ("panic: <value>") and the goroutine stack dump that follows it,
// per the format runtime/debug.SetCrashOutput documents.
func watchLanguageExceptionStream(r *os.File) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var reason string
	var trace []crashctx.Frame
	seenPanic := false

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "panic: "):
			reason = strings.TrimPrefix(line, "panic: ")
			seenPanic = true
		case seenPanic && strings.HasPrefix(line, "\t"):
			trace = append(trace, crashctx.Frame{SymbolName: strings.TrimSpace(line)})
		}
	}

	if !seenPanic {
		return
	}
	handleLanguageException(reason, trace)
}

func handleLanguageException(reason string, trace []crashctx.Frame) {
	langMu.Lock()
	ctx := langCtx
	langMu.Unlock()
	if ctx == nil {
		return
	}

	wasHandling := beginHandlingCrash(ctx)
	ctx.Sentry.Source = crashctx.SourceLanguageException
	ctx.Sentry.Exception = crashctx.ExceptionPayload{
		Name:       "runtime.panic",
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
}
