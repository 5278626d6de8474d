// Package report implements spec.md component E: the async-signal-safe
// crash report writer. It streams a structured document directly through
// docenc.Encoder to an open file descriptor while walking live thread
// state, stacks, and heap memory, per spec.md §4.E.
package report

import (
	"github.com/sentrykit/sentrykit/crashctx"
)

// encoder is the subset of *docenc.Encoder this package drives. Every
// method is void and sticky-errors internally (matching docenc's own
// contract: check once, at the end, via Err), so report's helpers never
// thread an error return through a stack frame either — exactly the shape
// spec.md §4.E asks for ("single-pass and allocation-light... each helper
// reserves its scratch on its own stack frame").
type encoder interface {
	BeginObject(name string)
	BeginObjectUnnamed()
	BeginArray(name string)
	BeginArrayUnnamed()
	EndContainer()
	AddBool(name string, val bool)
	AddInt(name string, val int64)
	AddUint(name string, val uint64)
	AddFloat(name string, val float64)
	AddNull(name string)
	AddString(name, val string)
	AddUUID(name string, uuid [16]byte)
	AddHexBytes(name string, b []byte)
	Err() error
}

// signalNames maps the signal numbers this module's sentry traps to their
// conventional names, for the error block's "name" field. The keys are
// Darwin's signal numbers; on Linux, SIGBUS (7) and SIGSYS (31) get no name.
var signalNames = map[int32]string{
	6:  "SIGABRT",
	10: "SIGBUS",
	8:  "SIGFPE",
	4:  "SIGILL",
	13: "SIGPIPE",
	11: "SIGSEGV",
	12: "SIGSYS",
	5:  "SIGTRAP",
}

// machExceptionNames maps Mach exception type constants to their names.
var machExceptionNames = map[int32]string{
	1: "EXC_BAD_ACCESS",
	2: "EXC_BAD_INSTRUCTION",
	3: "EXC_ARITHMETIC",
	4: "EXC_EMULATION",
	5: "EXC_SOFTWARE",
	6: "EXC_BREAKPOINT",
}

// writeErrorBlock writes the normalized "error" object described by
// spec.md §4.E: a type tag, the common address/reason fields, and a
// source-specific nested object.
func writeErrorBlock(w encoder, sentry *crashctx.SentryContext) {
	w.BeginObject("error")
	w.AddString("type", sentry.Source.String())
	if sentry.FaultAddress != 0 {
		w.AddUint("address", sentry.FaultAddress)
	}

	switch sentry.Source {
	case crashctx.SourceMachException:
		writeMachBlock(w, sentry)
	case crashctx.SourceSignal:
		writeSignalBlock(w, sentry)
	case crashctx.SourceLanguageException:
		writeReason(w, sentry.Exception.Reason)
		writeNestedString(w, "cpp_exception", "name", sentry.Exception.Name)
	case crashctx.SourceForeignException:
		writeReason(w, sentry.Exception.Reason)
		writeNestedString(w, "nsexception", "name", sentry.Exception.Name)
	case crashctx.SourceDeadlock:
		writeReason(w, "deadlock detected")
	case crashctx.SourceUserReported:
		writeReason(w, sentry.UserReported.Reason)
		w.BeginObject("user_reported")
		w.AddString("name", sentry.UserReported.Name)
		w.AddString("line_of_code", sentry.UserReported.LineOfCode)
		w.BeginArray("backtrace")
		for _, frame := range sentry.UserReported.StackTrace {
			w.AddString("", frame)
		}
		w.EndContainer()
		w.EndContainer()
	}

	w.EndContainer()
}

func writeReason(w encoder, reason string) {
	if reason == "" {
		return
	}
	w.AddString("reason", reason)
}

func writeNestedString(w encoder, obj, key, value string) {
	w.BeginObject(obj)
	w.AddString(key, value)
	w.EndContainer()
}

func writeMachBlock(w encoder, sentry *crashctx.SentryContext) {
	w.BeginObject("mach")
	w.AddInt("exception", int64(sentry.Mach.Exception))
	if name, ok := machExceptionNames[sentry.Mach.Exception]; ok {
		w.AddString("exception_name", name)
	}
	w.AddInt("code", sentry.Mach.Code)
	w.AddInt("subcode", sentry.Mach.Subcode)
	w.EndContainer()
}

func writeSignalBlock(w encoder, sentry *crashctx.SentryContext) {
	w.BeginObject("signal")
	w.AddInt("signal", int64(sentry.Signal.Signal))
	if name, ok := signalNames[sentry.Signal.Signal]; ok {
		w.AddString("name", name)
	}
	w.AddInt("code", int64(sentry.Signal.Code))
	w.EndContainer()
}
