// Package crashctx defines the single process-wide record shared between
// the installer, the crash sentries, and the report writer (spec.md
// component C). It is a passive record: it holds state but contains no
// install/uninstall/handling logic of its own, per spec.md §9's directive
// to consolidate global singletons into one process-wide record reachable
// from async-signal context only through a stable pointer.
package crashctx

import (
	"sync/atomic"

	"github.com/sentrykit/sentrykit/sessionstate"
)

// SourceType tags which sentry produced a SentryContext.
type SourceType int

const (
	SourceNone SourceType = iota
	SourceMachException
	SourceSignal
	SourceLanguageException
	SourceForeignException
	SourceDeadlock
	SourceUserReported
)

func (s SourceType) String() string {
	switch s {
	case SourceMachException:
		return "mach"
	case SourceSignal:
		return "signal"
	case SourceLanguageException:
		return "cpp_exception"
	case SourceForeignException:
		return "nsexception"
	case SourceDeadlock:
		return "deadlock"
	case SourceUserReported:
		return "user"
	default:
		return "none"
	}
}

// ThreadHandle is an opaque reference to a thread, interpreted by the
// machine introspection provider (see package introspect). Its zero value
// denotes "no thread".
type ThreadHandle uint64

// MachPayload holds the kernel-exception-specific fault fields.
type MachPayload struct {
	Exception int32
	Code      int64
	Subcode   int64
}

// SignalPayload holds the fatal-signal-specific fault fields.
type SignalPayload struct {
	Signal int32
	Code   int32
	// UserContext is an opaque pointer to the OS ucontext_t (or
	// equivalent) captured at signal delivery, interpreted only by the
	// machine introspection provider.
	UserContext uintptr
}

// ExceptionPayload holds the language-runtime/foreign-exception-specific
// fault fields. StackTrace is supplied by the sentry at trap time (the
// runtime's own unwind, not re-derived by the report writer) per
// original_source/KSCrash's BugsnagKSCrashSentry_CPPException.h.
type ExceptionPayload struct {
	Name       string
	Reason     string
	StackTrace []Frame
}

// UserReportedPayload holds the fields supplied to ReportUserException.
type UserReportedPayload struct {
	Name         string
	Reason       string
	LineOfCode   string
	StackTrace   []string
	TerminateAfter bool
}

// Frame is one pre-captured native stack frame, as supplied by a sentry
// that cannot walk the stack itself (language-runtime/foreign exceptions).
type Frame struct {
	InstructionAddr uint64
	SymbolName      string
}

// SentryContext is the per-crash fault record, described by spec.md §3.
// It is zeroed by Clear between crashes, except OnCrash which the
// installer re-pins.
type SentryContext struct {
	Source SourceType

	OffendingThread ThreadHandle
	FaultAddress    uint64

	IsStackOverflow  bool
	RegistersAreValid bool

	// HandlingCrash is true from begin_handling_crash until the on-crash
	// callback returns. It is the recursion guard described in spec.md
	// §4.D; use atomic.Bool methods, never direct field access, since it
	// may be read/written from signal-handler context. The signal,
	// language-exception and foreign-exception sentries leave it set after
	// the callback, since the process ends after them.
	HandlingCrash atomic.Bool

	CrashedDuringCrashHandling bool

	// SuspendThreadsForUserReported is not set by the installer, and Clear
	// zeroes it with the rest of the record; the user-reported sentry reads
	// Configuration.SuspendThreadsForUserReported instead.
	SuspendThreadsForUserReported bool

	Mach         MachPayload
	Signal       SignalPayload
	Exception    ExceptionPayload
	UserReported UserReportedPayload

	// ReservedThreads must never be suspended by
	// suspend_all_threads_except (e.g. the kernel-exception sentry's own
	// primary/secondary message-loop threads).
	ReservedThreads []ThreadHandle

	// OnCrash is re-pinned by the installer on every install/reinstall
	// and is the only SentryContext field Clear does not zero.
	OnCrash func(ctx *Context)
}

// Clear zeroes every SentryContext field except OnCrash, per spec.md §4.C.
func (c *SentryContext) Clear() {
	onCrash := c.OnCrash
	c.HandlingCrash.Store(false)
	*c = SentryContext{OnCrash: onCrash}
}

// IntrospectionPolicy controls whether and how deeply the report writer
// interprets heap memory around notable addresses.
type IntrospectionPolicy struct {
	Enabled bool
	// DoNotIntrospectClasses names classes that must never be deeply
	// introspected; the report still records the class name, but omits
	// value/ivars. Published via copy-then-swap (see SetDoNotIntrospectClasses).
	doNotIntrospectClasses atomic.Pointer[[]string]
}

// SetDoNotIntrospectClasses publishes a new restricted-class list using
// copy-then-swap, per spec.md §9 ("Manually-allocated replaceable string
// and string-array fields: use copy-then-swap publication of immutable
// lists"). The previous slice is left for the garbage collector once no
// reader holds it — Go's GC stands in for the manual allocate/free pair
// the original C implementation used.
func (p *IntrospectionPolicy) SetDoNotIntrospectClasses(names []string) {
	cp := make([]string, len(names))
	copy(cp, names)
	p.doNotIntrospectClasses.Store(&cp)
}

// DoNotIntrospectClasses returns the current restricted-class snapshot.
func (p *IntrospectionPolicy) DoNotIntrospectClasses() []string {
	if v := p.doNotIntrospectClasses.Load(); v != nil {
		return *v
	}
	return nil
}

// IsRestricted reports whether class is in the current restricted list.
func (p *IntrospectionPolicy) IsRestricted(class string) bool {
	for _, c := range p.DoNotIntrospectClasses() {
		if c == class {
			return true
		}
	}
	return false
}

// Configuration holds the installer-owned settings described by spec.md
// §3's Configuration sub-record.
type Configuration struct {
	EnabledSources     SourceTypeSet
	PrintTraceToStdout bool
	SearchThreadNames  bool
	SearchQueueNames   bool
	Introspection      IntrospectionPolicy
	// UserInfoJSON is pre-serialized structured text, inserted verbatim
	// into the "user" report field.
	UserInfoJSON string
	// SystemInfoJSON is pre-serialized structured text, inserted
	// verbatim into the "system" report field.
	SystemInfoJSON string
	CrashID        string
	ProcessName    string
	// OnCrashNotify is invoked by the report writer to produce the
	// "user_atcrash" field; it receives the writer interface (see package
	// report) and returns pre-serialized structured text, or "" to omit
	// the field.
	OnCrashNotify func(w any) string

	DeadlockWatchdogInterval float64 // seconds; 0 disables
	SuspendThreadsForUserReported bool
	ZombieCacheSize int
}

// SourceTypeSet is a bitset over SourceType values.
type SourceTypeSet uint32

func (s SourceTypeSet) Has(t SourceType) bool { return s&(1<<uint(t)) != 0 }
func (s SourceTypeSet) With(t SourceType) SourceTypeSet { return s | (1 << uint(t)) }
func (s SourceTypeSet) Without(t SourceType) SourceTypeSet { return s &^ (1 << uint(t)) }

// AllSources is every source the registry knows about.
const AllSources SourceTypeSet = (1 << uint(SourceMachException)) |
	(1 << uint(SourceSignal)) |
	(1 << uint(SourceLanguageException)) |
	(1 << uint(SourceForeignException)) |
	(1 << uint(SourceDeadlock)) |
	(1 << uint(SourceUserReported))

// Context is the single process-wide record described by spec.md §3: it
// bundles Configuration, the persistent sessionstate.State, and the
// per-crash SentryContext. It is owned by the installer (package
// sentrykit) and borrowed by sentries and the report writer during
// handling.
type Context struct {
	Config Configuration
	State  *sessionstate.State
	Sentry SentryContext

	// CrashReportPath, RecrashReportPath, and StateFilePath are the three
	// paths supplied to install/reinstall (spec.md §6).
	CrashReportPath   string
	RecrashReportPath string
	StateFilePath     string
}

// ClearSentry zeroes the per-crash fault record, preserving OnCrash.
func (c *Context) ClearSentry() { c.Sentry.Clear() }
