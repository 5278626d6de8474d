package sentry

import (
	"sync/atomic"

	"github.com/sentrykit/sentrykit/crashctx"
)

// Descriptor pairs one crash source's install/uninstall operations with
// its type tag, replacing the "function-pointer table" of the original
// implementation with a plain Go value per spec.md §9's redesign note
// ("model as a fixed array of values carrying a tag and two operations; no
// dynamic dispatch is required").
type Descriptor struct {
	Type crashctx.SourceType
	// DebuggerUnsafe sources are masked out at install time when a
	// debugger is attached (spec.md §4.D).
	DebuggerUnsafe bool
	Install        func(ctx *crashctx.Context) error
	Uninstall      func(ctx *crashctx.Context)
}

// IsDebuggerAttached reports whether a debugger appears attached to the
// current process. It is a variable (not a constant function) so tests can
// override it; production code should set it once at program start to a
// platform-specific check (e.g. reading TracerPid on Linux, or the
// equivalent P_TRACED flag on a Darwin-like system via the machine
// introspection provider — out of this package's scope per spec.md §1).
var IsDebuggerAttached = func() bool { return false }

// Registry is the fixed table of sources described by spec.md §4.D.
type Registry struct {
	Sources []Descriptor

	installed  crashctx.SourceTypeSet
	suspend    *suspendState
	reserved   []crashctx.ThreadHandle
	introspect ThreadSuspender
}

// ThreadSuspender is the subset of introspect.MachineProvider the registry
// needs for the suspension protocol, named locally to avoid sentry
// importing introspect for anything but this one seam.
type ThreadSuspender interface {
	SuspendAllExcept(reserved []crashctx.ThreadHandle) error
	ResumeAll() error
}

// current is the process-wide registry instance. Crash handling is
// necessarily a process-wide concern (signals and kernel exceptions are
// not scoped to a Context), so trap routines installed as free functions
// (see signal_unix.go, langexception.go, foreignexception.go,
// deadlock.go, userreported.go) reach their owning Registry through this pointer
// rather than through a closure, mirroring how the fixed dispatch table
// itself is process-wide per spec.md §9.
var current atomic.Pointer[Registry]

func globalRegistry() *Registry {
	if r := current.Load(); r != nil {
		return r
	}
	return NewRegistry(nil)
}

// NewRegistry builds the fixed source table, wired to provider for the
// thread-suspension protocol, and publishes it as the process-wide
// registry trap routines resolve via globalRegistry.
func NewRegistry(provider ThreadSuspender) *Registry {
	r := &Registry{
		suspend:    newSuspendState(),
		introspect: provider,
	}
	r.Sources = []Descriptor{
		{Type: crashctx.SourceMachException, DebuggerUnsafe: true, Install: installKernelException, Uninstall: uninstallKernelException},
		{Type: crashctx.SourceSignal, Install: installSignalSentry, Uninstall: uninstallSignalSentry},
		{Type: crashctx.SourceLanguageException, DebuggerUnsafe: true, Install: installLanguageException, Uninstall: uninstallLanguageException},
		{Type: crashctx.SourceForeignException, Install: installForeignException, Uninstall: uninstallForeignException},
		{Type: crashctx.SourceDeadlock, Install: installDeadlockWatchdog, Uninstall: uninstallDeadlockWatchdog},
		{Type: crashctx.SourceUserReported, Install: installUserReported, Uninstall: uninstallUserReported},
	}
	current.Store(r)
	return r
}

// Installed returns the bitset of sources currently installed.
func (r *Registry) Installed() crashctx.SourceTypeSet { return r.installed }

// InstallWithContext clears ctx, pins onCrash, masks out debugger-unsafe
// sources if a debugger is attached, and installs every selected source in
// table order, per spec.md §4.D. It returns the bitmask of sources that
// actually succeeded; a source failing to install is not fatal to the
// others (spec.md §7's "Fatal at install" category).
func (r *Registry) InstallWithContext(ctx *crashctx.Context, types crashctx.SourceTypeSet, onCrash func(*crashctx.Context)) crashctx.SourceTypeSet {
	ctx.ClearSentry()
	ctx.Sentry.OnCrash = onCrash

	if IsDebuggerAttached() {
		types = types.Without(crashctx.SourceMachException).Without(crashctx.SourceLanguageException)
	}

	r.uninstallAll(ctx)

	var installed crashctx.SourceTypeSet
	for _, d := range r.Sources {
		if !types.Has(d.Type) {
			continue
		}
		if err := d.Install(ctx); err == nil {
			installed = installed.With(d.Type)
		}
	}
	r.installed = installed
	return installed
}

// uninstallAll uninstalls every currently-installed source, in table
// order, used before re-installing (reinstall is idempotent).
func (r *Registry) uninstallAll(ctx *crashctx.Context) {
	for _, d := range r.Sources {
		if r.installed.Has(d.Type) {
			d.Uninstall(ctx)
		}
	}
	r.installed = 0
}

// UninstallAsyncSafe uninstalls every installed source except the ones
// whose trap routines are not reachable from async-signal context in a
// way that matters here (per spec.md §4.D step 4: "uninstalls all
// async-safe sources" on the second entrant, so the on-crash callback
// takes the minimal-report branch and no third attempt can occur). All six
// sources in this registry qualify, so this currently uninstalls every
// installed source; it is kept distinct from uninstallAll so the
// recursion-guard call site names its intent.
func (r *Registry) UninstallAsyncSafe(ctx *crashctx.Context) {
	r.uninstallAll(ctx)
}

// SuspendForHandling suspends every thread except reserved, unless
// skip is true (the user-reported source with
// suspend_threads_for_user_reported disabled). It is idempotent per
// spec.md §5.
func (r *Registry) SuspendForHandling(reserved []crashctx.ThreadHandle, skip bool) {
	if skip {
		return
	}
	if !r.suspend.trySuspend() {
		return
	}
	r.reserved = reserved
	if r.introspect != nil {
		_ = r.introspect.SuspendAllExcept(reserved)
	}
}

// ResumeAfterHandling resumes threads suspended by SuspendForHandling, in
// reverse order (here: a single resume call, since the provider owns
// ordering internally).
func (r *Registry) ResumeAfterHandling() {
	if !r.suspend.tryResume() {
		return
	}
	if r.introspect != nil {
		_ = r.introspect.ResumeAll()
	}
}
