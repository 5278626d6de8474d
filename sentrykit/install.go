package sentrykit

import (
	"os"

	"github.com/sentrykit/sentrykit/crashctx"
	"github.com/sentrykit/sentrykit/introspect"
	"github.com/sentrykit/sentrykit/report"
	"github.com/sentrykit/sentrykit/sentry"
	"github.com/sentrykit/sentrykit/sessionstate"
)

// notifyScratchSize is the scratch buffer NotifyAppCrash encodes into on
// the crash path; sized generously for sessionstate.State's fixed field
// set, per spec.md §5's no-allocation-on-the-crash-path rule.
const notifyScratchSize = 512

// Installer wires crashctx (component C), the sentry registry (component
// D), and the report writer (component E) behind the public surface
// spec.md §4.F describes. It owns the single process-wide crashctx.Context
// for its lifetime.
type Installer struct {
	ctx      *crashctx.Context
	registry *sentry.Registry
	deps     report.WriterDeps
}

// New constructs an Installer. provider, classifier, and zombie are the
// external collaborators spec.md §1 leaves out of scope (machine
// introspection, object classification, recent-deallocation tracking);
// classifier and zombie may be nil, degrading the corresponding report
// fields gracefully.
func New(provider introspect.MachineProvider, classifier introspect.ObjectClassifier, zombie introspect.RecentDeallocationOracle, options ...Option) *Installer {
	ctx := &crashctx.Context{
		Config: crashctx.Configuration{
			EnabledSources: crashctx.AllSources,
		},
	}
	for _, o := range options {
		o.apply(&ctx.Config)
	}

	in := &Installer{
		ctx:      ctx,
		registry: sentry.NewRegistry(provider),
		deps:     report.WriterDeps{Provider: provider, Classifier: classifier, Zombie: zombie},
	}
	return in
}

// Configure applies additional options to a live Installer, e.g. the
// individual flags/setters spec.md §4.F names (introspection toggle,
// restricted class list, deadlock watchdog interval, ...). It does not
// reinstall sentries; call Reinstall to pick up EnabledSources changes.
func (in *Installer) Configure(options ...Option) {
	for _, o := range options {
		o.apply(&in.ctx.Config)
	}
}

// Install loads persistent session state from stateFilePath, pins the
// report paths and crash ID, and installs the configured crash sources.
// It is idempotent: a later call to Install or Reinstall re-evaluates the
// sentry set from scratch (spec.md §4.F: "paths replace, sentries
// re-evaluated").
func (in *Installer) Install(crashReportPath, recrashReportPath, stateFilePath, crashID string) (crashctx.SourceTypeSet, error) {
	state, err := sessionstate.Init(stateFilePath, sessionstate.RealClock)
	if err != nil {
		logInstallError(err)
		return 0, err
	}

	in.ctx.State = state
	in.ctx.StateFilePath = stateFilePath
	in.ctx.CrashReportPath = crashReportPath
	in.ctx.RecrashReportPath = recrashReportPath
	in.ctx.Config.CrashID = crashID

	installed := in.registry.InstallWithContext(in.ctx, in.ctx.Config.EnabledSources, in.onCrash)
	logInstall(crashReportPath, bitsetPopcount(installed))
	return installed, nil
}

func bitsetPopcount(s crashctx.SourceTypeSet) int {
	n := 0
	for v := uint32(s); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Reinstall is an alias for Install, named separately per spec.md §4.F's
// public API list; both calls are idempotent and behave identically.
func (in *Installer) Reinstall(crashReportPath, recrashReportPath, stateFilePath, crashID string) (crashctx.SourceTypeSet, error) {
	return in.Install(crashReportPath, recrashReportPath, stateFilePath, crashID)
}

// Installed returns the bitset of sources currently installed.
func (in *Installer) Installed() crashctx.SourceTypeSet {
	return in.registry.Installed()
}

// Heartbeat resets the deadlock watchdog's liveness timer. Callers on the
// monitored thread/loop should call this periodically; see
// sentry.Heartbeat.
func (in *Installer) Heartbeat() {
	sentry.Heartbeat()
}

// ReportUserException records a synthetic, caller-detected crash through
// the user-reported sentry; see sentry.ReportUserException.
func (in *Installer) ReportUserException(name, reason, lineOfCode string, stackTrace []string, terminateAfter bool) {
	sentry.ReportUserException(name, reason, lineOfCode, stackTrace, terminateAfter)
}

// onCrash is installed as every sentry's shared callback. It persists
// session state, then writes either a standard report (first crash) or a
// minimal report tagged incomplete to the recrash path (second entrant —
// spec.md §7's "crashed during crash handling" case).
func (in *Installer) onCrash(ctx *crashctx.Context) {
	if ctx.State != nil {
		_ = ctx.State.NotifyAppCrash(ctx.StateFilePath, make([]byte, notifyScratchSize), sessionstate.RealClock)
	}

	if ctx.Sentry.CrashedDuringCrashHandling {
		_ = report.WriteMinimalReport(ctx, in.deps, ctx.RecrashReportPath, true)
	} else {
		_ = report.WriteStandardReport(ctx, in.deps, ctx.CrashReportPath)
	}

	if ctx.Config.PrintTraceToStdout {
		in.printTraceToStdout(ctx)
	}
}

// printTraceToStdout mirrors the just-written crash report to stdout, for
// interactive debugging (spec.md §4.F's print-trace-to-stdout setter).
func (in *Installer) printTraceToStdout(ctx *crashctx.Context) {
	path := ctx.CrashReportPath
	if ctx.Sentry.CrashedDuringCrashHandling {
		path = ctx.RecrashReportPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_, _ = os.Stdout.Write(data)
}
