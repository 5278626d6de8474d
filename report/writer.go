package report

import (
	"os"
	"time"

	"github.com/sentrykit/sentrykit/crashctx"
	"github.com/sentrykit/sentrykit/docenc"
	"github.com/sentrykit/sentrykit/introspect"
)

// reportVersionMajor and reportVersionMinor are the fixed report-format
// version fields, per spec.md §4.E.
const (
	reportVersionMajor = 3
	reportVersionMinor = 0
)

// WriterDeps bundles the external collaborators the writer walks live
// state through: the machine introspection provider, the object
// classifier, and the recent-deallocation oracle (all out-of-scope
// implementations per spec.md §1 — the writer only depends on their
// interfaces).
type WriterDeps struct {
	Provider   introspect.MachineProvider
	Classifier introspect.ObjectClassifier
	Zombie     introspect.RecentDeallocationOracle
}

// scratchSize is the fixed capacity of the encoder's write-through buffer.
// The buffer is allocated once per report and does not grow while the
// document is encoded.
const scratchSize = 8192

// nowFunc is overridden by tests to avoid depending on wall-clock time.
var nowFunc = time.Now

// WriteMinimalReport implements spec.md §4.E's minimal report: metadata,
// plus a single "crash" object holding only the offending thread and the
// error block. It performs no notable-address analysis and no
// queue-name/thread-name lookup, keeping its working set small enough to
// be safe from any sentry's trap routine. incomplete is set when this
// call is populating the recrash file (spec.md §6: "the minimal report
// plus an incomplete marker"), and omitted for an ordinary minimal report.
func WriteMinimalReport(ctx *crashctx.Context, deps WriterDeps, path string, incomplete bool) error {
	f, err := openReportFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	markStackOverflow(ctx, deps.Provider)

	scratch := make([]byte, scratchSize)
	e := docenc.NewEncoder(newFileSink(f), scratch)

	e.BeginObjectUnnamed()
	e.BeginObject("report")
	writeMetadata(e, ctx, "minimal")

	e.BeginObject("crash")
	writeMinimalCrashThread(e, ctx, deps)
	writeErrorBlock(e, &ctx.Sentry)
	e.EndContainer()

	if incomplete {
		e.AddBool("incomplete", true)
	}

	e.EndContainer()
	e.EndContainer()
	return e.Err()
}

// WriteStandardReport implements spec.md §4.E's standard report: the
// minimal report's contents plus binary_images, process, system,
// system_atcrash, user, the full thread list, and user_atcrash.
func WriteStandardReport(ctx *crashctx.Context, deps WriterDeps, path string) error {
	f, err := openReportFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	markStackOverflow(ctx, deps.Provider)

	scratch := make([]byte, scratchSize)
	e := docenc.NewEncoder(newFileSink(f), scratch)

	e.BeginObjectUnnamed()
	e.BeginObject("report")
	writeMetadata(e, ctx, "standard")

	if deps.Provider != nil {
		writeBinaryImages(e, deps.Provider)
	}
	writeProcessBlock(e, deps.Zombie)

	if ctx.Config.SystemInfoJSON != "" {
		e.AddRawPassthrough("system", []byte(ctx.Config.SystemInfoJSON))
	}
	writeSystemAtCrash(e, ctx, deps.Provider)

	if ctx.Config.UserInfoJSON != "" {
		e.AddRawPassthrough("user", []byte(ctx.Config.UserInfoJSON))
	}

	e.BeginObject("crash")
	writeThreadList(e, ctx, deps)
	writeErrorBlock(e, &ctx.Sentry)
	e.EndContainer()

	if ctx.Config.OnCrashNotify != nil {
		if text := ctx.Config.OnCrashNotify(e); text != "" {
			e.AddRawPassthrough("user_atcrash", []byte(text))
		}
	}

	e.EndContainer()
	e.EndContainer()
	return e.Err()
}

// openReportFile opens path with exclusive create, per spec.md §4.E and
// §5's "O_EXCL | O_CREAT; a pre-existing file causes the writer to return
// without touching it."
func openReportFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// newFileSink adapts an open *os.File to docenc.Sink with a single,
// unbuffered write(2) per call and no allocation, per spec.md §5.
func newFileSink(f *os.File) docenc.Sink {
	return func(p []byte) docenc.SinkStatus {
		if _, err := f.Write(p); err != nil {
			return docenc.SinkCannotAddData
		}
		return docenc.SinkOK
	}
}

func markStackOverflow(ctx *crashctx.Context, provider introspect.MachineProvider) {
	if provider == nil || ctx.Sentry.OffendingThread == 0 {
		return
	}
	bt, err := provider.Backtrace(ctx.Sentry.OffendingThread, maxBacktraceFrames)
	if err == nil && len(bt.Contents)+bt.Skipped > threadFrameOverflowThreshold {
		ctx.Sentry.IsStackOverflow = true
	}
}

func writeMetadata(w encoder, ctx *crashctx.Context, reportType string) {
	w.BeginObject("report")
	w.BeginObject("version")
	w.AddInt("major", reportVersionMajor)
	w.AddInt("minor", reportVersionMinor)
	w.EndContainer()
	w.AddString("id", ctx.Config.CrashID)
	w.AddString("process_name", ctx.Config.ProcessName)
	w.AddInt("timestamp", nowFunc().Unix())
	w.AddString("type", reportType)
	w.EndContainer()
}

func writeMinimalCrashThread(w encoder, ctx *crashctx.Context, deps WriterDeps) {
	w.BeginArray("threads")
	if deps.Provider != nil && ctx.Sentry.OffendingThread != 0 {
		// A zero Configuration turns off thread/queue name lookup and
		// notable-address analysis for this thread.
		var minimal crashctx.Configuration
		writeThread(w, deps, 0, ctx.Sentry.OffendingThread, ctx.Sentry.OffendingThread, currentThread(deps.Provider), &minimal)
	}
	w.EndContainer()
}

func writeThreadList(w encoder, ctx *crashctx.Context, deps WriterDeps) {
	w.BeginArray("threads")
	defer w.EndContainer()

	if deps.Provider == nil {
		return
	}
	current := currentThread(deps.Provider)
	for i, thread := range deps.Provider.Threads() {
		writeThread(w, deps, i, thread, ctx.Sentry.OffendingThread, current, &ctx.Config)
	}
}

func currentThread(provider introspect.MachineProvider) crashctx.ThreadHandle {
	if provider == nil {
		return 0
	}
	return provider.CurrentThread()
}

func writeProcessBlock(w encoder, zombie introspect.RecentDeallocationOracle) {
	if zombie == nil {
		return
	}
	dealloc, ok := zombie.Lookup()
	if !ok {
		return
	}
	w.BeginObject("process")
	w.AddUint("address", dealloc.Address)
	w.AddString("name", dealloc.Name)
	w.AddString("reason", dealloc.Reason)
	w.AddUint("referenced_object", dealloc.ReferencedObject)
	w.BeginArray("backtrace")
	for _, f := range dealloc.Backtrace {
		w.BeginObjectUnnamed()
		w.AddString("symbol_name", f.SymbolName)
		w.AddUint("symbol_addr", f.SymbolAddr)
		w.AddUint("instruction_addr", f.InstructionAddr)
		w.EndContainer()
	}
	w.EndContainer()
	w.EndContainer()
}

func writeSystemAtCrash(w encoder, ctx *crashctx.Context, provider introspect.MachineProvider) {
	w.BeginObject("system_atcrash")
	if provider != nil {
		if stats, err := provider.MemoryStats(); err == nil {
			w.BeginObject("memory")
			w.AddUint("usable", stats.Usable)
			w.AddUint("free", stats.Free)
			w.EndContainer()
		}
	}
	if ctx.State != nil {
		w.BeginObject("application_stats")
		w.AddInt("launches_since_last_crash", ctx.State.LaunchesSinceLastCrash)
		w.AddInt("sessions_since_last_crash", ctx.State.SessionsSinceLastCrash)
		w.AddFloat("active_duration_since_last_crash", ctx.State.ActiveDurationSinceLastCrash)
		w.AddFloat("background_duration_since_last_crash", ctx.State.BackgroundDurationSinceLastCrash)
		w.EndContainer()
	}
	w.EndContainer()
}
