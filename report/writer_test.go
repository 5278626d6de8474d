package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrykit/sentrykit/crashctx"
	"github.com/sentrykit/sentrykit/docenc"
	"github.com/sentrykit/sentrykit/introspect"
	"github.com/sentrykit/sentrykit/sessionstate"
)

type fakeProvider struct {
	threads    []crashctx.ThreadHandle
	current    crashctx.ThreadHandle
	registers  []introspect.Register
	backtraces map[crashctx.ThreadHandle]introspect.Backtrace
	images     []introspect.BinaryImage
	stack      introspect.StackDump
	names      map[crashctx.ThreadHandle]string
}

func (p *fakeProvider) Threads() []crashctx.ThreadHandle { return p.threads }
func (p *fakeProvider) CurrentThread() crashctx.ThreadHandle { return p.current }
func (p *fakeProvider) SuspendAllExcept(_ []crashctx.ThreadHandle) error { return nil }
func (p *fakeProvider) ResumeAll() error { return nil }
func (p *fakeProvider) Registers(crashctx.ThreadHandle) ([]introspect.Register, error) {
	return p.registers, nil
}
func (p *fakeProvider) ExceptionRegisters(crashctx.ThreadHandle) ([]introspect.Register, error) {
	return p.registers, nil
}
func (p *fakeProvider) Backtrace(thread crashctx.ThreadHandle, _ int) (introspect.Backtrace, error) {
	return p.backtraces[thread], nil
}
func (p *fakeProvider) StackDump(crashctx.ThreadHandle) (introspect.StackDump, error) {
	return p.stack, nil
}
func (p *fakeProvider) ThreadName(thread crashctx.ThreadHandle) (string, bool) {
	name, ok := p.names[thread]
	return name, ok
}
func (p *fakeProvider) DispatchQueueName(crashctx.ThreadHandle) (string, bool) { return "", false }
func (p *fakeProvider) BinaryImages() ([]introspect.BinaryImage, error)       { return p.images, nil }
func (p *fakeProvider) MemoryStats() (introspect.MemoryStats, error) {
	return introspect.MemoryStats{Usable: 100, Free: 50}, nil
}
func (p *fakeProvider) SafeCopy(dst []byte, _ uint64) error {
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func newTestContext() *crashctx.Context {
	ctx := &crashctx.Context{}
	ctx.Config.CrashID = "abc-123"
	ctx.Config.ProcessName = "testproc"
	ctx.Sentry.Source = crashctx.SourceSignal
	ctx.Sentry.OffendingThread = 1
	ctx.Sentry.Signal = crashctx.SignalPayload{Signal: 11}
	return ctx
}

func TestWriteMinimalReport_ContainsMetadataAndErrorBlock(t *testing.T) {
	old := nowFunc
	nowFunc = func() time.Time { return time.Unix(1700000000, 0) }
	defer func() { nowFunc = old }()

	ctx := newTestContext()
	provider := &fakeProvider{
		threads: []crashctx.ThreadHandle{1},
		current: 1,
		backtraces: map[crashctx.ThreadHandle]introspect.Backtrace{
			1: {Contents: []introspect.Frame{{SymbolName: "main.crash"}}},
		},
	}

	path := filepath.Join(t.TempDir(), "minimal.report")
	err := WriteMinimalReport(ctx, WriterDeps{Provider: provider}, path, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var gotType, gotErrorType string
	var gotTimestamp int64
	var gotMajor, gotMinor int64
	var sawIncomplete bool
	require.NoError(t, docenc.Decode(data, docenc.Callbacks{
		String: func(name string, hasName bool, val string) {
			switch name {
			case "type":
				if gotType == "" {
					gotType = val
				} else {
					gotErrorType = val
				}
			}
		},
		Int: func(name string, hasName bool, val int64) {
			switch name {
			case "timestamp":
				gotTimestamp = val
			case "major":
				gotMajor = val
			case "minor":
				gotMinor = val
			}
		},
		Bool: func(name string, hasName bool, val bool) {
			if name == "incomplete" {
				sawIncomplete = true
			}
		},
	}))

	assert.Equal(t, "minimal", gotType)
	assert.Equal(t, "signal", gotErrorType)
	assert.Equal(t, int64(1700000000), gotTimestamp)
	assert.Equal(t, int64(3), gotMajor)
	assert.Equal(t, int64(0), gotMinor)
	assert.False(t, sawIncomplete)
}

func TestWriteMinimalReport_FailsIfFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.report")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := WriteMinimalReport(newTestContext(), WriterDeps{}, path, false)
	assert.Error(t, err)
}

func TestWriteMinimalReport_IncompleteMarksRecrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recrash.report")
	err := WriteMinimalReport(newTestContext(), WriterDeps{}, path, true)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var sawIncomplete bool
	require.NoError(t, docenc.Decode(data, docenc.Callbacks{
		Bool: func(name string, hasName bool, val bool) {
			if name == "incomplete" && val {
				sawIncomplete = true
			}
		},
	}))
	assert.True(t, sawIncomplete)
}

func TestWriteStandardReport_IncludesBinaryImagesAndSystemAtCrash(t *testing.T) {
	ctx := newTestContext()
	ctx.State = &sessionstate.State{LaunchesSinceLastCrash: 3, SessionsSinceLastCrash: 7}

	provider := &fakeProvider{
		threads: []crashctx.ThreadHandle{1, 2},
		current: 2,
		backtraces: map[crashctx.ThreadHandle]introspect.Backtrace{
			1: {Contents: []introspect.Frame{{SymbolName: "main.crash"}}},
			2: {Contents: []introspect.Frame{{SymbolName: "main.idle"}}},
		},
		images: []introspect.BinaryImage{{Name: "libfoo.dylib", ImageAddr: 0x1000}},
	}

	path := filepath.Join(t.TempDir(), "standard.report")
	err := WriteStandardReport(ctx, WriterDeps{Provider: provider}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var gotImageName string
	var gotLaunches int64
	require.NoError(t, docenc.Decode(data, docenc.Callbacks{
		String: func(name string, hasName bool, val string) {
			if name == "name" && val == "libfoo.dylib" {
				gotImageName = val
			}
		},
		Int: func(name string, hasName bool, val int64) {
			if name == "launches_since_last_crash" {
				gotLaunches = val
			}
		},
	}))

	assert.Equal(t, "libfoo.dylib", gotImageName)
	assert.Equal(t, int64(3), gotLaunches)
}
