package sentry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrykit/sentrykit/crashctx"
)

type fakeThreadSuspender struct {
	suspendCalls int
	resumeCalls  int
}

func (f *fakeThreadSuspender) SuspendAllExcept(_ []crashctx.ThreadHandle) error {
	f.suspendCalls++
	return nil
}

func (f *fakeThreadSuspender) ResumeAll() error {
	f.resumeCalls++
	return nil
}

func TestRegistry_InstallWithContext_PinsOnCrashAndReturnsInstalledSet(t *testing.T) {
	r := NewRegistry(nil)
	ctx := &crashctx.Context{}
	ctx.Config.DeadlockWatchdogInterval = 0 // keep the deadlock watchdog disabled in this test

	called := false
	installed := r.InstallWithContext(ctx, crashctx.AllSources, func(*crashctx.Context) { called = true })

	require.NotNil(t, ctx.Sentry.OnCrash)
	assert.True(t, installed.Has(crashctx.SourceSignal))
	assert.True(t, installed.Has(crashctx.SourceForeignException))
	assert.True(t, installed.Has(crashctx.SourceUserReported))

	ctx.Sentry.OnCrash(ctx)
	assert.True(t, called)

	r.uninstallAll(ctx)
}

func TestRegistry_InstallWithContext_MasksDebuggerUnsafeSourcesWhenDebuggerAttached(t *testing.T) {
	old := IsDebuggerAttached
	IsDebuggerAttached = func() bool { return true }
	defer func() { IsDebuggerAttached = old }()

	r := NewRegistry(nil)
	ctx := &crashctx.Context{}

	installed := r.InstallWithContext(ctx, crashctx.AllSources, nil)
	assert.False(t, installed.Has(crashctx.SourceMachException))
	assert.False(t, installed.Has(crashctx.SourceLanguageException))
	assert.True(t, installed.Has(crashctx.SourceSignal), "signal sentry is not debugger-unsafe")

	r.uninstallAll(ctx)
}

func TestRegistry_SuspendForHandling_IsIdempotentAndSkippable(t *testing.T) {
	provider := &fakeThreadSuspender{}
	r := NewRegistry(provider)

	r.SuspendForHandling(nil, false)
	r.SuspendForHandling(nil, false)
	assert.Equal(t, 1, provider.suspendCalls, "a second suspend before resume must be a no-op")

	r.ResumeAfterHandling()
	r.ResumeAfterHandling()
	assert.Equal(t, 1, provider.resumeCalls, "a second resume before suspend must be a no-op")

	provider.suspendCalls = 0
	r.SuspendForHandling(nil, true)
	assert.Zero(t, provider.suspendCalls, "skip=true must bypass suspension entirely")
}
