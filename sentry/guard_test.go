package sentry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentrykit/sentrykit/crashctx"
)

func TestSuspendState_IdempotentSuspendResume(t *testing.T) {
	s := newSuspendState()

	assert.True(t, s.trySuspend())
	assert.False(t, s.trySuspend(), "second suspend before resume must be a no-op")

	assert.True(t, s.tryResume())
	assert.False(t, s.tryResume(), "second resume before suspend must be a no-op")
}

func TestBeginHandlingCrash_FirstEntrantSeesNotHandling(t *testing.T) {
	ctx := &crashctx.Context{}
	ctx.Sentry.FaultAddress = 0xdead

	wasHandling := beginHandlingCrash(ctx)
	assert.False(t, wasHandling)
	assert.True(t, ctx.Sentry.HandlingCrash.Load())
	assert.Zero(t, ctx.Sentry.FaultAddress, "begin_handling_crash must clear the prior fault record")
}

func TestBeginHandlingCrash_SecondEntrantSeesHandling(t *testing.T) {
	ctx := &crashctx.Context{}

	first := beginHandlingCrash(ctx)
	assert.False(t, first)

	second := beginHandlingCrash(ctx)
	assert.True(t, second, "re-entry while handling_crash is set must be reported to the caller")
}

func TestBeginHandlingCrash_PreservesOnCrash(t *testing.T) {
	ctx := &crashctx.Context{}
	called := false
	ctx.Sentry.OnCrash = func(*crashctx.Context) { called = true }

	beginHandlingCrash(ctx)
	assert.NotNil(t, ctx.Sentry.OnCrash)

	ctx.Sentry.OnCrash(ctx)
	assert.True(t, called)
}
