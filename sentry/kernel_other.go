//go:build !darwin

package sentry

import (
	"errors"

	"github.com/sentrykit/sentrykit/crashctx"
)

// ErrKernelExceptionUnsupported is returned by installKernelException on
// any platform other than Darwin, per spec.md §6's Non-goal ("non-Darwin
// kernel-exception delivery").
var ErrKernelExceptionUnsupported = errors.New("sentry: kernel-exception sentry is darwin-only")

func installKernelException(ctx *crashctx.Context) error {
	return ErrKernelExceptionUnsupported
}

func uninstallKernelException(ctx *crashctx.Context) {}
