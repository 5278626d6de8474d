//go:build !darwin

package sentry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentrykit/sentrykit/crashctx"
)

func TestInstallKernelException_UnsupportedOffDarwin(t *testing.T) {
	ctx := &crashctx.Context{}
	err := installKernelException(ctx)
	assert.ErrorIs(t, err, ErrKernelExceptionUnsupported)
}
