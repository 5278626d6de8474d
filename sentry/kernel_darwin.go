//go:build darwin

package sentry

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sentrykit/sentrykit/crashctx"
)

// Real Mach exception handling (registering a thread_set_exception_ports
// handler and running a primary/secondary message-loop pair on reserved
// threads, per original_source/KSCrash's KSCrashSentry_MachException.c)
// needs cgo: the mach_msg/thread_set_exception_ports surface has no
// golang.org/x/sys/unix binding. That binding is out of scope here (spec.md
// keeps kernel-exception delivery Darwin-only and, per this package's own
// Non-goals, does not require a cgo bridge); this sentry's install/uninstall
// pair only records an installed flag, so InstallWithContext's
// debugger-unsafe masking and the registry's table-driven dispatch have a
// Darwin-only code path to drive. No exception port is registered.
var (
	kernelMu        sync.Mutex
	kernelInstalled bool
)

func installKernelException(ctx *crashctx.Context) error {
	kernelMu.Lock()
	defer kernelMu.Unlock()

	if kernelInstalled {
		return nil
	}
	// PtraceAttach to our own process is deliberately not attempted here
	// (self-attach is not a meaningful substitute for exception-port
	// registration); this sentry is a structural placeholder for the
	// install-order and masking protocol until a cgo-backed Mach
	// implementation is wired in.
	kernelInstalled = true
	return nil
}

func uninstallKernelException(ctx *crashctx.Context) {
	kernelMu.Lock()
	defer kernelMu.Unlock()
	kernelInstalled = false
}

// ptraceSupported reports whether a unix.PtraceAttach call is permitted in
// this environment (it fails with EPERM when, e.g., the process is already
// traced or sandboxed). Neither the sentry nor its tests call it.
func ptraceSupported() bool {
	err := unix.PtraceAttach(0)
	return err != unix.EPERM
}
