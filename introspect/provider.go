// Package introspect defines the external-collaborator interfaces spec.md
// §1 places out of scope: the machine introspection provider (thread
// registers, suspend/resume, stack walking, loaded-image enumeration), the
// object classifier (interpreting arbitrary pointers as string/array/
// number/date/url/generic object), and the recent-deallocation oracle. The
// core (packages sentry and report) depends only on these interfaces; no
// OS-specific body lives in this package. A build-tag-selected darwin
// implementation of the signal/kernel-level pieces lives in package
// sentry, scoped strictly to what spec.md keeps in scope (installing
// handlers), not to walking registers or memory.
package introspect

import "github.com/sentrykit/sentrykit/crashctx"

// Register is one named general-purpose or exception register value, e.g.
// {"rip", 0x1000}.
type Register struct {
	Name  string
	Value uint64
}

// Frame is one resolved backtrace frame.
type Frame struct {
	ObjectName     string
	ObjectAddr     uint64
	SymbolName     string
	SymbolAddr     uint64
	InstructionAddr uint64
}

// Backtrace is a thread's captured call stack, plus how many leading
// frames were trimmed (spec.md's stack-overflow truncation).
type Backtrace struct {
	Contents []Frame
	Skipped  int
}

// StackDump is the raw byte window around a crashed thread's stack
// pointer, per spec.md §4.E's per-thread "stack" field.
type StackDump struct {
	GrowDirection string // "down" or "up"
	DumpStart     uint64
	DumpEnd       uint64
	StackPointer  uint64
	Overflow      bool
	Contents      []byte
}

// BinaryImage describes one loaded image, drawn from the dynamic linker.
type BinaryImage struct {
	ImageAddr   uint64
	ImageVMAddr uint64
	ImageSize   uint64
	Name        string
	UUID        [16]byte
	CPUType     int32
	CPUSubtype  int32
}

// MemoryStats reports coarse process memory usage for the
// "system_atcrash.memory" report field.
type MemoryStats struct {
	Usable uint64
	Free   uint64
}

// MachineProvider is the "machine introspection provider" spec.md §1
// leaves as an external collaborator: it reads thread registers,
// suspends/resumes threads, walks stacks, and enumerates loaded images.
// Implementations must be safe to call from async-signal / kernel-exception
// context while all other threads are suspended (see spec.md §5).
type MachineProvider interface {
	// Threads returns every live thread handle in the process, current
	// first.
	Threads() []crashctx.ThreadHandle
	// CurrentThread returns the handle for the calling thread.
	CurrentThread() crashctx.ThreadHandle
	// SuspendAllExcept suspends every thread not in reserved. Idempotent:
	// a second call before ResumeAll is a no-op, per spec.md §5.
	SuspendAllExcept(reserved []crashctx.ThreadHandle) error
	// ResumeAll resumes threads suspended by the most recent
	// SuspendAllExcept, in reverse order. Idempotent.
	ResumeAll() error
	// Registers returns the named general-purpose registers for thread.
	Registers(thread crashctx.ThreadHandle) ([]Register, error)
	// ExceptionRegisters returns the exception-specific register subset
	// (only meaningful for the crashed thread).
	ExceptionRegisters(thread crashctx.ThreadHandle) ([]Register, error)
	// Backtrace walks thread's call stack, bounded to maxFrames; if the
	// walk exceeds the implementation's overflow threshold, Skipped trims
	// the leading frames so len(Contents)+Skipped == the true depth, capped
	// at that threshold plus Skipped per spec.md's scenario 6.
	Backtrace(thread crashctx.ThreadHandle, maxFrames int) (Backtrace, error)
	// StackDump returns the raw byte window described by StackDump,
	// reading through SafeCopy so partially-unmapped stacks degrade to
	// per-page {error: "..."} rather than crashing the recorder itself.
	StackDump(thread crashctx.ThreadHandle) (StackDump, error)
	// ThreadName returns the thread's name, if the OS exposes one.
	ThreadName(thread crashctx.ThreadHandle) (string, bool)
	// DispatchQueueName returns the libdispatch queue label associated
	// with thread, if any.
	DispatchQueueName(thread crashctx.ThreadHandle) (string, bool)
	// BinaryImages enumerates every image currently mapped by the
	// dynamic linker.
	BinaryImages() ([]BinaryImage, error)
	// MemoryStats reports coarse usable/free memory.
	MemoryStats() (MemoryStats, error)
	// SafeCopy copies len(dst) bytes from addr into dst, returning an
	// error instead of faulting if any page in range is inaccessible.
	SafeCopy(dst []byte, addr uint64) error
}
