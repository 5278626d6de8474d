package report

import (
	"github.com/sentrykit/sentrykit/crashctx"
	"github.com/sentrykit/sentrykit/introspect"
)

// threadFrameOverflowThreshold is the backtrace depth past which a
// thread's stack is treated as overflowed, per spec.md §4.E step 1 ("by
// checking whether the offending thread's backtrace length exceeds 200").
const threadFrameOverflowThreshold = 200

// maxBacktraceFrames bounds the walk itself; it must exceed the overflow
// threshold so Skipped can be computed.
const maxBacktraceFrames = threadFrameOverflowThreshold + 64

// stackWindowBehind and stackWindowAhead are the pointer-size multiples
// spec.md §4.E names for the crashed thread's raw stack dump: "20
// pointer-sizes toward grow-direction to 10 pointer-sizes away".
const (
	stackWindowBehind = 20
	stackWindowAhead  = 10
)

// writeThread writes one threads[] entry. offending is the crashed
// thread's handle (zero value if there is none, e.g. a user report with
// no designated offending thread); current is the handle of the thread
// performing the write.
func writeThread(w encoder, deps WriterDeps, index int, thread crashctx.ThreadHandle, offending, current crashctx.ThreadHandle, cfg *crashctx.Configuration) {
	crashed := thread == offending && offending != 0

	w.BeginObjectUnnamed()
	defer w.EndContainer()

	w.AddInt("index", int64(index))

	if cfg.SearchThreadNames {
		if name, ok := deps.Provider.ThreadName(thread); ok {
			w.AddString("name", name)
		}
	}
	if cfg.SearchQueueNames {
		if queue, ok := deps.Provider.DispatchQueueName(thread); ok {
			w.AddString("dispatch_queue", queue)
		}
	}

	w.AddBool("crashed", crashed)
	w.AddBool("current_thread", thread == current)

	writeBacktrace(w, deps.Provider, thread)
	writeRegisterBlock(w, deps.Provider, thread, crashed)

	if crashed {
		writeStackDump(w, deps.Provider, thread)
		regs, _ := deps.Provider.Registers(thread)
		writeNotableAddresses(w, deps.Classifier, &cfg.Introspection, regs, stackSlotAddresses(deps.Provider, thread))
	}
}

func writeBacktrace(w encoder, provider introspect.MachineProvider, thread crashctx.ThreadHandle) {
	bt, err := provider.Backtrace(thread, maxBacktraceFrames)

	w.BeginObject("backtrace")
	w.BeginArray("contents")
	if err == nil {
		for _, f := range bt.Contents {
			w.BeginObjectUnnamed()
			w.AddString("object_name", f.ObjectName)
			w.AddUint("object_addr", f.ObjectAddr)
			w.AddString("symbol_name", f.SymbolName)
			w.AddUint("symbol_addr", f.SymbolAddr)
			w.AddUint("instruction_addr", f.InstructionAddr)
			w.EndContainer()
		}
	}
	w.EndContainer()
	skipped := 0
	if err == nil {
		skipped = bt.Skipped
	}
	w.AddInt("skipped", int64(skipped))
	w.EndContainer()
}

func writeRegisterBlock(w encoder, provider introspect.MachineProvider, thread crashctx.ThreadHandle, crashed bool) {
	w.BeginObject("registers")
	w.BeginObject("basic")
	if regs, err := provider.Registers(thread); err == nil {
		for _, r := range regs {
			w.AddUint(r.Name, r.Value)
		}
	}
	w.EndContainer()

	if crashed {
		w.BeginObject("exception")
		if regs, err := provider.ExceptionRegisters(thread); err == nil {
			for _, r := range regs {
				w.AddUint(r.Name, r.Value)
			}
		}
		w.EndContainer()
	}
	w.EndContainer()
}

func writeStackDump(w encoder, provider introspect.MachineProvider, thread crashctx.ThreadHandle) {
	dump, err := provider.StackDump(thread)

	w.BeginObject("stack")
	defer w.EndContainer()

	if err != nil {
		w.AddString("error", "stack not accessible")
		return
	}
	w.AddString("grow_direction", dump.GrowDirection)
	w.AddUint("dump_start", dump.DumpStart)
	w.AddUint("dump_end", dump.DumpEnd)
	w.AddUint("stack_pointer", dump.StackPointer)
	w.AddBool("overflow", dump.Overflow)
	w.AddHexBytes("contents", dump.Contents)
}

// stackSlotAddresses reads the pointer-sized slots in
// {-stackWindowBehind, +stackWindowAhead} around the crashed thread's
// stack pointer, for the notable-addresses walk. A page that SafeCopy
// cannot reach is simply omitted, per spec.md §4.E's degrade-don't-crash
// rule for remote memory reads.
func stackSlotAddresses(provider introspect.MachineProvider, thread crashctx.ThreadHandle) []uint64 {
	dump, err := provider.StackDump(thread)
	if err != nil || dump.StackPointer == 0 {
		return nil
	}

	const pointerSize = 8
	var out []uint64
	base := dump.StackPointer - stackWindowBehind*pointerSize
	for i := 0; i < stackWindowBehind+stackWindowAhead; i++ {
		addr := base + uint64(i*pointerSize)
		var buf [pointerSize]byte
		if err := provider.SafeCopy(buf[:], addr); err != nil {
			continue
		}
		var v uint64
		for b := pointerSize - 1; b >= 0; b-- {
			v = v<<8 | uint64(buf[b])
		}
		out = append(out, v)
	}
	return out
}
