// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/ezrec/ubpf/cpu"
	"github.com/ezrec/ubpf/internal"
)

// Built-in host function selectors.
const (
	HOST_TRACE = uint32(0x1) // Write r1 in hex to Output.
	HOST_PUTC  = uint32(0x2) // Write the low byte of r1 to Output.
	HOST_TICKS = uint32(0x3) // Return the executed instruction count.
	HOST_GETC  = uint32(0x4) // Return the next byte of Input, or EOF.
)

// EOF is returned by the getc host function at the end of Input.
const EOF = ^uint64(0)

var _emulator_defines = map[string]string{
	"CODE_BYTES": fmt.Sprintf("%#x", cpu.CODE_BYTES),
	"EOF":        "-0x1",
}

// Emulator state. CPU + program + host functions.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	MaxTicks int       // Instruction budget since the last reset. Zero is unlimited.
	Input    io.Reader // Source of the getc host function.
	Output   io.Writer // Destination of the trace and putc host functions.

	hosts map[string]uint32 // Host function selectors, by name.
}

// NewEmulator creates a new emulator, with the built-in host functions
// registered.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(cpu.MEMORY_SIZE),
		Program: &cpu.Program{},
		Input:   strings.NewReader(""),
		Output:  io.Discard,
		hosts:   map[string]uint32{},
	}

	emu.RegisterHost(HOST_TRACE, "trace", emu.hostTrace)
	emu.RegisterHost(HOST_PUTC, "putc", emu.hostPutc)
	emu.RegisterHost(HOST_TICKS, "ticks", emu.hostTicks)
	emu.RegisterHost(HOST_GETC, "getc", emu.hostGetc)

	emu.Cpu.Reset()

	return
}

func (emu *Emulator) hostTrace(_ *cpu.Cpu, args [5]uint64) (ret uint64, err error) {
	_, err = fmt.Fprintf(emu.Output, "%#x\n", args[0])
	return
}

func (emu *Emulator) hostPutc(_ *cpu.Cpu, args [5]uint64) (ret uint64, err error) {
	_, err = emu.Output.Write([]byte{byte(args[0])})
	return
}

func (emu *Emulator) hostGetc(_ *cpu.Cpu, _ [5]uint64) (ret uint64, err error) {
	var one [1]byte
	_, err = io.ReadFull(emu.Input, one[:])
	if errors.Is(err, io.EOF) {
		ret = EOF
		err = nil
		return
	}
	ret = uint64(one[0])
	return
}

func (emu *Emulator) hostTicks(cp *cpu.Cpu, _ [5]uint64) (ret uint64, err error) {
	ret = uint64(cp.Ticks)
	return
}

// RegisterHost installs a host function, reached by `call #selector`.
// The selector is also defined to the assembler as HOST_<NAME>.
func (emu *Emulator) RegisterHost(selector uint32, name string, fn cpu.HostFunc) {
	if emu.Verbose {
		log.Printf("emulator: host %v = %#x", name, selector)
	}

	emu.Cpu.Hosts[selector] = fn
	emu.hosts[name] = selector
}

// hostDefines yields the HOST_<NAME> equates of the host functions.
func (emu *Emulator) hostDefines() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for name, selector := range emu.hosts {
			if !yield("HOST_"+strings.ToUpper(name), fmt.Sprintf("%#x", selector)) {
				return
			}
		}
	}
}

// Defines returns an iterator over all of the defines, in name order.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Sorted(internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		emu.hostDefines(),
	))
}

// Load a program, and reset to run it.
func (emu *Emulator) Load(prog *cpu.Program) {
	emu.Program = prog
	emu.Reset()
}

// Reset the cpu state, and ready the program from its first instruction.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose

	emu.Cpu.Reset()
	emu.Cpu.Load(emu.Program)
}

// Code returns the current instruction code.
func (emu *Emulator) Code() (code cpu.Code) {
	code, _ = emu.Cpu.FetchCode()
	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	return emu.Program.LineNo(emu.Cpu.Ip)
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	if emu.MaxTicks > 0 && emu.Cpu.Ticks >= emu.MaxTicks {
		err = ErrTickLimit
		return
	}

	err = emu.Cpu.Tick()
	if err != nil {
		return
	}

	done = emu.Cpu.State == cpu.STATE_HALTED
	return
}

// Run executes until the program exits, faults, exceeds MaxTicks, or the
// context is done. It returns r0.
func (emu *Emulator) Run(ctx context.Context) (result uint64, err error) {
	for done := false; !done; {
		select {
		case <-ctx.Done():
			err = &ErrRuntime{LineNo: emu.LineNo(), Err: ctx.Err()}
			return
		default:
		}

		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	if emu.Verbose {
		log.Printf("emulator: halted after %d ticks", emu.Cpu.Ticks)
	}

	result = emu.Cpu.Result()
	return
}
