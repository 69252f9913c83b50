package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/bits"
)

// CodeAluOp is the ALU operation held in the high nibble of an ALU opcode.
type CodeAluOp int

//go:generate go tool stringer -linecomment -type=CodeAluOp
const (
	ALU_OP_ADD  = CodeAluOp(0x0) // add
	ALU_OP_SUB  = CodeAluOp(0x1) // sub
	ALU_OP_MUL  = CodeAluOp(0x2) // mul
	ALU_OP_DIV  = CodeAluOp(0x3) // div
	ALU_OP_OR   = CodeAluOp(0x4) // or
	ALU_OP_AND  = CodeAluOp(0x5) // and
	ALU_OP_LSH  = CodeAluOp(0x6) // lsh
	ALU_OP_RSH  = CodeAluOp(0x7) // rsh
	ALU_OP_NEG  = CodeAluOp(0x8) // neg
	ALU_OP_MOD  = CodeAluOp(0x9) // mod
	ALU_OP_XOR  = CodeAluOp(0xa) // xor
	ALU_OP_MOV  = CodeAluOp(0xb) // mov
	ALU_OP_ARSH = CodeAluOp(0xc) // arsh
	ALU_OP_END  = CodeAluOp(0xd) // end
)

// AluOp returns the ALU operation of an ALU class opcode.
func (op Opcode) AluOp() CodeAluOp {
	return CodeAluOp(op >> 4)
}

// State is the execution state of the Cpu.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_READY   = State(0) // ready
	STATE_RUNNING = State(1) // running
	STATE_HALTED  = State(2) // halted
)

// HostFunc is a host function reached by `call #imm`.
// args holds r1-r5; the returned value is written to r0.
type HostFunc func(cpu *Cpu, args [5]uint64) (ret uint64, err error)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE":    fmt.Sprintf("%#x", MEMORY_SIZE),
	"REGISTER_COUNT": fmt.Sprintf("%#x", REGISTER_COUNT),
}

// Cpu is the virtual machine: register file, program counter and scratch memory.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Ip       int                      // Index of the next instruction to execute.
	Register [REGISTER_COUNT]Register // Register bank.
	Memory   *Memory                  // Scratch memory.
	State    State                    // Execution state.
	Fault    error                    // The fault that halted the cpu, if any.

	Hosts map[uint32]HostFunc // Host functions, by call selector.

	Ticks       int // Executed instruction counter.
	Unsupported int // Unsupported instructions skipped.

	program []Code
}

// NewCpu creates a new Cpu with memorySize bytes of scratch memory.
// All registers are zero.
func NewCpu(memorySize int) (cpu *Cpu) {
	cpu = &Cpu{
		Memory: NewMemory(memorySize),
		Hosts:  map[uint32]HostFunc{},
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the cpu state.
// - Clears the registers and scratch memory.
// - Points the frame pointer (r10) at the top of scratch memory.
// - Zeros the statistics counters.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Memory.Reset()
	cpu.Register[REGISTER_FP].Write64(uint64(cpu.Memory.Size()))
	cpu.Ip = 0
	cpu.State = STATE_READY
	cpu.Fault = nil
	cpu.Ticks = 0
	cpu.Unsupported = 0
}

// Load installs a program, and readies the cpu to execute from its first
// instruction. Registers and memory are left as they are.
func (cpu *Cpu) Load(prog *Program) {
	cpu.program = cpu.program[:0]
	for _, code := range prog.Codes() {
		cpu.program = append(cpu.program, code)
	}
	cpu.Ip = 0
	cpu.State = STATE_READY
	cpu.Fault = nil
}

// Run loads and executes a program until it exits or faults, and returns r0.
func (cpu *Cpu) Run(prog *Program) (result uint64, err error) {
	cpu.Load(prog)

	for cpu.State != STATE_HALTED {
		err = cpu.Tick()
		if err != nil {
			break
		}
	}

	result = cpu.Result()
	return
}

// Result returns the program result, r0.
func (cpu *Cpu) Result() uint64 {
	return cpu.Register[0].Read64()
}

// String returns the current cpu state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %04d\n", "ip", cpu.Ip)
	text += fmt.Sprintf("% 5s: %v\n", "state", cpu.State)
	for n, reg := range cpu.Register {
		val := reg.Read64()
		text += fmt.Sprintf("% 5s: %04X_%04X_%04X_%04X\n", fmt.Sprintf("r%d", n),
			val>>48, (val>>32)&0xffff, (val>>16)&0xffff, val&0xffff)
	}

	return
}

// FetchCode fetches the instruction at the instruction pointer.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	if cpu.Ip < 0 || cpu.Ip >= len(cpu.program) {
		err = ErrIpRange
		return
	}

	code = cpu.program[cpu.Ip]
	return
}

// Tick executes a single instruction. A fault halts the cpu, and is
// returned as an *ErrFault.
func (cpu *Cpu) Tick() (err error) {
	if cpu.State == STATE_HALTED {
		err = ErrHalted
		return
	}
	cpu.State = STATE_RUNNING

	code, err := cpu.FetchCode()
	if err == nil {
		err = cpu.Execute(code)
	}

	if err != nil {
		err = &ErrFault{Ip: cpu.Ip, Code: code, Err: err}
		cpu.Fault = err
		cpu.State = STATE_HALTED
		if cpu.Verbose {
			log.Printf("cpu: %v", err)
		}
	}

	return
}

// checkReg validates a register index.
func checkReg(reg uint8) (err error) {
	if reg >= REGISTER_COUNT {
		err = ErrRegisterInvalid
	}
	return
}

// setReg writes all 64 bits of a register.
func (cpu *Cpu) setReg(reg uint8, value uint64) (err error) {
	if reg == REGISTER_FP {
		err = ErrRegisterReadOnly
		return
	}
	cpu.Register[reg].Write64(value)
	return
}

// setReg32 writes the low 32 bits of a register, zeroing the upper 32 bits.
func (cpu *Cpu) setReg32(reg uint8, value uint32) (err error) {
	if reg == REGISTER_FP {
		err = ErrRegisterReadOnly
		return
	}
	cpu.Register[reg].Write32(value)
	return
}

// usesRegs reports which register fields an operand shape reads.
func usesRegs(op Opcode, shape CodeShape) (dst, src bool) {
	switch shape {
	case SHAPE_ALU, SHAPE_JUMP:
		return true, op.Source()
	case SHAPE_UNARY, SHAPE_ENDIAN, SHAPE_LDDW, SHAPE_ST:
		return true, false
	case SHAPE_LDIND:
		return false, true
	case SHAPE_LDX, SHAPE_STX:
		return true, true
	}
	return false, false
}

// Execute executes a single decoded instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	if cpu.Verbose {
		log.Printf("%04d: %v", cpu.Ip, code)
	}

	op, dst, src, offset, imm := code.Decode()

	meta, ok := op.Meta()
	if !ok {
		err = errors.Join(ErrOpcodeInvalid, ErrOpcode(code))
		return
	}

	use_dst, use_src := usesRegs(op, meta.Shape)
	if use_dst {
		err = checkReg(dst)
		if err != nil {
			return
		}
	}
	if use_src {
		err = checkReg(src)
		if err != nil {
			return
		}
	}

	next_ip := cpu.Ip + 1

	// Second operand of ALU and branch instructions.
	// 64-bit operations sign extend the immediate.
	var value uint64
	if op.Source() {
		value = cpu.Register[src].Read64()
	} else if op.Class() == CLASS_ALU32 {
		value = uint64(imm)
	} else {
		value = uint64(int64(int32(imm)))
	}

	switch meta.Shape {
	case SHAPE_ALU, SHAPE_UNARY, SHAPE_ENDIAN:
		input := cpu.Register[dst].Read64()
		var output uint64
		switch {
		case op.AluOp() == ALU_OP_END:
			output, err = doEndian(op, input, imm)
			if err != nil {
				return
			}
			err = cpu.setReg(dst, output)
		case op.Class() == CLASS_ALU32:
			output, err = doAlu32(op.AluOp(), uint32(input), uint32(value))
			if err != nil {
				return
			}
			err = cpu.setReg32(dst, uint32(output))
		default:
			output, err = doAlu64(op.AluOp(), input, value)
			if err != nil {
				return
			}
			err = cpu.setReg(dst, output)
		}
	case SHAPE_JA:
		next_ip += int(offset)
	case SHAPE_JUMP:
		if doCompare(op, cpu.Register[dst].Read64(), value) {
			next_ip += int(offset)
		}
	case SHAPE_CALL:
		err = cpu.doCall(imm)
	case SHAPE_EXIT:
		cpu.State = STATE_HALTED
		next_ip = cpu.Ip
		if cpu.Verbose {
			log.Printf("cpu: exit r0=%#x", cpu.Result())
		}
	case SHAPE_LDDW:
		err = cpu.setReg(dst, uint64(imm))
	case SHAPE_LDABS, SHAPE_LDIND:
		cpu.Unsupported++
		log.Printf("cpu: %04d: %v: %v", cpu.Ip, code, ErrUnsupported)
	case SHAPE_LDX:
		var data uint64
		addr := effectiveAddress(cpu.Register[src].Read64(), offset)
		data, err = cpu.Memory.Load(addr, meta.Size)
		if err != nil {
			return
		}
		err = cpu.setReg(dst, data)
	case SHAPE_ST:
		addr := effectiveAddress(cpu.Register[dst].Read64(), offset)
		err = cpu.Memory.Store(addr, meta.Size, uint64(int64(int32(imm))))
	case SHAPE_STX:
		addr := effectiveAddress(cpu.Register[dst].Read64(), offset)
		err = cpu.Memory.Store(addr, meta.Size, cpu.Register[src].Read64())
	default:
		err = errors.Join(ErrOpcodeInvalid, ErrOpcode(code))
	}

	if err != nil {
		return
	}

	cpu.Ip = next_ip
	cpu.Ticks++

	return
}

// effectiveAddress adds a signed offset to a base register value.
func effectiveAddress(base uint64, offset int16) uint64 {
	return base + uint64(int64(offset))
}

// doCall invokes the host function selected by imm.
func (cpu *Cpu) doCall(imm uint32) (err error) {
	fn, ok := cpu.Hosts[imm]
	if !ok {
		err = ErrCallUnknown
		return
	}

	var args [5]uint64
	for n := range args {
		args[n] = cpu.Register[1+n].Read64()
	}

	ret, err := fn(cpu, args)
	if err != nil {
		return
	}

	cpu.Register[0].Write64(ret)
	return
}

// doAlu64 performs a 64-bit ALU operation.
func doAlu64(op CodeAluOp, input, value uint64) (output uint64, err error) {
	switch op {
	case ALU_OP_ADD:
		output = input + value
	case ALU_OP_SUB:
		output = input - value
	case ALU_OP_MUL:
		output = input * value
	case ALU_OP_DIV:
		if value == 0 {
			err = ErrDivideByZero
			return
		}
		output = input / value
	case ALU_OP_OR:
		output = input | value
	case ALU_OP_AND:
		output = input & value
	case ALU_OP_LSH:
		output = input << (value & 63)
	case ALU_OP_RSH:
		output = input >> (value & 63)
	case ALU_OP_NEG:
		output = -input
	case ALU_OP_MOD:
		if value == 0 {
			err = ErrDivideByZero
			return
		}
		output = input % value
	case ALU_OP_XOR:
		output = input ^ value
	case ALU_OP_MOV:
		output = value
	case ALU_OP_ARSH:
		output = uint64(int64(input) >> (value & 63))
	default:
		err = ErrOpcodeInvalid
	}

	return
}

// doAlu32 performs a 32-bit ALU operation. The result is zero extended.
func doAlu32(op CodeAluOp, input, value uint32) (output uint64, err error) {
	var out uint32
	switch op {
	case ALU_OP_ADD:
		out = input + value
	case ALU_OP_SUB:
		out = input - value
	case ALU_OP_MUL:
		out = input * value
	case ALU_OP_DIV:
		if value == 0 {
			err = ErrDivideByZero
			return
		}
		out = input / value
	case ALU_OP_OR:
		out = input | value
	case ALU_OP_AND:
		out = input & value
	case ALU_OP_LSH:
		out = input << (value & 31)
	case ALU_OP_RSH:
		out = input >> (value & 31)
	case ALU_OP_NEG:
		out = -input
	case ALU_OP_MOD:
		if value == 0 {
			err = ErrDivideByZero
			return
		}
		out = input % value
	case ALU_OP_XOR:
		out = input ^ value
	case ALU_OP_MOV:
		out = value
	case ALU_OP_ARSH:
		out = uint32(int32(input) >> (value & 31))
	default:
		err = ErrOpcodeInvalid
		return
	}

	output = uint64(out)
	return
}

// doEndian converts the low width bits of value between the machine's
// little-endian order and the byte order named by op. The result is zero
// extended.
func doEndian(op Opcode, value uint64, width uint32) (output uint64, err error) {
	swap := op == OP_BE

	switch width {
	case 16:
		v := uint16(value)
		if swap {
			v = bits.ReverseBytes16(v)
		}
		output = uint64(v)
	case 32:
		v := uint32(value)
		if swap {
			v = bits.ReverseBytes32(v)
		}
		output = uint64(v)
	case 64:
		output = value
		if swap {
			output = bits.ReverseBytes64(output)
		}
	default:
		err = ErrOpcodeEndian
	}

	return
}

// doCompare evaluates the condition of a branch.
func doCompare(op Opcode, a, b uint64) bool {
	switch op &^ OP_SOURCE {
	case OP_JEQ_IMM:
		return a == b
	case OP_JNE_IMM:
		return a != b
	case OP_JGT_IMM:
		return a > b
	case OP_JGE_IMM:
		return a >= b
	case OP_JSET_IMM:
		return (a & b) != 0
	case OP_JSGT_IMM:
		return int64(a) > int64(b)
	case OP_JSGE_IMM:
		return int64(a) >= int64(b)
	}
	return false
}
