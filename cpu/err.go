package cpu

import (
	"errors"

	"github.com/ezrec/ubpf/translate"
)

var f = translate.From

var (
	// Execution faults
	ErrHalted           = errors.New(f("cpu halted"))
	ErrIpRange          = errors.New(f("ip out of program range"))
	ErrMemoryRange      = errors.New(f("memory access out of range"))
	ErrDivideByZero     = errors.New(f("division by zero"))
	ErrRegisterInvalid  = errors.New(f("register invalid"))
	ErrRegisterReadOnly = errors.New(f("register read-only"))
	ErrCallUnknown      = errors.New(f("call selector unknown"))
	ErrUnsupported      = errors.New(f("instruction unsupported"))

	// Instruction decode and encode errors
	ErrOpcodeInvalid   = errors.New(f("opcode invalid"))
	ErrOpcodeEndian    = errors.New(f("byte swap width invalid"))
	ErrEncodeRegister  = errors.New(f("register does not fit in 4 bits"))
	ErrEncodeOffset    = errors.New(f("offset does not fit in 16 bits"))
	ErrEncodeImmediate = errors.New(f("immediate does not fit in 32 bits"))
	ErrBinarySize      = errors.New(f("binary image is not a whole number of instructions"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelSyntax        = errors.New(f("label syntax"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("operand missing"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrMemoryOperand      = errors.New(f("memory operand invalid"))
)

// ErrLabelMissing is returned when a branch names a label that is never declared.
type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOpcode tags an error with the instruction that raised it.
type ErrOpcode Code

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%016x %v", uint64(eo), Code(eo).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

// ErrSyntax is an assembly failure, located by line and token.
type ErrSyntax struct {
	LineNo int
	Line   string
	Token  string
	Err    error
}

func (err *ErrSyntax) Error() string {
	if len(err.Token) == 0 {
		return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
	}
	return f("line %d '%v' at '%v' %v", err.LineNo, err.Line, err.Token, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a #hex immediate", string(err))
}

type ErrParseRegister string

func (err ErrParseRegister) Error() string {
	return f("'%v' is not a register r0-r10", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrFault is an execution fault raised by the instruction at Ip.
// The machine halts on a fault; it is distinct from an exit.
type ErrFault struct {
	Ip   int
	Code Code
	Err  error
}

func (err *ErrFault) Error() string {
	return f("fault at ip %d (%v): %v", err.Ip, err.Code, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}
