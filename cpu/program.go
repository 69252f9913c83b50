package cpu

import (
	"encoding/binary"
	"fmt"
	"iter"
	"strings"
)

// CODE_BYTES is the size of one encoded instruction in a binary image.
const CODE_BYTES = 8

// Statement is one assembled source line and the instruction it produced.
type Statement struct {
	LineNo    int      // Source line number, 1 based. Zero for binary images.
	Ip        int      // Instruction index.
	Words     []string // Source tokens.
	Code      Code     // Encoded instruction.
	LinkLabel string   // Branch label resolved by the assembler, if any.
}

// Program is an ordered sequence of encoded instructions. Index 0 is the
// entry point.
type Program struct {
	Statements []Statement
}

// NewProgram creates a program from raw instructions.
func NewProgram(codes ...Code) (prog *Program) {
	prog = &Program{
		Statements: make([]Statement, len(codes)),
	}
	for ip, code := range codes {
		prog.Statements[ip] = Statement{Ip: ip, Code: code}
	}
	return
}

// ParseBinary loads a little-endian binary image, 8 bytes per instruction.
func ParseBinary(data []byte) (prog *Program, err error) {
	if len(data)%CODE_BYTES != 0 {
		err = ErrBinarySize
		return
	}

	codes := make([]Code, 0, len(data)/CODE_BYTES)
	for len(data) > 0 {
		codes = append(codes, Code(binary.LittleEndian.Uint64(data)))
		data = data[CODE_BYTES:]
	}

	prog = NewProgram(codes...)
	return
}

// Len returns the number of instructions.
func (prog *Program) Len() int {
	return len(prog.Statements)
}

// Codes iterates over the instructions and their indexes.
func (prog *Program) Codes() iter.Seq2[int, Code] {
	return func(yield func(ip int, code Code) bool) {
		for _, st := range prog.Statements {
			if !yield(st.Ip, st.Code) {
				return
			}
		}
	}
}

// Binary returns the instructions as 64-bit words.
func (prog *Program) Binary() (bins []uint64) {
	bins = make([]uint64, 0, prog.Len())
	for _, code := range prog.Codes() {
		bins = append(bins, uint64(code))
	}
	return
}

// Bytes returns the little-endian binary image of the program.
func (prog *Program) Bytes() (data []byte) {
	data = make([]byte, 0, prog.Len()*CODE_BYTES)
	for _, code := range prog.Codes() {
		data = binary.LittleEndian.AppendUint64(data, uint64(code))
	}
	return
}

// LineNo returns the source line of the instruction at ip, or zero.
func (prog *Program) LineNo(ip int) int {
	if ip < 0 || ip >= prog.Len() {
		return 0
	}
	return prog.Statements[ip].LineNo
}

// String returns a disassembly listing.
func (prog *Program) String() string {
	var sb strings.Builder
	for ip, code := range prog.Codes() {
		fmt.Fprintf(&sb, "%04d: %016x  %v\n", ip, uint64(code), code)
	}
	return sb.String()
}
