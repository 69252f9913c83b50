package cpu

import (
	"fmt"
	"math"
)

// Opcode is the 8-bit operation selector of an instruction.
type Opcode uint8

// ALU, 64-bit.
const (
	OP_ADD_IMM  = Opcode(0x07) // add
	OP_ADD_SRC  = Opcode(0x0f) // add
	OP_SUB_IMM  = Opcode(0x17) // sub
	OP_SUB_SRC  = Opcode(0x1f) // sub
	OP_MUL_IMM  = Opcode(0x27) // mul
	OP_MUL_SRC  = Opcode(0x2f) // mul
	OP_DIV_IMM  = Opcode(0x37) // div
	OP_DIV_SRC  = Opcode(0x3f) // div
	OP_OR_IMM   = Opcode(0x47) // or
	OP_OR_SRC   = Opcode(0x4f) // or
	OP_AND_IMM  = Opcode(0x57) // and
	OP_AND_SRC  = Opcode(0x5f) // and
	OP_LSH_IMM  = Opcode(0x67) // lsh
	OP_LSH_SRC  = Opcode(0x6f) // lsh
	OP_RSH_IMM  = Opcode(0x77) // rsh
	OP_RSH_SRC  = Opcode(0x7f) // rsh
	OP_NEG      = Opcode(0x87) // neg
	OP_MOD_IMM  = Opcode(0x97) // mod
	OP_MOD_SRC  = Opcode(0x9f) // mod
	OP_XOR_IMM  = Opcode(0xa7) // xor
	OP_XOR_SRC  = Opcode(0xaf) // xor
	OP_MOV_IMM  = Opcode(0xb7) // mov
	OP_MOV_SRC  = Opcode(0xbf) // mov
	OP_ARSH_IMM = Opcode(0xc7) // arsh
	OP_ARSH_SRC = Opcode(0xcf) // arsh
)

// ALU, 32-bit. Operands are the low 32 bits, the upper 32 bits of the
// destination are zeroed.
const (
	OP_ADD32_IMM  = Opcode(0x04) // add32
	OP_ADD32_SRC  = Opcode(0x0c) // add32
	OP_SUB32_IMM  = Opcode(0x14) // sub32
	OP_SUB32_SRC  = Opcode(0x1c) // sub32
	OP_MUL32_IMM  = Opcode(0x24) // mul32
	OP_MUL32_SRC  = Opcode(0x2c) // mul32
	OP_DIV32_IMM  = Opcode(0x34) // div32
	OP_DIV32_SRC  = Opcode(0x3c) // div32
	OP_OR32_IMM   = Opcode(0x44) // or32
	OP_OR32_SRC   = Opcode(0x4c) // or32
	OP_AND32_IMM  = Opcode(0x54) // and32
	OP_AND32_SRC  = Opcode(0x5c) // and32
	OP_LSH32_IMM  = Opcode(0x64) // lsh32
	OP_LSH32_SRC  = Opcode(0x6c) // lsh32
	OP_RSH32_IMM  = Opcode(0x74) // rsh32
	OP_RSH32_SRC  = Opcode(0x7c) // rsh32
	OP_NEG32      = Opcode(0x84) // neg32
	OP_MOD32_IMM  = Opcode(0x94) // mod32
	OP_MOD32_SRC  = Opcode(0x9c) // mod32
	OP_XOR32_IMM  = Opcode(0xa4) // xor32
	OP_XOR32_SRC  = Opcode(0xac) // xor32
	OP_MOV32_IMM  = Opcode(0xb4) // mov32
	OP_MOV32_SRC  = Opcode(0xbc) // mov32
	OP_ARSH32_IMM = Opcode(0xc4) // arsh32
	OP_ARSH32_SRC = Opcode(0xcc) // arsh32
)

// Byte swaps. The immediate (16, 32 or 64) selects the width.
const (
	OP_LE = Opcode(0xd4) // le
	OP_BE = Opcode(0xdc) // be
)

// Memory.
const (
	OP_LDDW    = Opcode(0x18) // lddw
	OP_LDABSW  = Opcode(0x20) // ldabsw
	OP_LDABSH  = Opcode(0x28) // ldabsh
	OP_LDABSB  = Opcode(0x30) // ldabsb
	OP_LDABSDW = Opcode(0x38) // ldabsdw
	OP_LDINDW  = Opcode(0x40) // ldindw
	OP_LDINDH  = Opcode(0x48) // ldindh
	OP_LDINDB  = Opcode(0x50) // ldindb
	OP_LDINDDW = Opcode(0x58) // ldinddw
	OP_LDXW    = Opcode(0x61) // ldxw
	OP_LDXH    = Opcode(0x69) // ldxh
	OP_LDXB    = Opcode(0x71) // ldxb
	OP_LDXDW   = Opcode(0x79) // ldxdw
	OP_STW     = Opcode(0x62) // stw
	OP_STH     = Opcode(0x6a) // sth
	OP_STB     = Opcode(0x72) // stb
	OP_STDW    = Opcode(0x7a) // stdw
	OP_STXW    = Opcode(0x63) // stxw
	OP_STXH    = Opcode(0x6b) // stxh
	OP_STXB    = Opcode(0x73) // stxb
	OP_STXDW   = Opcode(0x7b) // stxdw
)

// Branches.
const (
	OP_JA       = Opcode(0x05) // ja
	OP_JEQ_IMM  = Opcode(0x15) // jeq
	OP_JEQ_SRC  = Opcode(0x1d) // jeq
	OP_JGT_IMM  = Opcode(0x25) // jgt
	OP_JGT_SRC  = Opcode(0x2d) // jgt
	OP_JGE_IMM  = Opcode(0x35) // jge
	OP_JGE_SRC  = Opcode(0x3d) // jge
	OP_JSET_IMM = Opcode(0x45) // jset
	OP_JSET_SRC = Opcode(0x4d) // jset
	OP_JNE_IMM  = Opcode(0x55) // jne
	OP_JNE_SRC  = Opcode(0x5d) // jne
	OP_JSGT_IMM = Opcode(0x65) // jsgt
	OP_JSGT_SRC = Opcode(0x6d) // jsgt
	OP_JSGE_IMM = Opcode(0x75) // jsge
	OP_JSGE_SRC = Opcode(0x7d) // jsge
	OP_CALL     = Opcode(0x85) // call
	OP_EXIT     = Opcode(0x95) // exit
)

// CodeClass is the instruction class held in the low 3 bits of an opcode.
type CodeClass int

//go:generate go tool stringer -linecomment -type=CodeClass
const (
	CLASS_LD    = CodeClass(0) // ld
	CLASS_LDX   = CodeClass(1) // ldx
	CLASS_ST    = CodeClass(2) // st
	CLASS_STX   = CodeClass(3) // stx
	CLASS_ALU32 = CodeClass(4) // alu32
	CLASS_JMP   = CodeClass(5) // jmp
	CLASS_ALU64 = CodeClass(7) // alu64
)

// CodeShape is the operand layout of an instruction, shared by the
// assembler and the disassembler.
type CodeShape int

const (
	SHAPE_ALU    = CodeShape(iota) // dst, src or #imm
	SHAPE_UNARY                    // dst
	SHAPE_ENDIAN                   // dst, width in imm
	SHAPE_JA                       // offset
	SHAPE_JUMP                     // dst, src or #imm, offset
	SHAPE_CALL                     // #imm
	SHAPE_EXIT                     // -
	SHAPE_LDDW                     // dst, #imm
	SHAPE_LDABS                    // #imm
	SHAPE_LDIND                    // [src + #imm]
	SHAPE_LDX                      // dst, [src + #off]
	SHAPE_ST                       // [dst + #off], #imm
	SHAPE_STX                      // [dst + #off], src
)

// OpMeta describes an opcode.
type OpMeta struct {
	Name  string    // Assembler mnemonic.
	Shape CodeShape // Operand layout.
	Size  int       // Memory access width in bytes, if any.
}

var opMeta = makeOpMeta()

func makeOpMeta() (opMeta map[Opcode]OpMeta) {
	opMeta = map[Opcode]OpMeta{}

	alu := []Opcode{
		OP_ADD_IMM, OP_ADD_SRC, OP_SUB_IMM, OP_SUB_SRC, OP_MUL_IMM, OP_MUL_SRC,
		OP_DIV_IMM, OP_DIV_SRC, OP_OR_IMM, OP_OR_SRC, OP_AND_IMM, OP_AND_SRC,
		OP_LSH_IMM, OP_LSH_SRC, OP_RSH_IMM, OP_RSH_SRC, OP_MOD_IMM, OP_MOD_SRC,
		OP_XOR_IMM, OP_XOR_SRC, OP_MOV_IMM, OP_MOV_SRC, OP_ARSH_IMM, OP_ARSH_SRC,
	}
	names := []string{"add", "sub", "mul", "div", "or", "and", "lsh", "rsh", "mod", "xor", "mov", "arsh"}
	for n, op := range alu {
		name := names[n/2]
		opMeta[op] = OpMeta{Name: name, Shape: SHAPE_ALU}
		// The 32-bit counterpart differs only in its class bits.
		opMeta[(op&^0x07)|Opcode(CLASS_ALU32)] = OpMeta{Name: name + "32", Shape: SHAPE_ALU}
	}
	opMeta[OP_NEG] = OpMeta{Name: "neg", Shape: SHAPE_UNARY}
	opMeta[OP_NEG32] = OpMeta{Name: "neg32", Shape: SHAPE_UNARY}
	opMeta[OP_LE] = OpMeta{Name: "le", Shape: SHAPE_ENDIAN}
	opMeta[OP_BE] = OpMeta{Name: "be", Shape: SHAPE_ENDIAN}

	opMeta[OP_LDDW] = OpMeta{Name: "lddw", Shape: SHAPE_LDDW, Size: 8}

	sizes := []struct {
		suffix string
		size   int
	}{{"w", 4}, {"h", 2}, {"b", 1}, {"dw", 8}}
	for n, sz := range sizes {
		step := Opcode(n) << 3
		opMeta[OP_LDABSW+step] = OpMeta{Name: "ldabs" + sz.suffix, Shape: SHAPE_LDABS, Size: sz.size}
		opMeta[OP_LDINDW+step] = OpMeta{Name: "ldind" + sz.suffix, Shape: SHAPE_LDIND, Size: sz.size}
		opMeta[OP_LDXW+step] = OpMeta{Name: "ldx" + sz.suffix, Shape: SHAPE_LDX, Size: sz.size}
		opMeta[OP_STW+step] = OpMeta{Name: "st" + sz.suffix, Shape: SHAPE_ST, Size: sz.size}
		opMeta[OP_STXW+step] = OpMeta{Name: "stx" + sz.suffix, Shape: SHAPE_STX, Size: sz.size}
	}

	opMeta[OP_JA] = OpMeta{Name: "ja", Shape: SHAPE_JA}
	jumps := []Opcode{OP_JEQ_IMM, OP_JGT_IMM, OP_JGE_IMM, OP_JSET_IMM, OP_JNE_IMM, OP_JSGT_IMM, OP_JSGE_IMM}
	jnames := []string{"jeq", "jgt", "jge", "jset", "jne", "jsgt", "jsge"}
	for n, op := range jumps {
		opMeta[op] = OpMeta{Name: jnames[n], Shape: SHAPE_JUMP}
		opMeta[op|OP_SOURCE] = OpMeta{Name: jnames[n], Shape: SHAPE_JUMP}
	}
	opMeta[OP_CALL] = OpMeta{Name: "call", Shape: SHAPE_CALL}
	opMeta[OP_EXIT] = OpMeta{Name: "exit", Shape: SHAPE_EXIT}

	return
}

// OP_SOURCE is the opcode bit selecting the SRC-form of ALU and branch opcodes.
const OP_SOURCE = Opcode(0x08)

// Class returns the instruction class of the opcode.
func (op Opcode) Class() CodeClass {
	return CodeClass(op & 0x07)
}

// Source returns true if the opcode takes its second operand from the
// source register rather than the immediate.
func (op Opcode) Source() bool {
	switch op.Class() {
	case CLASS_ALU32, CLASS_ALU64, CLASS_JMP:
		meta, ok := op.Meta()
		if !ok {
			return false
		}
		if meta.Shape == SHAPE_ALU || meta.Shape == SHAPE_JUMP {
			return (op & OP_SOURCE) != 0
		}
	}
	return false
}

// Meta returns the description of a defined opcode.
func (op Opcode) Meta() (meta OpMeta, ok bool) {
	meta, ok = opMeta[op]
	return
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	meta, ok := op.Meta()
	if !ok {
		return fmt.Sprintf("op(0x%02x)", uint8(op))
	}
	return meta.Name
}

// Code is a single encoded 64-bit instruction.
//
//	bits  0..7   opcode
//	bits  8..11  dst register
//	bits 12..15  src register
//	bits 16..31  signed offset
//	bits 32..63  immediate
type Code uint64

// Field shifts and masks of a Code.
const (
	CODE_SHIFT_DST = 8
	CODE_SHIFT_SRC = 12
	CODE_SHIFT_OFF = 16
	CODE_SHIFT_IMM = 32

	CODE_MASK_OP  = Code(0xff)
	CODE_MASK_DST = Code(0xf) << CODE_SHIFT_DST
	CODE_MASK_SRC = Code(0xf) << CODE_SHIFT_SRC
	CODE_MASK_OFF = Code(0xffff) << CODE_SHIFT_OFF
	CODE_MASK_IMM = Code(0xffffffff) << CODE_SHIFT_IMM
)

// MakeCode assembles an instruction from its fields.
// dst and src must fit in 4 bits, offset in a signed 16 bits, and imm in
// 32 bits; negative immediates are stored as two's complement.
func MakeCode(op Opcode, dst, src uint8, offset int, imm int64) (code Code, err error) {
	if dst > 0xf || src > 0xf {
		err = ErrEncodeRegister
		return
	}
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		err = ErrEncodeOffset
		return
	}
	if imm < math.MinInt32 || imm > math.MaxUint32 {
		err = ErrEncodeImmediate
		return
	}

	code = Code(op) |
		(Code(dst) << CODE_SHIFT_DST) |
		(Code(src) << CODE_SHIFT_SRC) |
		(Code(uint16(int16(offset))) << CODE_SHIFT_OFF) |
		(Code(uint32(imm)) << CODE_SHIFT_IMM)

	return
}

// MakeCodeReg creates a SRC-form instruction: dst op= src.
func MakeCodeReg(op Opcode, dst, src uint8) (Code, error) {
	return MakeCode(op, dst, src, 0, 0)
}

// MakeCodeImm creates an IMM-form instruction: dst op= imm.
func MakeCodeImm(op Opcode, dst uint8, imm int64) (Code, error) {
	return MakeCode(op, dst, 0, 0, imm)
}

// MakeCodeJump creates a branch comparing dst against src or imm.
func MakeCodeJump(op Opcode, dst, src uint8, offset int, imm int64) (Code, error) {
	return MakeCode(op, dst, src, offset, imm)
}

// MakeCodeMem creates a memory access of base register plus offset.
func MakeCodeMem(op Opcode, dst, src uint8, offset int, imm int64) (Code, error) {
	return MakeCode(op, dst, src, offset, imm)
}

// MakeCodeExit creates an exit instruction.
func MakeCodeExit() Code {
	return Code(OP_EXIT)
}

// Decode splits the instruction into its fields.
func (code Code) Decode() (op Opcode, dst, src uint8, offset int16, imm uint32) {
	op = code.Op()
	dst = code.Dst()
	src = code.Src()
	offset = code.Offset()
	imm = code.Imm()
	return
}

// Op returns the opcode field.
func (code Code) Op() Opcode {
	return Opcode(code & CODE_MASK_OP)
}

// Dst returns the destination register field.
func (code Code) Dst() uint8 {
	return uint8((code & CODE_MASK_DST) >> CODE_SHIFT_DST)
}

// Src returns the source register field.
func (code Code) Src() uint8 {
	return uint8((code & CODE_MASK_SRC) >> CODE_SHIFT_SRC)
}

// Offset returns the signed offset field.
func (code Code) Offset() int16 {
	return int16(uint16((code & CODE_MASK_OFF) >> CODE_SHIFT_OFF))
}

// Imm returns the raw immediate field.
func (code Code) Imm() uint32 {
	return uint32((code & CODE_MASK_IMM) >> CODE_SHIFT_IMM)
}

// memOperand formats a [reg + #off] operand.
func memOperand(reg uint8, offset int64) string {
	switch {
	case offset == 0:
		return fmt.Sprintf("[r%d]", reg)
	case offset < 0:
		return fmt.Sprintf("[r%d - #%x]", reg, -offset)
	default:
		return fmt.Sprintf("[r%d + #%x]", reg, offset)
	}
}

// String returns the assembly language representation of this instruction.
func (code Code) String() string {
	op, dst, src, offset, imm := code.Decode()
	meta, ok := op.Meta()
	if !ok {
		return fmt.Sprintf("%v 0x%016x", op, uint64(code))
	}

	var second string
	if op.Source() {
		second = fmt.Sprintf("r%d", src)
	} else {
		second = fmt.Sprintf("#%x", imm)
	}

	switch meta.Shape {
	case SHAPE_ALU:
		return fmt.Sprintf("%v r%d %v", meta.Name, dst, second)
	case SHAPE_UNARY:
		return fmt.Sprintf("%v r%d", meta.Name, dst)
	case SHAPE_ENDIAN:
		return fmt.Sprintf("%v%d r%d", meta.Name, imm, dst)
	case SHAPE_JA:
		return fmt.Sprintf("%v %+d", meta.Name, offset)
	case SHAPE_JUMP:
		return fmt.Sprintf("%v r%d %v %+d", meta.Name, dst, second, offset)
	case SHAPE_CALL:
		return fmt.Sprintf("%v #%x", meta.Name, imm)
	case SHAPE_EXIT:
		return meta.Name
	case SHAPE_LDDW:
		return fmt.Sprintf("%v r%d #%x", meta.Name, dst, imm)
	case SHAPE_LDABS:
		return fmt.Sprintf("%v #%x", meta.Name, imm)
	case SHAPE_LDIND:
		return fmt.Sprintf("%v %v", meta.Name, memOperand(src, int64(int32(imm))))
	case SHAPE_LDX:
		return fmt.Sprintf("%v r%d %v", meta.Name, dst, memOperand(src, int64(offset)))
	case SHAPE_ST:
		return fmt.Sprintf("%v %v #%x", meta.Name, memOperand(dst, int64(offset)), imm)
	case SHAPE_STX:
		return fmt.Sprintf("%v %v r%d", meta.Name, memOperand(dst, int64(offset)), src)
	}

	return fmt.Sprintf("%v 0x%016x", op, uint64(code))
}
