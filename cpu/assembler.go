// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":         "0",
	"MEMORY_SIZE":    fmt.Sprintf("%#x", MEMORY_SIZE),
	"REGISTER_COUNT": fmt.Sprintf("%#x", REGISTER_COUNT),
}

// MAX_LINE_SIZE is the longest source line accepted, in bytes.
const MAX_LINE_SIZE = 1024 * 1024

// Assembler is a two pass assembler for the eBPF-style instruction set.
//
// The first pass collects labels, equates and instruction lines, the second
// encodes each instruction with every label position already known.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.

	predefine map[string]string // Predefines
	Label     map[string]int    // Map of labels to instruction indexes.
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// Assemble is a convenience wrapper that assembles source text with a
// fresh Assembler.
func Assemble(source string) (prog *Program, err error) {
	asm := &Assembler{}
	return asm.Parse(strings.NewReader(source))
}

// mnemonic maps an assembler mnemonic onto its opcodes.
type mnemonic struct {
	Imm   Opcode    // IMM-form, or the only form.
	Src   Opcode    // SRC-form, when HasSrc is set.
	Shape CodeShape // Operand layout.
	Width int64     // Byte swap width.

	HasSrc bool
}

var mnemonics = makeMnemonics()

func makeMnemonics() (mnemonics map[string]mnemonic) {
	mnemonics = map[string]mnemonic{}

	for op, meta := range opMeta {
		if meta.Shape == SHAPE_ENDIAN {
			for _, width := range []int64{16, 32, 64} {
				name := fmt.Sprintf("%v%d", meta.Name, width)
				mnemonics[name] = mnemonic{Imm: op, Shape: meta.Shape, Width: width}
			}
			continue
		}

		entry := mnemonics[meta.Name]
		entry.Shape = meta.Shape
		if op.Source() {
			entry.Src = op
			entry.HasSrc = true
		} else {
			entry.Imm = op
		}
		mnemonics[meta.Name] = entry
	}

	return
}

// statement is a source line holding an instruction, waiting to be encoded.
type statement struct {
	lineNo int
	line   string
	ip     int
	words  []string
}

// cursor is the parser position within a statement.
type cursor struct {
	*statement
	token string // Token being examined.
}

func (cur *cursor) fail(err error) error {
	return &ErrSyntax{LineNo: cur.lineNo, Line: cur.line, Token: cur.token, Err: err}
}

var (
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reIdentifier = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)
	reLabel      = regexp.MustCompile(`^[A-Za-z_.][\w.]*$`)
	reRegister   = regexp.MustCompile(`^r([0-9]+)$`)
	reMemory     = regexp.MustCompile(`^\[(r[0-9]+)(?:([+-])(#[^\]]+))?\]$`)
	reRelative   = regexp.MustCompile(`^[+-][0-9]+$`)
)

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{Name: "asm"}
	opts := syntax.FileOptions{}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, starlark.StringDict{})
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := dict["rc"].(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// expand substitutes equates, then evaluates $(...) expressions.
func (asm *Assembler) expand(line string) (out string, err error) {
	out = reIdentifier.ReplaceAllStringFunc(line, func(word string) string {
		equate, ok := asm.Equate[word]
		if ok {
			return equate
		}
		return word
	})

	out = reExpression.ReplaceAllStringFunc(out, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
			return str
		}
		if value < 0 {
			return fmt.Sprintf("-%#x", -value)
		}
		return fmt.Sprintf("%#x", value)
	})

	return
}

// parseLine handles equates and labels, and returns the instruction
// words of the line, if any.
func (asm *Assembler) parseLine(cur *cursor) (words []string, err error) {
	asm.Equate["LINENO"] = fmt.Sprintf("%v", cur.lineNo)

	words = strings.Fields(cur.line)
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		cur.token = words[0]
		if len(words) < 3 {
			err = ErrEquateSyntax
			return
		}
		name := words[1]
		cur.token = name
		_, ok := asm.Equate[name]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		_, ok = asm.Label[name]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		var value string
		value, err = asm.expand(strings.Join(words[2:], " "))
		if err != nil {
			return
		}
		if len(strings.Fields(value)) != 1 {
			err = ErrEquateSyntax
			return
		}
		asm.Equate[name] = value
		words = nil
		return
	}

	// Labels are not subject to equate expansion.
	for len(words) > 0 && strings.HasSuffix(words[0], ":") {
		cur.token = words[0]
		label := strings.TrimSuffix(words[0], ":")
		if !reLabel.MatchString(label) {
			err = ErrLabelSyntax
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		// Branch operands are equate expanded, so an equate name can not be a label.
		_, ok = asm.Equate[label]
		if ok {
			err = ErrLabelSyntax
			return
		}
		asm.Label[label] = cur.ip
		words = words[1:]
	}

	if len(words) == 0 {
		return
	}

	cur.token = ""
	line, err := asm.expand(strings.Join(words, " "))
	if err != nil {
		return
	}

	words = strings.Fields(line)
	return
}

// Parse parses an input stream into a Program. Assembly is all or nothing:
// on error no program is returned.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(nil, MAX_LINE_SIZE)

	asm.Label = map[string]int{}
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	var pending []*statement

	lineno := 0
	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line, _, _ := strings.Cut(text, ";")

		cur := &cursor{statement: &statement{
			lineNo: lineno,
			line:   strings.TrimSpace(line),
			ip:     len(pending),
		}}

		var words []string
		words, err = asm.parseLine(cur)
		if err != nil {
			err = cur.fail(err)
			return
		}

		if len(words) == 0 {
			continue
		}

		cur.words = words
		pending = append(pending, cur.statement)
	}

	err = scanner.Err()
	if err != nil {
		err = &ErrSyntax{LineNo: lineno + 1, Err: err}
		return
	}

	// Encode, now that all label positions are known.
	prog = &Program{
		Statements: make([]Statement, 0, len(pending)),
	}
	for _, st := range pending {
		cur := &cursor{statement: st}

		var code Code
		var label string
		code, label, err = asm.encode(cur)
		if err != nil {
			prog = nil
			err = cur.fail(err)
			return
		}

		prog.Statements = append(prog.Statements, Statement{
			LineNo:    st.lineNo,
			Ip:        st.ip,
			Words:     st.words,
			Code:      code,
			LinkLabel: label,
		})
	}

	return
}

// operands groups the operand words, joining bracketed memory operands
// that were split on whitespace.
func operands(words []string) (ops []string) {
	var mem []string
	for _, word := range words {
		if len(mem) == 0 && !strings.HasPrefix(word, "[") {
			ops = append(ops, word)
			continue
		}
		mem = append(mem, word)
		if strings.Contains(word, "]") {
			ops = append(ops, strings.Join(mem, ""))
			mem = nil
		}
	}
	if len(mem) > 0 {
		ops = append(ops, strings.Join(mem, ""))
	}
	return
}

// reg parses a register operand, r0-r10.
func (cur *cursor) reg(word string) (reg uint8, err error) {
	cur.token = word
	match := reRegister.FindStringSubmatch(word)
	if match == nil {
		err = ErrParseRegister(word)
		return
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n >= REGISTER_COUNT {
		err = ErrParseRegister(word)
		return
	}
	reg = uint8(n)
	return
}

// imm parses a #hex immediate, with an optional 0x prefix and sign.
func (cur *cursor) imm(word string) (value int64, err error) {
	cur.token = word
	if !strings.HasPrefix(word, "#") {
		err = ErrParseNumber(word)
		return
	}
	digits := word[1:]
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	u64, err := strconv.ParseUint(digits, 16, 33)
	if err != nil || u64 > 0xffffffff {
		err = ErrParseNumber(word)
		return
	}
	value = int64(u64)
	if negative {
		value = -value
	}
	return
}

// regOrImm parses a source register or an immediate.
func (cur *cursor) regOrImm(word string) (reg uint8, value int64, is_reg bool, err error) {
	if strings.HasPrefix(word, "#") {
		value, err = cur.imm(word)
		return
	}
	is_reg = true
	reg, err = cur.reg(word)
	return
}

// mem parses a [rN + #off] memory operand.
func (cur *cursor) mem(word string) (reg uint8, offset int64, err error) {
	cur.token = word
	match := reMemory.FindStringSubmatch(word)
	if match == nil {
		err = ErrMemoryOperand
		return
	}
	reg, err = cur.reg(match[1])
	if err != nil {
		return
	}
	if len(match[3]) > 0 {
		offset, err = cur.imm(match[3])
		if err != nil {
			return
		}
		if match[2] == "-" {
			offset = -offset
		}
	}
	cur.token = word
	return
}

// target resolves a branch target, either a label or a literal +N/-N,
// to an offset relative to the next instruction.
func (asm *Assembler) target(cur *cursor, word string) (offset int, label string, err error) {
	cur.token = word
	if reRelative.MatchString(word) {
		offset, err = strconv.Atoi(word)
		return
	}
	ip, ok := asm.Label[word]
	if !ok {
		err = ErrLabelMissing(word)
		return
	}
	label = word
	offset = ip - (cur.ip + 1)
	return
}

// encode assembles the instruction of a statement.
func (asm *Assembler) encode(cur *cursor) (code Code, label string, err error) {
	name := strings.ToLower(cur.words[0])
	cur.token = cur.words[0]

	mn, ok := mnemonics[name]
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	args := operands(cur.words[1:])

	var want int
	switch mn.Shape {
	case SHAPE_EXIT:
		want = 0
	case SHAPE_UNARY, SHAPE_ENDIAN, SHAPE_JA, SHAPE_CALL, SHAPE_LDABS, SHAPE_LDIND:
		want = 1
	case SHAPE_ALU, SHAPE_LDDW, SHAPE_LDX, SHAPE_ST, SHAPE_STX:
		want = 2
	case SHAPE_JUMP:
		want = 3
	}
	if len(args) < want {
		err = ErrOpcodeValueMissing
		return
	}
	if len(args) > want {
		cur.token = args[want]
		err = ErrOpcodeExtraArgs
		return
	}

	var dst, src uint8
	var offset int
	var value int64
	var is_reg bool

	switch mn.Shape {
	case SHAPE_ALU:
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		src, value, is_reg, err = cur.regOrImm(args[1])
		if err != nil {
			return
		}
		if is_reg {
			if !mn.HasSrc {
				err = ErrParseNumber(args[1])
				return
			}
			code, err = MakeCodeReg(mn.Src, dst, src)
		} else {
			code, err = MakeCodeImm(mn.Imm, dst, value)
		}
	case SHAPE_UNARY:
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		code, err = MakeCodeImm(mn.Imm, dst, 0)
	case SHAPE_ENDIAN:
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		code, err = MakeCodeImm(mn.Imm, dst, mn.Width)
	case SHAPE_JA:
		offset, label, err = asm.target(cur, args[0])
		if err != nil {
			return
		}
		code, err = MakeCodeJump(mn.Imm, 0, 0, offset, 0)
	case SHAPE_JUMP:
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		src, value, is_reg, err = cur.regOrImm(args[1])
		if err != nil {
			return
		}
		offset, label, err = asm.target(cur, args[2])
		if err != nil {
			return
		}
		if is_reg {
			code, err = MakeCodeJump(mn.Src, dst, src, offset, 0)
		} else {
			code, err = MakeCodeJump(mn.Imm, dst, 0, offset, value)
		}
	case SHAPE_CALL, SHAPE_LDABS:
		value, err = cur.imm(args[0])
		if err != nil {
			return
		}
		code, err = MakeCode(mn.Imm, 0, 0, 0, value)
	case SHAPE_EXIT:
		code = MakeCodeExit()
	case SHAPE_LDDW:
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		value, err = cur.imm(args[1])
		if err != nil {
			return
		}
		code, err = MakeCodeImm(mn.Imm, dst, value)
	case SHAPE_LDIND:
		var base int64
		src, base, err = cur.mem(args[0])
		if err != nil {
			return
		}
		code, err = MakeCodeMem(mn.Imm, 0, src, 0, base)
	case SHAPE_LDX:
		var off int64
		dst, err = cur.reg(args[0])
		if err != nil {
			return
		}
		src, off, err = cur.mem(args[1])
		if err != nil {
			return
		}
		code, err = MakeCodeMem(mn.Imm, dst, src, int(off), 0)
	case SHAPE_ST:
		var off int64
		dst, off, err = cur.mem(args[0])
		if err != nil {
			return
		}
		value, err = cur.imm(args[1])
		if err != nil {
			return
		}
		code, err = MakeCodeMem(mn.Imm, dst, 0, int(off), value)
	case SHAPE_STX:
		var off int64
		dst, off, err = cur.mem(args[0])
		if err != nil {
			return
		}
		src, err = cur.reg(args[1])
		if err != nil {
			return
		}
		code, err = MakeCodeMem(mn.Imm, dst, src, int(off), 0)
	default:
		err = ErrInstructionInvalid
	}

	return
}
