package cpu

import (
	"testing"

	"github.com/lithammer/dedent"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
)

// assertText compares two multi-line texts, and reports a readable diff.
func assertText(t *testing.T, expected, actual string) {
	t.Helper()

	if expected == actual {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(expected, actual, false)
	t.Errorf("text mismatch:\n%v", dmp.DiffPrettyText(diffs))
}

func TestProgramBinary(t *testing.T) {
	assert := assert.New(t)

	prog := NewProgram(
		mustCode(MakeCodeImm(OP_MOV_IMM, 0, 5)),
		MakeCodeExit(),
	)
	assert.Equal(2, prog.Len())
	assert.Equal([]uint64{0x00000005000000b7, 0x0000000000000095}, prog.Binary())

	data := prog.Bytes()
	assert.Equal([]byte{
		0xb7, 0, 0, 0, 5, 0, 0, 0,
		0x95, 0, 0, 0, 0, 0, 0, 0,
	}, data)

	loaded, err := ParseBinary(data)
	assert.NoError(err)
	assert.Equal(prog.Binary(), loaded.Binary())
	assert.Equal(0, loaded.LineNo(0))

	_, err = ParseBinary(data[:7])
	assert.ErrorIs(err, ErrBinarySize)

	empty, err := ParseBinary(nil)
	assert.NoError(err)
	assert.Equal(0, empty.Len())
}

func TestProgramLineNo(t *testing.T) {
	assert := assert.New(t)

	prog, err := Assemble(dedent.Dedent(`
		; leading comment
		mov r0 #1

		exit
	`))
	assert.NoError(err)
	assert.Equal(2, prog.Len())

	assert.Equal(3, prog.LineNo(0))
	assert.Equal(5, prog.LineNo(1))
	assert.Equal(0, prog.LineNo(2))
	assert.Equal(0, prog.LineNo(-1))

	assert.Equal([]string{"mov", "r0", "#1"}, prog.Statements[0].Words)
}

func TestProgramString(t *testing.T) {
	prog, err := Assemble(dedent.Dedent(`
		mov r0 #5
		loop:
		jne r0 #0 loop
		stxdw [r10 - #8] r0
		exit
	`))
	assert.NoError(t, err)

	expected := dedent.Dedent(`
		0000: 00000005000000b7  mov r0 #5
		0001: 00000000ffff0055  jne r0 #0 -1
		0002: 00000000fff80a7b  stxdw [r10 - #8] r0
		0003: 0000000000000095  exit
	`)[1:]

	assertText(t, expected, prog.String())
}
