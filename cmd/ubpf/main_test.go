package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/ubpf/cpu"
	"github.com/ezrec/ubpf/emulator"
)

// execute runs the command tree with args, capturing its output.
func execute(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(&bytes.Buffer{})

	err = cmd.Execute()
	stdout = out.String()
	return
}

// writeSource writes an assembly source file into a test directory.
func writeSource(t *testing.T, name string, source string) (path string) {
	t.Helper()

	path = filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(dedent.Dedent(source)), 0o644))
	return
}

func TestMainRun(t *testing.T) {
	assert := assert.New(t)

	path := writeSource(t, "hello.s", `
		mov r1 #48
		call #HOST_PUTC
		mov r0 #2a
		exit
	`)

	stdout, err := execute(t, "run", path)
	assert.NoError(err)
	assert.Equal("H0x2a\n", stdout)
}

func TestMainAsm(t *testing.T) {
	assert := assert.New(t)

	path := writeSource(t, "exit.s", `
		mov r0 #1
		exit
	`)
	image := filepath.Join(t.TempDir(), "exit.bin")

	_, err := execute(t, "asm", "-o", image, path)
	assert.NoError(err)

	data, err := os.ReadFile(image)
	require.NoError(t, err)
	prog, err := cpu.ParseBinary(data)
	require.NoError(t, err)
	assert.Equal(2, prog.Len())

	stdout, err := execute(t, "dis", image)
	assert.NoError(err)
	assert.Contains(stdout, "mov r0 #1")

	stdout, err = execute(t, "run", "--binary", image)
	assert.NoError(err)
	assert.Equal("0x1\n", stdout)
}

func TestMainErrors(t *testing.T) {
	assert := assert.New(t)

	missing := filepath.Join(t.TempDir(), "missing.s")
	_, err := execute(t, "run", missing)
	assert.ErrorIs(err, os.ErrNotExist)
	assert.Contains(err.Error(), missing)

	bad := writeSource(t, "bad.s", `
		frobnicate r1
	`)
	_, err = execute(t, "asm", bad)
	assert.ErrorIs(err, cpu.ErrInstructionInvalid)

	spin := writeSource(t, "spin.s", `
		loop: ja loop
	`)
	_, err = execute(t, "run", "--timeout", "10ms", spin)
	assert.ErrorIs(err, context.DeadlineExceeded)

	_, err = execute(t, "run", "--max-ticks", "10", spin)
	assert.ErrorIs(err, emulator.ErrTickLimit)
}
