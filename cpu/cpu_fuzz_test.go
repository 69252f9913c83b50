package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func FuzzCpu(f *testing.F) {
	for _, op := range []Opcode{OP_ADD_IMM, OP_DIV32_SRC, OP_BE, OP_JA, OP_CALL, OP_LDXDW, OP_STW, OP_EXIT} {
		f.Add(uint64(op), uint64(0), uint64(0xffffffffffffffff))
		f.Add(uint64(op)|0xfff80a00, uint64(0x80), uint64(1))
	}
	f.Add(uint64(0), uint64(0), uint64(0))

	f.Fuzz(func(t *testing.T, word uint64, r1 uint64, r2 uint64) {
		assert := assert.New(t)

		cpu := NewCpu(MEMORY_SIZE)
		cpu.Reset()
		cpu.Register[1].Write64(r1)
		cpu.Register[2].Write64(r2)
		cpu.Hosts[1] = func(cpu *Cpu, args [5]uint64) (uint64, error) {
			return args[0] ^ args[1], nil
		}

		cpu.Load(NewProgram(Code(word), MakeCodeExit()))

		// Branches may loop, so the tick count is bounded.
		var err error
		for range 4 {
			if cpu.State == STATE_HALTED {
				break
			}
			err = cpu.Tick()
		}

		if err != nil {
			var fault *ErrFault
			assert.True(errors.As(err, &fault), "%v", err)
			assert.Equal(STATE_HALTED, cpu.State)
			assert.Equal(err, cpu.Fault)
		}

		// The frame pointer is never written.
		assert.Equal(uint64(MEMORY_SIZE), cpu.Register[REGISTER_FP].Read64())
		assert.Equal(MEMORY_SIZE, cpu.Memory.Size())
	})
}
