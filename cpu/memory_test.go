package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	assert := assert.New(t)

	mem := NewMemory(16)
	assert.Equal(16, mem.Size())

	err := mem.Store(0, 8, 0x0102030405060708)
	assert.NoError(err)

	table := [](struct {
		addr  uint64
		size  int
		value uint64
	}){
		{0, 1, 0x08},
		{1, 2, 0x0607},
		{4, 4, 0x01020304},
		{0, 8, 0x0102030405060708},
		{8, 8, 0},
	}

	for _, entry := range table {
		value, err := mem.Load(entry.addr, entry.size)
		assert.NoError(err)
		assert.Equal(entry.value, value, "%d:%d", entry.addr, entry.size)
	}

	// Only the low bytes are stored.
	err = mem.Store(15, 1, 0x1ff)
	assert.NoError(err)
	value, err := mem.Load(15, 1)
	assert.NoError(err)
	assert.Equal(uint64(0xff), value)

	mem.Reset()
	value, err = mem.Load(0, 8)
	assert.NoError(err)
	assert.Equal(uint64(0), value)
}

func TestMemoryRange(t *testing.T) {
	assert := assert.New(t)

	mem := NewMemory(16)

	table := [](struct {
		addr uint64
		size int
	}){
		{15, 2},
		{16, 1},
		{9, 8},
		{math.MaxUint64, 1},
		{math.MaxUint64 - 3, 8},
		{0, 3},
	}

	for _, entry := range table {
		_, err := mem.Load(entry.addr, entry.size)
		assert.ErrorIs(err, ErrMemoryRange, "%#x:%d", entry.addr, entry.size)
		err = mem.Store(entry.addr, entry.size, 0)
		assert.ErrorIs(err, ErrMemoryRange, "%#x:%d", entry.addr, entry.size)
	}

	// Failed stores leave memory alone.
	for addr := range uint64(16) {
		value, err := mem.Load(addr, 1)
		assert.NoError(err)
		assert.Equal(uint64(0), value)
	}
}
