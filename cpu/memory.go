package cpu

import (
	"encoding/binary"
)

const (
	MEMORY_WORDS = 16               // Scratch memory size, in 64-bit words.
	MEMORY_SIZE  = MEMORY_WORDS * 8 // Scratch memory size, in bytes.
)

// Memory is bounds-checked, byte addressable, little-endian scratch memory.
type Memory struct {
	Data []byte
}

// NewMemory creates a zeroed scratch memory of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{Data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (mem *Memory) Size() int {
	return len(mem.Data)
}

// Reset zeros the memory.
func (mem *Memory) Reset() {
	clear(mem.Data)
}

// window returns the size bytes at addr, or ErrMemoryRange.
func (mem *Memory) window(addr uint64, size int) (buf []byte, err error) {
	limit := uint64(len(mem.Data))
	if addr >= limit || uint64(size) > limit-addr {
		err = ErrMemoryRange
		return
	}

	buf = mem.Data[addr : addr+uint64(size)]
	return
}

// Load reads a 1, 2, 4 or 8 byte value at addr, zero extended.
func (mem *Memory) Load(addr uint64, size int) (value uint64, err error) {
	buf, err := mem.window(addr, size)
	if err != nil {
		return
	}

	switch size {
	case 1:
		value = uint64(buf[0])
	case 2:
		value = uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		value = uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		value = binary.LittleEndian.Uint64(buf)
	default:
		err = ErrMemoryRange
	}

	return
}

// Store writes the low size bytes of value at addr.
func (mem *Memory) Store(addr uint64, size int, value uint64) (err error) {
	buf, err := mem.window(addr, size)
	if err != nil {
		return
	}

	switch size {
	case 1:
		buf[0] = uint8(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(buf, value)
	default:
		err = ErrMemoryRange
	}

	return
}
