package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	assert := assert.New(t)

	reg := Register(0x1122334455667788)
	assert.Equal(uint64(0x1122334455667788), reg.Read64())
	assert.Equal(uint32(0x55667788), reg.Read32())
	assert.Equal(uint32(0x11223344), reg.ReadHigh32())

	reg.Write32(0xaabbccdd)
	assert.Equal(uint64(0x00000000aabbccdd), reg.Read64())

	reg.WriteHigh32(0x12345678)
	assert.Equal(uint64(0x12345678aabbccdd), reg.Read64())

	reg.Write64(0)
	assert.Equal(uint64(0), reg.Read64())
}
