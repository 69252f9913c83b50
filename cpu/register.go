package cpu

const (
	REGISTER_COUNT = 11 // r0-r10
	REGISTER_FP    = 10 // Read-only frame pointer.
)

// Register is a single 64-bit register cell.
type Register uint64

// Read64 returns all 64 bits.
func (r Register) Read64() uint64 {
	return uint64(r)
}

// Read32 returns bits 0..31.
func (r Register) Read32() uint32 {
	return uint32(r)
}

// ReadHigh32 returns bits 32..63.
func (r Register) ReadHigh32() uint32 {
	return uint32(r >> 32)
}

// Write64 replaces all 64 bits.
func (r *Register) Write64(value uint64) {
	*r = Register(value)
}

// Write32 replaces bits 0..31 and zeros bits 32..63.
func (r *Register) Write32(value uint32) {
	*r = Register(value)
}

// WriteHigh32 replaces bits 32..63, leaving bits 0..31 unchanged.
func (r *Register) WriteHigh32(value uint32) {
	*r = (*r & 0xffffffff) | (Register(value) << 32)
}
