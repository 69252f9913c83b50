// Package cpu implements the virtual machine and assembler for an eBPF-style
// instruction set.
//
// Instructions are fixed 64-bit words holding an 8-bit opcode, 4-bit
// destination and source register indexes, a signed 16-bit offset and a
// 32-bit immediate. The machine has eleven 64-bit registers (r0-r10, r10
// being a read-only frame pointer), a program counter, and a small
// bounds-checked scratch memory. Execution faults halt the machine and are
// reported as *ErrFault, distinct from a normal exit.
//
// The assembler translates line-oriented mnemonic source into a Program,
// resolving branch labels to relative instruction offsets, and supports
// equates and compile-time expression evaluation.
package cpu
