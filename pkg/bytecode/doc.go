// Package bytecode defines the Modl instruction set: the opcode table with
// each opcode's operand template, a decoder for the variable-length
// instruction stream, an assembler for building programs, and a
// disassembler.
//
// # Instruction format
//
// An instruction is one opcode byte followed by up to two operands:
//
//   - Reg: one byte, register index in the low nibble (high bits ignored)
//   - RegPair: one byte, first register in the high nibble, second in the low
//   - Int64: 8-byte big-endian signed immediate
//   - Const: a Sebo encoded value (see package sebo)
//
// Jump and LOADFUN offsets are relative to the first byte of the
// instruction that carries them.
//
// # Example
//
//	a := bytecode.NewAssembler()
//	a.LoadInt(0, 5).Ret()
//	code, err := a.Build()
//	// code is 04 00 03 05 01
package bytecode
