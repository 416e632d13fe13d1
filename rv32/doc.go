// Package rv32 generates RV32IM machine code from scalar SSA. The
// generated code follows the ILP32 calling convention for the first
// eight scalar arguments, keeps every SSA value in a stack slot, and
// calls the numeric routines through an absolute address window that the
// emulator intercepts. Emit produces a directly runnable module;
// EmitObject wraps the same code in a relocatable container with symbol
// and relocation tables.
package rv32
