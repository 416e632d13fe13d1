// Package ir defines the scalar SSA intermediate representation sitting
// between the typed front end and the code generators. Every value is a
// 32-bit scalar; composites are flattened before construction. Functions
// are built with an on-the-fly SSA construction (Braun et al.), so the
// lowering pass never materializes a mutable-variable form: it writes
// and reads numbered variable slots and the builder inserts phis at
// merges. Blocks must be sealed once their predecessor set is final;
// the builder panics on protocol misuse since that is always a compiler
// bug, not a user error.
//
// Float opcodes exist only between lowering and the fixed-point rewrite;
// code generators reject functions that still contain them.
package ir
