// Package fxc provides a pure Go shader compiler for FPU-less targets.
//
// fxc compiles FXSL (a GLSL-flavored shading language) to RV32IM machine
// code with all floating-point arithmetic rewritten to saturating Q16.16
// fixed point. Output is either a directly executable code image or a
// relocatable object for offline linking.
//
// The package provides a simple, high-level API as well as lower-level
// access to the individual compilation stages.
//
// Example usage:
//
//	source := `
//	float brighten(float x) {
//	    return clamp(x * 1.2, 0.0, 1.0);
//	}
//	`
//	mod, err := fxc.Compile(source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// To execute the result on the bundled interpreter, use Run:
//
//	out, err := fxc.Run(source, "brighten", int32(fixed.FromFloat(0.5)))
package fxc

import (
	"fmt"
	"io"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/emu"
	"github.com/gogpu/fxc/fixedpt"
	"github.com/gogpu/fxc/fxsl"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/lower"
	"github.com/gogpu/fxc/rv32"
	"github.com/gogpu/fxc/sem"
)

// Numeric selects the numeric model of the generated code.
type Numeric int

const (
	// NumericQ16 rewrites all float arithmetic to saturating Q16.16
	// fixed point. This is the only model with backend support.
	NumericQ16 Numeric = iota

	// NumericFloat32 would keep IEEE float arithmetic. No current
	// target implements it; compilation fails before code generation.
	NumericFloat32
)

// Target names the machine the compiler emits for.
type Target struct {
	// Arch is the instruction set. Only "rv32im" is supported.
	Arch string

	// Numeric is the numeric model.
	Numeric Numeric
}

// DefaultTarget returns the RV32IM fixed-point target.
func DefaultTarget() Target {
	return Target{Arch: "rv32im", Numeric: NumericQ16}
}

// CompileOptions configures compilation.
type CompileOptions struct {
	Target Target

	// DumpIR, if non-nil, receives the SSA listing before the numeric
	// transform.
	DumpIR io.Writer

	// DumpTransformed, if non-nil, receives the SSA listing after the
	// numeric transform.
	DumpTransformed io.Writer

	// DumpAsm, if non-nil, receives a disassembly of the emitted code.
	DumpAsm io.Writer

	// Disassemble makes CompileObject capture per-function block
	// listings and disassembly on the returned object.
	Disassemble bool
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{Target: DefaultTarget()}
}

// registry is the shared builtin table. Construction is deterministic,
// so every caller sees identical id assignment.
var registry = builtin.Build()

// Registry exposes the builtin table the compiler links against. Hosts
// embedding the emulator need it to service the call window.
func Registry() *builtin.Registry {
	return registry
}

// Compile compiles FXSL source to an RV32IM code image using default
// options.
//
// This is the simplest way to compile a shader. For more control, use
// CompileWithOptions or the individual Parse/Analyze/BuildIR/Transform
// stages.
func Compile(source string) (*rv32.Module, error) {
	return CompileWithOptions(source, DefaultOptions())
}

// CompileWithOptions compiles FXSL source with custom options.
//
// The compilation pipeline is:
//  1. Parse FXSL source to AST
//  2. Analyze the AST (types, constants, builtin binding)
//  3. Build scalar SSA form
//  4. Rewrite float arithmetic to Q16.16 fixed point
//  5. Emit RV32IM machine code
func CompileWithOptions(source string, opts CompileOptions) (*rv32.Module, error) {
	ssa, err := frontend(source, opts)
	if err != nil {
		return nil, err
	}
	mod, err := rv32.Emit(ssa, registry)
	if err != nil {
		return nil, fmt.Errorf("code generation error: %w", err)
	}
	if opts.DumpAsm != nil {
		io.WriteString(opts.DumpAsm, rv32.Disassemble(mod.Code))
	}
	return mod, nil
}

// CompileObject compiles FXSL source to a relocatable object instead of
// a linked code image. Builtin window references and cross-function
// calls stay as relocations for an external linker.
func CompileObject(source string, opts CompileOptions) (*rv32.Object, error) {
	ssa, err := frontend(source, opts)
	if err != nil {
		return nil, err
	}
	obj, err := rv32.EmitObjectWith(ssa, registry, rv32.ObjectOptions{Disassemble: opts.Disassemble})
	if err != nil {
		return nil, fmt.Errorf("code generation error: %w", err)
	}
	if opts.DumpAsm != nil {
		io.WriteString(opts.DumpAsm, rv32.Disassemble(obj.Code))
	}
	return obj, nil
}

// frontend runs every stage up to and including the numeric transform.
func frontend(source string, opts CompileOptions) (*ir.Program, error) {
	if err := checkTarget(opts.Target); err != nil {
		return nil, err
	}

	ast, err := Parse(source)
	if err != nil {
		return nil, err
	}
	prog, err := Analyze(ast, source)
	if err != nil {
		return nil, err
	}

	ssa := BuildIR(prog)
	if opts.DumpIR != nil {
		ir.FprintProgram(opts.DumpIR, ssa)
	}
	if err := Transform(ssa); err != nil {
		return nil, fmt.Errorf("fixed-point transform error: %w", err)
	}
	if opts.DumpTransformed != nil {
		ir.FprintProgram(opts.DumpTransformed, ssa)
	}
	return ssa, nil
}

func checkTarget(t Target) error {
	if t.Arch != "rv32im" {
		return fmt.Errorf("unsupported target architecture %q", t.Arch)
	}
	if t.Numeric == NumericFloat32 {
		return fmt.Errorf("target %q has no float32 support", t.Arch)
	}
	return nil
}

// Parse parses FXSL source code to an AST.
//
// This is the first stage of compilation. The AST represents the
// syntactic structure of the shader without semantic information.
func Parse(source string) (*fxsl.Program, error) {
	ast, err := fxsl.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ast, nil
}

// Analyze type-checks an AST and produces a typed program with global
// constants folded and builtin calls bound to registry ids. Errors carry
// line:column information and source context.
func Analyze(ast *fxsl.Program, source string) (*sem.Program, error) {
	return sem.AnalyzeSource(ast, source, registry)
}

// BuildIR lowers a typed program to scalar SSA form. Float arithmetic is
// still present afterwards; run Transform before code generation.
func BuildIR(prog *sem.Program) *ir.Program {
	return lower.Lower(prog)
}

// Transform rewrites all float arithmetic in an SSA program to Q16.16
// fixed point in place. After a successful return no float opcode
// remains.
func Transform(ssa *ir.Program) error {
	return fixedpt.Rewrite(ssa, registry)
}

// Run compiles source and executes one of its functions on the bundled
// RV32IM interpreter. Arguments and the result are raw 32-bit values:
// Q16.16 bit patterns for floats, plain two's complement for integers.
func Run(source, fn string, args ...int32) (int32, error) {
	mod, err := Compile(source)
	if err != nil {
		return 0, err
	}
	return emu.New(mod, registry).Call(fn, args...)
}
