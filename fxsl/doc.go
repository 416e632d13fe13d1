// Package fxsl provides parsing for the FXSL effect language.
//
// FXSL is a GLSL-like shading language for embedded fixed-point targets.
// Declarations are C-style (type first), and the type system is a strict
// subset of GLSL: scalars, vec2-vec4, square matrices, fixed-size arrays
// and plain structs. There are no pointers, no dynamically sized arrays
// and no preprocessor.
//
// The package turns source text into an AST consumed by the sem package:
//
//	prog, err := fxsl.Parse(source)
//	if err != nil { ... }
//
// Parse errors carry source spans and render as "line:col: message"; use
// SourceError.FormatWithContext for a caret diagnostic.
package fxsl
