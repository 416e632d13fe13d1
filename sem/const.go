package sem

import (
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/fxc/fxsl"
)

// ConstValue is a compile-time constant. Its shape mirrors the scalar,
// vector and matrix shapes of Type; components are stored flattened in the
// same order the IR flattens values.
type ConstValue struct {
	Type  *Type
	Comps []ConstScalar
}

// ConstScalar is a single constant component. The interpretation follows
// the component's type kind; integers are kept at full int64 precision
// during evaluation so array sizes and intermediate folds do not wrap.
type ConstScalar struct {
	I int64
	F float64
	B bool
}

// IntConst builds a scalar int constant.
func IntConst(v int64) *ConstValue {
	return &ConstValue{Type: Int, Comps: []ConstScalar{{I: v}}}
}

// UIntConst builds a scalar uint constant.
func UIntConst(v uint64) *ConstValue {
	return &ConstValue{Type: UInt, Comps: []ConstScalar{{I: int64(uint32(v))}}}
}

// FloatConst builds a scalar float constant.
func FloatConst(v float64) *ConstValue {
	return &ConstValue{Type: Float, Comps: []ConstScalar{{F: v}}}
}

// BoolConst builds a scalar bool constant.
func BoolConst(v bool) *ConstValue {
	return &ConstValue{Type: Bool, Comps: []ConstScalar{{B: v}}}
}

// Int returns the scalar integer value.
func (c *ConstValue) Int() int64 { return c.Comps[0].I }

// Float returns the scalar float value.
func (c *ConstValue) Float() float64 { return c.Comps[0].F }

// Bool returns the scalar bool value.
func (c *ConstValue) Bool() bool { return c.Comps[0].B }

// IsScalar reports whether the constant is a single scalar.
func (c *ConstValue) IsScalar() bool { return c.Type.IsScalar() }

// String renders the constant for diagnostics.
func (c *ConstValue) String() string {
	if c.Type.IsScalar() {
		return c.compString(0)
	}
	var sb strings.Builder
	sb.WriteString(c.Type.String())
	sb.WriteByte('(')
	for i := range c.Comps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.compString(i))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c *ConstValue) compString(i int) string {
	switch c.Type.ComponentType(i).Kind {
	case KindBool:
		return strconv.FormatBool(c.Comps[i].B)
	case KindFloat:
		return strconv.FormatFloat(c.Comps[i].F, 'g', -1, 64)
	case KindUInt:
		return strconv.FormatUint(uint64(uint32(c.Comps[i].I)), 10) + "u"
	default:
		return strconv.FormatInt(c.Comps[i].I, 10)
	}
}

// ConstLookup resolves a name to an already-evaluated constant. It is how
// the evaluator sees previously declared global constants; returning false
// makes the reference a non-constant (and, for globals, a forward-reference
// error at the caller).
type ConstLookup func(name string) (*ConstValue, bool)

// EvalConst folds a constant expression, or reports why it is not constant.
// Only literal, constant-reference, unary, binary, ternary, constructor,
// component-access and constant-index expressions fold; anything else
// (calls, runtime variables) is not a constant expression.
func EvalConst(expr fxsl.Expr, lookup ConstLookup) (*ConstValue, error) {
	e := &constEval{lookup: lookup}
	return e.eval(expr)
}

type constEval struct {
	lookup ConstLookup
}

func (e *constEval) errf(span fxsl.Span, format string, args ...any) error {
	return fxsl.NewSourceErrorf(span, "", format, args...)
}

func (e *constEval) eval(expr fxsl.Expr) (*ConstValue, error) {
	switch x := expr.(type) {
	case *fxsl.Literal:
		return e.literal(x)

	case *fxsl.Ident:
		if v, ok := e.lookup(x.Name); ok {
			return v, nil
		}
		return nil, e.errf(x.Span, "%q is not a constant", x.Name)

	case *fxsl.UnaryExpr:
		return e.unary(x)

	case *fxsl.BinaryExpr:
		return e.binary(x)

	case *fxsl.TernaryExpr:
		cond, err := e.eval(x.Cond)
		if err != nil {
			return nil, err
		}
		if cond.Type.Kind != KindBool {
			return nil, e.errf(x.Span, "condition must be bool, found %s", cond.Type)
		}
		if cond.Bool() {
			return e.eval(x.Then)
		}
		return e.eval(x.Else)

	case *fxsl.CallExpr:
		return e.constructor(x)

	case *fxsl.MemberExpr:
		return e.member(x)

	case *fxsl.IndexExpr:
		return e.index(x)
	}

	return nil, e.errf(expr.Pos(), "not a constant expression")
}

func (e *constEval) literal(lit *fxsl.Literal) (*ConstValue, error) {
	switch lit.Kind {
	case fxsl.TokenIntLiteral:
		v, err := strconv.ParseInt(strings.TrimRight(lit.Value, "iI"), 0, 64)
		if err != nil {
			return nil, e.errf(lit.Span, "invalid integer literal %q", lit.Value)
		}
		return IntConst(v), nil
	case fxsl.TokenUintLiteral:
		v, err := strconv.ParseUint(strings.TrimRight(lit.Value, "uU"), 0, 64)
		if err != nil {
			return nil, e.errf(lit.Span, "invalid unsigned literal %q", lit.Value)
		}
		return UIntConst(v), nil
	case fxsl.TokenFloatLiteral:
		v, err := strconv.ParseFloat(strings.TrimRight(lit.Value, "fF"), 64)
		if err != nil {
			return nil, e.errf(lit.Span, "invalid float literal %q", lit.Value)
		}
		return FloatConst(v), nil
	case fxsl.TokenBoolLiteral:
		return BoolConst(lit.Value == "true"), nil
	}
	return nil, e.errf(lit.Span, "invalid literal %q", lit.Value)
}

func (e *constEval) unary(x *fxsl.UnaryExpr) (*ConstValue, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	out := &ConstValue{Type: v.Type, Comps: make([]ConstScalar, len(v.Comps))}
	for i, c := range v.Comps {
		kind := v.Type.ComponentType(i).Kind
		switch x.Op {
		case fxsl.TokenMinus:
			switch kind {
			case KindFloat:
				out.Comps[i].F = -c.F
			case KindInt, KindUInt:
				out.Comps[i].I = -c.I
			default:
				return nil, e.errf(x.Span, "operator - not defined for %s", v.Type)
			}
		case fxsl.TokenBang:
			if kind != KindBool {
				return nil, e.errf(x.Span, "operator ! not defined for %s", v.Type)
			}
			out.Comps[i].B = !c.B
		case fxsl.TokenTilde:
			if kind != KindInt && kind != KindUInt {
				return nil, e.errf(x.Span, "operator ~ not defined for %s", v.Type)
			}
			out.Comps[i].I = ^c.I
		default:
			return nil, e.errf(x.Span, "invalid unary operator")
		}
	}
	return out, nil
}

func (e *constEval) binary(x *fxsl.BinaryExpr) (*ConstValue, error) {
	l, err := e.eval(x.L)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(x.R)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit and demand bools.
	if x.Op == fxsl.TokenAmpAmp || x.Op == fxsl.TokenPipePipe {
		if l.Type.Kind != KindBool || r.Type.Kind != KindBool {
			return nil, e.errf(x.Span, "logical operator requires bool operands, found %s and %s", l.Type, r.Type)
		}
		if x.Op == fxsl.TokenAmpAmp {
			return BoolConst(l.Bool() && r.Bool()), nil
		}
		return BoolConst(l.Bool() || r.Bool()), nil
	}

	l, r, err = e.promotePair(l, r, x.Span)
	if err != nil {
		return nil, err
	}
	kind := l.Type.ComponentType(0).Kind

	switch x.Op {
	case fxsl.TokenEqualEqual, fxsl.TokenBangEqual:
		eq := true
		for i := range l.Comps {
			if !scalarEqual(kind, l.Comps[i], r.Comps[i]) {
				eq = false
				break
			}
		}
		if x.Op == fxsl.TokenBangEqual {
			eq = !eq
		}
		return BoolConst(eq), nil

	case fxsl.TokenLess, fxsl.TokenLessEqual, fxsl.TokenGreater, fxsl.TokenGreaterEqual:
		if !l.Type.IsNumeric() {
			return nil, e.errf(x.Span, "comparison requires scalar numeric operands, found %s", l.Type)
		}
		var res bool
		if kind == KindFloat {
			res = compareFloat(x.Op, l.Float(), r.Float())
		} else if kind == KindUInt {
			res = compareUint(x.Op, uint32(l.Int()), uint32(r.Int()))
		} else {
			res = compareInt(x.Op, l.Int(), r.Int())
		}
		return BoolConst(res), nil
	}

	out := &ConstValue{Type: l.Type, Comps: make([]ConstScalar, len(l.Comps))}
	for i := range l.Comps {
		c, err := e.arith(x.Op, kind, l.Comps[i], r.Comps[i], x.Span)
		if err != nil {
			return nil, err
		}
		out.Comps[i] = c
	}
	return out, nil
}

func (e *constEval) arith(op fxsl.TokenKind, kind Kind, l, r ConstScalar, span fxsl.Span) (ConstScalar, error) {
	var out ConstScalar
	if kind == KindFloat {
		switch op {
		case fxsl.TokenPlus:
			out.F = l.F + r.F
		case fxsl.TokenMinus:
			out.F = l.F - r.F
		case fxsl.TokenStar:
			out.F = l.F * r.F
		case fxsl.TokenSlash:
			if r.F == 0 {
				return out, e.errf(span, "division by zero in constant expression")
			}
			out.F = l.F / r.F
		default:
			return out, e.errf(span, "operator %s not defined for float", op)
		}
		return out, nil
	}

	switch op {
	case fxsl.TokenPlus:
		out.I = l.I + r.I
	case fxsl.TokenMinus:
		out.I = l.I - r.I
	case fxsl.TokenStar:
		out.I = l.I * r.I
	case fxsl.TokenSlash:
		if r.I == 0 {
			return out, e.errf(span, "division by zero in constant expression")
		}
		out.I = l.I / r.I
	case fxsl.TokenPercent:
		if r.I == 0 {
			return out, e.errf(span, "division by zero in constant expression")
		}
		out.I = l.I % r.I
	case fxsl.TokenAmpersand:
		out.I = l.I & r.I
	case fxsl.TokenPipe:
		out.I = l.I | r.I
	case fxsl.TokenCaret:
		out.I = l.I ^ r.I
	case fxsl.TokenLessLess:
		out.I = l.I << (uint64(r.I) & 31)
	case fxsl.TokenGreaterGreater:
		if kind == KindUInt {
			out.I = int64(uint32(l.I) >> (uint64(r.I) & 31))
		} else {
			out.I = l.I >> (uint64(r.I) & 31)
		}
	default:
		return out, e.errf(span, "operator %s not defined for %s", op, kindName(kind))
	}
	return out, nil
}

// promotePair applies implicit int->float promotion and scalar-to-vector
// splatting so both sides share a type.
func (e *constEval) promotePair(l, r *ConstValue, span fxsl.Span) (*ConstValue, *ConstValue, error) {
	// int/uint -> float
	if l.Type.ComponentType(0).Kind == KindFloat && r.Type.IsInteger() {
		r = convertScalarKind(r, KindFloat)
	}
	if r.Type.ComponentType(0).Kind == KindFloat && l.Type.IsInteger() {
		l = convertScalarKind(l, KindFloat)
	}

	// scalar op vector: splat
	if l.Type.IsScalar() && r.Type.Kind == KindVector {
		l = splat(l, r.Type)
	}
	if r.Type.IsScalar() && l.Type.Kind == KindVector {
		r = splat(r, l.Type)
	}

	if !Same(l.Type, r.Type) {
		return nil, nil, e.errf(span, "type mismatch: expected %s, found %s", l.Type, r.Type)
	}
	return l, r, nil
}

func (e *constEval) constructor(call *fxsl.CallExpr) (*ConstValue, error) {
	target, ok := constructorType(call.Callee)
	if !ok {
		return nil, e.errf(call.Span, "call to %q is not a constant expression", call.Callee)
	}

	args := make([]*ConstValue, len(call.Args))
	for i, a := range call.Args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch target.Kind {
	case KindBool, KindInt, KindUInt, KindFloat:
		if len(args) != 1 || !args[0].Type.IsScalar() {
			return nil, e.errf(call.Span, "%s() requires one scalar argument", target)
		}
		return convertScalar(args[0], target), nil

	case KindVector:
		return e.composite(call, target, args)

	case KindMatrix:
		// Single scalar builds a diagonal matrix.
		if len(args) == 1 && args[0].Type.IsScalar() {
			s := convertScalar(args[0], Float)
			out := &ConstValue{Type: target, Comps: make([]ConstScalar, target.Components())}
			for c := 0; c < target.Cols; c++ {
				out.Comps[c*target.Rows+c].F = s.Float()
			}
			return out, nil
		}
		return e.composite(call, target, args)
	}

	return nil, e.errf(call.Span, "cannot construct %s in a constant expression", target)
}

// composite flattens constructor arguments into the target's components,
// splatting a single scalar across a vector.
func (e *constEval) composite(call *fxsl.CallExpr, target *Type, args []*ConstValue) (*ConstValue, error) {
	want := target.Components()

	if target.Kind == KindVector && len(args) == 1 && args[0].Type.IsScalar() {
		return splat(convertScalar(args[0], target.Base), target), nil
	}

	comps := make([]ConstScalar, 0, want)
	for _, a := range args {
		if !a.Type.IsScalar() && a.Type.Kind != KindVector {
			return nil, e.errf(call.Span, "invalid constructor argument of type %s", a.Type)
		}
		conv := convertScalarKind(a, componentKind(target))
		comps = append(comps, conv.Comps...)
	}
	if len(comps) != want {
		return nil, e.errf(call.Span, "%s constructor requires %d components, found %d",
			target, want, len(comps))
	}
	return &ConstValue{Type: target, Comps: comps}, nil
}

func (e *constEval) member(x *fxsl.MemberExpr) (*ConstValue, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	if v.Type.Kind != KindVector {
		return nil, e.errf(x.Span, "component access requires a vector, found %s", v.Type)
	}
	idx, ok := componentIndex(x.Name)
	if !ok || idx >= v.Type.Size {
		return nil, e.errf(x.Span, "unknown component %q of %s", x.Name, v.Type)
	}
	return &ConstValue{Type: v.Type.Base, Comps: []ConstScalar{v.Comps[idx]}}, nil
}

func (e *constEval) index(x *fxsl.IndexExpr) (*ConstValue, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	idx, err := e.eval(x.Index)
	if err != nil {
		return nil, err
	}
	if !idx.Type.IsInteger() {
		return nil, e.errf(x.Span, "index must be an integer, found %s", idx.Type)
	}
	i := int(idx.Int())

	switch v.Type.Kind {
	case KindVector:
		if i < 0 || i >= v.Type.Size {
			return nil, e.errf(x.Span, "index %d out of range for %s", i, v.Type)
		}
		return &ConstValue{Type: v.Type.Base, Comps: []ConstScalar{v.Comps[i]}}, nil
	case KindMatrix:
		if i < 0 || i >= v.Type.Cols {
			return nil, e.errf(x.Span, "index %d out of range for %s", i, v.Type)
		}
		col := Vec(Float, v.Type.Rows)
		return &ConstValue{Type: col, Comps: v.Comps[i*v.Type.Rows : (i+1)*v.Type.Rows]}, nil
	}
	return nil, e.errf(x.Span, "cannot index %s in a constant expression", v.Type)
}

// ---------------------------------------------------------------------------
// Scalar helpers
// ---------------------------------------------------------------------------

func constructorType(name string) (*Type, bool) {
	switch name {
	case "bool":
		return Bool, true
	case "int":
		return Int, true
	case "uint":
		return UInt, true
	case "float":
		return Float, true
	case "vec2":
		return Vec(Float, 2), true
	case "vec3":
		return Vec(Float, 3), true
	case "vec4":
		return Vec(Float, 4), true
	case "mat2":
		return Mat(2), true
	case "mat3":
		return Mat(3), true
	case "mat4":
		return Mat(4), true
	}
	return nil, false
}

func componentKind(t *Type) Kind {
	switch t.Kind {
	case KindVector:
		return t.Base.Kind
	case KindMatrix:
		return KindFloat
	default:
		return t.Kind
	}
}

func kindName(k Kind) string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	}
	return "<invalid>"
}

// componentIndex maps single-letter vector component names (both the
// positional and the color set) to component indices.
func componentIndex(name string) (int, bool) {
	switch name {
	case "x", "r":
		return 0, true
	case "y", "g":
		return 1, true
	case "z", "b":
		return 2, true
	case "w", "a":
		return 3, true
	}
	return 0, false
}

func splat(s *ConstValue, target *Type) *ConstValue {
	out := &ConstValue{Type: target, Comps: make([]ConstScalar, target.Components())}
	for i := range out.Comps {
		out.Comps[i] = s.Comps[0]
	}
	return out
}

func convertScalar(v *ConstValue, target *Type) *ConstValue {
	out := convertScalarKind(v, target.Kind)
	out.Type = target
	return out
}

// convertScalarKind converts every component of v to the given scalar kind.
func convertScalarKind(v *ConstValue, kind Kind) *ConstValue {
	srcKind := v.Type.ComponentType(0).Kind
	if srcKind == kind {
		return v
	}
	out := &ConstValue{Comps: make([]ConstScalar, len(v.Comps))}
	switch v.Type.Kind {
	case KindVector:
		out.Type = Vec(scalarType(kind), v.Type.Size)
	default:
		out.Type = scalarType(kind)
	}
	for i, c := range v.Comps {
		out.Comps[i] = convertOne(srcKind, kind, c)
	}
	return out
}

func convertOne(from, to Kind, c ConstScalar) ConstScalar {
	var out ConstScalar
	switch to {
	case KindFloat:
		switch from {
		case KindFloat:
			out.F = c.F
		case KindUInt:
			out.F = float64(uint32(c.I))
		case KindBool:
			if c.B {
				out.F = 1
			}
		default:
			out.F = float64(c.I)
		}
	case KindInt, KindUInt:
		switch from {
		case KindFloat:
			out.I = int64(math.Trunc(c.F))
		case KindBool:
			if c.B {
				out.I = 1
			}
		default:
			out.I = c.I
		}
		if to == KindUInt {
			out.I = int64(uint32(out.I))
		}
	case KindBool:
		switch from {
		case KindFloat:
			out.B = c.F != 0
		case KindBool:
			out.B = c.B
		default:
			out.B = c.I != 0
		}
	}
	return out
}

func scalarType(k Kind) *Type {
	switch k {
	case KindBool:
		return Bool
	case KindInt:
		return Int
	case KindUInt:
		return UInt
	case KindFloat:
		return Float
	}
	return Invalid
}

func scalarEqual(kind Kind, a, b ConstScalar) bool {
	switch kind {
	case KindFloat:
		return a.F == b.F
	case KindBool:
		return a.B == b.B
	default:
		return a.I == b.I
	}
}

func compareFloat(op fxsl.TokenKind, a, b float64) bool {
	switch op {
	case fxsl.TokenLess:
		return a < b
	case fxsl.TokenLessEqual:
		return a <= b
	case fxsl.TokenGreater:
		return a > b
	default:
		return a >= b
	}
}

func compareInt(op fxsl.TokenKind, a, b int64) bool {
	switch op {
	case fxsl.TokenLess:
		return a < b
	case fxsl.TokenLessEqual:
		return a <= b
	case fxsl.TokenGreater:
		return a > b
	default:
		return a >= b
	}
}

func compareUint(op fxsl.TokenKind, a, b uint32) bool {
	switch op {
	case fxsl.TokenLess:
		return a < b
	case fxsl.TokenLessEqual:
		return a <= b
	case fxsl.TokenGreater:
		return a > b
	default:
		return a >= b
	}
}
