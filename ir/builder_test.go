package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	slotX = iota
	slotY
)

func TestStraightLine(t *testing.T) {
	f := NewFunc("f", 1, true)
	b := f.Entry
	b.Seal()

	a := b.Arg(0)
	one := b.ConstInt(1)
	sum := b.NewInstr(OpAdd, a, one)
	b.WriteVar(slotX, sum)
	b.Return(b.ReadVar(slotX))

	require.True(t, b.Terminated())
	assert.Same(t, sum, b.Term.Args[0])
	assert.Empty(t, b.Params, "no merges, no phis")
}

// Diamond where both arms write the same slot: the join needs a phi.
func TestDiamondPhi(t *testing.T) {
	f := NewFunc("f", 1, true)
	entry := f.Entry
	entry.Seal()

	then := f.NewBlock()
	els := f.NewBlock()
	join := f.NewBlock()

	cond := entry.NewInstr(OpLtS, entry.Arg(0), entry.ConstInt(0))
	entry.Branch(cond, then, els)
	then.Seal()
	els.Seal()

	then.WriteVar(slotX, then.ConstInt(10))
	then.Jump(join)
	els.WriteVar(slotX, els.ConstInt(20))
	els.Jump(join)
	join.Seal()

	v := join.ReadVar(slotX)
	join.Return(v)

	require.Equal(t, OpPhi, v.Op)
	require.Len(t, v.Args, 2)
	assert.Equal(t, int64(10), v.Args[0].Aux)
	assert.Equal(t, int64(20), v.Args[1].Aux)
}

// Diamond where only one arm writes: the phi still forms, merging the
// new definition with the one reaching from the entry.
func TestDiamondPartialWrite(t *testing.T) {
	f := NewFunc("f", 0, true)
	entry := f.Entry
	entry.Seal()

	init := entry.ConstInt(1)
	entry.WriteVar(slotX, init)

	then := f.NewBlock()
	join := f.NewBlock()
	cond := entry.NewInstr(OpEq, init, init)
	entry.Branch(cond, then, join)
	then.Seal()

	then.WriteVar(slotX, then.ConstInt(2))
	then.Jump(join)
	join.Seal()

	v := join.ReadVar(slotX)
	require.Equal(t, OpPhi, v.Op)
	join.Return(v)
}

// Trivial merge: both arms carry the same definition, so no phi survives.
func TestTrivialPhiRemoved(t *testing.T) {
	f := NewFunc("f", 0, true)
	entry := f.Entry
	entry.Seal()

	init := entry.ConstInt(7)
	entry.WriteVar(slotX, init)

	then := f.NewBlock()
	join := f.NewBlock()
	cond := entry.NewInstr(OpEq, init, init)
	entry.Branch(cond, then, join)
	then.Seal()
	then.Jump(join)
	join.Seal()

	v := join.ReadVar(slotX)
	assert.Same(t, init, v, "single reaching definition needs no phi")
	assert.Empty(t, join.Params)
}

// Loop: the header is sealed only after the back edge exists, and the
// loop-carried variable becomes a header phi.
func TestLoopPhi(t *testing.T) {
	f := NewFunc("f", 0, true)
	entry := f.Entry
	entry.Seal()

	header := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()

	entry.WriteVar(slotX, entry.ConstInt(0))
	entry.Jump(header)

	// Header is NOT sealed yet; the back edge is still missing.
	iv := header.ReadVar(slotX)
	limit := header.ConstInt(10)
	cond := header.NewInstr(OpLtS, iv, limit)
	header.Branch(cond, body, exit)
	body.Seal()

	next := body.NewInstr(OpAdd, body.ReadVar(slotX), body.ConstInt(1))
	body.WriteVar(slotX, next)
	body.Jump(header)
	header.Seal()
	exit.Seal()

	exit.Return(exit.ReadVar(slotX))

	require.Equal(t, OpPhi, iv.Op)
	require.Len(t, iv.Args, 2)
	assert.Equal(t, int64(0), iv.Args[0].Aux, "initial value from preheader")
	assert.Same(t, next, iv.Args[1], "loop-carried value from body")
}

// A loop that never writes the variable must not keep a phi after
// sealing resolves the placeholder.
func TestLoopInvariantPhiRemoved(t *testing.T) {
	f := NewFunc("f", 0, true)
	entry := f.Entry
	entry.Seal()

	header := f.NewBlock()
	exit := f.NewBlock()

	inv := entry.ConstInt(42)
	entry.WriteVar(slotY, inv)
	entry.Jump(header)

	v := header.ReadVar(slotY) // placeholder: header unsealed
	cond := header.NewInstr(OpEq, v, v)
	header.Branch(cond, header, exit)
	header.Seal()
	exit.Seal()
	exit.Return(exit.ReadVar(slotY))

	assert.Same(t, inv, header.ReadVar(slotY).resolve())
	assert.Empty(t, header.Params, "invariant variable needs no phi")
	assert.Same(t, inv, exit.Term.Args[0])
}

func TestProtocolViolationsPanic(t *testing.T) {
	t.Run("seal twice", func(t *testing.T) {
		f := NewFunc("f", 0, false)
		f.Entry.Seal()
		assert.Panics(t, func() { f.Entry.Seal() })
	})

	t.Run("edge into sealed block", func(t *testing.T) {
		f := NewFunc("f", 0, false)
		f.Entry.Seal()
		target := f.NewBlock()
		target.Seal()
		assert.Panics(t, func() { f.Entry.Jump(target) })
	})

	t.Run("instruction after terminator", func(t *testing.T) {
		f := NewFunc("f", 0, false)
		f.Entry.Seal()
		f.Entry.Return(nil)
		assert.Panics(t, func() { f.Entry.ConstInt(1) })
	})

	t.Run("terminate twice", func(t *testing.T) {
		f := NewFunc("f", 0, false)
		f.Entry.Seal()
		f.Entry.Return(nil)
		assert.Panics(t, func() { f.Entry.Return(nil) })
	})

	t.Run("argument out of range", func(t *testing.T) {
		f := NewFunc("f", 1, false)
		f.Entry.Seal()
		assert.Panics(t, func() { f.Entry.Arg(1) })
	})
}

func TestPrint(t *testing.T) {
	f := NewFunc("sum", 2, true)
	b := f.Entry
	b.Seal()
	s := b.NewInstr(OpAdd, b.Arg(0), b.Arg(1))
	b.Return(s)

	var sb strings.Builder
	Fprint(&sb, f)
	out := sb.String()
	assert.Contains(t, out, "func sum(2) i32 {")
	assert.Contains(t, out, "= add v0, v1")
	assert.Contains(t, out, "ret v2")
}
