package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/fixed"
)

func TestBuildIsIdempotent(t *testing.T) {
	// Call sites in already-compiled code embed ids directly, so
	// rebuilding the registry from the same surface must assign
	// identical ids, names and symbols.
	a, b := Build(), Build()
	require.Equal(t, a.Len(), b.Len())
	ea, eb := a.All(), b.All()
	for i := range ea {
		assert.Equal(t, ea[i].ID, eb[i].ID)
		assert.Equal(t, ea[i].Name, eb[i].Name)
		assert.Equal(t, ea[i].Symbol, eb[i].Symbol)
		assert.Equal(t, ea[i].Arity, eb[i].Arity)
	}
}

func TestOverloadFamilies(t *testing.T) {
	reg := Build()
	tests := []struct {
		name    string
		arity   int
		wantSym string
	}{
		{"hash", 1, "fx_hash1"},
		{"hash", 2, "fx_hash2"},
		{"hash", 3, "fx_hash3"},
		{"noise", 1, "fx_noise1"},
		{"noise", 2, "fx_noise2"},
		{"noise", 3, "fx_noise3"},
		{"worley", 2, "fx_worley2"},
		{"worley", 3, "fx_worley3"},
		{"atan", 1, "fx_atan1"},
		{"atan", 2, "fx_atan2"},
		{"sqrt", 1, "fx_sqrt"},
	}
	seen := map[ID]string{}
	for _, tt := range tests {
		id, ok := reg.Lookup(tt.name, tt.arity)
		require.True(t, ok, "%s/%d", tt.name, tt.arity)
		e, ok := reg.Entry(id)
		require.True(t, ok)
		assert.Equal(t, tt.wantSym, e.Symbol)
		assert.Equal(t, tt.arity, e.Arity)
		if prev, dup := seen[id]; dup {
			t.Errorf("id %d assigned to both %s and %s", id, prev, e.Symbol)
		}
		seen[id] = e.Symbol
	}

	// Families only resolve at registered arities.
	_, ok := reg.Lookup("worley", 1)
	assert.False(t, ok)
	_, ok = reg.Lookup("hash", 4)
	assert.False(t, ok)
	_, ok = reg.Lookup("sqrt", 2)
	assert.False(t, ok)

	assert.True(t, reg.HasName("worley"))
	assert.False(t, reg.HasName("worley2"))
	assert.False(t, reg.HasName("bogus"))
}

func TestWindowRoundTrip(t *testing.T) {
	reg := Build()
	for _, e := range reg.All() {
		addr, ok := reg.Resolve(e.ID)
		require.True(t, ok)
		back, ok := reg.FromAddress(addr)
		require.True(t, ok)
		assert.Equal(t, e.ID, back)
	}

	_, ok := reg.Resolve(ID(reg.Len()))
	assert.False(t, ok)
	_, ok = reg.FromAddress(WindowBase + 4) // not on a slot boundary
	assert.False(t, ok)
	_, ok = reg.FromAddress(WindowBase + WindowStride*uint32(reg.Len()))
	assert.False(t, ok)
	_, ok = reg.FromAddress(0x1000)
	assert.False(t, ok)
}

func TestInvoke(t *testing.T) {
	reg := Build()
	lookup := func(name string, arity int) ID {
		id, ok := reg.Lookup(name, arity)
		require.True(t, ok, "%s/%d", name, arity)
		return id
	}

	v, err := reg.Invoke(lookup("sqrt", 1), []int32{int32(fixed.FromInt(4))})
	require.NoError(t, err)
	assert.InDelta(t, int32(fixed.FromInt(2)), v, 1)

	_, err = reg.Invoke(lookup("sqrt", 1), []int32{int32(fixed.FromInt(-1))})
	assert.ErrorIs(t, err, ErrDomain)

	_, err = reg.Invoke(lookup("div", 2), []int32{int32(fixed.One), 0})
	assert.ErrorIs(t, err, ErrDivZero)

	_, err = reg.Invoke(lookup("div", 2), []int32{int32(fixed.One)})
	assert.Error(t, err, "arity mismatch")

	_, err = reg.Invoke(ID(reg.Len()), nil)
	assert.Error(t, err)
}
