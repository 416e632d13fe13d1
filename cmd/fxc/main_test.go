package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc"
	"github.com/gogpu/fxc/fixed"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"42", 42},
		{"-7", -7},
		{"0x10", 16},
		{"0xFFFFFFFF", -1},
		{"1.5", int32(fixed.FromFloat(1.5))},
		{"-0.25", int32(fixed.FromFloat(-0.25))},
		{"2e2", int32(fixed.FromFloat(200))},
	}
	for _, tt := range tests {
		got, err := parseArg(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseArg("nope")
	assert.Error(t, err)
	_, err = parseArg("99999999999999")
	assert.Error(t, err)
}

func TestLoadTarget(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		target, err := loadTarget("")
		require.NoError(t, err)
		assert.Equal(t, fxc.DefaultTarget(), target)
	})

	t.Run("descriptor file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "target.yaml")
		require.NoError(t, os.WriteFile(path, []byte("arch: rv32im\nnumeric: q16\n"), 0o644))
		target, err := loadTarget(path)
		require.NoError(t, err)
		assert.Equal(t, "rv32im", target.Arch)
		assert.Equal(t, fxc.NumericQ16, target.Numeric)
	})

	t.Run("unknown numeric model", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "target.yaml")
		require.NoError(t, os.WriteFile(path, []byte("numeric: bfloat16\n"), 0o644))
		_, err := loadTarget(path)
		assert.ErrorContains(t, err, `unknown numeric model "bfloat16"`)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "target.yaml")
		require.NoError(t, os.WriteFile(path, []byte("archh: rv32im\n"), 0o644))
		_, err := loadTarget(path)
		assert.Error(t, err)
	})
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "s.fxsl")
	require.NoError(t, os.WriteFile(input, []byte(`
		float gain(float x) { return x * 2.0; }
	`), 0o644))

	t.Run("image to file", func(t *testing.T) {
		out := filepath.Join(dir, "s.bin")
		cmd := newRootCommand()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"build", input, "-o", out})
		require.NoError(t, cmd.Execute())

		code, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.NotEmpty(t, code)
		assert.Zero(t, len(code)%4)
	})

	t.Run("object round-trips through disasm", func(t *testing.T) {
		out := filepath.Join(dir, "s.fxo")
		cmd := newRootCommand()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"build", input, "--object", "-o", out})
		require.NoError(t, cmd.Execute())

		var stdout bytes.Buffer
		cmd = newRootCommand()
		cmd.SetOut(&stdout)
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"disasm", out})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, stdout.String(), "gain")
		assert.Contains(t, stdout.String(), "symbols:")
	})

	t.Run("compile error surfaces", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.fxsl")
		require.NoError(t, os.WriteFile(bad, []byte(`float f() { return z; }`), 0o644))
		cmd := newRootCommand()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"build", bad})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown identifier")
	})
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "s.fxsl")
	require.NoError(t, os.WriteFile(input, []byte(`
		float gain(float x) { return x * 2.0; }
		int add(int a, int b) { return a + b; }
	`), 0o644))

	t.Run("integer result", func(t *testing.T) {
		var stdout bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&stdout)
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"run", input, "add", "2", "3"})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "5\n", stdout.String())
	})

	t.Run("float result", func(t *testing.T) {
		var stdout bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&stdout)
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"run", input, "gain", "1.5", "--float"})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "3\n", stdout.String())
	})
}
