// Package snapshot_test provides golden snapshot tests for the compiler
// pipeline.
//
// For each FXSL input in testdata/in/, the test dumps the SSA listing
// before and after the fixed-point transform and compares it against
// golden files in testdata/golden/{ir,fixed}/. The machine code stage is
// checked structurally: every emitted word must disassemble.
//
// To regenerate golden files after intentional changes:
//
//	go test ./snapshot/... -update
package snapshot_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/rv32"
)

// shaderFile is an input shader loaded from disk.
type shaderFile struct {
	name   string // base name without extension
	source string
}

// TestSnapshots loads all FXSL inputs, runs each through the pipeline,
// and compares the stage dumps with golden files.
func TestSnapshots(t *testing.T) {
	shaders := loadInputShaders(t, filepath.Join("testdata", "in"))
	require.NotEmpty(t, shaders, "no input shaders found in testdata/in/")

	for i := range shaders {
		shader := &shaders[i]
		t.Run(shader.name, func(t *testing.T) {
			ast, err := fxc.Parse(shader.source)
			require.NoError(t, err)
			prog, err := fxc.Analyze(ast, shader.source)
			require.NoError(t, err)
			ssa := fxc.BuildIR(prog)

			t.Run("ir", func(t *testing.T) {
				assertGolden(t, "ir", shader.name, dump(ssa))
			})

			require.NoError(t, fxc.Transform(ssa))

			t.Run("fixed", func(t *testing.T) {
				assertGolden(t, "fixed", shader.name, dump(ssa))
			})

			t.Run("asm", func(t *testing.T) {
				mod, err := rv32.Emit(ssa, fxc.Registry())
				require.NoError(t, err)
				checkDisassembly(t, mod)
			})
		})
	}
}

// loadInputShaders reads all .fxsl files from the given directory.
func loadInputShaders(t *testing.T, dir string) []shaderFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "read input directory %q", dir)

	var shaders []shaderFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".fxsl") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err, "read shader %q", entry.Name())
		name := strings.TrimSuffix(entry.Name(), ".fxsl")
		shaders = append(shaders, shaderFile{name: name, source: string(data)})
	}

	sort.Slice(shaders, func(i, j int) bool {
		return shaders[i].name < shaders[j].name
	})
	return shaders
}

func dump(ssa *ir.Program) []byte {
	var buf bytes.Buffer
	ir.FprintProgram(&buf, ssa)
	return buf.Bytes()
}

func assertGolden(t *testing.T, stage, name string, actual []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden", stage)),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, actual)
}

// checkDisassembly verifies the emitted image decodes completely: a
// ".word" line means the emitter produced an instruction the
// disassembler does not know, which is a bug in one of the two.
func checkDisassembly(t *testing.T, mod *rv32.Module) {
	t.Helper()
	require.NotEmpty(t, mod.Code)
	assert.Zero(t, len(mod.Code)%4, "code image not word aligned")

	disasm := rv32.Disassemble(mod.Code)
	assert.NotContains(t, disasm, ".word")

	for name, info := range mod.Funcs {
		assert.Zero(t, info.Offset%4, "function %s not word aligned", name)
		assert.Greater(t, info.Size, 0, "function %s has no code", name)
	}
}
