package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/fxc"
)

// buildOptions holds flags for the build command.
type buildOptions struct {
	*rootOptions
	Output    string
	Object    bool
	DumpIR    bool
	DumpFixed bool
	DumpAsm   bool
}

func newBuildCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &buildOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <input.fxsl>",
		Short: "Compile an FXSL shader",
		Long: `Compile an FXSL shader to an RV32IM code image, or with --object to a
relocatable object with symbol table and relocations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.Object, "object", false, "emit a relocatable object instead of a linked image")
	cmd.Flags().BoolVar(&opts.DumpIR, "dump-ir", false, "print SSA before the fixed-point transform")
	cmd.Flags().BoolVar(&opts.DumpFixed, "dump-fixed", false, "print SSA after the fixed-point transform")
	cmd.Flags().BoolVar(&opts.DumpAsm, "dump-asm", false, "print a disassembly of the emitted code")

	return cmd
}

func runBuild(opts *buildOptions, inputPath string, cmd *cobra.Command) error {
	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	target, err := loadTarget(opts.Target)
	if err != nil {
		return err
	}
	slog.Debug("compiling", "input", inputPath, "arch", target.Arch)

	compileOpts := fxc.CompileOptions{Target: target}
	if opts.DumpIR {
		compileOpts.DumpIR = cmd.ErrOrStderr()
	}
	if opts.DumpFixed {
		compileOpts.DumpTransformed = cmd.ErrOrStderr()
	}
	if opts.DumpAsm {
		compileOpts.DumpAsm = cmd.ErrOrStderr()
	}

	var out []byte
	if opts.Object {
		obj, err := fxc.CompileObject(string(source), compileOpts)
		if err != nil {
			return err
		}
		slog.Debug("object built", "symbols", len(obj.Symbols), "relocs", len(obj.Relocs))
		out = obj.Marshal()
	} else {
		mod, err := fxc.CompileWithOptions(string(source), compileOpts)
		if err != nil {
			return err
		}
		slog.Debug("image built", "functions", len(mod.Funcs), "bytes", len(mod.Code))
		out = mod.Code
	}

	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", opts.Output, len(out))
	return nil
}
