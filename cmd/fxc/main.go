// Command fxc is the FXSL shader compiler CLI.
//
// Usage:
//
//	fxc build shader.fxsl -o shader.bin      # compile to a code image
//	fxc build shader.fxsl --object -o s.fxo  # compile to a relocatable object
//	fxc run shader.fxsl main 1.5 2.0         # compile and execute on the emulator
//	fxc disasm shader.fxo                    # disassemble a compiled object
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags shared by all commands.
type rootOptions struct {
	Verbose bool
	Target  string // path to a yaml target descriptor, empty for default
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fxc",
		Short: "FXSL compiler for FPU-less targets",
		Long: `fxc compiles FXSL shaders to RV32IM machine code with all float
arithmetic rewritten to saturating Q16.16 fixed point.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Target, "target", "", "yaml target descriptor")

	cmd.AddCommand(newBuildCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newDisasmCommand())

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
