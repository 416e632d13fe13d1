package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/fxc"
	"github.com/gogpu/fxc/emu"
	"github.com/gogpu/fxc/fixed"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Float     bool
	StepLimit int
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <input.fxsl> <function> [args...]",
		Short: "Compile a shader and execute a function on the emulator",
		Long: `Compile an FXSL shader and call one of its functions on the bundled
RV32IM interpreter. Arguments containing a decimal point are converted
to Q16.16; everything else is passed as a plain integer.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Float, "float", false, "print the result as a Q16.16 float")
	cmd.Flags().IntVar(&opts.StepLimit, "step-limit", emu.DefaultStepLimit, "instruction budget for the call")

	return cmd
}

func runRun(opts *runOptions, args []string, cmd *cobra.Command) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	fn := args[1]

	callArgs := make([]int32, len(args)-2)
	for i, raw := range args[2:] {
		v, err := parseArg(raw)
		if err != nil {
			return err
		}
		callArgs[i] = v
	}

	target, err := loadTarget(opts.Target)
	if err != nil {
		return err
	}
	compileOpts := fxc.CompileOptions{Target: target}
	mod, err := fxc.CompileWithOptions(string(source), compileOpts)
	if err != nil {
		return err
	}
	slog.Debug("running", "function", fn, "args", callArgs)

	m := emu.New(mod, fxc.Registry())
	m.StepLimit = opts.StepLimit
	out, err := m.Call(fn, callArgs...)
	if err != nil {
		return err
	}

	if opts.Float {
		fmt.Fprintf(cmd.OutOrStdout(), "%g\n", fixed.Q(out).Float())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", out)
	}
	return nil
}

// parseArg converts a command-line argument to its raw 32-bit form.
func parseArg(raw string) (int32, error) {
	if strings.ContainsAny(raw, ".eE") && !strings.HasPrefix(raw, "0x") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("bad argument %q: %w", raw, err)
		}
		return int32(fixed.FromFloat(f)), nil
	}
	n, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad argument %q: %w", raw, err)
	}
	if n < -1<<31 || n > 1<<32-1 {
		return 0, fmt.Errorf("argument %q out of 32-bit range", raw)
	}
	return int32(uint32(n)), nil
}
