package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/fxc/rv32"
)

func newDisasmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <input.fxo>",
		Short: "Disassemble a compiled object",
		Long: `Print the symbol table, relocations and a disassembly of a relocatable
object produced by "fxc build --object".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(args[0], cmd)
		},
	}
}

func runDisasm(inputPath string, cmd *cobra.Command) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	obj, err := rv32.UnmarshalObject(data)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "symbols:")
	for _, s := range obj.Symbols {
		ret := "void"
		if s.HasRet {
			ret = "i32"
		}
		fmt.Fprintf(w, "  %6x  %-24s %d args, %s, %d bytes\n", s.Offset, s.Name, s.NumArgs, ret, s.Size)
	}

	if len(obj.Relocs) > 0 {
		fmt.Fprintln(w, "relocations:")
		for _, r := range obj.Relocs {
			kind := "jal"
			if r.Kind == rv32.RelocAbs {
				kind = "abs"
			}
			fmt.Fprintf(w, "  %6x  %-4s %s\n", r.Offset, kind, r.Symbol)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, rv32.Disassemble(obj.Code))
	return nil
}
