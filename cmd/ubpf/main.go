// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezrec/ubpf/cpu"
	"github.com/ezrec/ubpf/emulator"
)

// assemble a source file, with the emulator defines predefined.
func assemble(emu *emulator.Emulator, path string, verbose bool) (prog *cpu.Program, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	asm := &cpu.Assembler{Verbose: verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	prog, err = asm.Parse(inf)
	return
}

// loadBinary reads a binary image.
func loadBinary(path string) (prog *cpu.Program, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	prog, err = cpu.ParseBinary(data)
	return
}

// newRootCmd builds the command tree. Subcommands report failures as
// returned errors, so deferred cleanup always runs.
func newRootCmd() (rootCmd *cobra.Command) {
	var verbose bool
	var output string
	var binary bool
	var regs bool
	var maxTicks int
	var timeout time.Duration

	rootCmd = &cobra.Command{
		Use:           "ubpf",
		Short:         "Assembler and emulator for an eBPF-style instruction set",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose mode")

	var asmCmd = &cobra.Command{
		Use:   "asm FILE",
		Short: "Assemble a source file to a binary image, or a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			prog, err := assemble(emulator.NewEmulator(), args[0], verbose)
			if err != nil {
				return fmt.Errorf("%v: %w", args[0], err)
			}

			if len(output) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), prog.String())
				return
			}

			err = os.WriteFile(output, prog.Bytes(), 0o644)
			if err != nil {
				return fmt.Errorf("%v: %w", output, err)
			}
			return
		},
	}
	asmCmd.Flags().StringVarP(&output, "output", "o", "", "Binary image to write")

	var disCmd = &cobra.Command{
		Use:   "dis FILE",
		Short: "Disassemble a binary image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			prog, err := loadBinary(args[0])
			if err != nil {
				return fmt.Errorf("%v: %w", args[0], err)
			}

			fmt.Fprint(cmd.OutOrStdout(), prog.String())
			return
		},
	}

	var runCmd = &cobra.Command{
		Use:   "run FILE",
		Short: "Run a source file or binary image, and print r0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			emu := emulator.NewEmulator()
			emu.Verbose = verbose
			emu.MaxTicks = maxTicks
			emu.Input = cmd.InOrStdin()
			emu.Output = cmd.OutOrStdout()

			var prog *cpu.Program
			if binary {
				prog, err = loadBinary(args[0])
			} else {
				prog, err = assemble(emu, args[0], verbose)
			}
			if err != nil {
				return fmt.Errorf("%v: %w", args[0], err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			emu.Load(prog)
			result, err := emu.Run(ctx)
			if regs {
				fmt.Fprint(cmd.ErrOrStderr(), emu.Cpu.String())
			}
			if emu.Unsupported > 0 {
				log.Printf("%v: %d unsupported instructions skipped", args[0], emu.Unsupported)
			}
			if err != nil {
				return fmt.Errorf("%v:%w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", result)
			return
		},
	}
	runCmd.Flags().BoolVar(&binary, "binary", false, "FILE is a binary image")
	runCmd.Flags().BoolVar(&regs, "regs", false, "Dump the registers on halt")
	runCmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Instruction budget (0 = unlimited)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Wall clock budget (0 = unlimited)")

	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(disCmd)
	rootCmd.AddCommand(runCmd)

	return
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		log.Fatal(err)
	}
}
