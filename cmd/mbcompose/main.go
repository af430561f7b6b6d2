package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel   string
	logFile    string
	endianness string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mbcompose",
		Short: "Compose and execute Modbus/TCP requests",
		Long: `mbcompose turns lists of typed register and coil addresses into the
smallest set of Modbus/TCP requests, executes them and maps the responses
back to named values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.endianness == "" {
				return nil
			}
			e, err := codec.ParseEndianness(flags.endianness)
			if err != nil {
				return fmt.Errorf("--endianness: %w", err)
			}
			if e == codec.Auto {
				return nil
			}
			return codec.SetDefaultEndianness(e)
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: silent, error, info, verbose or debug")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Also write log output to this file")
	rootCmd.PersistentFlags().StringVar(&flags.endianness, "endianness", "", "Process default register layout (big_endian, little_endian, *_low_word_first, ABCD, CDAB, BADC, DCBA)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newComposeCmd(flags))
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newReadCmd(flags))
	rootCmd.AddCommand(newWriteCmd(flags))

	// Custom help command
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd.HasParent() {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	return rootCmd
}

// logger builds the logger the global flags ask for.
func (f *globalFlags) logger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(f.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(level, f.logFile)
}
