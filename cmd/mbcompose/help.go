package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// wantsHelp prints usage for a trailing "help" argument, as in
// "mbcompose read help".
func wantsHelp(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 || !strings.EqualFold(args[0], "help") {
		return false
	}
	_ = cmd.Help()
	return true
}

// requireJobFile fails with usage when no job file was given.
func requireJobFile(cmd *cobra.Command, path string) error {
	if path != "" {
		return nil
	}
	_ = cmd.Help()
	return fmt.Errorf("--config is required: pass a YAML job file listing the reads and writes (see %s --help)", cmd.CommandPath())
}
