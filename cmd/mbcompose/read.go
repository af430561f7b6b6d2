package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/transport"
)

func newReadCmd(global *globalFlags) *cobra.Command {
	flags := &execFlags{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Execute the reads of a job file and print the values",
		Example: `  mbcompose read --config jobs.yaml
  mbcompose read --config jobs.yaml --backend goburrow --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(cmd, args) {
				return nil
			}
			if err := requireJobFile(cmd, flags.configPath); err != nil {
				return err
			}
			return runRead(cmd, global, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runRead(cmd *cobra.Command, global *globalFlags, flags *execFlags) error {
	s, err := openSession(global, flags)
	if err != nil {
		return err
	}
	defer s.close(cmd.OutOrStdout())

	reqs, err := s.cfg.ReadRequests()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		s.log.Info("job file has no reads")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	results, execErr := transport.ReadAll(ctx, s.executor, reqs)

	var rows [][]string
	uris := make([]string, 0, len(reqs))
	for i, req := range reqs {
		uris = append(uris, req.Target.URI)
		if results[i].Response == nil {
			rows = append(rows, []string{req.Target.String(), "-", "-", "error: no response"})
			continue
		}
		rows = append(rows, valueRows(req, results[i])...)
	}
	renderTable(cmd.OutOrStdout(), "", valueHeaders, rows)
	return wrapExecError(execErr, "read", uris)
}
