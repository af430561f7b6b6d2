package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/transport"
)

func newWriteCmd(global *globalFlags) *cobra.Command {
	flags := &execFlags{}

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Execute the writes of a job file",
		Example: `  mbcompose write --config jobs.yaml
  mbcompose write --config jobs.yaml --pcap writes.pcap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(cmd, args) {
				return nil
			}
			if err := requireJobFile(cmd, flags.configPath); err != nil {
				return err
			}
			return runWrite(cmd, global, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runWrite(cmd *cobra.Command, global *globalFlags, flags *execFlags) error {
	s, err := openSession(global, flags)
	if err != nil {
		return err
	}
	defer s.close(cmd.OutOrStdout())

	reqs, err := s.cfg.WriteRequests()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		s.log.Info("job file has no writes")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	results, execErr := transport.WriteAll(ctx, s.executor, reqs)

	rows := make([][]string, 0, len(reqs))
	uris := make([]string, 0, len(reqs))
	for i, req := range reqs {
		uris = append(uris, req.Target.URI)
		row := []string{
			req.Target.String(),
			req.Request.Function().String(),
			fmt.Sprintf("%d", modbus.RequestStart(req.Request)),
			fmt.Sprintf("%d", modbus.RequestQuantity(req.Request)),
		}
		switch resp := results[i].(type) {
		case nil:
			row = append(row, "error: no response")
		case *modbus.ExceptionResponse:
			row = append(row, fmt.Sprintf("exception: %s", resp.Code))
		default:
			row = append(row, "ok")
		}
		rows = append(rows, row)
	}
	renderTable(cmd.OutOrStdout(), "", []string{"Target", "Function", "Start", "Qty", "Result"}, rows)
	return wrapExecError(execErr, "write", uris)
}
