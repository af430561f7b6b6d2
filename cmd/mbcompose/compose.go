package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/capture"
	"github.com/tturner/mbcompose/internal/config"
	"github.com/tturner/mbcompose/internal/modbus/modbustest"
)

type composeFlags struct {
	configPath string
	pcapPath   string
}

func newComposeCmd(global *globalFlags) *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the requests a job file composes to",
		Long: `Compose every read and write in a job file into Modbus/TCP requests and
print them without contacting any device. With --pcap the requests are
answered by an in-memory device and the exchanges written to a pcap file.`,
		Example: `  mbcompose compose --config jobs.yaml
  mbcompose compose --config jobs.yaml --pcap composed.pcap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(cmd, args) {
				return nil
			}
			if err := requireJobFile(cmd, flags.configPath); err != nil {
				return err
			}
			return runCompose(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Job file (required)")
	cmd.Flags().StringVar(&flags.pcapPath, "pcap", "", "Write simulated exchanges to this pcap file")
	return cmd
}

func runCompose(cmd *cobra.Command, global *globalFlags, flags *composeFlags) error {
	log, err := global.logger()
	if err != nil {
		return err
	}
	defer log.Close()

	cfg, err := config.Load(flags.configPath, false)
	if err != nil {
		return err
	}
	reads, err := cfg.ReadRequests()
	if err != nil {
		return err
	}
	writes, err := cfg.WriteRequests()
	if err != nil {
		return err
	}

	var rows [][]string
	frames := make([][]byte, 0, len(reads)+len(writes))
	for _, r := range reads {
		rows = append(rows, requestRow(r.Target, r.Request, len(r.Addresses)))
		frames = append(frames, r.Request.Bytes())
	}
	for _, w := range writes {
		rows = append(rows, requestRow(w.Target, w.Request, len(w.Addresses)))
		frames = append(frames, w.Request.Bytes())
	}
	out := cmd.OutOrStdout()
	renderTable(out, fmt.Sprintf("%d reads, %d writes", len(reads), len(writes)), requestHeaders, rows)

	if flags.pcapPath == "" {
		return nil
	}
	w, err := capture.Create(flags.pcapPath)
	if err != nil {
		return err
	}
	dev := modbustest.NewDevice(modbustest.DefaultConfig())
	for _, f := range frames {
		if err := w.WriteExchange(f, dev.Handle(f)); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Info("wrote %d packets to %s", w.PacketCount(), flags.pcapPath)
	return nil
}
