package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/capture"
	"github.com/tturner/mbcompose/internal/config"
	"github.com/tturner/mbcompose/internal/errors"
	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/metrics"
	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/transport"
)

// execFlags are shared by read and write.
type execFlags struct {
	configPath  string
	backend     string
	pcapPath    string
	metricsCSV  string
	metricsJSON string
	stats       bool
}

func (f *execFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Job file (required)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Client backend: native or goburrow (default from job file)")
	cmd.Flags().StringVar(&f.pcapPath, "pcap", "", "Record exchanges to this pcap file (native backend)")
	cmd.Flags().StringVar(&f.metricsCSV, "metrics-csv", "", "Write per-request metrics to this CSV file")
	cmd.Flags().StringVar(&f.metricsJSON, "metrics-json", "", "Write per-request metrics to this JSON file")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Print an RTT and outcome summary after the run")
}

// session holds what a read or write run needs.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	executor transport.Executor
	recorder *capture.Writer
	sink     *metrics.Sink
	metrics  *metrics.Writer
	stats    bool
}

func openSession(global *globalFlags, flags *execFlags) (*session, error) {
	log, err := global.logger()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath, false)
	if err != nil {
		log.Close()
		return nil, err
	}

	backend := cfg.Transport.Backend
	if flags.backend != "" {
		backend = flags.backend
	}
	s := &session{cfg: cfg, log: log}
	switch backend {
	case config.BackendNative:
		var opts []transport.ClientOption
		if flags.pcapPath != "" {
			if s.recorder, err = capture.Create(flags.pcapPath); err != nil {
				log.Close()
				return nil, err
			}
			opts = append(opts, transport.WithRecorder(s.recorder))
		}
		s.executor = transport.NewClient(cfg.TransportOptions(), log, opts...)
	case config.BackendGoburrow:
		if flags.pcapPath != "" {
			log.Error("--pcap is only supported by the native backend; not recording")
		}
		s.executor = transport.NewGoburrowClient(cfg.TransportOptions(), log)
	default:
		log.Close()
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", backend, config.BackendNative, config.BackendGoburrow)
	}
	log.Verbose("using %s backend", backend)

	if flags.metricsCSV != "" || flags.metricsJSON != "" || flags.stats {
		if flags.metricsCSV != "" || flags.metricsJSON != "" {
			if s.metrics, err = metrics.NewWriter(flags.metricsCSV, flags.metricsJSON); err != nil {
				s.close(io.Discard)
				return nil, err
			}
		}
		s.sink = metrics.NewSink()
		s.stats = flags.stats
		s.executor = transport.Instrument(s.executor, s.sink)
	}
	return s, nil
}

func (s *session) close(out io.Writer) {
	if s.metrics != nil {
		if err := s.metrics.WriteAll(s.sink); err != nil {
			s.log.Error("write metrics: %v", err)
		}
		if err := s.metrics.Close(); err != nil {
			s.log.Error("close metrics: %v", err)
		}
	}
	if s.stats {
		fmt.Fprint(out, "\n"+metrics.FormatSummary(s.sink.GetSummary()))
	}
	if err := s.executor.Close(); err != nil {
		s.log.Verbose("close connections: %v", err)
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.log.Error("close pcap: %v", err)
		} else {
			s.log.Info("recorded %d packets", s.recorder.PacketCount())
		}
	}
	s.log.Close()
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// wrapExecError classifies a joined execution error for the user.
func wrapExecError(err error, operation string, uris []string) error {
	if err == nil {
		return nil
	}
	var exc *modbus.ExceptionError
	if stderrors.Is(err, modbus.ErrFraming) || stderrors.Is(err, modbus.ErrProtocol) ||
		stderrors.Is(err, modbus.ErrExtraction) || stderrors.As(err, &exc) {
		return errors.WrapProtocolError(err, operation)
	}
	slices.Sort(uris)
	return errors.WrapNetworkError(err, strings.Join(slices.Compact(uris), ", "))
}
