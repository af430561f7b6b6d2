package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/capture"
	"github.com/tturner/mbcompose/internal/modbus/modbustest"
)

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     func() *cobra.Command
		wantErr string
	}{
		{"compose missing config", func() *cobra.Command { return newComposeCmd(&globalFlags{}) }, "--config is required"},
		{"read missing config", func() *cobra.Command { return newReadCmd(&globalFlags{}) }, "--config is required"},
		{"write missing config", func() *cobra.Command { return newWriteCmd(&globalFlags{}) }, "--config is required"},
		{"decode missing frame", newDecodeCmd, "requires at least 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(nil)
			err := cmd.Execute()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

// run executes the root command and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHelpArgument(t *testing.T) {
	out, err := run(t, "read", "help")
	if err != nil {
		t.Fatalf("read help: %v", err)
	}
	if !strings.Contains(out, "--config") {
		t.Errorf("help output missing flags:\n%s", out)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		wants []string
	}{
		{
			name:  "holding registers",
			args:  []string{"decode", "81 80 00 00 00 05 01 03 02 00 03"},
			wants: []string{"0x8180", "0x0003", "Read_Holding_Registers"},
		},
		{
			name:  "exception",
			args:  []string{"decode", "da87000000030081", "03"},
			wants: []string{"0xDA87", "exception:"},
		},
		{
			name:  "coils with start",
			args:  []string{"decode", "--start", "100", "00 01 00 00 00 04 01 01 01 02"},
			wants: []string{"101", "true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			for _, want := range tt.wants {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr string
	}{
		{"not hex", "zz", "invalid hex"},
		{"truncated", "81 80 00 00 00 05 01 03", "incomplete frame"},
		{"trailing bytes", "81 80 00 00 00 05 01 03 02 00 03 ff", "framing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "decode", tt.frame)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "mbcompose version dev") {
		t.Errorf("output = %q", out)
	}
}

func writeJob(t *testing.T, uri string) string {
	t.Helper()
	job := fmt.Sprintf(`
defaults: {uri: %q, unitId: 1}
transport: {timeout_ms: 1000, retry_delay_ms: 1}
reads:
  - function: holding_registers
    addresses:
      - {address: 0, type: uint16, name: level}
      - {address: 1, type: uint16, name: setpoint}
  - function: coils
    addresses:
      - {address: 3, name: pump}
writes:
  - function: registers
    addresses:
      - {address: 1, type: uint16, value: 77}
`, uri)
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(job), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompose(t *testing.T) {
	path := writeJob(t, "tcp://10.0.0.5")
	pcapPath := filepath.Join(t.TempDir(), "out.pcap")

	out, err := run(t, "compose", "--config", path, "--pcap", pcapPath)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, want := range []string{"2 reads, 1 writes", "tcp://10.0.0.5||unitId=1", "Read_Holding_Registers", "Write_Multiple_Registers"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	frames, err := capture.ReadFile(pcapPath)
	if err != nil {
		t.Fatalf("read pcap: %v", err)
	}
	if len(frames) != 6 {
		t.Fatalf("pcap holds %d frames, want 6", len(frames))
	}
}

// serve answers Modbus/TCP on a loopback port from dev.
func serve(t *testing.T, dev *modbustest.Device) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	t.Cleanup(func() {
		cancel()
		ln.Close()
		wg.Wait()
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = dev.Serve(ctx, conn)
			}()
		}
	}()
	return "tcp://" + ln.Addr().String()
}

func TestReadWrite(t *testing.T) {
	for _, backend := range []string{"native", "goburrow"} {
		t.Run(backend, func(t *testing.T) {
			dev := modbustest.NewDevice(modbustest.DefaultConfig())
			_ = dev.SetHoldingRegister(0, 42)
			_ = dev.SetCoil(3, true)
			path := writeJob(t, serve(t, dev))

			out, err := run(t, "write", "--config", path, "--backend", backend)
			if err != nil {
				t.Fatalf("write: %v", err)
			}
			if !strings.Contains(out, "ok") {
				t.Errorf("write output:\n%s", out)
			}
			if got, _ := dev.HoldingRegister(1); got != 77 {
				t.Errorf("register 1 = %d, want 77", got)
			}

			out, err = run(t, "read", "--config", path, "--backend", backend)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			for _, want := range []string{"level", "42", "setpoint", "77", "pump", "true"} {
				if !strings.Contains(out, want) {
					t.Errorf("read output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestReadRecordsPcap(t *testing.T) {
	dev := modbustest.NewDevice(modbustest.DefaultConfig())
	path := writeJob(t, serve(t, dev))
	pcapPath := filepath.Join(t.TempDir(), "read.pcap")

	if _, err := run(t, "read", "--config", path, "--pcap", pcapPath); err != nil {
		t.Fatalf("read: %v", err)
	}
	frames, err := capture.ReadFile(pcapPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 4 {
		t.Errorf("pcap holds %d frames, want 4", len(frames))
	}
}

func TestReadMetrics(t *testing.T) {
	dev := modbustest.NewDevice(modbustest.DefaultConfig())
	path := writeJob(t, serve(t, dev))
	csvPath := filepath.Join(t.TempDir(), "metrics.csv")

	out, err := run(t, "read", "--config", path, "--stats", "--metrics-csv", csvPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{"Total Operations: 2", "Read_Holding_Registers", "Read_Coils"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("metrics csv has %d lines, want 3:\n%s", len(lines), data)
	}
}

func TestReadConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	uri := "tcp://" + ln.Addr().String()
	ln.Close()

	_, err = run(t, "read", "--config", writeJob(t, uri))
	if err == nil || !strings.Contains(err.Error(), "Failed to communicate with device") {
		t.Fatalf("error = %v, want network error", err)
	}
}
