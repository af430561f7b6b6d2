package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

type decodeFlags struct {
	start uint16
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a Modbus/TCP response frame",
		Long: `Decode one Modbus/TCP response frame given as hex. Spaces, colons and
dashes between bytes are ignored. --start labels register and coil rows
with absolute addresses.`,
		Example: `  mbcompose decode "81 80 00 00 00 05 01 03 02 00 03"
  mbcompose decode da87000000030081 03
  mbcompose decode 000100000007010304000a000b --start 100`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(cmd, args) {
				return nil
			}
			return runDecode(cmd.OutOrStdout(), strings.Join(args, ""), flags)
		},
	}
	cmd.Flags().Uint16Var(&flags.start, "start", 0, "Start address of the originating read")
	return cmd
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "\n", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return b, nil
}

func runDecode(out io.Writer, input string, flags *decodeFlags) error {
	frame, err := parseHex(input)
	if err != nil {
		return err
	}
	if complete, err := modbus.IsCompleteLength(frame); err != nil {
		return err
	} else if !complete {
		return fmt.Errorf("%w: incomplete frame (%d bytes)", modbus.ErrProtocol, len(frame))
	}
	resp, err := modbus.ParseResponse(frame)
	if err != nil {
		return err
	}

	hdr := resp.Header()
	renderTable(out, resp.Function().String(), []string{"Transaction", "Unit", "Length", "Frame"}, [][]string{{
		fmt.Sprintf("0x%04X", hdr.TransactionID),
		fmt.Sprintf("%d", hdr.UnitID),
		fmt.Sprintf("%d", hdr.Length),
		logging.FormatHex(frame),
	}})

	switch r := resp.(type) {
	case *modbus.ExceptionResponse:
		renderTable(out, "", []string{"Function", "Exception"}, [][]string{{
			r.Function().String(), fmt.Sprintf("exception: %s", r.Code),
		}})
	case interface{ Registers() []uint16 }:
		rows := make([][]string, 0)
		for i, reg := range r.Registers() {
			rows = append(rows, []string{
				fmt.Sprintf("%d", int(flags.start)+i),
				fmt.Sprintf("0x%04X", reg),
				fmt.Sprintf("%d", reg),
				fmt.Sprintf("%d", int16(reg)),
			})
		}
		renderTable(out, "", []string{"Address", "Hex", "Uint16", "Int16"}, rows)
	case interface{ Coils() []byte }:
		bits := codec.BytesToBools(r.Coils())
		rows := make([][]string, 0, len(bits))
		for i, set := range bits {
			rows = append(rows, []string{fmt.Sprintf("%d", int(flags.start)+i), fmt.Sprintf("%t", set)})
		}
		renderTable(out, "", []string{"Address", "Value"}, rows)
	default:
		data := frame[modbus.MBAPHeaderSize+1:]
		renderTable(out, "", []string{"Data"}, [][]string{{logging.FormatHex(data)}})
	}
	return nil
}
