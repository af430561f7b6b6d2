package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tturner/mbcompose/internal/modbus"
)

// Frame is one Modbus/TCP ADU found in a capture.
type Frame struct {
	modbus.Frame
	Raw        []byte // complete ADU as captured
	FromServer bool
	Timestamp  time.Time
	Src        string
	Dst        string
}

// ReadFile extracts every Modbus/TCP frame carried to or from port 502 in
// the pcap file at path.
func ReadFile(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer file.Close()
	return ReadFrames(file)
}

// ReadFrames extracts Modbus/TCP frames from a pcap stream. TCP payloads
// are reassembled per direction, so frames split across segments or packed
// into one are both recovered. Bytes that cannot start a frame are skipped.
func ReadFrames(r io.Reader) ([]Frame, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}

	var frames []Frame
	streams := make(map[string][]byte)
	source := gopacket.NewPacketSource(pr, pr.LinkType())
	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, fmt.Errorf("read packet: %w", err)
		}

		tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok || len(tcp.Payload) == 0 {
			continue
		}
		if tcp.SrcPort != ModbusPort && tcp.DstPort != ModbusPort {
			continue
		}

		src, dst := endpoints(packet, tcp)
		key := src + ">" + dst
		parsed, rest := splitFrames(append(streams[key], tcp.Payload...))
		streams[key] = rest
		for _, f := range parsed {
			f.FromServer = tcp.SrcPort == ModbusPort
			f.Timestamp = packet.Metadata().Timestamp
			f.Src, f.Dst = src, dst
			frames = append(frames, f)
		}
	}
	return frames, nil
}

func endpoints(packet gopacket.Packet, tcp *layers.TCP) (string, string) {
	src, dst := tcp.SrcPort.String(), tcp.DstPort.String()
	if nl := packet.NetworkLayer(); nl != nil {
		flow := nl.NetworkFlow()
		src = flow.Src().String() + ":" + fmt.Sprint(uint16(tcp.SrcPort))
		dst = flow.Dst().String() + ":" + fmt.Sprint(uint16(tcp.DstPort))
	}
	return src, dst
}

// splitFrames cuts complete frames off the front of buf and returns them
// with the incomplete remainder.
func splitFrames(buf []byte) ([]Frame, []byte) {
	var frames []Frame
	for len(buf) >= modbus.MBAPHeaderSize+1 {
		hdr, err := modbus.DecodeMBAPHeader(buf)
		if err != nil || !modbus.IsModbusTCP(buf) {
			// Not a frame boundary; resynchronize one byte later.
			buf = buf[1:]
			continue
		}
		size := hdr.FrameSize()
		if size > len(buf) {
			break
		}
		f, err := modbus.DecodeFrame(buf[:size])
		if err != nil {
			buf = buf[1:]
			continue
		}
		frames = append(frames, Frame{Frame: f, Raw: append([]byte(nil), buf[:size]...)})
		buf = buf[size:]
	}
	if len(buf) == 0 {
		return frames, nil
	}
	return frames, append([]byte(nil), buf...)
}
