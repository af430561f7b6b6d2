// Package capture records Modbus/TCP exchanges to pcap files and reads
// Modbus frames back out of them.
package capture

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ModbusPort is the server port used for recorded and extracted traffic.
const ModbusPort = 502

const snapLen = 65535

var (
	clientIP  = net.IPv4(192, 168, 100, 10).To4()
	serverIP  = net.IPv4(192, 168, 100, 20).To4()
	clientMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Writer records request/response pairs as a synthetic TCP conversation
// between a client and a Modbus server on port 502. It is safe for
// concurrent use.
type Writer struct {
	mu        sync.Mutex
	w         *pcapgo.Writer
	closer    io.Closer
	now       func() time.Time
	port      uint16
	clientSeq uint32
	serverSeq uint32
	packets   int
}

// NewWriter writes the pcap file header to w and returns a recorder.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{
		w:         pw,
		now:       time.Now,
		port:      50000,
		clientSeq: 1,
		serverSeq: 1,
	}, nil
}

// Create records to a new file at path.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap: %w", err)
	}
	w, err := NewWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.closer = file
	return w, nil
}

// WriteExchange records request from the client and response from the
// server.
func (w *Writer) WriteExchange(request, response []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeSegment(request, false); err != nil {
		return err
	}
	return w.writeSegment(response, true)
}

// PacketCount returns the number of packets written so far.
func (w *Writer) PacketCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets
}

// Close closes the underlying file, if the writer opened one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

func (w *Writer) writeSegment(payload []byte, fromServer bool) error {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    clientIP,
		DstIP:    serverIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(w.port),
		DstPort: ModbusPort,
		ACK:     true,
		PSH:     true,
		Seq:     w.clientSeq,
		Ack:     w.serverSeq,
		Window:  14600,
	}
	if fromServer {
		eth.SrcMAC, eth.DstMAC = serverMAC, clientMAC
		ip.SrcIP, ip.DstIP = serverIP, clientIP
		tcp.SrcPort, tcp.DstPort = ModbusPort, layers.TCPPort(w.port)
		tcp.Seq, tcp.Ack = w.serverSeq, w.clientSeq
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("tcp checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	data := buf.Bytes()
	if err := w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     w.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}

	if fromServer {
		w.serverSeq += uint32(len(payload))
	} else {
		w.clientSeq += uint32(len(payload))
	}
	w.packets++
	return nil
}
