package ingress

import (
	"fmt"
	"log"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PCAPSource replays the UDP payloads of a capture file that match a port.
// It uses the pure Go pcapgo reader, so no libpcap is needed.
type PCAPSource struct {
	f    *os.File
	port layers.UDPPort
	datagramReader

	packets int
	matched int
}

// OpenPCAP opens a capture and returns a Mux over the payloads of UDP
// packets sent to or from port.
func OpenPCAP(path string, port int) (*Mux[*PCAPSource], error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid UDP port %d", port)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read PCAP header from %s: %w", path, err)
	}

	src := &PCAPSource{f: f, port: layers.UDPPort(port)}
	packetSource := gopacket.NewPacketSource(r, r.LinkType())
	src.next = func() ([]byte, error) {
		for {
			packet, err := packetSource.NextPacket()
			if err != nil {
				// io.EOF at the end of the capture ends Monitor cleanly
				log.Printf("PCAP replay of %s finished: %d packets, %d matched udp port %d", path, src.packets, src.matched, port)
				return nil, err
			}
			src.packets++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok {
				continue
			}
			if udp.DstPort != src.port && udp.SrcPort != src.port {
				continue
			}
			if len(udp.Payload) == 0 {
				continue
			}
			src.matched++
			return udp.Payload, nil
		}
	}
	return NewMux(src), nil
}

// Close closes the capture file.
func (p *PCAPSource) Close() error { return p.f.Close() }
