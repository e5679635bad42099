package ingress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
)

// maxDatagramSize covers the largest UDP payload.
const maxDatagramSize = 65535

// datagramReader turns a sequence of packet payloads into a newline
// terminated byte stream so packet sources can share the Mux line scanner.
type datagramReader struct {
	next    func() ([]byte, error)
	pending []byte
}

func (d *datagramReader) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		payload, err := d.next()
		if err != nil {
			return 0, err
		}
		payload = bytes.TrimRight(payload, "\r\n")
		if len(payload) == 0 {
			continue
		}
		d.pending = append(append(d.pending[:0], payload...), '\n')
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// UDPSource reads one transform message per datagram.
type UDPSource struct {
	conn *net.UDPConn
	datagramReader
}

// ListenUDP binds addr and returns a Mux over the received datagrams.
func ListenUDP(addr string, rcvBuf int) (*Mux[*UDPSource], error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if rcvBuf > 0 {
		if err := conn.SetReadBuffer(rcvBuf); err != nil {
			log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", rcvBuf, err)
		}
	}
	log.Printf("UDP transform listener started on %s", conn.LocalAddr())
	return NewMux(newUDPSource(conn)), nil
}

func newUDPSource(conn *net.UDPConn) *UDPSource {
	src := &UDPSource{conn: conn}
	buf := make([]byte, maxDatagramSize)
	src.next = func() ([]byte, error) {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		return buf[:n], nil
	}
	return src
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (u *UDPSource) LocalAddr() net.Addr { return u.conn.LocalAddr() }

// Close closes the socket, which ends Monitor with io.EOF.
func (u *UDPSource) Close() error { return u.conn.Close() }
