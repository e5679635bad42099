package ingress

import (
	"fmt"
	"net/http"
	"os"
)

// Source kinds understood by OpenSource.
const (
	KindStdin  = "stdin"
	KindSerial = "serial"
	KindUDP    = "udp"
	KindPCAP   = "pcap"
)

// SourceConfig selects and parameterises an ingress source.
type SourceConfig struct {
	Kind       string
	SerialPort string
	SerialBaud int
	UDPAddr    string
	UDPRcvBuf  int
	PCAPFile   string
	PCAPPort   int
}

// Stream is a running source as seen by the binaries.
type Stream interface {
	MuxInterface
	AttachAdminRoutes(*http.ServeMux)
}

// OpenSource opens the source described by cfg.
func OpenSource(cfg SourceConfig) (Stream, error) {
	switch cfg.Kind {
	case KindStdin, "":
		return NewMux(os.Stdin), nil
	case KindSerial:
		m, err := OpenSerial(cfg.SerialPort, SerialOptions{BaudRate: cfg.SerialBaud})
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindUDP:
		m, err := ListenUDP(cfg.UDPAddr, cfg.UDPRcvBuf)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindPCAP:
		m, err := OpenPCAP(cfg.PCAPFile, cfg.PCAPPort)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// String describes the source for logs and session records.
func (c SourceConfig) String() string {
	switch c.Kind {
	case KindSerial:
		return fmt.Sprintf("serial:%s@%d", c.SerialPort, c.SerialBaud)
	case KindUDP:
		return "udp:" + c.UDPAddr
	case KindPCAP:
		return fmt.Sprintf("pcap:%s:%d", c.PCAPFile, c.PCAPPort)
	default:
		return KindStdin
	}
}
