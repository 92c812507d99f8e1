package link

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Mirror writes received frames to a pcap stream. Safe for concurrent use.
type Mirror struct {
	mu      sync.Mutex
	w       *pcapgo.Writer
	c       io.Closer
	snapLen int
}

// NewMirror writes the pcap file header to w. If w is an io.Closer it is
// closed by Close.
func NewMirror(w io.Writer, snapLen int) (*Mirror, error) {
	if snapLen <= 0 {
		snapLen = 65535
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	m := &Mirror{w: pw, snapLen: snapLen}
	if c, ok := w.(io.Closer); ok {
		m.c = c
	}
	return m, nil
}

// CreateMirror creates (truncating) the pcap file at path.
func CreateMirror(path string, snapLen int) (*Mirror, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create mirror file: %w", err)
	}
	m, err := NewMirror(f, snapLen)
	if err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// Record appends f, truncated to the snap length.
func (m *Mirror) Record(f Frame) error {
	data := f.Data
	if len(data) > m.snapLen {
		data = data[:m.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      f.Timestamp,
		CaptureLength:  len(data),
		Length:         len(f.Data),
		InterfaceIndex: int(f.Port),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.w == nil {
		return os.ErrClosed
	}
	return m.w.WritePacket(ci, data)
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.w = nil
	if m.c == nil {
		return nil
	}
	c := m.c
	m.c = nil
	return c.Close()
}
