package link

import (
	"errors"
	"hash/fnv"
	"net"
	"sync"

	"firestige.xyz/vswitch/internal/core"
)

// ErrPipeFull is returned by Pipe.WriteFrame when nobody drains Sent.
var ErrPipeFull = errors.New("link: pipe transmit queue full")

const pipeQueue = 256

// Pipe is an in-memory handle. Frames passed to Inject are read by the
// switch; frames the switch writes appear on Sent.
type Pipe struct {
	name string
	hw   net.HardwareAddr

	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func init() {
	Register("pipe", func(name string, _ Options) (Handle, error) {
		return NewPipe(name, nil), nil
	})
}

// NewPipe creates a pipe. A nil hw gets a locally administered address
// derived from name.
func NewPipe(name string, hw net.HardwareAddr) *Pipe {
	if hw == nil {
		hw = pipeAddr(name)
	}
	return &Pipe{
		name: name,
		hw:   hw,
		in:   make(chan []byte),
		out:  make(chan []byte, pipeQueue),
		done: make(chan struct{}),
	}
}

func pipeAddr(name string) net.HardwareAddr {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum(nil)
	hw := make(net.HardwareAddr, 6)
	copy(hw, sum)
	hw[0] = (hw[0] | 0x02) &^ 0x01
	return hw
}

func (p *Pipe) Name() string                   { return p.name }
func (p *Pipe) HardwareAddr() net.HardwareAddr { return p.hw }

// Inject delivers data to the reader. It blocks until the frame is read or
// the pipe is closed.
func (p *Pipe) Inject(data []byte) error {
	buf := append([]byte(nil), data...)
	select {
	case p.in <- buf:
		return nil
	case <-p.done:
		return core.ErrLinkClosed
	}
}

// Sent returns the frames written to the pipe.
func (p *Pipe) Sent() <-chan []byte { return p.out }

func (p *Pipe) ReadFrame() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, core.ErrLinkClosed
	}
}

func (p *Pipe) WriteFrame(data []byte) error {
	select {
	case <-p.done:
		return core.ErrLinkClosed
	default:
	}
	buf := append([]byte(nil), data...)
	select {
	case p.out <- buf:
		return nil
	default:
		return ErrPipeFull
	}
}

func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
