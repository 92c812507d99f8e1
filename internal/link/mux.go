package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/log"
	"firestige.xyz/vswitch/internal/metrics"
)

// Mux multiplexes a set of handles into one receive stream. It implements
// receive-from-any-port, send-to-port and port naming for the forwarding
// loop.
type Mux struct {
	handles []Handle
	mirror  *Mirror

	frames chan Frame
	errs   chan error
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// MuxOption configures a Mux.
type MuxOption func(*Mux)

// WithMirror records every received frame to m. The mux closes m.
func WithMirror(m *Mirror) MuxOption {
	return func(x *Mux) { x.mirror = m }
}

// NewMux creates a mux over handles. Port i is handles[i]. Readers start on
// Start or on the first Receive.
func NewMux(handles []Handle, opts ...MuxOption) *Mux {
	m := &Mux{
		handles: handles,
		frames:  make(chan Frame),
		errs:    make(chan error, len(handles)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open opens every named interface with driver and returns a mux over them.
func Open(driver string, names []string, opts Options, muxOpts ...MuxOption) (*Mux, error) {
	handles, err := OpenHandles(driver, names, opts)
	if err != nil {
		return nil, err
	}
	return NewMux(handles, muxOpts...), nil
}

// Start launches one reader goroutine per port.
func (m *Mux) Start() {
	m.startOnce.Do(func() {
		for i, h := range m.handles {
			m.wg.Add(1)
			go m.read(core.PortID(i), h)
		}
	})
}

func (m *Mux) read(port core.PortID, h Handle) {
	defer m.wg.Done()
	logger := log.GetLogger().WithField("port", h.Name())

	for {
		data, err := h.ReadFrame()
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			if errors.Is(err, ErrTimeout) {
				continue
			}
			if !errors.Is(err, core.ErrLinkClosed) {
				logger.WithError(err).Error("link read failed")
			}
			m.errs <- fmt.Errorf("port %s: %w", h.Name(), err)
			return
		}

		f := Frame{Port: port, Data: data, Timestamp: time.Now()}
		if m.mirror != nil {
			if err := m.mirror.Record(f); err != nil {
				metrics.MirrorErrorsTotal.Inc()
				if log.GetLogger().IsDebugEnabled() {
					logger.WithError(err).Debug("mirror write failed")
				}
			}
		}

		select {
		case m.frames <- f:
		case <-m.done:
			return
		}
	}
}

// Receive blocks until a frame arrives on any port. It fails when ctx is
// done, when a port's reader hit a permanent error, or after Close.
func (m *Mux) Receive(ctx context.Context) (Frame, error) {
	m.Start()
	select {
	case f := <-m.frames:
		return f, nil
	case err := <-m.errs:
		return Frame{}, err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-m.done:
		return Frame{}, core.ErrLinkClosed
	}
}

// Send transmits data on port.
func (m *Mux) Send(port core.PortID, data []byte) error {
	h, err := m.handle(port)
	if err != nil {
		return err
	}
	return h.WriteFrame(data)
}

// PortName returns the interface name of port, or "" when there is none.
func (m *Mux) PortName(port core.PortID) string {
	h, err := m.handle(port)
	if err != nil {
		return ""
	}
	return h.Name()
}

// HardwareAddr returns the hardware address of port.
func (m *Mux) HardwareAddr(port core.PortID) net.HardwareAddr {
	h, err := m.handle(port)
	if err != nil {
		return nil
	}
	return h.HardwareAddr()
}

// Ports returns every port in attach order.
func (m *Mux) Ports() []core.PortID {
	ports := make([]core.PortID, len(m.handles))
	for i := range m.handles {
		ports[i] = core.PortID(i)
	}
	return ports
}

func (m *Mux) handle(port core.PortID) (Handle, error) {
	if port < 0 || int(port) >= len(m.handles) {
		return nil, &core.UnknownPortError{Name: fmt.Sprintf("#%d", port)}
	}
	return m.handles[port], nil
}

// Close stops the readers and closes every handle and the mirror.
func (m *Mux) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		// No readers may start after this point.
		m.startOnce.Do(func() {})
		close(m.done)
		for _, h := range m.handles {
			if err := h.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", h.Name(), err))
			}
		}
		m.wg.Wait()
		if m.mirror != nil {
			if err := m.mirror.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
