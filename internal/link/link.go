// Package link is the boundary between the forwarding loop and the attached
// network interfaces. Each attached interface is a port identified by a small
// integer assigned in attach order.
package link

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"firestige.xyz/vswitch/internal/core"
)

// ErrTimeout is returned by Handle.ReadFrame when no frame arrived within the
// driver's poll interval. Readers retry on it.
var ErrTimeout = errors.New("link: read timeout")

// Handle is one attached interface.
type Handle interface {
	Name() string
	HardwareAddr() net.HardwareAddr
	// ReadFrame blocks until a frame arrives, the poll interval expires
	// (ErrTimeout) or the handle is closed (core.ErrLinkClosed).
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Frame is a frame received on a port. Data is owned by the receiver.
type Frame struct {
	Port      core.PortID
	Data      []byte
	Timestamp time.Time
}

// Options are the driver parameters shared by every port.
type Options struct {
	SnapLen    int
	BufferSize int // bytes
	Filter     string
}

// DefaultOptions returns options suitable for standard 1500 byte MTU links.
func DefaultOptions() Options {
	return Options{
		SnapLen:    2048,
		BufferSize: 8 * 1024 * 1024,
	}
}

// Driver opens the handle for a named interface.
type Driver func(name string, opts Options) (Handle, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a driver available to Open. Registering a name twice
// panics.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("link: driver registered twice: " + name)
	}
	drivers[name] = d
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenHandles opens one handle per interface name, in order. On error every
// handle opened so far is closed.
func OpenHandles(driver string, names []string, opts Options) ([]Handle, error) {
	driversMu.RLock()
	d, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported link driver %q (available: %v)", driver, Drivers())
	}

	seen := make(map[string]bool, len(names))
	handles := make([]Handle, 0, len(names))
	for _, name := range names {
		if seen[name] {
			closeAll(handles)
			return nil, fmt.Errorf("interface %s attached twice", name)
		}
		seen[name] = true

		h, err := d(name, opts)
		if err != nil {
			closeAll(handles)
			return nil, fmt.Errorf("open %s link %s: %w", driver, name, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func closeAll(handles []Handle) {
	for _, h := range handles {
		_ = h.Close()
	}
}
