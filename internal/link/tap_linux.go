package link

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/songgao/water"

	"firestige.xyz/vswitch/internal/core"
)

// tapHandle attaches a TAP device, created if it does not exist. The switch
// port is the device; the host side of the TAP is the attached segment.
type tapHandle struct {
	ifce    *water.Interface
	hw      net.HardwareAddr
	snapLen int
}

func init() {
	Register("tap", openTAP)
}

func openTAP(name string, opts Options) (Handle, error) {
	ifce, err := water.New(water.Config{
		DeviceType:             water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{Name: name},
	})
	if err != nil {
		return nil, fmt.Errorf("create tap %s: %w", name, err)
	}

	hw, err := prepareInterface(ifce.Name(), false)
	if err != nil {
		ifce.Close()
		return nil, err
	}

	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = DefaultOptions().SnapLen
	}
	return &tapHandle{ifce: ifce, hw: hw, snapLen: snapLen}, nil
}

func (h *tapHandle) Name() string                   { return h.ifce.Name() }
func (h *tapHandle) HardwareAddr() net.HardwareAddr { return h.hw }

func (h *tapHandle) ReadFrame() ([]byte, error) {
	buf := make([]byte, h.snapLen)
	n, err := h.ifce.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrClosed) {
			return nil, core.ErrLinkClosed
		}
		return nil, err
	}
	return buf[:n], nil
}

func (h *tapHandle) WriteFrame(data []byte) error {
	_, err := h.ifce.Write(data)
	if errors.Is(err, os.ErrClosed) {
		return core.ErrLinkClosed
	}
	return err
}

func (h *tapHandle) Close() error {
	err := h.ifce.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
