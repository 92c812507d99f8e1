// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// use errors.Is without caring about the concrete detail.
var (
	// Configuration errors
	ErrConfig      = errors.New("vswitch: invalid configuration")
	ErrUnknownPort = errors.New("vswitch: unknown port")

	// Frame errors
	ErrFrameFormat = errors.New("vswitch: malformed frame")

	// Link errors
	ErrLinkClosed = errors.New("vswitch: link closed")

	// Engine errors
	ErrEngineStopped = errors.New("vswitch: engine stopped")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("vswitch: daemon not running")
)

// ConfigError reports a port-table or configuration problem. It is fatal at
// startup.
type ConfigError struct {
	File string
	Line int // 0 when the error is not tied to a line
	Msg  string
}

func (e *ConfigError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("config %s:%d: %s", e.File, e.Line, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("config line %d: %s", e.Line, e.Msg)
	case e.File != "":
		return fmt.Sprintf("config %s: %s", e.File, e.Msg)
	default:
		return "config: " + e.Msg
	}
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// FrameFormatError reports a frame that cannot be processed. The frame is
// dropped and the forwarding loop continues.
type FrameFormatError struct {
	Len int
	Msg string
}

func (e *FrameFormatError) Error() string {
	return fmt.Sprintf("frame format (len=%d): %s", e.Len, e.Msg)
}

func (e *FrameFormatError) Unwrap() error { return ErrFrameFormat }

// UnknownPortError reports a port name missing from the port table or from
// the attached links.
type UnknownPortError struct {
	Name string
}

func (e *UnknownPortError) Error() string {
	return fmt.Sprintf("unknown port %q", e.Name)
}

func (e *UnknownPortError) Unwrap() error { return ErrUnknownPort }
