// Package command implements the local control plane: a JSON-RPC handler
// and its Unix socket transport.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/engine"
	"firestige.xyz/vswitch/internal/log"
)

// Methods served by the handler.
const (
	MethodPing           = "ping"
	MethodFDBShow        = "fdb_show"
	MethodFDBFlush       = "fdb_flush"
	MethodSwitchStatus   = "switch_status"
	MethodSwitchShutdown = "switch_shutdown"
	MethodConfigReload   = "config_reload"
)

// Switch is the part of the forwarding engine the control plane drives.
type Switch interface {
	Snapshot(ctx context.Context) ([]engine.FDBEntry, error)
	Flush(ctx context.Context) (int, error)
	Status(ctx context.Context) (engine.Status, error)
}

// ConfigReloader is the interface for reloading global configuration.
type ConfigReloader interface {
	Reload() error
}

// Info describes the switch instance for status output.
type Info struct {
	SwitchID string
	BridgeID string
	Driver   string
	Protocol string
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	sw             Switch
	info           Info
	configReloader ConfigReloader
	shutdownFunc   func() // Called by switch_shutdown to trigger graceful stop
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(sw Switch, info Info, reloader ConfigReloader) *CommandHandler {
	return &CommandHandler{
		sw:             sw,
		info:           info,
		configReloader: reloader,
	}
}

// SetShutdownFunc sets the callback invoked by the switch_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
	ErrCodeUnavailable    = -32000 // Forwarding loop not running
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	log.GetLogger().WithFields(map[string]interface{}{
		"method": cmd.Method,
		"id":     cmd.ID,
	}).Debug("handling command")

	switch cmd.Method {
	case MethodPing:
		return Response{ID: cmd.ID, Result: PingResult{Pong: true}}
	case MethodFDBShow:
		return h.handleFDBShow(ctx, cmd)
	case MethodFDBFlush:
		return h.handleFDBFlush(ctx, cmd)
	case MethodSwitchStatus:
		return h.handleSwitchStatus(ctx, cmd)
	case MethodSwitchShutdown:
		return h.handleSwitchShutdown(ctx, cmd)
	case MethodConfigReload:
		return h.handleConfigReload(ctx, cmd)
	default:
		return errorResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
	}
}

func errorResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}

func engineError(id, op string, err error) Response {
	code := ErrCodeInternalError
	if errors.Is(err, core.ErrEngineStopped) || errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeUnavailable
	}
	return errorResponse(id, code, fmt.Sprintf("%s failed: %v", op, err))
}

func (h *CommandHandler) handleFDBShow(ctx context.Context, cmd Command) Response {
	var params FDBShowParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	entries, err := h.sw.Snapshot(ctx)
	if err != nil {
		return engineError(cmd.ID, "fdb snapshot", err)
	}
	st, err := h.sw.Status(ctx)
	if err != nil {
		return engineError(cmd.ID, "switch status", err)
	}

	now := time.Now()
	result := FDBShowResult{
		Entries:   make([]FDBEntryResult, 0, len(entries)),
		AgingTime: formatAging(st.AgingTime),
	}
	for _, e := range entries {
		if params.Port != "" && e.PortName != params.Port {
			continue
		}
		r := FDBEntryResult{
			MAC:    e.MAC.String(),
			Port:   e.PortName,
			PortID: int(e.Port),
		}
		if !e.Expires.IsZero() {
			r.ExpiresIn = e.Expires.Sub(now).Round(time.Second).String()
		}
		result.Entries = append(result.Entries, r)
	}
	result.Count = len(result.Entries)

	return Response{ID: cmd.ID, Result: result}
}

func (h *CommandHandler) handleFDBFlush(ctx context.Context, cmd Command) Response {
	n, err := h.sw.Flush(ctx)
	if err != nil {
		return engineError(cmd.ID, "fdb flush", err)
	}
	log.GetLogger().WithField("entries", n).Info("fdb_flush command executed")
	return Response{ID: cmd.ID, Result: FDBFlushResult{Flushed: n}}
}

func (h *CommandHandler) handleSwitchStatus(ctx context.Context, cmd Command) Response {
	st, err := h.sw.Status(ctx)
	if err != nil {
		return engineError(cmd.ID, "switch status", err)
	}

	result := StatusResult{
		SwitchID:          h.info.SwitchID,
		BridgeID:          h.info.BridgeID,
		Driver:            h.info.Driver,
		Protocol:          h.info.Protocol,
		UptimeSec:         int64(st.Uptime.Seconds()),
		StrictVLANUnicast: st.Strict,
		FDBEntries:        st.FDBEntries,
		AgingTime:         formatAging(st.AgingTime),
		Ports:             make([]PortResult, 0, len(st.Ports)),
		Stats:             st.Stats,
	}
	for _, p := range st.Ports {
		result.Ports = append(result.Ports, PortResult{ID: int(p.ID), Name: p.Name, Mode: p.Mode.String()})
	}
	return Response{ID: cmd.ID, Result: result}
}

func (h *CommandHandler) handleSwitchShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	log.GetLogger().Info("switch_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first

	return Response{ID: cmd.ID, Result: ShutdownResult{Status: "shutting_down"}}
}

func (h *CommandHandler) handleConfigReload(_ context.Context, cmd Command) Response {
	if h.configReloader == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "config reloader not available")
	}
	if err := h.configReloader.Reload(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("config reload failed: %v", err))
	}
	return Response{ID: cmd.ID, Result: ReloadResult{Status: "reloaded"}}
}

func formatAging(d time.Duration) string {
	if d <= 0 {
		return "never"
	}
	return d.String()
}
