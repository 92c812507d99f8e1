package command

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/xid"

	"firestige.xyz/vswitch/internal/core"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Call sends a command and waits for the response. A socket nobody listens
// on yields core.ErrDaemonNotRunning.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %s", core.ErrDaemonNotRunning, c.socketPath)
		}
		return nil, fmt.Errorf("failed to connect to socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := xid.New().String()
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 16*maxRequestSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var jsonrpcResp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &jsonrpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	respID := fmt.Sprintf("%v", jsonrpcResp.ID)
	if respID != reqID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, respID)
	}

	return &Response{
		ID:     respID,
		Result: jsonrpcResp.Result,
		Error:  jsonrpcResp.Error,
	}, nil
}

// call performs method and decodes the result into out.
func (c *UDSClient) call(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return decodeResult(resp.Result, out)
}

// decodeResult maps a generic JSON result onto a typed struct using its json
// tags. Numbers arrive as float64 and are converted.
func decodeResult(result, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Ping checks that the daemon is alive.
func (c *UDSClient) Ping(ctx context.Context) error {
	var r PingResult
	return c.call(ctx, MethodPing, nil, &r)
}

// FDBShow returns the forwarding table, optionally only entries on port.
func (c *UDSClient) FDBShow(ctx context.Context, port string) (*FDBShowResult, error) {
	var r FDBShowResult
	var params interface{}
	if port != "" {
		params = FDBShowParams{Port: port}
	}
	if err := c.call(ctx, MethodFDBShow, params, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FDBFlush empties the forwarding table.
func (c *UDSClient) FDBFlush(ctx context.Context) (*FDBFlushResult, error) {
	var r FDBFlushResult
	if err := c.call(ctx, MethodFDBFlush, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SwitchStatus returns the switch status.
func (c *UDSClient) SwitchStatus(ctx context.Context) (*StatusResult, error) {
	var r StatusResult
	if err := c.call(ctx, MethodSwitchStatus, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SwitchShutdown asks the daemon to stop.
func (c *UDSClient) SwitchShutdown(ctx context.Context) error {
	var r ShutdownResult
	return c.call(ctx, MethodSwitchShutdown, nil, &r)
}

// ConfigReload asks the daemon to re-read its configuration.
func (c *UDSClient) ConfigReload(ctx context.Context) error {
	var r ReloadResult
	return c.call(ctx, MethodConfigReload, nil, &r)
}
