package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/engine"
	"firestige.xyz/vswitch/internal/porttable"
)

type fakeSwitch struct {
	entries []engine.FDBEntry
	status  engine.Status
	err     error
	flushed int
}

func (f *fakeSwitch) Snapshot(context.Context) ([]engine.FDBEntry, error) {
	return f.entries, f.err
}

func (f *fakeSwitch) Flush(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.flushed = len(f.entries)
	f.entries = nil
	return f.flushed, nil
}

func (f *fakeSwitch) Status(context.Context) (engine.Status, error) {
	return f.status, f.err
}

type reloaderFunc func() error

func (f reloaderFunc) Reload() error { return f() }

func newFakeSwitch() *fakeSwitch {
	return &fakeSwitch{
		entries: []engine.FDBEntry{
			{MAC: core.MAC{0, 0, 0, 0, 0, 1}, Port: 0, PortName: "eth0"},
			{MAC: core.MAC{0, 0, 0, 0, 0, 2}, Port: 1, PortName: "eth1", Expires: time.Now().Add(time.Minute)},
		},
		status: engine.Status{
			Ports: []engine.Port{
				{ID: 0, Name: "eth0", Mode: porttable.Access(10)},
				{ID: 1, Name: "eth1", Mode: porttable.Trunk()},
			},
			FDBEntries: 2,
			Strict:     true,
			Uptime:     90 * time.Second,
			Stats:      engine.Stats{Received: 7, Flooded: 3},
		},
	}
}

func TestHandlePing(t *testing.T) {
	h := NewCommandHandler(newFakeSwitch(), Info{}, nil)
	resp := h.Handle(context.Background(), Command{Method: MethodPing, ID: "1"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, PingResult{Pong: true}, resp.Result)
}

func TestHandleFDBShow(t *testing.T) {
	h := NewCommandHandler(newFakeSwitch(), Info{}, nil)

	resp := h.Handle(context.Background(), Command{Method: MethodFDBShow, ID: "1"})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(FDBShowResult)
	require.True(t, ok)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "never", result.AgingTime)
	assert.Equal(t, "00:00:00:00:00:01", result.Entries[0].MAC)
	assert.Empty(t, result.Entries[0].ExpiresIn)
	assert.NotEmpty(t, result.Entries[1].ExpiresIn)

	params, _ := json.Marshal(FDBShowParams{Port: "eth1"})
	resp = h.Handle(context.Background(), Command{Method: MethodFDBShow, Params: params, ID: "2"})
	require.Nil(t, resp.Error)
	result = resp.Result.(FDBShowResult)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "eth1", result.Entries[0].Port)
	assert.Equal(t, 1, result.Entries[0].PortID)

	resp = h.Handle(context.Background(), Command{Method: MethodFDBShow, Params: json.RawMessage(`{"port":`), ID: "3"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestHandleFDBFlush(t *testing.T) {
	sw := newFakeSwitch()
	h := NewCommandHandler(sw, Info{}, nil)

	resp := h.Handle(context.Background(), Command{Method: MethodFDBFlush, ID: "1"})
	require.Nil(t, resp.Error)
	assert.Equal(t, FDBFlushResult{Flushed: 2}, resp.Result)
	assert.Empty(t, sw.entries)
}

func TestHandleSwitchStatus(t *testing.T) {
	info := Info{SwitchID: "0", BridgeID: "14.02:00:00:00:00:01", Driver: "pipe", Protocol: "none"}
	h := NewCommandHandler(newFakeSwitch(), info, nil)

	resp := h.Handle(context.Background(), Command{Method: MethodSwitchStatus, ID: "1"})
	require.Nil(t, resp.Error)
	result := resp.Result.(StatusResult)
	assert.Equal(t, "14.02:00:00:00:00:01", result.BridgeID)
	assert.Equal(t, "pipe", result.Driver)
	assert.True(t, result.StrictVLANUnicast)
	assert.Equal(t, int64(90), result.UptimeSec)
	assert.Equal(t, []PortResult{
		{ID: 0, Name: "eth0", Mode: "access(10)"},
		{ID: 1, Name: "eth1", Mode: "trunk"},
	}, result.Ports)
	assert.Equal(t, uint64(7), result.Stats.Received)
}

func TestHandleEngineErrors(t *testing.T) {
	sw := newFakeSwitch()
	sw.err = core.ErrEngineStopped
	h := NewCommandHandler(sw, Info{}, nil)

	for _, m := range []string{MethodFDBShow, MethodFDBFlush, MethodSwitchStatus} {
		resp := h.Handle(context.Background(), Command{Method: m, ID: "1"})
		require.NotNil(t, resp.Error, m)
		assert.Equal(t, ErrCodeUnavailable, resp.Error.Code, m)
	}

	sw.err = errors.New("boom")
	resp := h.Handle(context.Background(), Command{Method: MethodFDBFlush, ID: "1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestHandleSwitchShutdown(t *testing.T) {
	h := NewCommandHandler(newFakeSwitch(), Info{}, nil)

	resp := h.Handle(context.Background(), Command{Method: MethodSwitchShutdown, ID: "1"})
	require.NotNil(t, resp.Error, "no shutdown func registered")

	called := make(chan struct{})
	h.SetShutdownFunc(func() { close(called) })
	resp = h.Handle(context.Background(), Command{Method: MethodSwitchShutdown, ID: "2"})
	require.Nil(t, resp.Error)
	assert.Equal(t, ShutdownResult{Status: "shutting_down"}, resp.Result)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown func not called")
	}
}

func TestHandleConfigReload(t *testing.T) {
	h := NewCommandHandler(newFakeSwitch(), Info{}, nil)
	resp := h.Handle(context.Background(), Command{Method: MethodConfigReload, ID: "1"})
	require.NotNil(t, resp.Error)

	calls := 0
	h = NewCommandHandler(newFakeSwitch(), Info{}, reloaderFunc(func() error {
		calls++
		return nil
	}))
	resp = h.Handle(context.Background(), Command{Method: MethodConfigReload, ID: "2"})
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, calls)

	h = NewCommandHandler(newFakeSwitch(), Info{}, reloaderFunc(func() error { return errors.New("bad yaml") }))
	resp = h.Handle(context.Background(), Command{Method: MethodConfigReload, ID: "3"})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "bad yaml")
}

func TestHandleUnknownMethod(t *testing.T) {
	h := NewCommandHandler(newFakeSwitch(), Info{}, nil)
	resp := h.Handle(context.Background(), Command{Method: "task_create", ID: "1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}
