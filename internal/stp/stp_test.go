package stp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"firestige.xyz/vswitch/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// inline runs work immediately, like a loop with nothing else to do.
type inline struct {
	mu      sync.Mutex
	stopped bool
}

func (e *inline) Do(ctx context.Context, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return core.ErrEngineStopped
	}
	fn()
	return nil
}

type mockProtocol struct {
	mock.Mock
}

func (m *mockProtocol) Name() string { return "mock" }

func (m *mockProtocol) Tick(now time.Time) { m.Called(now) }

func TestTimerTicksProtocolAndHooks(t *testing.T) {
	proto := &mockProtocol{}
	ticked := make(chan struct{}, 16)
	proto.On("Tick", mock.AnythingOfType("time.Time")).Run(func(mock.Arguments) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	var hooked atomic.Int32
	timer := NewTimer(&inline{}, proto, 5*time.Millisecond, func(time.Time) { hooked.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- timer.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-ticked:
		case <-time.After(time.Second):
			t.Fatal("protocol never ticked")
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, hooked.Load(), int32(2))
	proto.AssertCalled(t, "Tick", mock.AnythingOfType("time.Time"))
}

func TestTimerExitsWhenLoopStops(t *testing.T) {
	timer := NewTimer(&inline{stopped: true}, nil, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- timer.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timer did not exit")
	}
}

func TestNewTimerDefaults(t *testing.T) {
	timer := NewTimer(&inline{}, nil, 0)
	assert.Equal(t, DefaultHelloInterval, timer.interval)
	assert.Equal(t, "none", timer.proto.Name())
}

func TestBridgeID(t *testing.T) {
	hw := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	id, err := NewBridgeID(32768, hw)
	require.NoError(t, err)
	assert.Equal(t, "32768.02:00:00:00:00:01", id.String())

	_, err = NewBridgeID(1, net.HardwareAddr{1, 2})
	assert.Error(t, err)
}

func TestBridgeIDOrdering(t *testing.T) {
	low := BridgeID{Priority: 4096, MAC: core.MAC{0xff}}
	high := BridgeID{Priority: 32768, MAC: core.MAC{0x00}}
	assert.True(t, low.Less(high))
	assert.False(t, high.Less(low))

	a := BridgeID{Priority: 1, MAC: core.MAC{0, 0, 0, 0, 0, 1}}
	b := BridgeID{Priority: 1, MAC: core.MAC{0, 0, 0, 0, 0, 2}}
	assert.True(t, a.Less(b))
	assert.False(t, a.Less(a))
}
