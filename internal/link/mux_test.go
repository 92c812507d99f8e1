package link

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"firestige.xyz/vswitch/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPipes(names ...string) ([]*Pipe, []Handle) {
	pipes := make([]*Pipe, len(names))
	handles := make([]Handle, len(names))
	for i, name := range names {
		pipes[i] = NewPipe(name, nil)
		handles[i] = pipes[i]
	}
	return pipes, handles
}

func TestMuxReceiveFromAnyPort(t *testing.T) {
	pipes, handles := newPipes("p0", "p1", "p2")
	m := NewMux(handles)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go pipes[2].Inject([]byte{2})
	f, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.PortID(2), f.Port)
	assert.Equal(t, []byte{2}, f.Data)
	assert.False(t, f.Timestamp.IsZero())

	go pipes[0].Inject([]byte{0})
	f, err = m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.PortID(0), f.Port)
}

func TestMuxSend(t *testing.T) {
	pipes, handles := newPipes("p0", "p1")
	m := NewMux(handles)
	defer m.Close()

	require.NoError(t, m.Send(1, []byte{0xaa}))
	select {
	case data := <-pipes[1].Sent():
		assert.Equal(t, []byte{0xaa}, data)
	case <-time.After(time.Second):
		t.Fatal("frame not sent")
	}
	assert.Empty(t, pipes[0].Sent())

	err := m.Send(5, []byte{0})
	assert.ErrorIs(t, err, core.ErrUnknownPort)
}

func TestMuxPortNames(t *testing.T) {
	_, handles := newPipes("eth0", "eth1")
	m := NewMux(handles)
	defer m.Close()

	assert.Equal(t, []core.PortID{0, 1}, m.Ports())
	assert.Equal(t, "eth1", m.PortName(1))
	assert.Equal(t, "", m.PortName(-1))
	assert.Len(t, m.HardwareAddr(0), 6)
	assert.Nil(t, m.HardwareAddr(2))
}

func TestMuxReceiveHonorsContext(t *testing.T) {
	_, handles := newPipes("p0")
	m := NewMux(handles)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMuxCloseStopsReaders(t *testing.T) {
	_, handles := newPipes("p0", "p1")
	m := NewMux(handles)
	m.Start()

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Receive(context.Background())
	assert.ErrorIs(t, err, core.ErrLinkClosed)
}

type flakyHandle struct {
	*Pipe
	timeouts int
	fail     error
}

func (h *flakyHandle) ReadFrame() ([]byte, error) {
	if h.timeouts > 0 {
		h.timeouts--
		return nil, ErrTimeout
	}
	if h.fail != nil {
		return nil, h.fail
	}
	return h.Pipe.ReadFrame()
}

func TestMuxRetriesTimeouts(t *testing.T) {
	p := NewPipe("p0", nil)
	m := NewMux([]Handle{&flakyHandle{Pipe: p, timeouts: 3}})
	defer m.Close()

	go p.Inject([]byte{1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, f.Data)
}

func TestMuxReportsReaderFailure(t *testing.T) {
	boom := errors.New("device gone")
	m := NewMux([]Handle{&flakyHandle{Pipe: NewPipe("p0", nil), fail: boom}})
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := m.Receive(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "p0")
}

func TestMuxMirror(t *testing.T) {
	var buf bytes.Buffer
	mirror, err := NewMirror(&buf, 4)
	require.NoError(t, err)

	pipes, handles := newPipes("p0")
	m := NewMux(handles, WithMirror(mirror))

	go pipes[0].Inject([]byte{1, 2, 3, 4, 5, 6})
	_, err = m.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, 6, ci.Length)
}

func TestOpenPipeDriver(t *testing.T) {
	m, err := Open("pipe", []string{"a", "b"}, DefaultOptions())
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "b", m.PortName(1))

	_, err = Open("pipe", []string{"a", "a"}, DefaultOptions())
	assert.Error(t, err)

	_, err = Open("carrier-pigeon", []string{"a"}, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported link driver")
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Contains(t, Drivers(), "pipe")
	assert.Panics(t, func() {
		Register("pipe", func(string, Options) (Handle, error) { return nil, nil })
	})
}

func TestPipe(t *testing.T) {
	p := NewPipe("tap0", nil)
	hw := p.HardwareAddr()
	require.Len(t, hw, 6)
	assert.Equal(t, byte(0x02), hw[0]&0x03, "locally administered unicast")
	assert.Equal(t, hw, NewPipe("tap0", nil).HardwareAddr())

	fixed := net.HardwareAddr{0x02, 0, 0, 0, 0, 9}
	assert.Equal(t, fixed, NewPipe("x", fixed).HardwareAddr())

	data := []byte{1}
	require.NoError(t, p.WriteFrame(data))
	data[0] = 9
	assert.Equal(t, []byte{1}, <-p.Sent(), "written frames are copied")

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.WriteFrame([]byte{1}), core.ErrLinkClosed)
	assert.ErrorIs(t, p.Inject([]byte{1}), core.ErrLinkClosed)
	_, err := p.ReadFrame()
	assert.ErrorIs(t, err, core.ErrLinkClosed)
}

func TestPipeFull(t *testing.T) {
	p := NewPipe("p", nil)
	for i := 0; i < pipeQueue; i++ {
		require.NoError(t, p.WriteFrame([]byte{byte(i)}))
	}
	assert.ErrorIs(t, p.WriteFrame([]byte{0}), ErrPipeFull)
}
