package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vswitch/internal/command"
	logpkg "firestige.xyz/vswitch/internal/log"
)

const portTable = `# bridge priority
14
eth0 10
eth1 T
`

type testEnv struct {
	dir        string
	configPath string
	opts       Options
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "switch1.cfg"), []byte(portTable), 0644))

	env := &testEnv{dir: dir, configPath: filepath.Join(dir, "vswitch.yml")}
	env.writeConfig(t, extra)
	env.opts = Options{
		ConfigPath: env.configPath,
		SwitchID:   "1",
		Interfaces: []string{"eth0", "eth1"},
		SocketPath: filepath.Join(dir, "vswitch.sock"),
		PIDFile:    filepath.Join(dir, "vswitch.pid"),
	}
	return env
}

func (e *testEnv) writeConfig(t *testing.T, extra string) {
	t.Helper()
	content := `
vswitch:
  switch:
    config_dir: ` + e.dir + `
  link:
    driver: pipe
  stp:
    hello_interval: 10ms
  metrics:
    enabled: true
    listen: 127.0.0.1:0
` + extra
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0644))
}

func TestDaemonStartStopIntegration(t *testing.T) {
	env := newTestEnv(t, `
  log:
    level: info
`)

	d, err := New(env.opts)
	require.NoError(t, err)
	require.NoError(t, d.Start())

	_, err = os.Stat(env.opts.PIDFile)
	require.NoError(t, err, "PID file created")
	pid, err := ReadPIDFile(env.opts.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run() }()

	select {
	case <-d.SocketReady():
	case <-time.After(5 * time.Second):
		t.Fatal("control socket not ready")
	}

	client := command.NewUDSClient(env.opts.SocketPath, 5*time.Second)
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	st, err := client.SwitchStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", st.SwitchID)
	assert.Equal(t, "pipe", st.Driver)
	assert.Equal(t, "none", st.Protocol)
	assert.Equal(t, d.BridgeID().String(), st.BridgeID)
	assert.Equal(t, 14, d.BridgeID().Priority)
	require.Len(t, st.Ports, 2)
	assert.Equal(t, "access(10)", st.Ports[0].Mode)
	assert.Equal(t, "trunk", st.Ports[1].Mode)
	assert.True(t, st.StrictVLANUnicast)

	fdb, err := client.FDBShow(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, fdb.Count)
	assert.Equal(t, "never", fdb.AgingTime)

	require.NoError(t, client.SwitchShutdown(ctx))

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop within timeout")
	}

	_, err = os.Stat(env.opts.PIDFile)
	assert.True(t, os.IsNotExist(err), "PID file removed after shutdown")
	_, err = os.Stat(env.opts.SocketPath)
	assert.True(t, os.IsNotExist(err), "socket removed after shutdown")
}

func TestDaemonTriggerShutdownNeverBlocks(t *testing.T) {
	env := newTestEnv(t, "")
	d, err := New(env.opts)
	require.NoError(t, err)

	d.TriggerShutdown()
	d.TriggerShutdown()
	assert.Len(t, d.shutdownChan, 1)
}

func TestDaemonReload(t *testing.T) {
	env := newTestEnv(t, `
  log:
    level: info
`)
	d, err := New(env.opts)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.False(t, logpkg.GetLogger().IsDebugEnabled())

	env.writeConfig(t, `
  fdb:
    aging_time: 5m
  log:
    level: debug
`)
	require.NoError(t, d.Reload())

	cfg := d.Config()
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Zero(t, cfg.FDB.AgingTime, "fdb settings need a restart")
	assert.True(t, logpkg.GetLogger().IsDebugEnabled())

	env.writeConfig(t, `
  log:
    level: loud
`)
	assert.Error(t, d.Reload())
	assert.Equal(t, "debug", d.Config().Log.Level)
}

func TestDaemonStartFailures(t *testing.T) {
	t.Run("no interfaces", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.opts.Interfaces = nil
		_, err := New(env.opts)
		assert.Error(t, err)
	})

	t.Run("missing port table", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.opts.SwitchID = "9"
		d, err := New(env.opts)
		require.NoError(t, err)

		err = d.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "switch9.cfg")
		_, statErr := os.Stat(env.opts.PIDFile)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("interface not in port table", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.opts.Interfaces = []string{"eth0", "eth7"}
		d, err := New(env.opts)
		require.NoError(t, err)
		assert.Error(t, d.Start())
	})

	t.Run("already running", func(t *testing.T) {
		env := newTestEnv(t, "")
		parent := strconv.Itoa(os.Getppid()) + "\n"
		require.NoError(t, os.WriteFile(env.opts.PIDFile, []byte(parent), 0644))

		d, err := New(env.opts)
		require.NoError(t, err)
		err = d.Start()
		assert.ErrorIs(t, err, ErrAlreadyRunning)

		data, readErr := os.ReadFile(env.opts.PIDFile)
		require.NoError(t, readErr)
		assert.Equal(t, parent, string(data), "foreign PID file left alone")
	})
}

func TestReadPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")

	_, err := ReadPIDFile(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	_, err = ReadPIDFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(" 42\n"), 0644))
	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, pid)
}
