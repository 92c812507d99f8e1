package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vswitch/internal/config"
)

func TestPatternFormatter(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %msg %field", time: "15:04:05"}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "port down",
		Data:    logrus.Fields{"port": "eth1", "err": errors.New("link lost")},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "03:04:05 [WARNING] port down err=link lost port=eth1", string(out))
}

func TestPatternFormatterWithoutCaller(t *testing.T) {
	f := &formatter{pattern: "%caller %func", time: defaultTime}
	out, err := f.Format(&logrus.Entry{})
	require.NoError(t, err)
	assert.Equal(t, "- -", string(out))
}

func TestBuildFormats(t *testing.T) {
	for _, format := range []string{"", "pattern", "prefixed", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			l, _, err := build(config.LogConfig{Level: "info", Format: format}, &buf)
			require.NoError(t, err)

			l.WithField("vlan", 7).Info("hello")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestBuildJSON(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := build(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.WithField("port", "eth0").Debug("learned")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "learned", rec["msg"])
	assert.Equal(t, "eth0", rec["port"])
	assert.Equal(t, "debug", rec["level"])
}

func TestBuildRejectsBadConfig(t *testing.T) {
	_, _, err := build(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = build(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = build(config.LogConfig{Level: "info", File: config.FileOutputConfig{Enabled: true}}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestBuildLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := build(config.LogConfig{Level: "warn", Format: "pattern", Pattern: "%msg\n"}, &buf)
	require.NoError(t, err)

	l.Info("quiet")
	l.Warn("loud")
	assert.Equal(t, "loud\n", buf.String())
}

func TestInitWithFileAppender(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		Flush()
		SetLogger(prev)
	})

	path := filepath.Join(t.TempDir(), "vswitch.log")
	err := Init(config.LogConfig{
		Level:   "info",
		Format:  "pattern",
		Pattern: "%level %msg\n",
		File: config.FileOutputConfig{
			Enabled:  true,
			Path:     path,
			Rotation: config.RotationConfig{MaxSizeMB: 1, MaxBackups: 1},
		},
	})
	require.NoError(t, err)

	GetLogger().WithField("k", "v").Info("to file")
	Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO to file")
}

func TestAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := build(config.LogConfig{Level: "debug", Format: "pattern", Pattern: "%msg\n"}, &buf)
	require.NoError(t, err)

	a := &logrusAdapter{entry: logrus.NewEntry(l)}
	assert.True(t, a.IsDebugEnabled())
	assert.True(t, a.IsInfoEnabled())
	assert.False(t, a.IsTraceEnabled())

	a.WithError(errors.New("boom")).Errorf("frame %d", 3)
	assert.Equal(t, "frame 3\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestMultiWriterKeepsWriting(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := w.Write([]byte("x"))
	assert.Equal(t, 1, n)
	assert.Error(t, err)
	assert.Equal(t, "x", a.String())
	assert.Equal(t, "x", b.String())
	assert.NoError(t, w.Close())
}

func TestInitReconfiguresDerivedLoggers(t *testing.T) {
	t.Cleanup(func() {
		Flush()
		base.SetLevel(logrus.InfoLevel)
	})

	path := filepath.Join(t.TempDir(), "vswitch.log")
	cfg := config.LogConfig{
		Level:   "info",
		Format:  "pattern",
		Pattern: "%level %msg\n",
		File:    config.FileOutputConfig{Enabled: true, Path: path},
	}
	require.NoError(t, Init(cfg))

	derived := GetLogger().WithField("component", "engine")
	derived.Debug("hidden")

	cfg.Level = "debug"
	require.NoError(t, Init(cfg))
	derived.Debug("shown")
	Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "DEBUG shown")
}
