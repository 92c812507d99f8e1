package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"firestige.xyz/vswitch/internal/config"
)

const (
	defaultPattern = "%time [%level] %caller %msg %field\n"
	defaultTime    = "2006-01-02 15:04:05.000"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

// Init applies cfg to the process logger. It may be called again on reload:
// loggers obtained earlier pick up the new settings and the previous file
// appender is closed.
func Init(cfg config.LogConfig) error {
	l, w, err := build(cfg, os.Stdout)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(l.GetLevel())
	base.SetFormatter(l.Formatter)
	base.SetReportCaller(l.ReportCaller)
	base.SetOutput(w)
	if closer != nil {
		_ = closer()
	}
	closer = w.Close
	logger = &logrusAdapter{entry: logrus.NewEntry(base)}
	return nil
}

func build(cfg config.LogConfig, stdout io.Writer) (*logrus.Logger, *MultiWriter, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	formatter, err := newFormatter(cfg)
	if err != nil {
		return nil, nil, err
	}

	w := NewMultiWriter().Add(stdout)
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, nil, fmt.Errorf("file output requires 'path' field")
		}
		w.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.Rotation.MaxSizeMB,
			MaxBackups: cfg.File.Rotation.MaxBackups,
			MaxAge:     cfg.File.Rotation.MaxAgeDays,
			Compress:   cfg.File.Rotation.Compress,
		})
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(w)
	// %caller and %func need the caller frame.
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	isPattern := cfg.Format == "" || strings.EqualFold(cfg.Format, "pattern")
	l.SetReportCaller(isPattern &&
		(strings.Contains(pattern, "%caller") || strings.Contains(pattern, "%func")))

	return l, w, nil
}

func newFormatter(cfg config.LogConfig) (logrus.Formatter, error) {
	timeLayout := cfg.Time
	if timeLayout == "" {
		timeLayout = defaultTime
	}

	switch strings.ToLower(cfg.Format) {
	case "", "pattern":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = defaultPattern
		}
		return &formatter{pattern: pattern, time: timeLayout}, nil
	case "prefixed":
		return &prefixed.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timeLayout,
		}, nil
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: timeLayout}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be pattern, prefixed or json)", cfg.Format)
	}
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
