// Package daemon implements the switch process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/vswitch/internal/command"
	"firestige.xyz/vswitch/internal/config"
	"firestige.xyz/vswitch/internal/engine"
	"firestige.xyz/vswitch/internal/fdb"
	logpkg "firestige.xyz/vswitch/internal/log"
	"firestige.xyz/vswitch/internal/link"
	"firestige.xyz/vswitch/internal/metrics"
	"firestige.xyz/vswitch/internal/porttable"
	"firestige.xyz/vswitch/internal/stp"
)

// Options are the command line inputs of a switch process. Non-empty
// fields override the matching config keys.
type Options struct {
	ConfigPath string
	SwitchID   string
	Interfaces []string
	SocketPath string
	PIDFile    string
}

// Daemon manages the switch process lifecycle.
type Daemon struct {
	// Configuration
	mu     sync.Mutex
	config *config.GlobalConfig
	opts   Options

	// Core components
	table         *porttable.Table
	mux           *link.Mux
	engine        *engine.Engine
	bridgeID      stp.BridgeID
	timer         *stp.Timer
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	stopOnce     sync.Once
	pidWritten   bool
}

// New loads the global configuration and creates a daemon. Nothing is
// opened until Start.
func New(opts Options) (*Daemon, error) {
	if len(opts.Interfaces) == 0 {
		return nil, fmt.Errorf("at least one interface is required")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		config:       cfg,
		opts:         opts,
		shutdownChan: make(chan struct{}, 1),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

func loadConfig(opts Options) (*config.GlobalConfig, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.SwitchID != "" {
		cfg.Switch.ID = opts.SwitchID
	}
	if opts.SocketPath != "" {
		cfg.Control.Socket = opts.SocketPath
	}
	if opts.PIDFile != "" {
		cfg.Control.PIDFile = opts.PIDFile
	}
	return cfg, nil
}

// Start opens the ports and builds every component. On failure everything
// already opened is released.
func (d *Daemon) Start() (err error) {
	defer func() {
		if err != nil {
			d.Stop()
		}
	}()

	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg := d.config
	logger := logpkg.GetLogger()
	logger.WithFields(map[string]interface{}{
		"switch_id":  cfg.Switch.ID,
		"driver":     cfg.Link.Driver,
		"interfaces": d.opts.Interfaces,
		"config":     d.opts.ConfigPath,
	}).Info("starting vswitch")

	// 2. Port table
	d.table, err = porttable.Load(cfg.Switch.ConfigDir, cfg.Switch.ID)
	if err != nil {
		return fmt.Errorf("failed to load port table: %w", err)
	}

	// 3. Ports
	if err := d.openLink(); err != nil {
		return err
	}

	// 4. Forwarding engine
	d.engine, err = engine.New(engine.Config{
		Ports:             d.table,
		FDB:               fdb.New(cfg.FDB.AgingTime),
		Link:              d.mux,
		StrictVLANUnicast: cfg.Forwarding.StrictVLANUnicast,
	})
	if err != nil {
		return fmt.Errorf("failed to bind ports: %w", err)
	}

	// 5. Bridge identity and protocol timer
	d.bridgeID, err = stp.NewBridgeID(d.table.Priority(), d.mux.HardwareAddr(0))
	if err != nil {
		return fmt.Errorf("failed to derive bridge id: %w", err)
	}
	proto := stp.NopProtocol{}
	d.timer = stp.NewTimer(d.engine, proto, cfg.STP.HelloInterval, d.engine.Sweep)

	// 6. PID file
	if err := writePIDFile(cfg.Control.PIDFile); err != nil {
		return err
	}
	d.pidWritten = true

	// 7. Control plane
	d.cmdHandler = command.NewCommandHandler(d.engine, command.Info{
		SwitchID: cfg.Switch.ID,
		BridgeID: d.bridgeID.String(),
		Driver:   cfg.Link.Driver,
		Protocol: proto.Name(),
	}, d)
	d.cmdHandler.SetShutdownFunc(func() {
		logpkg.GetLogger().Info("shutdown triggered via switch_shutdown command")
		d.TriggerShutdown()
	})
	d.udsServer = command.NewUDSServer(cfg.Control.Socket, d.cmdHandler)

	// 8. Metrics
	if cfg.Metrics.Enabled {
		d.metricsServer = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
	} else {
		logger.Info("metrics server disabled")
	}

	logger.WithField("bridge_id", d.bridgeID.String()).Info("vswitch started")
	return nil
}

func (d *Daemon) openLink() error {
	cfg := d.config
	opts := link.Options{
		SnapLen:    cfg.Link.SnapLen,
		BufferSize: cfg.Link.BufferSizeMB << 20,
		Filter:     cfg.Link.BPFFilter,
	}

	var muxOpts []link.MuxOption
	var mirror *link.Mirror
	if cfg.Mirror.Enabled {
		m, err := link.CreateMirror(cfg.Mirror.Path, cfg.Mirror.SnapLen)
		if err != nil {
			return fmt.Errorf("failed to create mirror: %w", err)
		}
		mirror = m
		muxOpts = append(muxOpts, link.WithMirror(m))
	}

	mux, err := link.Open(cfg.Link.Driver, d.opts.Interfaces, opts, muxOpts...)
	if err != nil {
		if mirror != nil {
			mirror.Close()
		}
		return fmt.Errorf("failed to open ports: %w", err)
	}
	d.mux = mux
	return nil
}

// Run runs every component until shutdown is triggered or one of them
// fails. Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. switch_shutdown command via UDS
//  3. SIGHUP triggers config reload
func (d *Daemon) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.engine.Run(gctx) })
	g.Go(func() error { return d.timer.Run(gctx) })
	g.Go(func() error { return d.udsServer.Start(gctx) })
	if d.metricsServer != nil {
		g.Go(func() error { return d.metricsServer.Run(gctx) })
	}

	logger := logpkg.GetLogger()
	logger.Info("vswitch running, waiting for signals or commands")

loop:
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				break loop
			case syscall.SIGHUP:
				logger.Info("received reload signal")
				if err := d.Reload(); err != nil {
					logger.WithError(err).Error("failed to reload config")
				}
			}

		case <-d.shutdownChan:
			logger.Info("shutdown triggered by command")
			break loop

		case <-gctx.Done():
			// A component failed or the daemon context was cancelled.
			break loop
		}
	}

	cancel()
	err := g.Wait()
	if err != nil {
		logger.WithError(err).Error("component failed")
	}
	d.Stop()
	return err
}

// Stop releases the ports, the PID file and the log appenders. It is safe
// to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		logger := logpkg.GetLogger()
		logger.Info("initiating graceful shutdown")

		d.cancel()

		if d.udsServer != nil {
			d.udsServer.Stop()
		}
		if d.mux != nil {
			if err := d.mux.Close(); err != nil {
				logger.WithError(err).Error("error closing ports")
			}
		}
		if d.pidWritten {
			if err := removePIDFile(d.config.Control.PIDFile); err != nil {
				logger.WithError(err).Error("error removing PID file")
			}
		}
		if d.engine != nil {
			st := d.engine.Stats()
			logger.WithFields(map[string]interface{}{
				"received":    st.Received,
				"transmitted": st.Transmitted,
				"dropped":     st.Dropped,
			}).Info("vswitch stopped")
		}

		logpkg.Flush()
	})
}

// Reload re-reads the global configuration. Only the log settings are
// applied in place; everything else takes effect on restart. Implements
// command.ConfigReloader.
func (d *Daemon) Reload() error {
	logger := logpkg.GetLogger()
	logger.WithField("path", d.opts.ConfigPath).Info("reloading configuration")

	newConfig, err := loadConfig(d.opts)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.config

	if err := logpkg.Init(newConfig.Log); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	// Cold keys keep their running values.
	old.Log = newConfig.Log

	requiresRestart := coldChanges(old, newConfig)
	logpkg.GetLogger().WithFields(map[string]interface{}{
		"log_level":        newConfig.Log.Level,
		"log_format":       newConfig.Log.Format,
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

func coldChanges(old, cur *config.GlobalConfig) []string {
	var keys []string
	if old.Switch != cur.Switch {
		keys = append(keys, "switch")
	}
	if old.Link != cur.Link {
		keys = append(keys, "link")
	}
	if old.Forwarding != cur.Forwarding {
		keys = append(keys, "forwarding")
	}
	if old.FDB != cur.FDB {
		keys = append(keys, "fdb")
	}
	if old.STP != cur.STP {
		keys = append(keys, "stp")
	}
	if old.Mirror != cur.Mirror {
		keys = append(keys, "mirror")
	}
	if old.Control != cur.Control {
		keys = append(keys, "control")
	}
	if old.Metrics != cur.Metrics {
		keys = append(keys, "metrics")
	}
	return keys
}

// TriggerShutdown asks Run to return. It never blocks.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

// Config returns the running configuration.
func (d *Daemon) Config() config.GlobalConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.config
}

// BridgeID returns the bridge identity derived at Start.
func (d *Daemon) BridgeID() stp.BridgeID { return d.bridgeID }

// Engine returns the forwarding engine, nil before Start.
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// Mux returns the port multiplexer, nil before Start.
func (d *Daemon) Mux() *link.Mux { return d.mux }

// SocketReady is closed once the control socket accepts connections.
func (d *Daemon) SocketReady() <-chan struct{} { return d.udsServer.Ready() }

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}
	logpkg.GetLogger().WithFields(map[string]interface{}{
		"level":  d.config.Log.Level,
		"format": d.config.Log.Format,
	}).Debug("logging initialized")
	return nil
}
