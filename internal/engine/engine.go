// Package engine implements the forwarding loop: address learning, VLAN
// normalization and the unicast/flood decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/fdb"
	"firestige.xyz/vswitch/internal/frame"
	"firestige.xyz/vswitch/internal/link"
	"firestige.xyz/vswitch/internal/log"
	"firestige.xyz/vswitch/internal/metrics"
	"firestige.xyz/vswitch/internal/porttable"
)

// Link is the I/O boundary the engine forwards over.
type Link interface {
	Receive(ctx context.Context) (link.Frame, error)
	Send(port core.PortID, data []byte) error
	PortName(port core.PortID) string
	Ports() []core.PortID
}

// Config holds the engine's collaborators.
type Config struct {
	Ports *porttable.Table
	FDB   *fdb.Table
	Link  Link

	// StrictVLANUnicast floods instead of forwarding to a learned port that
	// does not carry the frame's VLAN.
	StrictVLANUnicast bool

	Logger log.Logger
}

// Engine owns the port bindings, the forwarding table and the counters. The
// table is only touched by the goroutine running Run; everyone else goes
// through Do.
type Engine struct {
	link    Link
	fdb     *fdb.Table
	ports   []Port
	domains floodDomains
	strict  bool
	logger  log.Logger

	warns   *warnLimiter
	ctrl    chan func()
	stopped chan struct{}
	running atomic.Bool
	started time.Time

	stats counters
}

type counters struct {
	received, transmitted, dropped atomic.Uint64
	unicast, flooded, filtered     atomic.Uint64
	txErrors, fdbMoves             atomic.Uint64
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	Received    uint64 `json:"received" yaml:"received"`
	Transmitted uint64 `json:"transmitted" yaml:"transmitted"`
	Dropped     uint64 `json:"dropped" yaml:"dropped"`
	Unicast     uint64 `json:"unicast" yaml:"unicast"`
	Flooded     uint64 `json:"flooded" yaml:"flooded"`
	Filtered    uint64 `json:"filtered" yaml:"filtered"`
	TxErrors    uint64 `json:"tx_errors" yaml:"tx_errors"`
	FDBMoves    uint64 `json:"fdb_moves" yaml:"fdb_moves"`
}

// New binds the port table to the attached links. Binding errors are fatal.
func New(cfg Config) (*Engine, error) {
	if cfg.Ports == nil || cfg.Link == nil {
		return nil, errors.New("engine: port table and link are required")
	}
	if cfg.FDB == nil {
		cfg.FDB = fdb.New(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger().WithField("component", "engine")
	}

	attached := make(map[string]core.PortID)
	for _, id := range cfg.Link.Ports() {
		attached[cfg.Link.PortName(id)] = id
	}
	ports, err := Bind(cfg.Ports, attached)
	if err != nil {
		return nil, err
	}

	return &Engine{
		link:    cfg.Link,
		fdb:     cfg.FDB,
		ports:   ports,
		domains: newFloodDomains(cfg.Ports, ports),
		strict:  cfg.StrictVLANUnicast,
		logger:  cfg.Logger,
		warns:   newWarnLimiter(cfg.Logger, defaultWarnBurst, defaultWarnWindow),
		ctrl:    make(chan func()),
		stopped: make(chan struct{}),
	}, nil
}

// Ports returns the bound ports indexed by port id.
func (e *Engine) Ports() []Port {
	return append([]Port(nil), e.ports...)
}

// Run receives, processes and transmits frames until ctx is cancelled or
// the link fails. It also executes the closures submitted through Do.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}
	defer close(e.stopped)
	e.started = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	frames := make(chan link.Frame)
	errc := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			f, err := e.link.Receive(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	e.logger.WithField("ports", len(e.ports)).Info("forwarding loop started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("forwarding loop stopped")
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				e.logger.Info("forwarding loop stopped")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		case f := <-frames:
			e.forward(f)
		case fn := <-e.ctrl:
			fn()
		}
	}
}

// forward is one loop iteration: process, then transmit.
func (e *Engine) forward(f link.Frame) {
	start := time.Now()
	d, err := e.Process(f)
	if err != nil {
		if e.warns.Allow("drop:"+d.Reason, start) {
			e.logger.WithFields(map[string]interface{}{
				"port":   e.link.PortName(f.Port),
				"reason": d.Reason,
			}).WithError(err).Warn("frame dropped")
		}
		return
	}
	if e.logger.IsTraceEnabled() {
		e.logger.WithFields(map[string]interface{}{
			"frame":  d.Header.String(),
			"vlan":   d.VLAN,
			"kind":   d.Kind.String(),
			"egress": d.Egress(),
		}).Trace("forwarding decision")
	}

	for _, o := range d.Out {
		name := e.ports[o.Port].Name
		if err := e.link.Send(o.Port, o.Data); err != nil {
			e.stats.txErrors.Add(1)
			metrics.TransmitErrorsTotal.WithLabelValues(name).Inc()
			if e.warns.Allow("tx:"+name, start) {
				e.logger.WithField("port", name).WithError(err).Warn("transmit failed")
			}
			continue
		}
		e.stats.transmitted.Add(1)
		metrics.FramesTransmittedTotal.WithLabelValues(name).Inc()
	}
	metrics.ProcessLatencySeconds.Observe(time.Since(start).Seconds())
}

// Process learns from f and decides where it goes, without doing any I/O.
// It must run on the loop goroutine, or in tests while Run is not running.
// The returned error is a FrameFormatError or UnknownPortError for dropped
// frames; the decision still carries the drop reason.
func (e *Engine) Process(f link.Frame) (Decision, error) {
	d := Decision{Kind: Dropped, Ingress: f.Port}

	if f.Port < 0 || int(f.Port) >= len(e.ports) {
		return e.drop(d, metrics.DropUnknownPort), &core.UnknownPortError{Name: fmt.Sprintf("#%d", f.Port)}
	}
	in := e.ports[f.Port]
	e.stats.received.Add(1)
	metrics.FramesReceivedTotal.WithLabelValues(in.Name).Inc()

	h, err := frame.Decode(f.Data)
	if err != nil {
		return e.drop(d, metrics.DropMalformed), err
	}
	d.Header = h

	// Normalize to an untagged frame and the VLAN it belongs to.
	data := f.Data
	if in.Mode.Trunk {
		if !h.Tagged {
			return e.drop(d, metrics.DropUntagged), &core.FrameFormatError{
				Len: len(f.Data),
				Msg: fmt.Sprintf("untagged frame on trunk port %s", in.Name),
			}
		}
		if data, err = frame.StripTag(f.Data); err != nil {
			return e.drop(d, metrics.DropMalformed), err
		}
		d.VLAN = h.VLAN
	} else {
		d.VLAN = in.Mode.VLAN
	}

	if e.fdb.Learn(h.Src, in.ID) {
		e.stats.fdbMoves.Add(1)
		metrics.FDBMovesTotal.Inc()
		if e.logger.IsDebugEnabled() {
			e.logger.WithFields(map[string]interface{}{
				"mac":  h.Src.String(),
				"port": in.Name,
			}).Debug("station moved")
		}
	}
	metrics.FDBEntries.Set(float64(e.fdb.Len()))

	domain := e.domains.members(d.VLAN)

	if h.Dst.IsUnicast() {
		if out, ok := e.fdb.Lookup(h.Dst); ok {
			switch {
			case out == in.ID:
				d.Kind = Filtered
				d.Reason = metrics.DropFiltered
				e.stats.filtered.Add(1)
				metrics.ForwardDecisionsTotal.WithLabelValues(metrics.KindFiltered).Inc()
				metrics.FramesDroppedTotal.WithLabelValues(metrics.DropFiltered).Inc()
				return d, nil
			case !e.strict || contains(domain, out):
				d.Kind = Unicast
				d.Out = []Output{e.encode(out, data, d.VLAN)}
				e.stats.unicast.Add(1)
				metrics.ForwardDecisionsTotal.WithLabelValues(metrics.KindUnicast).Inc()
				return d, nil
			}
			// Learned outside the VLAN: treat as unknown.
		}
	}

	d.Kind = Flood
	e.stats.flooded.Add(1)
	metrics.ForwardDecisionsTotal.WithLabelValues(metrics.KindFlood).Inc()
	for _, p := range domain {
		if p == in.ID {
			continue
		}
		d.Out = append(d.Out, e.encode(p, data, d.VLAN))
	}
	if len(d.Out) == 0 {
		d.Reason = metrics.DropNoEgress
		metrics.FramesDroppedTotal.WithLabelValues(metrics.DropNoEgress).Inc()
	}
	return d, nil
}

// encode prepares data for port: trunks get a tag, access ports get the
// frame as is.
func (e *Engine) encode(port core.PortID, data []byte, vlan core.VLANID) Output {
	if e.ports[port].Mode.Trunk {
		return Output{Port: port, Data: frame.InsertTag(data, vlan)}
	}
	return Output{Port: port, Data: data}
}

func (e *Engine) drop(d Decision, reason string) Decision {
	d.Kind = Dropped
	d.Reason = reason
	e.stats.dropped.Add(1)
	metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()
	return d
}

// Stats returns the current counters. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		Received:    e.stats.received.Load(),
		Transmitted: e.stats.transmitted.Load(),
		Dropped:     e.stats.dropped.Load(),
		Unicast:     e.stats.unicast.Load(),
		Flooded:     e.stats.flooded.Load(),
		Filtered:    e.stats.filtered.Load(),
		TxErrors:    e.stats.txErrors.Load(),
		FDBMoves:    e.stats.fdbMoves.Load(),
	}
}
