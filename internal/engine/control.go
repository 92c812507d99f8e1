package engine

import (
	"context"
	"time"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/metrics"
)

// Do runs fn on the loop goroutine and waits for it to finish. It fails if
// ctx ends or the loop stops before fn is accepted. Before Run starts, Do
// blocks.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}

	select {
	case e.ctrl <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return core.ErrEngineStopped
	}

	// The loop runs fn as soon as it accepts it.
	<-done
	return nil
}

// FDBEntry is a forwarding table entry with its port name resolved.
type FDBEntry struct {
	MAC      core.MAC
	Port     core.PortID
	PortName string
	Expires  time.Time // zero when aging is disabled
}

// Snapshot returns the forwarding table sorted by MAC.
func (e *Engine) Snapshot(ctx context.Context) ([]FDBEntry, error) {
	var out []FDBEntry
	err := e.Do(ctx, func() {
		entries := e.fdb.Entries()
		out = make([]FDBEntry, 0, len(entries))
		for _, en := range entries {
			out = append(out, FDBEntry{
				MAC:      en.MAC,
				Port:     en.Port,
				PortName: e.ports[en.Port].Name,
				Expires:  en.Expires,
			})
		}
	})
	return out, err
}

// Flush empties the forwarding table and returns how many entries it held.
func (e *Engine) Flush(ctx context.Context) (int, error) {
	var n int
	err := e.Do(ctx, func() {
		n = e.fdb.Flush()
		metrics.FDBEntries.Set(0)
	})
	if err == nil {
		e.logger.WithField("entries", n).Info("forwarding table flushed")
	}
	return n, err
}

// Sweep releases aged out forwarding entries. It must run on the loop
// goroutine, typically from the periodic timer.
func (e *Engine) Sweep(time.Time) {
	before := e.fdb.Len()
	after := e.fdb.Sweep()
	metrics.FDBEntries.Set(float64(after))
	if before != after && e.logger.IsDebugEnabled() {
		e.logger.WithField("expired", before-after).Debug("forwarding entries aged out")
	}
}

// Status describes the running switch.
type Status struct {
	Ports      []Port
	FDBEntries int
	AgingTime  time.Duration
	Strict     bool
	Uptime     time.Duration
	Stats      Stats
}

// Status collects a consistent view of the switch from the loop.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.Do(ctx, func() {
		st = Status{
			Ports:      e.Ports(),
			FDBEntries: e.fdb.Len(),
			AgingTime:  e.fdb.AgingTime(),
			Strict:     e.strict,
			Uptime:     time.Since(e.started),
			Stats:      e.Stats(),
		}
	})
	return st, err
}
