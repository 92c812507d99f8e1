package stp

import (
	"context"
	"errors"
	"time"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/log"
)

// Executor runs work on the forwarding loop.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Hook is extra periodic work, such as forwarding table aging. Hooks run on
// the loop after the protocol tick.
type Hook func(now time.Time)

// Timer submits the protocol tick into the forwarding loop at a fixed
// interval.
type Timer struct {
	exec     Executor
	proto    Protocol
	interval time.Duration
	hooks    []Hook
}

// NewTimer creates a timer. A nil protocol means NopProtocol and a
// non-positive interval means DefaultHelloInterval.
func NewTimer(exec Executor, proto Protocol, interval time.Duration, hooks ...Hook) *Timer {
	if proto == nil {
		proto = NopProtocol{}
	}
	if interval <= 0 {
		interval = DefaultHelloInterval
	}
	return &Timer{exec: exec, proto: proto, interval: interval, hooks: hooks}
}

// Run ticks until ctx is cancelled or the loop stops.
func (t *Timer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"protocol": t.proto.Name(),
		"interval": t.interval.String(),
	})
	logger.Info("protocol timer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			err := t.exec.Do(ctx, func() {
				t.proto.Tick(now)
				for _, h := range t.hooks {
					h(now)
				}
			})
			switch {
			case err == nil:
			case errors.Is(err, core.ErrEngineStopped):
				logger.Info("forwarding loop stopped, protocol timer exiting")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
	}
}
