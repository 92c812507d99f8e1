package engine

import (
	"sort"
	"time"

	"firestige.xyz/vswitch/internal/log"
)

const (
	defaultWarnBurst  = 10
	defaultWarnWindow = 10 * time.Second
)

// warnLimiter caps repeated per-frame warnings, such as drops of the same
// reason or transmit failures on the same port, to burst per window. The
// counts are stored per window and reset when it rotates; suppressed
// warnings are summarized once at rotation. It is only used by the
// forwarding goroutine.
type warnLimiter struct {
	logger      log.Logger
	burst       int
	window      time.Duration
	windowStart time.Time
	counts      map[string]int
}

func newWarnLimiter(logger log.Logger, burst int, window time.Duration) *warnLimiter {
	if burst <= 0 {
		burst = defaultWarnBurst
	}
	if window <= 0 {
		window = defaultWarnWindow
	}
	return &warnLimiter{
		logger: logger,
		burst:  burst,
		window: window,
		counts: make(map[string]int),
	}
}

// Allow reports whether a warning for key may be logged at now.
func (l *warnLimiter) Allow(key string, now time.Time) bool {
	if now.Sub(l.windowStart) >= l.window {
		l.rotate(now)
	}
	l.counts[key]++
	return l.counts[key] <= l.burst
}

func (l *warnLimiter) rotate(now time.Time) {
	keys := make([]string, 0, len(l.counts))
	for k, n := range l.counts {
		if n > l.burst {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.logger.WithFields(map[string]interface{}{
			"key":        k,
			"suppressed": l.counts[k] - l.burst,
			"window":     l.window.String(),
		}).Warn("repeated warnings suppressed")
	}
	l.counts = make(map[string]int)
	l.windowStart = now
}
