package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultChannelBuffer = 256
	dropLogInterval      = 5 * time.Second
)

// Channel delivers updates over a buffered channel to a consumer running on
// another goroutine. Report never blocks; when the buffer is full the update
// is dropped and a rate-limited warning is logged.
type Channel struct {
	ch          chan Update
	logger      *zap.Logger
	dropped     atomic.Int64
	dropLimiter rateLimiter
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewChannel returns a Channel with the given buffer size (256 when <= 0).
func NewChannel(buffer int, logger *zap.Logger) *Channel {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		ch:          make(chan Update, buffer),
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
		now:         time.Now,
	}
}

// Report enqueues the update without blocking.
func (c *Channel) Report(message string, percent int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	upd := Update{Message: message, Percent: percent, At: c.now().UTC()}
	select {
	case c.ch <- upd:
	default:
		c.dropped.Add(1)
		if c.dropLimiter.Allow(c.now()) {
			c.logger.Warn("progress updates dropped due to backpressure", zap.Int64("dropped", c.dropped.Load()))
		}
	}
}

// Updates exposes the receive side. It is closed by Close.
func (c *Channel) Updates() <-chan Update {
	return c.ch
}

// Dropped returns how many updates were discarded.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops delivery and closes the channel. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
