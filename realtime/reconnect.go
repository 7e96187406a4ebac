package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateLost         State = "LOST"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type ReconnectOptions struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Scheduler   Scheduler
	// OnStateChange is called outside the reconnector lock.
	OnStateChange func(State)
}

// Backoff returns the delay before retry n (0-based): base doubled n times, capped at max.
func Backoff(n int, base, max time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 32 {
		return max
	}
	d := base << uint(n)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Reconnector owns the connect/retry bookkeeping of one dashboard connection.
type Reconnector struct {
	mu       sync.Mutex
	state    State
	attempts int
	gen      int
	timer    Timer

	dial        func(ctx context.Context) error
	onConnected func(ctx context.Context) error
	opts        ReconnectOptions
	log         *zap.Logger
}

// NewReconnector wires dial, which opens the connection, and onConnected,
// which runs after every successful (re)connect and must refresh dashboard state.
func NewReconnector(dial, onConnected func(ctx context.Context) error, opts ReconnectOptions, log *zap.Logger) *Reconnector {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	return &Reconnector{
		state:       StateDisconnected,
		dial:        dial,
		onConnected: onConnected,
		opts:        opts,
		log:         log,
	}
}

func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts is the number of retries scheduled since the last successful connect.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Start dials immediately. It is a no-op unless the reconnector is DISCONNECTED or LOST.
func (r *Reconnector) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateDisconnected && r.state != StateLost {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.attempts = 0
	gen := r.gen
	r.state = StateConnecting
	r.mu.Unlock()

	r.emit(StateConnecting)
	r.attempt(ctx, gen)
}

// Dropped reports that an established connection ended. A close initiated by
// the server is final; anything else schedules a reconnect.
func (r *Reconnector) Dropped(ctx context.Context, serverInitiated bool) {
	r.mu.Lock()
	if r.state != StateConnected {
		r.mu.Unlock()
		return
	}
	if serverInitiated {
		r.state = StateDisconnected
		r.mu.Unlock()
		r.log.Info("server closed the connection")
		r.emit(StateDisconnected)
		return
	}
	r.attempts = 0
	r.state = StateConnecting
	next := r.scheduleLocked(ctx)
	r.mu.Unlock()

	r.emit(StateConnecting)
	if next != "" {
		r.emit(next)
	}
}

// Stop cancels any pending retry and leaves the reconnector DISCONNECTED.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	changed := r.state != StateDisconnected
	r.state = StateDisconnected
	r.mu.Unlock()

	if changed {
		r.emit(StateDisconnected)
	}
}

func (r *Reconnector) attempt(ctx context.Context, gen int) {
	err := r.dial(ctx)

	r.mu.Lock()
	if gen != r.gen || r.state != StateConnecting {
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.log.Warn("dashboard connect failed", zap.Int("attempt", r.attempts), zap.Error(err))
		next := r.scheduleLocked(ctx)
		r.mu.Unlock()
		if next != "" {
			r.emit(next)
		}
		return
	}
	r.attempts = 0
	r.state = StateConnected
	r.mu.Unlock()

	r.emit(StateConnected)
	if r.onConnected != nil {
		if err := r.onConnected(ctx); err != nil {
			r.log.Warn("refresh after connect failed", zap.Error(err))
		}
	}
}

// scheduleLocked arms the next retry, or gives up once MaxAttempts retries
// have been used. It returns the new state when it changed.
func (r *Reconnector) scheduleLocked(ctx context.Context) State {
	if r.attempts >= r.opts.MaxAttempts {
		r.state = StateLost
		r.log.Error("dashboard connection lost", zap.Int("attempts", r.attempts))
		return StateLost
	}
	delay := Backoff(r.attempts, r.opts.BaseDelay, r.opts.MaxDelay)
	r.attempts++
	gen := r.gen
	r.timer = r.opts.Scheduler.AfterFunc(delay, func() { r.attempt(ctx, gen) })
	r.log.Debug("reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", r.attempts))
	return ""
}

func (r *Reconnector) emit(s State) {
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(s)
	}
}
