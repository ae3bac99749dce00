package backoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Errors
var (
	ErrRunning = errors.New("scheduler already running")
)

// Policy describes one retrying-poll backoff progression.
type Policy struct {
	InitialDelay time.Duration // Gap before the second invocation (first is immediate)
	MaxDelay     time.Duration // Delay clamp
	Multiplier   float64       // Geometric growth factor, must be > 1
	MaxAttempts  int           // 0 = unbounded
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.InitialDelay <= 0 {
		return errors.New("initial delay must be > 0")
	}
	if p.MaxDelay < p.InitialDelay {
		return errors.New("max delay must be >= initial delay")
	}
	if p.Multiplier <= 1 {
		return fmt.Errorf("multiplier must be > 1, got %v", p.Multiplier)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", p.MaxAttempts)
	}
	return nil
}

// advance returns the delay that follows cur. Failed invocations back off
// with a doubled effective multiplier.
func (p Policy) advance(cur time.Duration, failed bool) time.Duration {
	mult := p.Multiplier
	if failed {
		mult *= 2
	}
	next := time.Duration(float64(cur) * mult)
	if next > p.MaxDelay || next < 0 {
		next = p.MaxDelay
	}
	return next
}

// Option configures one scheduling session.
type Option[T any] func(*sessionOptions[T])

type sessionOptions[T any] struct {
	stop     func(T) bool
	onResult func(T)
	onError  func(error)
}

// WithStopPredicate halts the session permanently when pred returns true
// for a successful result.
func WithStopPredicate[T any](pred func(T) bool) Option[T] {
	return func(o *sessionOptions[T]) { o.stop = pred }
}

// WithOnResult delivers each successful result.
func WithOnResult[T any](fn func(T)) Option[T] {
	return func(o *sessionOptions[T]) { o.onResult = fn }
}

// WithOnError delivers each failed invocation's error. Failures do not
// halt the session; they only steepen the backoff.
func WithOnError[T any](fn func(error)) Option[T] {
	return func(o *sessionOptions[T]) { o.onError = fn }
}

// Scheduler repeatedly invokes an operation with geometrically increasing
// gaps between invocations. One session at a time; Start while running
// returns ErrRunning.
type Scheduler[T any] struct {
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	sess     *session
	delay    time.Duration
	attempts int
}

// session is the ephemeral state of one Start..halt run. The pointer
// identity doubles as a liveness token: results from a session that is
// no longer current are discarded.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler with the given policy.
func New[T any](p Policy, logger *slog.Logger) (*Scheduler[T], error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("backoff policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler[T]{
		policy: p,
		logger: logger,
		delay:  p.InitialDelay,
	}, nil
}

// Start begins a session. The first invocation runs immediately; the gap
// before each following invocation is the current delay, which then
// advances per the policy. Returns ErrRunning if a session is active.
func (s *Scheduler[T]) Start(ctx context.Context, op func(context.Context) (T, error), opts ...Option[T]) error {
	var o sessionOptions[T]
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.sess != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	sctx, cancel := context.WithCancel(ctx)
	sess := &session{ctx: sctx, cancel: cancel}
	s.sess = sess
	s.delay = s.policy.InitialDelay
	s.attempts = 0
	s.mu.Unlock()

	go s.run(sess, op, o)
	return nil
}

// Stop cancels any pending invocation. Idempotent, safe when not running.
// No invocation begins after Stop returns; an in-flight operation may
// complete but its result is discarded.
func (s *Scheduler[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler[T]) stopLocked() {
	if s.sess != nil {
		s.sess.cancel()
		s.sess = nil
	}
}

// Reset stops the session and restores the delay and attempt count to
// their initial values. Does not restart.
func (s *Scheduler[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.delay = s.policy.InitialDelay
	s.attempts = 0
}

// Delay returns the current delay.
func (s *Scheduler[T]) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// Attempts returns the number of invocations issued so far.
func (s *Scheduler[T]) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Running reports whether a session is active.
func (s *Scheduler[T]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

// run is the session goroutine.
func (s *Scheduler[T]) run(sess *session, op func(context.Context) (T, error), o sessionOptions[T]) {
	defer sess.cancel()

	for {
		s.mu.Lock()
		if s.sess != sess {
			s.mu.Unlock()
			return
		}
		// Stop cancels under this same lock, so a session cancelled by
		// the time we hold it never begins another invocation.
		if sess.ctx.Err() != nil {
			s.sess = nil
			s.mu.Unlock()
			return
		}
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		result, err := op(sess.ctx)

		// A session cancelled mid-flight discards the result entirely:
		// no callbacks, no predicate, no delay advancement.
		s.mu.Lock()
		if s.sess != sess {
			s.mu.Unlock()
			return
		}
		if sess.ctx.Err() != nil {
			s.sess = nil
			s.mu.Unlock()
			return
		}
		gap := s.delay
		s.delay = s.policy.advance(s.delay, err != nil)
		s.mu.Unlock()

		if err != nil {
			if o.onError != nil {
				o.onError(err)
			}
			s.logger.Debug("poll attempt failed",
				"attempt", attempt,
				"next_delay", gap,
				"err", err,
			)
		} else {
			if o.onResult != nil {
				o.onResult(result)
			}
			if o.stop != nil && o.stop(result) {
				s.halt(sess, "stop predicate met", attempt)
				return
			}
		}

		if s.policy.MaxAttempts > 0 && attempt >= s.policy.MaxAttempts {
			s.halt(sess, "max attempts reached", attempt)
			return
		}

		select {
		case <-sess.ctx.Done():
			s.mu.Lock()
			if s.sess == sess {
				s.sess = nil
			}
			s.mu.Unlock()
			return
		case <-time.After(gap):
		}
	}
}

// halt marks the session terminal.
func (s *Scheduler[T]) halt(sess *session, reason string, attempts int) {
	s.mu.Lock()
	if s.sess == sess {
		s.sess = nil
	}
	s.mu.Unlock()

	s.logger.Debug("scheduler halted",
		"reason", reason,
		"attempts", attempts,
	)
}
