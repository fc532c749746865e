// Package circuitbreaker guards outbound calls to market data sources.
// A source that keeps failing is cut off for a cooldown period so sweeps
// degrade to skipped tokens instead of hammering a dead upstream.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/token-pulse/internal/logging"
)

// State is the breaker state
type State string

const (
	// StateClosed allows all calls through
	StateClosed State = "closed"
	// StateOpen rejects calls until the cooldown elapses
	StateOpen State = "open"
	// StateHalfOpen admits a few probe calls to test recovery
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned while the breaker is rejecting calls
var ErrOpen = errors.New("circuit breaker is open")

// ErrProbeLimit is returned when the half-open probe budget is spent
var ErrProbeLimit = errors.New("circuit breaker half-open probe limit reached")

// Config configures a breaker
type Config struct {
	Name string
	// MaxFailures is both the minimum sample size and the consecutive
	// failure count that trips the breaker
	MaxFailures int
	// FailureThreshold is the failure rate (0.0-1.0) that trips the breaker
	FailureThreshold float64
	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration
	// ProbeCalls is how many half-open calls must succeed to close again
	ProbeCalls int
}

// DefaultConfig returns breaker settings suited to public market APIs
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      10,
		FailureThreshold: 0.5,
		Cooldown:         30 * time.Second,
		ProbeCalls:       3,
	}
}

// Breaker implements the circuit breaker pattern around one upstream
type Breaker struct {
	name             string
	maxFailures      int
	failureThreshold float64
	cooldown         time.Duration
	probeCalls       int

	mu               sync.RWMutex
	state            State
	failures         int
	successes        int
	totalCalls       int
	consecutiveFails int
	lastStateChange  time.Time
}

// New creates a breaker from config
func New(cfg *Config) *Breaker {
	return &Breaker{
		name:             cfg.Name,
		maxFailures:      cfg.MaxFailures,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		probeCalls:       cfg.ProbeCalls,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Execute runs fn under breaker protection. The fn error is returned
// unchanged so callers keep their own error categories.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.beforeCall(ctx); err != nil {
		return err
	}

	err := fn()
	b.afterCall(ctx, err)
	return err
}

func (b *Breaker) beforeCall(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastStateChange) > b.cooldown {
			b.setState(StateHalfOpen)
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"breaker": b.name,
				"state":   StateHalfOpen,
			}).Info("circuit breaker probing upstream")
			return nil
		}
		return ErrOpen

	case StateHalfOpen:
		if b.totalCalls >= b.probeCalls {
			return ErrProbeLimit
		}
		return nil

	default:
		return nil
	}
}

func (b *Breaker) afterCall(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	if err != nil {
		b.onFailure(ctx)
	} else {
		b.onSuccess(ctx)
	}
}

func (b *Breaker) onSuccess(ctx context.Context) {
	b.successes++
	b.consecutiveFails = 0

	if b.state == StateHalfOpen && b.successes >= b.probeCalls {
		b.setState(StateClosed)
		b.resetCounters()
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"breaker": b.name,
			"state":   StateClosed,
		}).Info("circuit breaker closed after recovery")
	}
}

func (b *Breaker) onFailure(ctx context.Context) {
	b.failures++
	b.consecutiveFails++

	switch b.state {
	case StateClosed:
		if b.shouldTrip() {
			b.setState(StateOpen)
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"breaker":           b.name,
				"state":             StateOpen,
				"failures":          b.failures,
				"total_calls":       b.totalCalls,
				"consecutive_fails": b.consecutiveFails,
			}).Warn("circuit breaker opened")
		}
	case StateHalfOpen:
		// One failed probe reopens the breaker
		b.setState(StateOpen)
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"breaker": b.name,
			"state":   StateOpen,
		}).Warn("circuit breaker reopened after failed probe")
	}
}

func (b *Breaker) shouldTrip() bool {
	if b.consecutiveFails >= b.maxFailures {
		return true
	}
	if b.totalCalls < b.maxFailures {
		return false
	}
	return b.failureRate() >= b.failureThreshold
}

func (b *Breaker) failureRate() float64 {
	if b.totalCalls == 0 {
		return 0
	}
	return float64(b.failures) / float64(b.totalCalls)
}

func (b *Breaker) setState(state State) {
	b.state = state
	b.lastStateChange = time.Now()
	if state == StateHalfOpen {
		// Probe accounting starts fresh
		b.successes = 0
		b.totalCalls = 0
	}
}

func (b *Breaker) resetCounters() {
	b.failures = 0
	b.successes = 0
	b.totalCalls = 0
	b.consecutiveFails = 0
}

// GetState returns the current state
func (b *Breaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats is a read-only snapshot of breaker counters
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	Failures         int       `json:"failures"`
	Successes        int       `json:"successes"`
	TotalCalls       int       `json:"totalCalls"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	FailureRate      float64   `json:"failureRate"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// GetStats returns current counters
func (b *Breaker) GetStats() *Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &Stats{
		Name:             b.name,
		State:            b.state,
		Failures:         b.failures,
		Successes:        b.successes,
		TotalCalls:       b.totalCalls,
		ConsecutiveFails: b.consecutiveFails,
		FailureRate:      b.failureRate(),
		LastStateChange:  b.lastStateChange,
	}
}
