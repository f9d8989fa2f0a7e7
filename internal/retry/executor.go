package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"sync"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Category scopes retry configuration and circuit breaking to one kind of
// backend operation.
type Category string

const (
	CategorySend        Category = "send"
	CategoryReaction    Category = "reaction"
	CategoryEdit        Category = "edit"
	CategoryDelete      Category = "delete"
	CategoryHistoryLoad Category = "history-load"
)

// Config tunes one retry category.
type Config struct {
	MaxAttempts      int           `json:"max_attempts"`
	BaseDelay        time.Duration `json:"base_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	Multiplier       float64       `json:"multiplier"`
	JitterPct        float64       `json:"jitter_pct"`
	BreakerThreshold uint32        `json:"breaker_threshold"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown"`
}

// DefaultConfigs returns the per-category defaults.
func DefaultConfigs() map[Category]Config {
	return map[Category]Config{
		CategorySend: {
			MaxAttempts:      constants.SendMaxAttempts,
			BaseDelay:        constants.SendBaseDelay,
			MaxDelay:         constants.SendMaxDelay,
			Multiplier:       constants.SendBackoffMult,
			JitterPct:        constants.DefaultJitterPct,
			BreakerThreshold: constants.SendBreakerThreshold,
			BreakerCooldown:  constants.SendBreakerCooldown,
		},
		CategoryReaction: {
			MaxAttempts:      constants.ReactionMaxAttempts,
			BaseDelay:        constants.ReactionBaseDelay,
			MaxDelay:         constants.ReactionMaxDelay,
			Multiplier:       constants.ReactionBackoffMult,
			JitterPct:        constants.DefaultJitterPct,
			BreakerThreshold: constants.ReactionBreakerThreshold,
			BreakerCooldown:  constants.ReactionBreakerCooldown,
		},
		CategoryEdit: {
			MaxAttempts:      constants.EditMaxAttempts,
			BaseDelay:        constants.EditBaseDelay,
			MaxDelay:         constants.EditMaxDelay,
			Multiplier:       constants.EditBackoffMult,
			JitterPct:        constants.DefaultJitterPct,
			BreakerThreshold: constants.EditBreakerThreshold,
			BreakerCooldown:  constants.EditBreakerCooldown,
		},
		CategoryDelete: {
			MaxAttempts:      constants.EditMaxAttempts,
			BaseDelay:        constants.EditBaseDelay,
			MaxDelay:         constants.EditMaxDelay,
			Multiplier:       constants.EditBackoffMult,
			JitterPct:        constants.DefaultJitterPct,
			BreakerThreshold: constants.EditBreakerThreshold,
			BreakerCooldown:  constants.EditBreakerCooldown,
		},
		CategoryHistoryLoad: {
			MaxAttempts:      constants.HistoryMaxAttempts,
			BaseDelay:        constants.HistoryBaseDelay,
			MaxDelay:         constants.HistoryMaxDelay,
			Multiplier:       constants.HistoryBackoffMult,
			JitterPct:        constants.DefaultJitterPct,
			BreakerThreshold: constants.HistoryBreakerThreshold,
			BreakerCooldown:  constants.HistoryBreakerCooldown,
		},
	}
}

// Attempt records the outcome of a single try.
type Attempt struct {
	Number    int           `json:"number"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Result is the outcome of an Execute call. CircuitBreakerTriggered means the
// breaker refused the operation without attempting it, which is distinct from
// the operation itself failing. Cancelled means the context ended before the
// operation could succeed or exhaust its attempts; like a breaker refusal it
// is not a verdict on the operation itself.
type Result struct {
	Success                 bool
	Err                     error
	Attempts                []Attempt
	Duration                time.Duration
	CircuitBreakerTriggered bool
	Cancelled               bool
}

// DelayScaler adjusts backoff delays from an external network-quality signal.
// Scaling is applied before jitter, multiplying rather than replacing the
// backoff schedule.
type DelayScaler interface {
	Scale(d time.Duration) time.Duration
}

// Executor runs operations with bounded retries, exponential backoff with
// jitter, and a circuit breaker per category.
type Executor struct {
	mu       sync.Mutex
	configs  map[Category]Config
	breakers map[Category]*CircuitBreaker
	scaler   DelayScaler
	logger   *logrus.Logger
}

// NewExecutor creates an executor with the default per-category configs.
func NewExecutor(logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{
		configs:  DefaultConfigs(),
		breakers: make(map[Category]*CircuitBreaker),
		logger:   logger,
	}
}

// SetConfig overrides the config for one category.
func (e *Executor) SetConfig(category Category, cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[category] = cfg
	delete(e.breakers, category)
}

// SetDelayScaler installs a network-quality delay scaler.
func (e *Executor) SetDelayScaler(scaler DelayScaler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scaler = scaler
}

func (e *Executor) breakerFor(category Category, cfg Config) *CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	cb, ok := e.breakers[category]
	if !ok {
		cb = NewCircuitBreaker(string(category), cfg.BreakerThreshold, cfg.BreakerCooldown, e.logger)
		e.breakers[category] = cb
	}
	return cb
}

func (e *Executor) configFor(category Category) Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg, ok := e.configs[category]; ok {
		return cfg
	}
	return DefaultConfigs()[CategorySend]
}

// Execute runs the operation under the category's retry and circuit-breaking
// discipline. Non-retryable errors terminate immediately; retryable errors are
// retried up to the attempt budget with exponential backoff and jitter. The
// backoff sleep is cancelled by ctx.
func (e *Executor) Execute(ctx context.Context, category Category, op func(ctx context.Context) error) Result {
	cfg := e.configFor(category)
	breaker := e.breakerFor(category, cfg)
	start := time.Now()

	result := Result{}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}

		if !breaker.Allow() {
			result.CircuitBreakerTriggered = true
			result.Err = apperrors.NewCircuitOpenError(string(category))
			result.Duration = time.Since(start)
			metrics.IncrementCounter("retry_circuit_rejections", map[string]string{"category": string(category)}, "Operations refused by an open circuit breaker")
			return result
		}

		attemptStart := time.Now()
		err := op(ctx)
		attemptDuration := time.Since(attemptStart)

		result.Attempts = append(result.Attempts, Attempt{
			Number:    attempt,
			StartedAt: attemptStart,
			Duration:  attemptDuration,
			Err:       err,
		})
		metrics.RecordTimer("retry_attempt_duration", attemptDuration, map[string]string{"category": string(category)}, "Duration of individual operation attempts")

		if err == nil {
			breaker.RecordSuccess()
			result.Success = true
			result.Duration = time.Since(start)
			return result
		}

		result.Err = err

		// Only retryable failures count toward the breaker threshold. A burst
		// of client-side errors must not open the circuit for valid requests.
		if !apperrors.IsRetryable(err) {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"category": category,
				"attempt":  attempt,
			}).Debug("Non-retryable error, giving up")
			result.Duration = time.Since(start)
			return result
		}
		breaker.RecordFailure()

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := e.delayFor(cfg, attempt)
		e.logger.WithFields(logrus.Fields{
			"category": category,
			"attempt":  attempt,
			"delay":    delay,
		}).Warn("Operation failed, retrying with backoff")

		select {
		case <-ctx.Done():
			result.Cancelled = true
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result
		case <-time.After(delay):
		}
	}

	metrics.IncrementCounter("retry_exhausted", map[string]string{"category": string(category)}, "Operations that exhausted their retry budget")
	result.Duration = time.Since(start)
	return result
}

// delayFor computes the backoff delay for the given completed attempt:
// min(base * mult^(attempt-1), max), scaled by network quality, then jittered.
func (e *Executor) delayFor(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	e.mu.Lock()
	scaler := e.scaler
	e.mu.Unlock()
	if scaler != nil {
		delay = float64(scaler.Scale(time.Duration(delay)))
	}

	if cfg.JitterPct > 0 {
		jitter := delay * cfg.JitterPct
		delay += (secureFloat64() - 0.5) * 2 * jitter
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// NextDelay returns the unjittered, unscaled delay for an attempt
// (for testing and monitoring).
func (e *Executor) NextDelay(category Category, attempt int) time.Duration {
	cfg := e.configFor(category)
	cfg.JitterPct = 0

	delay := float64(cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// BreakerState returns the state of a category's breaker.
func (e *Executor) BreakerState(category Category) CircuitBreakerState {
	return e.breakerFor(category, e.configFor(category)).State()
}

// BreakerStats returns diagnostic snapshots of all active breakers.
func (e *Executor) BreakerStats() []map[string]interface{} {
	e.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(e.breakers))
	for _, cb := range e.breakers {
		breakers = append(breakers, cb)
	}
	e.mu.Unlock()

	stats := make([]map[string]interface{}, 0, len(breakers))
	for _, cb := range breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}

// secureFloat64 generates a cryptographically secure float64 between 0 and 1
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to time-based value if crypto/rand fails
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}
	return float64(n.Uint64()) / float64(math.MaxUint64)
}
