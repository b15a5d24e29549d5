// internal/errors/service.go - retry, circuit breaking and CLI error reporting
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// ErrCircuitOpen is returned when an operation's circuit breaker refuses to run it.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// Service wraps whole operations (spider runs) with retries and per-operation
// circuit breakers, and turns errors into CLI messages and exit codes.
type Service struct {
	retryConfig     RetryConfig
	breakerConfig   CircuitBreakerConfig
	messageHandler  *MessageHandler
	circuitBreakers map[string]*CircuitBreaker
	mu              sync.RWMutex
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and lets one
// trial through once resetTimeout has passed.
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	state           CircuitBreakerState
	failures        int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	now             func() time.Time
	mu              sync.Mutex
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// BreakerStats is a snapshot of one circuit breaker.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	MaxFailures     int       `json:"max_failures"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitempty"`
}

// NewService creates a new error service
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    2,
			BaseDelay:     30 * time.Second,
			BackoffFactor: 2.0,
			MaxDelay:      5 * time.Minute,
		},
		breakerConfig: CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: time.Hour,
		},
		messageHandler:  &MessageHandler{showTechnical: false},
		circuitBreakers: make(map[string]*CircuitBreaker),
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry settings
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// WithCircuitBreakerConfig sets the settings used for breakers created from now on
func (s *Service) WithCircuitBreakerConfig(cfg CircuitBreakerConfig) *Service {
	s.breakerConfig = cfg
	return s
}

// ExecuteWithRetry runs operation behind the circuit breaker named
// operationName, retrying transient failures with exponential backoff. The
// breaker records one outcome per call, not per attempt.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	cb := s.getOrCreateCircuitBreaker(operationName)
	if !cb.CanExecute() {
		return fmt.Errorf("%s: %w", operationName, ErrCircuitOpen)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			cb.RecordSuccess()
			return nil
		}
		lastErr = err

		if !s.shouldRetry(ctx, err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			cb.RecordFailure()
			return ctx.Err()
		case <-time.After(s.calculateDelay(attempt)):
		}
	}

	cb.RecordFailure()
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

func (s *Service) getOrCreateCircuitBreaker(operationName string) *CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.circuitBreakers[operationName]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.circuitBreakers[operationName]; ok {
		return cb
	}
	cb = NewCircuitBreaker(operationName, s.breakerConfig)
	s.circuitBreakers[operationName] = cb
	return cb
}

// shouldRetry determines if error is retryable
func (s *Service) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries || ctx.Err() != nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if scraper.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range []string{"timeout", "connection refused", "connection reset", "temporary", "service unavailable"} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.retryConfig.BaseDelay) * math.Pow(s.retryConfig.BackoffFactor, float64(attempt)))
	if delay > s.retryConfig.MaxDelay {
		delay = s.retryConfig.MaxDelay
	}
	return delay
}

// Category groups errors for messages and exit codes.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryConfig
	CategoryNetwork
	CategoryParse
	CategoryOutput
	CategoryValidation
	CategoryRateLimit
	CategoryAuth
	CategoryCircuitOpen
)

// Classify finds the category of err, preferring typed errors and falling back
// to message patterns.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneral
	}

	var configErrs config.ValidationErrors
	if stderrors.As(err, &configErrs) {
		return CategoryConfig
	}
	var storeErrs store.ValidationErrors
	if stderrors.As(err, &storeErrs) {
		return CategoryValidation
	}
	if stderrors.Is(err, ErrCircuitOpen) {
		return CategoryCircuitOpen
	}
	var httpErr *scraper.HTTPError
	if stderrors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests:
			return CategoryRateLimit
		case http.StatusUnauthorized, http.StatusForbidden:
			return CategoryAuth
		default:
			return CategoryNetwork
		}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return CategoryNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return CategoryConfig
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "429"):
		return CategoryRateLimit
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "no such host") || strings.Contains(errStr, "network"):
		return CategoryNetwork
	case strings.Contains(errStr, "parse") || strings.Contains(errStr, "page data") ||
		strings.Contains(errStr, "json") || strings.Contains(errStr, "selector"):
		return CategoryParse
	case strings.Contains(errStr, "output") || strings.Contains(errStr, "write") ||
		strings.Contains(errStr, "upsert") || strings.Contains(errStr, "database"):
		return CategoryOutput
	case strings.Contains(errStr, "validation"):
		return CategoryValidation
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "forbidden"):
		return CategoryAuth
	default:
		return CategoryGeneral
	}
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch Classify(err) {
	case CategoryConfig:
		return "Configuration Error",
			"The configuration file is invalid.",
			[]string{
				"Run 'storescrapexter validate <config>' to list every problem",
				"Check YAML indentation (use spaces, not tabs)",
				"Make sure ${VAR} references are set in the environment or .env",
			}
	case CategoryNetwork:
		return "Network Error",
			"The store locator could not be reached.",
			[]string{
				"Check your internet connection",
				"Increase http.timeout in the configuration",
				"The site might be down or blocking automated clients",
			}
	case CategoryParse:
		return "Page Format Changed",
			"The store locator returned data in an unexpected shape.",
			[]string{
				"Open the locator page in a browser and compare with the spider",
				"Enable browser rendering for the spider if the data is built client-side",
			}
	case CategoryOutput:
		return "Output Error",
			"The stores could not be written.",
			[]string{
				"Check that the output directory is writable",
				"Check the database DSN and that the server is reachable",
			}
	case CategoryValidation:
		return "Invalid Store Data",
			"Scraped stores are missing required fields.",
			[]string{
				"Run 'storescrapexter report' on the output to see which fields are missing",
			}
	case CategoryRateLimit:
		return "Rate Limit Exceeded",
			"The site is refusing requests because they arrive too quickly.",
			[]string{
				"Lower http.rate_limit for this spider",
				"Schedule the spider less often",
			}
	case CategoryAuth:
		return "Access Denied",
			"The site rejected the request.",
			[]string{
				"The site may be blocking this client; try browser rendering",
				"Rotate user agents in http.user_agents",
			}
	case CategoryCircuitOpen:
		return "Spider Paused",
			"The spider failed repeatedly and is paused until its circuit breaker resets.",
			[]string{
				"Check the logs of the previous failed runs",
				"Wait for the reset timeout or restart the service",
			}
	default:
		return "Unexpected Error",
			"An unexpected error occurred during the operation.",
			[]string{
				"Try running the command again",
				"Run with --verbose for technical details",
			}
	}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Classify(err) {
	case CategoryConfig:
		return 2
	case CategoryNetwork:
		return 3
	case CategoryParse:
		return 4
	case CategoryOutput:
		return 5
	case CategoryValidation:
		return 6
	case CategoryRateLimit:
		return 7
	case CategoryAuth:
		return 8
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	if err == nil {
		return ""
	}
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "❌ %s\n%s\n", title, message)
	if s.messageHandler.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}
	if len(suggestions) > 0 {
		b.WriteString("\n💡 Suggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  • %s\n", suggestion)
		}
	}
	return b.String()
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		now:          time.Now,
	}
}

// CanExecute checks if circuit breaker allows execution
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.now().After(cb.nextAttemptTime) {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records successful execution
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records failed execution. A failed half-open trial reopens
// the breaker immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
		cb.nextAttemptTime = cb.lastFailureTime.Add(cb.resetTimeout)
	}
}

// GetState returns current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		MaxFailures:     cb.maxFailures,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttemptTime,
	}
}

// GetCircuitBreakerStats returns statistics for all circuit breakers
func (s *Service) GetCircuitBreakerStats() map[string]BreakerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]BreakerStats, len(s.circuitBreakers))
	for name, cb := range s.circuitBreakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// ResetCircuitBreaker manually resets a circuit breaker
func (s *Service) ResetCircuitBreaker(operationName string) error {
	s.mu.RLock()
	cb, exists := s.circuitBreakers[operationName]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("circuit breaker not found for operation: %s", operationName)
	}
	cb.RecordSuccess()
	return nil
}
