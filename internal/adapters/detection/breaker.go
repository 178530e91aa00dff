package detection

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/xoelrdgz/ransomradar/internal/ports"
)

// ErrBreakerOpen is returned while the scanner is considered unavailable.
var ErrBreakerOpen = errors.New("signature scanner unavailable: circuit open")

const (
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

type BreakerConfig struct {
	Failures      uint32        // Consecutive tool failures before opening
	Cooldown      time.Duration // Time spent open before a trial scan
	OnStateChange func(from, to string)
}

type matchResult struct {
	matched bool
	output  string
	err     error // Per-file error that must not trip the breaker
}

// BreakerMatcher stops calling a scanner that keeps failing to run, such as
// a missing yara binary. A clean result or a per-file error counts as a
// success; only tool failures count towards opening.
type BreakerMatcher struct {
	inner ports.ContentMatcher
	cb    *gobreaker.CircuitBreaker[matchResult]
}

func NewBreakerMatcher(inner ports.ContentMatcher, config BreakerConfig) *BreakerMatcher {
	if config.Failures == 0 {
		config.Failures = DefaultBreakerFailures
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerCooldown
	}

	cb := gobreaker.NewCircuitBreaker[matchResult](gobreaker.Settings{
		Name:        "signature-scanner",
		MaxRequests: 1,
		Timeout:     config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", StateString(from)).
				Str("to", StateString(to)).
				Msg("Signature scanner circuit state changed")
			if config.OnStateChange != nil {
				config.OnStateChange(StateString(from), StateString(to))
			}
		},
	})

	return &BreakerMatcher{inner: inner, cb: cb}
}

func (b *BreakerMatcher) Match(ctx context.Context, rulePath, filePath string) (bool, string, error) {
	res, err := b.cb.Execute(func() (matchResult, error) {
		matched, output, err := b.inner.Match(ctx, rulePath, filePath)
		if IsToolFailure(err) {
			return matchResult{}, err
		}
		return matchResult{matched: matched, output: output, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, "", ErrBreakerOpen
		}
		return false, "", err
	}
	return res.matched, res.output, res.err
}

func (b *BreakerMatcher) State() string {
	return StateString(b.cb.State())
}

// StateValue maps the breaker state to a gauge value: 0 closed, 1 half-open,
// 2 open.
func StateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

func StateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
