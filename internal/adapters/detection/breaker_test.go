package detection

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerMatcher_OpensOnToolFailures(t *testing.T) {
	inner := &stubMatcher{match: func(string) (bool, error) {
		return false, &exec.Error{Name: "yara", Err: exec.ErrNotFound}
	}}

	var mu sync.Mutex
	var transitions []string
	b := NewBreakerMatcher(inner, BreakerConfig{
		Failures: 3,
		Cooldown: time.Hour,
		OnStateChange: func(from, to string) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from+"->"+to)
		},
	})

	for i := 0; i < 3; i++ {
		_, _, err := b.Match(context.Background(), "r", "f")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrBreakerOpen))
	}
	assert.Equal(t, "open", b.State())

	_, _, err := b.Match(context.Background(), "r", "f")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int64(3), inner.calls.Load(), "open breaker must not call the tool")

	mu.Lock()
	assert.Equal(t, []string{"closed->open"}, transitions)
	mu.Unlock()
}

func TestBreakerMatcher_NoMatchAndFileErrorsDoNotTrip(t *testing.T) {
	n := 0
	inner := &stubMatcher{match: func(string) (bool, error) {
		n++
		if n%2 == 0 {
			return false, errors.New("exit status 1: can not open file")
		}
		return false, nil
	}}
	b := NewBreakerMatcher(inner, BreakerConfig{Failures: 2, Cooldown: time.Hour})

	for i := 0; i < 10; i++ {
		_, _, _ = b.Match(context.Background(), "r", "f")
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, int64(10), inner.calls.Load())
}

func TestBreakerMatcher_PassesMatches(t *testing.T) {
	inner := &stubMatcher{match: func(string) (bool, error) { return true, nil }}
	b := NewBreakerMatcher(inner, BreakerConfig{})

	matched, out, err := b.Match(context.Background(), "r", "/x")
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, "ransom_note /x", out)
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, StateValue("closed"))
	assert.Equal(t, 1.0, StateValue("half-open"))
	assert.Equal(t, 2.0, StateValue("open"))
	assert.Equal(t, -1.0, StateValue("bogus"))
}
