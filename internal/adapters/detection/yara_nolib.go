//go:build !yara

package detection

import (
	"context"
	"errors"
)

// ErrLibUnavailable is returned when the binary was built without the yara
// build tag.
var ErrLibUnavailable = errors.New("in-process yara engine not compiled in (build with -tags yara)")

type LibMatcher struct{}

func NewLibMatcher() (*LibMatcher, error) {
	return nil, ErrLibUnavailable
}

func (m *LibMatcher) Match(context.Context, string, string) (bool, string, error) {
	return false, "", ErrLibUnavailable
}

func (m *LibMatcher) Close() error { return nil }
