//go:build yara

package detection

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hillu/go-yara/v4"
)

// LibMatcher scans in-process with libyara. Rules are compiled on first use
// per rule path and cached.
type LibMatcher struct {
	mu    sync.RWMutex
	rules map[string]*yara.Rules
}

func NewLibMatcher() (*LibMatcher, error) {
	return &LibMatcher{rules: make(map[string]*yara.Rules)}, nil
}

func (m *LibMatcher) compiled(rulePath string) (*yara.Rules, error) {
	m.mu.RLock()
	rules, ok := m.rules[rulePath]
	m.mu.RUnlock()
	if ok {
		return rules, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rules, ok := m.rules[rulePath]; ok {
		return rules, nil
	}

	content, err := os.ReadFile(rulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", rulePath, err)
	}
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("failed to create YARA compiler: %w", err)
	}
	defer compiler.Destroy()

	if err := compiler.AddString(string(content), ""); err != nil {
		return nil, fmt.Errorf("failed to compile rule file %s: %w", rulePath, err)
	}
	rules, err = compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}
	m.rules[rulePath] = rules
	return rules, nil
}

func (m *LibMatcher) Match(ctx context.Context, rulePath, filePath string) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	rules, err := m.compiled(rulePath)
	if err != nil {
		return false, "", err
	}

	var matches yara.MatchRules
	if err := rules.ScanFile(filePath, 0, 0, &matches); err != nil {
		return false, "", fmt.Errorf("YARA scan failed for file %s: %w", filePath, err)
	}
	if len(matches) == 0 {
		return false, "", nil
	}

	var out strings.Builder
	for _, match := range matches {
		fmt.Fprintf(&out, "%s %s\n", match.Rule, filePath)
	}
	return true, out.String(), nil
}

func (m *LibMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, rules := range m.rules {
		rules.Destroy()
		delete(m.rules, path)
	}
	return nil
}
