package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

type stubMatcher struct {
	match func(path string) (bool, error)
	calls atomic.Int64
}

func (m *stubMatcher) Match(_ context.Context, _, filePath string) (bool, string, error) {
	m.calls.Add(1)
	matched, err := m.match(filePath)
	if matched {
		return true, "ransom_note " + filePath, err
	}
	return false, "", err
}

type scanRecorder struct {
	scans atomic.Int64
}

func (r *scanRecorder) ObserveScan(time.Duration, bool, error) { r.scans.Add(1) }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSignatureScanner_AlertsOncePerSession(t *testing.T) {
	dir := t.TempDir()
	note := writeFile(t, dir, "README_DECRYPT.txt", "your files are encrypted")
	clean := writeFile(t, dir, "notes.txt", "groceries")

	sink := &recordingSink{}
	matcher := &stubMatcher{match: func(p string) (bool, error) { return p == note, nil }}
	scanner := NewSignatureScanner(SignatureConfig{RulePath: "rule.yar"}, matcher, nil, sink)

	assert.Equal(t, 1, scanner.Scan(context.Background(), []string{note, clean}))
	assert.Equal(t, 0, scanner.Scan(context.Background(), []string{note, clean}))

	assert.Equal(t, []string{"RANSOMWARE DETECTED in " + note}, sink.on(domain.ChannelSignature))
	assert.True(t, scanner.Matched().Contains(note))
	// The matched file is skipped on the second pass, the clean one is not.
	assert.Equal(t, int64(3), matcher.calls.Load())
}

func TestSignatureScanner_ResetAllowsRealert(t *testing.T) {
	dir := t.TempDir()
	note := writeFile(t, dir, "note.txt", "bitcoin")

	sink := &recordingSink{}
	matcher := &stubMatcher{match: func(string) (bool, error) { return true, nil }}
	scanner := NewSignatureScanner(SignatureConfig{}, matcher, domain.NewMatchedFileSet(), sink)

	scanner.Scan(context.Background(), []string{note})
	scanner.Reset()
	assert.Zero(t, scanner.Matched().Len())
	scanner.Scan(context.Background(), []string{note})

	assert.Len(t, sink.on(domain.ChannelSignature), 2)
}

func TestSignatureScanner_SkipsMissingAndDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	matcher := &stubMatcher{match: func(string) (bool, error) { return true, nil }}
	scanner := NewSignatureScanner(SignatureConfig{}, matcher, nil, &recordingSink{})

	assert.Zero(t, scanner.Scan(context.Background(), []string{sub, filepath.Join(dir, "vanished.txt")}))
	assert.Zero(t, matcher.calls.Load())
}

func TestSignatureScanner_MatcherErrorIsNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "x")

	sink := &recordingSink{}
	matcher := &stubMatcher{match: func(string) (bool, error) { return false, errors.New("scan failed") }}
	scanner := NewSignatureScanner(SignatureConfig{}, matcher, nil, sink)
	rec := &scanRecorder{}
	scanner.AddObserver(rec)

	assert.Zero(t, scanner.Scan(context.Background(), []string{path}))
	assert.Empty(t, sink.on(domain.ChannelSignature))
	assert.Equal(t, int64(1), rec.scans.Load())
}

func TestSignatureScanner_CleanCache(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "hello")

	matcher := &stubMatcher{match: func(string) (bool, error) { return false, nil }}
	cache := NewScanCache(16)
	scanner := NewSignatureScanner(SignatureConfig{Cache: cache}, matcher, nil, &recordingSink{})

	scanner.Scan(context.Background(), []string{path})
	scanner.Scan(context.Background(), []string{path})
	assert.Equal(t, int64(1), matcher.calls.Load())
	assert.Equal(t, 1, cache.Len())

	// A changed file is scanned again.
	require.NoError(t, os.WriteFile(path, []byte("hello, now longer"), 0644))
	scanner.Scan(context.Background(), []string{path})
	assert.Equal(t, int64(2), matcher.calls.Load())

	scanner.Reset()
	assert.Zero(t, cache.Len())
}

func TestNewScanCache_Disabled(t *testing.T) {
	cache := NewScanCache(0)
	assert.Nil(t, cache)
	assert.False(t, cache.IsClean("x", nil))
	cache.Purge()
	assert.Zero(t, cache.Len())
}

func TestSignatureScanner_StopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "x")

	matcher := &stubMatcher{match: func(string) (bool, error) { return true, nil }}
	scanner := NewSignatureScanner(SignatureConfig{}, matcher, nil, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, scanner.Scan(ctx, []string{path}))
	assert.Zero(t, matcher.calls.Load())
}
