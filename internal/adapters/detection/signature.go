package detection

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
)

type SignatureConfig struct {
	RulePath string
	Cache    *ScanCache // Optional clean-file cache
}

// SignatureScanner hands discovered files to a content matcher and reports
// each matching path once per session.
//
// Scan is called only from the monitor loop goroutine.
type SignatureScanner struct {
	rulePath  string
	matcher   ports.ContentMatcher
	matched   *domain.MatchedFileSet
	cache     *ScanCache
	sink      ports.EventSink
	observers []ports.ScanObserver
}

func NewSignatureScanner(config SignatureConfig, matcher ports.ContentMatcher, matched *domain.MatchedFileSet, sink ports.EventSink) *SignatureScanner {
	if matched == nil {
		matched = domain.NewMatchedFileSet()
	}
	return &SignatureScanner{
		rulePath: config.RulePath,
		matcher:  matcher,
		matched:  matched,
		cache:    config.Cache,
		sink:     sink,
	}
}

// AddObserver registers o for every file handed to the matcher. Call it
// before the loop starts.
func (s *SignatureScanner) AddObserver(o ports.ScanObserver) {
	s.observers = append(s.observers, o)
}

// Scan checks every path not already matched this session and returns the
// number of new matches.
func (s *SignatureScanner) Scan(ctx context.Context, paths []string) int {
	found := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if s.scanOne(ctx, path) {
			found++
		}
	}
	return found
}

func (s *SignatureScanner) scanOne(ctx context.Context, path string) bool {
	if s.matched.Contains(path) {
		return false
	}
	info, err := statRegular(path)
	if err != nil {
		return false
	}
	if s.cache.IsClean(path, info) {
		return false
	}

	start := time.Now()
	matched, _, err := s.matcher.Match(ctx, s.rulePath, path)
	elapsed := time.Since(start)
	for _, o := range s.observers {
		o.ObserveScan(elapsed, matched, err)
	}
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Signature scan error")
		return false
	}
	if !matched {
		s.cache.MarkClean(path, info)
		return false
	}

	if !s.matched.Add(path) {
		return false
	}
	log.Debug().Str("path", path).Msg("Unique signature match")
	s.sink.Emit(domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in "+path).WithPath(path))
	return true
}

// Reset clears per-session state: the matched set and the clean cache.
func (s *SignatureScanner) Reset() {
	s.matched.Clear()
	s.cache.Purge()
}

func (s *SignatureScanner) Matched() *domain.MatchedFileSet {
	return s.matched
}
