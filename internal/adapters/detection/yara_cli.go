package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const DefaultYaraBinary = "yara"

// CLIMatcher runs the yara command line tool once per file. Any output on
// stdout is a match.
type CLIMatcher struct {
	Binary  string
	Timeout time.Duration // Per-file limit; zero means none
}

func NewCLIMatcher(binary string, timeout time.Duration) *CLIMatcher {
	if binary == "" {
		binary = DefaultYaraBinary
	}
	return &CLIMatcher{Binary: binary, Timeout: timeout}
}

func (m *CLIMatcher) Match(ctx context.Context, rulePath, filePath string) (bool, string, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Binary, rulePath, filePath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if out := stdout.String(); out != "" {
		return true, out, nil
	}
	if runErr != nil && ctx.Err() != nil {
		return false, "", fmt.Errorf("%s %s: %w", m.Binary, filePath, ctx.Err())
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return false, "", fmt.Errorf("%s %s: %w: %s", m.Binary, filePath, runErr, msg)
		}
		return false, "", fmt.Errorf("%s %s: %w", m.Binary, filePath, runErr)
	}
	return false, "", nil
}

// IsToolFailure reports whether err means the scanner itself could not run,
// as opposed to a per-file problem such as an unreadable file.
func IsToolFailure(err error) bool {
	if err == nil {
		return false
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func statRegular(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	return info, nil
}
