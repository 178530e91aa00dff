package output

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

func TestJSONAlerter_WritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	a, err := NewJSONAlerter(JSONAlerterConfig{Writer: &buf})
	require.NoError(t, err)

	ev := domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /data/note.txt").WithPath("/data/note.txt")
	require.NoError(t, a.Send(context.Background(), ev))
	require.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelBehavioral, "File created: /data/x")))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	sc := bufio.NewScanner(&buf)
	var lines []domain.Event
	for sc.Scan() {
		var got domain.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		lines = append(lines, got)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, ev.ID, lines[0].ID)
	assert.Equal(t, domain.ChannelSignature, lines[0].Channel)
	assert.Equal(t, domain.AlertLevelCritical, lines[0].Level)
	assert.Equal(t, "/data/note.txt", lines[0].Path)
}

func TestJSONAlerter_FileCreatedWithParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	a, err := NewJSONAlerter(JSONAlerterConfig{FilePath: path})
	require.NoError(t, err)

	require.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelAnomaly, "ANOMALY DETECTED!")))
	require.NoError(t, a.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"channel":"anomaly"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	require.NoError(t, a.Close())
}

func TestJSONAlerter_DiscardByDefault(t *testing.T) {
	a, err := NewJSONAlerter(JSONAlerterConfig{})
	require.NoError(t, err)
	assert.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelBehavioral, "x")))
	assert.NoError(t, a.Close())
}
