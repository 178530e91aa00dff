package output

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

func openArchive(t *testing.T) (*EventArchive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "events.db")
	a, err := OpenEventArchive(path)
	require.NoError(t, err)
	return a, path
}

func eventAt(channel domain.Channel, msg, session string, ts time.Time) *domain.Event {
	ev := domain.NewEvent(channel, msg)
	ev.SessionID = session
	ev.Timestamp = ts
	return ev
}

func TestEventArchive_ListInTimeOrder(t *testing.T) {
	a, _ := openArchive(t)
	defer a.Close()

	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	ctx := context.Background()
	// Inserted out of order on purpose.
	require.NoError(t, a.Send(ctx, eventAt(domain.ChannelSignature, "third", "s1", base.Add(2*time.Second))))
	require.NoError(t, a.Send(ctx, eventAt(domain.ChannelBehavioral, "first", "s1", base)))
	require.NoError(t, a.Send(ctx, eventAt(domain.ChannelAnomaly, "second", "s2", base.Add(time.Second))))

	all, err := a.List(ArchiveQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, messages(all))
	assert.Equal(t, int64(3), a.Count())
	assert.True(t, all[0].Timestamp.Equal(base))
}

func TestEventArchive_Filters(t *testing.T) {
	a, _ := openArchive(t)
	defer a.Close()

	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	ctx := context.Background()
	for i, ch := range []domain.Channel{domain.ChannelBehavioral, domain.ChannelSignature, domain.ChannelBehavioral, domain.ChannelBehavioral} {
		session := "s1"
		if i >= 2 {
			session = "s2"
		}
		require.NoError(t, a.Send(ctx, eventAt(ch, string(rune('a'+i)), session, base.Add(time.Duration(i)*time.Second))))
	}

	tests := []struct {
		name  string
		query ArchiveQuery
		want  []string
	}{
		{"session", ArchiveQuery{SessionID: "s2"}, []string{"c", "d"}},
		{"channel", ArchiveQuery{Channel: domain.ChannelSignature}, []string{"b"}},
		{"since", ArchiveQuery{Since: base.Add(2 * time.Second)}, []string{"c", "d"}},
		{"limit keeps most recent", ArchiveQuery{Channel: domain.ChannelBehavioral, Limit: 2}, []string{"c", "d"}},
		{"no match", ArchiveQuery{SessionID: "nope"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := a.List(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, messages(got))
		})
	}
}

func TestEventArchive_SurvivesReopen(t *testing.T) {
	a, path := openArchive(t)
	require.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /x")))
	require.NoError(t, a.Close())

	b, err := OpenEventArchive(path)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(1), b.Count())
	got, err := b.List(ArchiveQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ChannelSignature, got[0].Channel)
}

func TestEventArchive_Purge(t *testing.T) {
	a, _ := openArchive(t)
	defer a.Close()

	require.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelBehavioral, "x")))
	require.NoError(t, a.Purge())

	assert.Equal(t, int64(0), a.Count())
	got, err := a.List(ArchiveQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, a.Send(context.Background(), domain.NewEvent(domain.ChannelBehavioral, "y")))
	assert.Equal(t, int64(1), a.Count())
}
