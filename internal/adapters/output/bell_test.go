package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

func TestBellNotifier(t *testing.T) {
	var buf bytes.Buffer
	b := NewBellNotifier(&buf, false)

	b.OnEvent(domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /x"))
	assert.Equal(t, 0, buf.Len(), "disabled bell stays quiet")

	b.SetEnabled(true)
	b.OnEvent(domain.NewEvent(domain.ChannelBehavioral, "File created: /x"))
	b.OnEvent(domain.NewEvent(domain.ChannelAnomaly, "ANOMALY DETECTED!"))
	assert.Equal(t, 0, buf.Len(), "only signature events ring")

	b.OnEvent(domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /y"))
	assert.Equal(t, "\a", buf.String())
	assert.Equal(t, int64(1), b.Rung())
	assert.True(t, b.Enabled())
}
