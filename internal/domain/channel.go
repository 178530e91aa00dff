package domain

import (
	"fmt"
	"strings"
)

// Channel is one of the three independent detection channels.
type Channel string

const (
	ChannelBehavioral Channel = "behavioral"
	ChannelAnomaly    Channel = "anomaly"
	ChannelSignature  Channel = "signature"
)

// Channels lists every channel in display order.
func Channels() []Channel {
	return []Channel{ChannelBehavioral, ChannelAnomaly, ChannelSignature}
}

// ParseChannel accepts a channel name in any case.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelBehavioral, ChannelAnomaly, ChannelSignature:
		return c, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Level maps a channel to the severity its events are reported with.
func (c Channel) Level() AlertLevel {
	switch c {
	case ChannelSignature:
		return AlertLevelCritical
	case ChannelAnomaly:
		return AlertLevelWarning
	default:
		return AlertLevelInfo
	}
}

// Title is the heading used for exported logs, e.g. "Behavioral".
func (c Channel) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

func (c Channel) String() string { return string(c) }
