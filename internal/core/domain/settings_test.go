package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchMode_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		mode     MatchMode
		expected bool
	}{
		{name: "word is valid", mode: MatchModeWord, expected: true},
		{name: "substring is valid", mode: MatchModeSubstring, expected: true},
		{name: "fuzzy is valid", mode: MatchModeFuzzy, expected: true},
		{name: "empty string is invalid", mode: MatchMode(""), expected: false},
		{name: "unknown mode is invalid", mode: MatchMode("regex"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.IsValid())
		})
	}
}

func TestMatchMode_Description(t *testing.T) {
	assert.Contains(t, MatchModeWord.Description(), "Word")
	assert.Equal(t, unknownDescription, MatchMode("x").Description())
	assert.Equal(t, "fuzzy", MatchModeFuzzy.String())
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, time.Hour, s.Cache.TTL)
	assert.False(t, s.Cache.CachePartial)
	assert.Equal(t, 3, s.Fetch.MaxChannels)
	assert.Equal(t, 500*time.Millisecond, s.Fetch.BackoffBase)
	assert.Equal(t, MatchModeWord, s.MatchMode)
	assert.Equal(t, DefaultMaxKeywords, s.Limits.MaxKeywords)
	assert.Equal(t, 24*time.Hour, s.Watch.Lookback)
	assert.False(t, s.Session.IsConfigured())
}

func TestSessionSettings_IsConfigured(t *testing.T) {
	assert.True(t, SessionSettings{Endpoint: "http://gw", Token: "t"}.IsConfigured())
	assert.False(t, SessionSettings{Endpoint: "http://gw"}.IsConfigured())
}

func TestWatch_Due(t *testing.T) {
	now := time.Now()
	w := &Watch{Enabled: true, NextRun: now}
	assert.True(t, w.Due(now))
	assert.False(t, w.Due(now.Add(-time.Second)))

	w.Enabled = false
	assert.False(t, w.Due(now))
}
