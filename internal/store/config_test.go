package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/calendar"
	"live-trader/internal/ledger"
)

const minimal = `
universe: [AAPL, MSFT]
models:
  - name: gpt
    signature: gpt-live
    model: gpt-4o-mini
    api_key: ${TEST_TRADER_KEY}
  - name: off
    provider: NOOP
    enabled: false
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_TRADER_KEY", "sk-test")

	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, ModeDryRun, c.Mode)
	assert.Equal(t, ledger.DefaultInitialCash, c.Agent.InitialCash)
	assert.Equal(t, ledger.DefaultFallbackCash, c.Agent.FallbackCash)
	assert.Equal(t, calendar.CadenceHourly, c.Ledger.Cadence)
	assert.Equal(t, 5*time.Minute, c.ScheduleOffset())
	assert.Equal(t, "logs/eod", c.EOD.Dir)
	assert.Equal(t, "KITE_API_KEY", c.Broker.APIKeyEnv)

	require.Len(t, c.Models, 2)
	assert.Equal(t, ProviderOpenAI, c.Models[0].Provider)
	assert.Equal(t, "sk-test", c.Models[0].APIKey)

	enabled := c.EnabledModels()
	require.Len(t, enabled, 1)
	assert.Equal(t, "gpt-live", enabled[0].Identity())
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_TRADER_HOST", "example.com")
	os.Unsetenv("TEST_TRADER_MISSING")

	got := string(ExpandEnv([]byte("url: https://${TEST_TRADER_HOST}/v1 key: '${TEST_TRADER_MISSING}' raw: $HOME")))
	assert.Equal(t, "url: https://example.com/v1 key: '' raw: $HOME", got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"bad mode", func(s string) string { return "mode: PAPER\n" + s }, "invalid mode"},
		{"empty universe", func(s string) string { return strings.Replace(s, "universe: [AAPL, MSFT]", "universe: []", 1) }, "universe"},
		{"bad cadence", func(s string) string { return s + "ledger:\n  cadence: weekly\n" }, "ledger.cadence"},
		{"bad provider", func(s string) string { return strings.Replace(s, "provider: NOOP", "provider: CLAUDE", 1) }, "provider"},
		{"no enabled models", func(s string) string {
			return strings.Replace(s, "    model: gpt-4o-mini", "    model: gpt-4o-mini\n    enabled: false", 1)
		}, "at least one model"},
		{"bad trading hour", func(s string) string { return s + "calendar:\n  trading_hours: [9, 10]\n" }, "calendar"},
		{"bad offset", func(s string) string { return s + "schedule:\n  minute_offset: 75\n" }, "minute_offset"},
		{"duplicate identity", func(s string) string { return strings.Replace(s, "name: off", "name: gpt-live", 1) }, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(minimal)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCalendarConfig(t *testing.T) {
	c, err := Parse([]byte(minimal + "calendar:\n  extra_holidays: ['2025-03-05']\n"))
	require.NoError(t, err)

	r, err := calendar.New(c.CalendarConfig())
	require.NoError(t, err)
	loc := r.Location()
	assert.False(t, r.IsTradingDay(time.Date(2025, 3, 5, 12, 0, 0, 0, loc)))
	assert.False(t, r.IsTradingDay(time.Date(2025, 12, 25, 12, 0, 0, 0, loc)))
	assert.True(t, r.IsTradingDay(time.Date(2025, 3, 6, 12, 0, 0, 0, loc)))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Universe)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
