package store

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"live-trader/internal/calendar"
	"live-trader/internal/ledger"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	ProviderOpenAI = "OPENAI"
	ProviderNoop   = "NOOP"
)

type Model struct {
	Name        string  `yaml:"name"`
	Signature   string  `yaml:"signature"`
	Enabled     *bool   `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	System      string  `yaml:"system"`
}

// Identity is the ledger identity of the model: its signature, else its name.
func (m Model) Identity() string {
	if m.Signature != "" {
		return m.Signature
	}
	return m.Name
}

// IsEnabled treats a missing flag as enabled.
func (m Model) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

type Config struct {
	Mode     string   `yaml:"mode"`
	Universe []string `yaml:"universe"`
	Models   []Model  `yaml:"models"`

	Agent struct {
		InitialCash    float64 `yaml:"initial_cash"`
		FallbackCash   float64 `yaml:"fallback_cash"`
		MaxRetries     int     `yaml:"max_retries"`
		MaxPositionPct float64 `yaml:"max_position_pct"`
	} `yaml:"agent"`
	Ledger struct {
		Root    string `yaml:"root"`
		Cadence string `yaml:"cadence"`
	} `yaml:"ledger"`
	Calendar struct {
		Timezone      string   `yaml:"timezone"`
		MarketOpen    string   `yaml:"market_open"`
		MarketClose   string   `yaml:"market_close"`
		TradingHours  []int    `yaml:"trading_hours"`
		Holidays      []string `yaml:"holidays"`
		ExtraHolidays []string `yaml:"extra_holidays"`
		SearchDays    int      `yaml:"search_days"`
	} `yaml:"calendar"`
	Schedule struct {
		MinuteOffset int  `yaml:"minute_offset"`
		RunOnStart   bool `yaml:"run_on_start"`
		Parallelism  int  `yaml:"parallelism"`
	} `yaml:"schedule"`
	Prices struct {
		MergedPath string `yaml:"merged_path"`
	} `yaml:"prices"`
	Broker struct {
		Exchange       string `yaml:"exchange"`
		Product        string `yaml:"product"`
		APIKeyEnv      string `yaml:"api_key_env"`
		AccessTokenEnv string `yaml:"access_token_env"`
	} `yaml:"broker"`
	Log struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"log"`
	EOD struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"eod"`
	Journal struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"journal"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if c.Mode != ModeDryRun && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Identity() == "" {
			return fmt.Errorf("models[%d]: name or signature is required", i)
		}
		if seen[m.Identity()] {
			return fmt.Errorf("models[%d]: duplicate identity '%s'", i, m.Identity())
		}
		seen[m.Identity()] = true
		if m.Provider != ProviderOpenAI && m.Provider != ProviderNoop {
			return fmt.Errorf("models[%d]: provider must be 'OPENAI' or 'NOOP', got '%s'", i, m.Provider)
		}
	}
	if len(c.EnabledModels()) == 0 {
		return errors.New("at least one model must be enabled")
	}
	if c.Agent.InitialCash <= 0 {
		return fmt.Errorf("agent.initial_cash must be positive, got %.2f", c.Agent.InitialCash)
	}
	if c.Agent.MaxPositionPct < 0 || c.Agent.MaxPositionPct > 100 {
		return fmt.Errorf("agent.max_position_pct must be between 0-100, got %.2f", c.Agent.MaxPositionPct)
	}
	if c.Ledger.Cadence != calendar.CadenceDaily && c.Ledger.Cadence != calendar.CadenceHourly {
		return fmt.Errorf("ledger.cadence must be 'daily' or 'hourly', got '%s'", c.Ledger.Cadence)
	}
	if c.Schedule.MinuteOffset < 0 || c.Schedule.MinuteOffset > 59 {
		return fmt.Errorf("schedule.minute_offset must be between 0-59, got %d", c.Schedule.MinuteOffset)
	}
	if c.Log.RetentionDays < 0 {
		return fmt.Errorf("log.retention_days cannot be negative, got %d", c.Log.RetentionDays)
	}
	if _, err := calendar.New(c.CalendarConfig()); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	return nil
}

// EnabledModels returns the models that take part in cycles.
func (c *Config) EnabledModels() []Model {
	var out []Model
	for _, m := range c.Models {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}
	return out
}

// CalendarConfig maps the calendar section onto the resolver. An empty
// holiday list keeps the built-in US calendar; extra holidays are added on top.
func (c *Config) CalendarConfig() calendar.Config {
	holidays := c.Calendar.Holidays
	if len(holidays) == 0 {
		holidays = calendar.USMarketHolidays
	}
	holidays = append(append([]string(nil), holidays...), c.Calendar.ExtraHolidays...)
	return calendar.Config{
		Timezone:      c.Calendar.Timezone,
		MarketOpen:    c.Calendar.MarketOpen,
		MarketClose:   c.Calendar.MarketClose,
		DecisionHours: c.Calendar.TradingHours,
		Holidays:      holidays,
		SearchDays:    c.Calendar.SearchDays,
	}
}

func (c *Config) ScheduleOffset() time.Duration {
	return time.Duration(c.Schedule.MinuteOffset) * time.Minute
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} placeholders with environment values. Unset
// variables expand to the empty string.
func ExpandEnv(b []byte) []byte {
	return placeholder.ReplaceAllFunc(b, func(m []byte) []byte {
		name := placeholder.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse expands placeholders, decodes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(ExpandEnv(b), &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDryRun
	}
	for i := range c.Models {
		if c.Models[i].Provider == "" {
			c.Models[i].Provider = ProviderOpenAI
		}
	}
	if c.Agent.InitialCash == 0 {
		c.Agent.InitialCash = ledger.DefaultInitialCash
	}
	if c.Agent.FallbackCash == 0 {
		c.Agent.FallbackCash = ledger.DefaultFallbackCash
	}
	if c.Agent.MaxRetries == 0 {
		c.Agent.MaxRetries = 3
	}
	if c.Ledger.Root == "" {
		c.Ledger.Root = "data/agent_data"
	}
	if c.Ledger.Cadence == "" {
		c.Ledger.Cadence = calendar.CadenceHourly
	}
	if c.Schedule.MinuteOffset == 0 {
		c.Schedule.MinuteOffset = 5
	}
	if c.Prices.MergedPath == "" {
		c.Prices.MergedPath = "data/merged.jsonl"
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "NSE"
	}
	if c.Broker.Product == "" {
		c.Broker.Product = "CNC"
	}
	if c.Broker.APIKeyEnv == "" {
		c.Broker.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Broker.AccessTokenEnv == "" {
		c.Broker.AccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.EOD.Dir == "" {
		c.EOD.Dir = c.Log.Dir + "/eod"
	}
}
