package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Env holds configuration parsed from environment variables: credentials
// and connection strings only. Run behavior lives in the YAML Config.
type Env struct {
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"cardline"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"cardline"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"cardline"`

	OddsAPIKey     string `env:"ODDS_API_KEY"`
	KenpomEmail    string `env:"KENPOM_EMAIL"`
	KenpomPassword string `env:"KENPOM_PASSWORD"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`
}

// LoadEnv parses environment variables into an Env struct.
func LoadEnv() (*Env, error) {
	e := &Env{}
	if err := env.Parse(e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Validate rejects configurations that cannot complete a run.
func (e *Env) Validate(kenpomEnabled bool) error {
	if e.OddsAPIKey == "" {
		return fmt.Errorf("ODDS_API_KEY is required")
	}
	if e.OpenAIAPIKey == "" && e.GeminiAPIKey == "" {
		return fmt.Errorf("at least one of OPENAI_API_KEY or GEMINI_API_KEY is required")
	}
	if kenpomEnabled && (e.KenpomEmail == "" || e.KenpomPassword == "") {
		return fmt.Errorf("KENPOM_EMAIL and KENPOM_PASSWORD are required when scraping.kenpom.enabled")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (e *Env) DSN() string {
	if e.DatabaseURL != "" {
		return e.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		e.PGUser, e.PGPassword, e.PGHost, e.PGPort, e.PGDatabase)
}

// AgentConfig is per-agent YAML configuration.
type AgentConfig struct {
	Enabled        *bool  `yaml:"enabled"`
	Model          string `yaml:"model"`
	MaxPicksPerDay int    `yaml:"max_picks_per_day"`
}

// On reports whether the agent is enabled (default true).
func (a AgentConfig) On() bool { return a.Enabled == nil || *a.Enabled }

// Config is the YAML run configuration.
type Config struct {
	LLM struct {
		Model       string            `yaml:"model"`
		AgentModels map[string]string `yaml:"agent_models"`
	} `yaml:"llm"`
	Scraping struct {
		GamesSource  string   `yaml:"games_source"`
		LinesSources []string `yaml:"lines_sources"` // primary first
		Kenpom       struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"kenpom"`
	} `yaml:"scraping"`
	Bankroll struct {
		Initial    float64 `yaml:"initial"`
		MinBalance float64 `yaml:"min_balance"`
	} `yaml:"bankroll"`
	Betting struct {
		KellyFraction float64 `yaml:"kelly_fraction"`
	} `yaml:"betting"`
	Scheduler struct {
		RunTime  string `yaml:"run_time"` // HH:MM wall clock
		Timezone string `yaml:"timezone"`
	} `yaml:"scheduler"`
	Agents map[string]AgentConfig `yaml:"agents"`
	Debug  bool                   `yaml:"debug"`
}

// LoadConfig reads the YAML run configuration, applying defaults for
// anything unset. A missing file yields pure defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.Scraping.GamesSource == "" {
		c.Scraping.GamesSource = "espn"
	}
	if len(c.Scraping.LinesSources) == 0 {
		c.Scraping.LinesSources = []string{"draftkings", "fanduel"}
	}
	if c.Bankroll.Initial == 0 {
		c.Bankroll.Initial = 10000
	}
	if c.Betting.KellyFraction == 0 {
		c.Betting.KellyFraction = 0.25
	}
	if c.Scheduler.RunTime == "" {
		c.Scheduler.RunTime = "10:00"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "America/New_York"
	}
}

// ModelFor resolves the model for an agent: per-agent override first, then
// the global default.
func (c *Config) ModelFor(agent string) string {
	if m, ok := c.LLM.AgentModels[agent]; ok && m != "" {
		return m
	}
	if a, ok := c.Agents[agent]; ok && a.Model != "" {
		return a.Model
	}
	return c.LLM.Model
}

// PrimaryBook returns the first declared line source.
func (c *Config) PrimaryBook() string { return c.Scraping.LinesSources[0] }

// FallbackBooks returns the declared fallback order after the primary.
func (c *Config) FallbackBooks() []string {
	if len(c.Scraping.LinesSources) < 2 {
		return nil
	}
	return c.Scraping.LinesSources[1:]
}

// ParseLogLevel maps LOG_LEVEL to a normalized slog level name.
func ParseLogLevel(s string) string {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		return strings.ToLower(s)
	}
	return "info"
}
