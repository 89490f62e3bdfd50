package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Site     Site     `yaml:"site"`
	Ingest   Ingest   `yaml:"ingest"`
	AI       AI       `yaml:"ai"`
	Search   Search   `yaml:"search"`
	Audit    Audit    `yaml:"audit"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Schedule Schedule `yaml:"schedule"`
}

type Site struct {
	BaseURL       string   `yaml:"base_url"`
	Treatments    []string `yaml:"treatments"`
	LocaleSuffix  string   `yaml:"locale_suffix"`
	LocaleMarkers []string `yaml:"locale_markers"`
	FeedFallback  bool     `yaml:"feed_fallback"`
}

type Ingest struct {
	PageSize    int           `yaml:"page_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	PageDelay   time.Duration `yaml:"page_delay"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AI struct {
	Provider       string        `yaml:"provider"`
	PrimaryModel   string        `yaml:"primary_model"`
	SecondaryModel string        `yaml:"secondary_model"`
	OllamaURL      string        `yaml:"ollama_url"`
	OpenAIModel    string        `yaml:"openai_model"`
	OpenAIKeyEnv   string        `yaml:"openai_api_key_env"`
	GeminiKeyEnv   string        `yaml:"gemini_api_key_env"`
	Attempts       int           `yaml:"attempts"`
	Delay          time.Duration `yaml:"delay"`
	MaxTokens      int           `yaml:"max_tokens"`
}

type Search struct {
	APIKeyEnv          string `yaml:"api_key_env"`
	PageSpeedAPIKeyEnv string `yaml:"pagespeed_api_key_env"`
	Location           string `yaml:"location"`
}

type Audit struct {
	Timeout  time.Duration `yaml:"timeout"`
	Strategy string        `yaml:"strategy"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
	// Owner is used when a request carries no X-Owner header.
	Owner string `yaml:"owner"`
}

type Schedule struct {
	// Refresh is a cron expression; empty disables scheduled ingestion.
	Refresh string `yaml:"refresh"`
}

// ConfigDir returns the XDG config directory for blogpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "blogpulse")
}

// DataDir returns the XDG data directory for blogpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "blogpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/blogpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'blogpulse init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv loads KEY=VALUE pairs from .env files into the environment.
// Variables already set win. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{filepath.Join(ConfigDir(), ".env"), ".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Site: Site{
			LocaleSuffix:  "in Turkey",
			LocaleMarkers: []string{"turkey", "turkiye", "türkiye", "istanbul", "antalya", "izmir"},
		},
		Ingest: Ingest{
			PageSize:    50,
			MaxAttempts: 3,
			PageDelay:   200 * time.Millisecond,
			Timeout:     30 * time.Second,
		},
		AI: AI{
			Provider:     "ollama",
			PrimaryModel: "qwen2.5:7b",
			OllamaURL:    "http://localhost:11434",
			OpenAIModel:  "gpt-4o-mini",
			OpenAIKeyEnv: "OPENAI_API_KEY",
			GeminiKeyEnv: "GEMINI_API_KEY",
			Attempts:     3,
			Delay:        15 * time.Second,
			MaxTokens:    2048,
		},
		Search: Search{
			APIKeyEnv:          "SERPAPI_KEY",
			PageSpeedAPIKeyEnv: "PAGESPEED_API_KEY",
		},
		Audit:  Audit{Timeout: 20 * time.Second, Strategy: "mobile"},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration errors that make ingestion impossible.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		errs = append(errs, errors.New("site.base_url is required"))
	} else if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("site.base_url %q must start with http:// or https://", c.Site.BaseURL))
	}
	if len(c.Site.Treatments) == 0 {
		errs = append(errs, errors.New("site.treatments must list at least one treatment"))
	}
	if c.Ingest.PageSize < 1 || c.Ingest.PageSize > 100 {
		errs = append(errs, fmt.Errorf("ingest.page_size must be between 1 and 100, got %d", c.Ingest.PageSize))
	}
	return errors.Join(errs...)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "blogpulse.db")
}

// Env returns the value of the variable named by key, or "".
func Env(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
