package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fetch strategies accepted by scrape.strategy.
const (
	StrategyHTTP    = "http"
	StrategyBrowser = "browser"
	StrategyAuto    = "auto"
)

// Config holds the full application configuration.
type Config struct {
	Wiki    WikiConfig    `yaml:"wiki" mapstructure:"wiki"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// WikiConfig describes the wiki being scraped.
type WikiConfig struct {
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	IndexURL       string   `yaml:"index_url" mapstructure:"index_url"`
	TargetSections []string `yaml:"target_sections" mapstructure:"target_sections"`
	UserAgent      string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScrapeConfig configures the batch runner and the page fetchers.
type ScrapeConfig struct {
	Strategy         string        `yaml:"strategy" mapstructure:"strategy"`
	Delay            time.Duration `yaml:"delay" mapstructure:"delay"`
	BatchSize        int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffStep      time.Duration `yaml:"backoff_step" mapstructure:"backoff_step"`
	RequestTimeout   time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" mapstructure:"discovery_timeout"`
	MinPageBytes     int           `yaml:"min_page_bytes" mapstructure:"min_page_bytes"`
	ChallengeMarker  string        `yaml:"challenge_marker" mapstructure:"challenge_marker"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass" mapstructure:"cloudflare_bypass"`
}

// BrowserConfig configures the headless browser fetch strategy.
type BrowserConfig struct {
	Headless     bool          `yaml:"headless" mapstructure:"headless"`
	WaitSelector string        `yaml:"wait_selector" mapstructure:"wait_selector"`
	WaitTimeout  time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
	RenderPause  time.Duration `yaml:"render_pause" mapstructure:"render_pause"`
	ExecPath     string        `yaml:"exec_path" mapstructure:"exec_path"`
}

// PathsConfig locates every on-disk artifact.
type PathsConfig struct {
	CharacterList string `yaml:"character_list" mapstructure:"character_list"`
	OutputFile    string `yaml:"output_file" mapstructure:"output_file"`
	FailuresFile  string `yaml:"failures_file" mapstructure:"failures_file"`
	ProgressDir   string `yaml:"progress_dir" mapstructure:"progress_dir"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WIKISCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("wiki.base_url", "https://onepiece.fandom.com/wiki/")
	v.SetDefault("wiki.index_url", "https://onepiece.fandom.com/wiki/List_of_Canon_Characters")
	v.SetDefault("wiki.target_sections", []string{"Statistics", "Portrayal"})
	v.SetDefault("wiki.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.strategy", StrategyHTTP)
	v.SetDefault("scrape.delay", 3*time.Second)
	v.SetDefault("scrape.batch_size", 50)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.backoff_step", 2*time.Second)
	v.SetDefault("scrape.request_timeout", 30*time.Second)
	v.SetDefault("scrape.discovery_timeout", 10*time.Second)
	v.SetDefault("scrape.min_page_bytes", 5000)
	v.SetDefault("scrape.challenge_marker", "Client Challenge")
	v.SetDefault("scrape.cloudflare_bypass", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_selector", ".portable-infobox")
	v.SetDefault("browser.wait_timeout", 10*time.Second)
	v.SetDefault("browser.render_pause", 2*time.Second)
	v.SetDefault("paths.character_list", "data/raw/canon_character_list.txt")
	v.SetDefault("paths.output_file", "output/characters.json")
	v.SetDefault("paths.failures_file", "output/scraping_failures.json")
	v.SetDefault("paths.progress_dir", "output/progress")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "output/runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings the batch runner cannot work with.
func (c *Config) Validate() error {
	switch c.Scrape.Strategy {
	case StrategyHTTP, StrategyBrowser, StrategyAuto:
	default:
		return eris.Errorf("config: unknown scrape strategy %q", c.Scrape.Strategy)
	}
	if c.Scrape.BatchSize <= 0 {
		return eris.Errorf("config: batch_size must be positive, got %d", c.Scrape.BatchSize)
	}
	if c.Scrape.MaxAttempts <= 0 {
		return eris.Errorf("config: max_attempts must be positive, got %d", c.Scrape.MaxAttempts)
	}
	if c.Scrape.Delay < 0 {
		return eris.Errorf("config: delay must not be negative, got %s", c.Scrape.Delay)
	}
	if c.Wiki.BaseURL == "" {
		return eris.New("config: wiki.base_url is required")
	}
	if len(c.Wiki.TargetSections) == 0 {
		return eris.New("config: wiki.target_sections must not be empty")
	}
	if within(c.Paths.ProgressDir, c.Paths.OutputFile) {
		return eris.Errorf("config: paths.output_file %q must not be inside paths.progress_dir", c.Paths.OutputFile)
	}
	if within(c.Paths.ProgressDir, c.Paths.FailuresFile) {
		return eris.Errorf("config: paths.failures_file %q must not be inside paths.progress_dir", c.Paths.FailuresFile)
	}
	return nil
}

// within reports whether path lies under dir. Empty values never match.
func within(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
