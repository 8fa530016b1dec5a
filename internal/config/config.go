package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Export   ExportConfig   `yaml:"export"`
	Database DatabaseConfig `yaml:"database"`
	App      AppConfig      `yaml:"app"`
}

type BrowserConfig struct {
	Headless     bool          `yaml:"headless"`
	ExecPath     string        `yaml:"exec_path,omitempty"`
	UserAgent    string        `yaml:"user_agent,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	WindowWidth  int           `yaml:"window_width"`
	WindowHeight int           `yaml:"window_height"`
}

type ScrapeConfig struct {
	BaseURL        string          `yaml:"base_url"`
	ScrollDepth    int             `yaml:"scroll_depth"`
	ScrollPause    time.Duration   `yaml:"scroll_pause"`
	ItemPause      time.Duration   `yaml:"item_pause"`
	CommentScrolls int             `yaml:"comment_scrolls"`
	Metadata       bool            `yaml:"metadata"`
	Comments       bool            `yaml:"comments"`
	Selectors      ScrapeSelectors `yaml:"selectors"`
}

type ScrapeSelectors struct {
	VideoTitle     string `yaml:"video_title"`
	Body           string `yaml:"body"`
	PlayerScript   string `yaml:"player_script"`
	Likes          string `yaml:"likes"`
	Dislikes       string `yaml:"dislikes"`
	CommentSection string `yaml:"comment_section"`
	CommentBlock   string `yaml:"comment_block"`
	CommentAuthor  string `yaml:"comment_author"`
	AuthorFallback string `yaml:"author_fallback"`
	CommentContent string `yaml:"comment_content"`
	CommentLikes   string `yaml:"comment_likes"`
}

type ExportConfig struct {
	ResultsDir  string `yaml:"results_dir"`
	CommentsDir string `yaml:"comments_dir"`
}

type DatabaseConfig struct {
	Driver             string        `yaml:"driver"`
	URL                string        `yaml:"url"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdle            int           `yaml:"max_idle"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type AppConfig struct {
	LogLevel string    `yaml:"log_level"`
	CLI      CLIConfig `yaml:"cli"`
}

type CLIConfig struct {
	Prompt string `yaml:"prompt"`
}

var cfg *Config

func Load(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg = Default()
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	setDefaults()
	applyEnv()

	return nil
}

func Get() *Config {
	if cfg == nil {
		LoadDefault()
	}
	return cfg
}

func LoadDefault() {
	cfg = Default()
	applyEnv()
}

// Default returns a fresh configuration matching the selectors of the watch and
// results pages at the time the scraper was written.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     true,
			Timeout:      60 * time.Second,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Scrape: ScrapeConfig{
			BaseURL:        "https://www.youtube.com",
			ScrollDepth:    0,
			ScrollPause:    1 * time.Second,
			ItemPause:      1 * time.Second,
			CommentScrolls: 3,
			Metadata:       true,
			Comments:       false,
			Selectors:      DefaultSelectors(),
		},
		Export: ExportConfig{
			ResultsDir:  "./results",
			CommentsDir: "./comments",
		},
		Database: DatabaseConfig{
			Driver:             "sqlite",
			MaxConnections:     25,
			MaxIdle:            5,
			ConnectionLifetime: 5 * time.Minute,
		},
		App: AppConfig{
			LogLevel: "info",
			CLI: CLIConfig{
				Prompt: "➜",
			},
		},
	}
}

func DefaultSelectors() ScrapeSelectors {
	return ScrapeSelectors{
		VideoTitle:     "a#video-title",
		Body:           "body",
		PlayerScript:   "body > script",
		Likes:          "ytd-menu-renderer.ytd-video-primary-info-renderer > div:nth-child(1) > ytd-toggle-button-renderer:nth-child(1) > a:nth-child(1) > yt-formatted-string:nth-child(2)",
		Dislikes:       "ytd-menu-renderer.ytd-watch-metadata > div:nth-child(1) > ytd-toggle-button-renderer:nth-child(2) > a:nth-child(1) > yt-formatted-string:nth-child(2)",
		CommentSection: "ytd-comments#comments",
		CommentBlock:   "ytd-comment-thread-renderer",
		CommentAuthor:  "#author-text span",
		AuthorFallback: "#header-author yt-formatted-string",
		CommentContent: "#content-text",
		CommentLikes:   "#vote-count-middle",
	}
}

func setDefaults() {
	def := Default()

	if cfg.Browser.Timeout == 0 {
		cfg.Browser.Timeout = def.Browser.Timeout
	}
	if cfg.Browser.WindowWidth == 0 || cfg.Browser.WindowHeight == 0 {
		cfg.Browser.WindowWidth = def.Browser.WindowWidth
		cfg.Browser.WindowHeight = def.Browser.WindowHeight
	}
	if cfg.Scrape.BaseURL == "" {
		cfg.Scrape.BaseURL = def.Scrape.BaseURL
	}
	if cfg.Scrape.ScrollDepth < 0 {
		cfg.Scrape.ScrollDepth = 0
	}
	if cfg.Scrape.ScrollPause == 0 {
		cfg.Scrape.ScrollPause = def.Scrape.ScrollPause
	}
	if cfg.Scrape.ItemPause == 0 {
		cfg.Scrape.ItemPause = def.Scrape.ItemPause
	}
	if cfg.Export.ResultsDir == "" {
		cfg.Export.ResultsDir = def.Export.ResultsDir
	}
	if cfg.Export.CommentsDir == "" {
		cfg.Export.CommentsDir = def.Export.CommentsDir
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = def.Database.MaxConnections
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = def.Database.MaxIdle
	}
	if cfg.Database.ConnectionLifetime == 0 {
		cfg.Database.ConnectionLifetime = def.Database.ConnectionLifetime
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = def.App.LogLevel
	}
	if cfg.App.CLI.Prompt == "" {
		cfg.App.CLI.Prompt = def.App.CLI.Prompt
	}
}

func applyEnv() {
	if v := os.Getenv("YTS_DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("YTS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("YTS_CHROME_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
}
