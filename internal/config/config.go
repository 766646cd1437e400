// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akontos/redditcorpus/internal/crawler"
)

// Config captures all crawler configuration knobs loaded via Viper. The
// yaml tags let the batch orchestrator serialize per-run variants that the
// same loader reads back.
type Config struct {
	Subreddits []string       `mapstructure:"subreddits" yaml:"subreddits" json:"subreddits"`
	Reddit     RedditConfig   `mapstructure:"reddit"     yaml:"reddit"     json:"reddit"`
	Crawling   CrawlingConfig `mapstructure:"crawling"   yaml:"crawling"   json:"crawling"`
	Language   LanguageConfig `mapstructure:"language"   yaml:"language"   json:"language"`
	Output     OutputConfig   `mapstructure:"output"     yaml:"output"     json:"output"`
	Logging    LoggingConfig  `mapstructure:"logging"    yaml:"logging"    json:"logging"`
}

// RedditConfig names the credential environment variables and client
// behavior. Secrets themselves never live in the config file.
type RedditConfig struct {
	ClientIDEnv           string `mapstructure:"client_id_env"           yaml:"client_id_env"           json:"client_id_env"`
	ClientSecretEnv       string `mapstructure:"client_secret_env"       yaml:"client_secret_env"       json:"client_secret_env"`
	UserAgentEnv          string `mapstructure:"user_agent_env"          yaml:"user_agent_env"          json:"user_agent_env"`
	DefaultUserAgent      string `mapstructure:"default_user_agent"      yaml:"default_user_agent"      json:"default_user_agent"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// CrawlingConfig governs listing selection and per-post pacing.
type CrawlingConfig struct {
	Listing          string  `mapstructure:"listing"            yaml:"listing"            json:"listing"`
	TimeFilter       string  `mapstructure:"timefilter"         yaml:"timefilter"         json:"timefilter"`
	PostLimit        int     `mapstructure:"post_limit"         yaml:"post_limit"         json:"post_limit"`
	PostSleepSeconds float64 `mapstructure:"post_sleep_seconds" yaml:"post_sleep_seconds" json:"post_sleep_seconds"`
}

// LanguageConfig toggles the post- and comment-level language gates.
type LanguageConfig struct {
	Target              string  `mapstructure:"target"                 yaml:"target"                 json:"target"`
	RequireTitle        bool    `mapstructure:"require_title"          yaml:"require_title"          json:"require_title"`
	RequireOP           bool    `mapstructure:"require_op"             yaml:"require_op"             json:"require_op"`
	FilterComments      bool    `mapstructure:"filter_comments"        yaml:"filter_comments"        json:"filter_comments"`
	TitleMinScriptRatio float64 `mapstructure:"title_min_script_ratio" yaml:"title_min_script_ratio" json:"title_min_script_ratio"`
}

// OutputConfig sets the output root and the buffer flush threshold.
type OutputConfig struct {
	BaseDir    string `mapstructure:"base_dir"    yaml:"base_dir"    json:"base_dir"`
	BufferSize int    `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development" yaml:"development" json:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reddit.client_id_env", "REDDIT_CLIENT_ID")
	v.SetDefault("reddit.client_secret_env", "REDDIT_CLIENT_SECRET")
	v.SetDefault("reddit.user_agent_env", "REDDIT_USER_AGENT")
	v.SetDefault("reddit.default_user_agent", "reddit-corpus-crawler:v2.0")
	v.SetDefault("reddit.request_timeout_seconds", 30)
	v.SetDefault("crawling.listing", "top")
	v.SetDefault("crawling.timefilter", "all")
	v.SetDefault("crawling.post_limit", 100)
	v.SetDefault("crawling.post_sleep_seconds", 0.4)
	v.SetDefault("language.target", "el")
	v.SetDefault("language.require_title", true)
	v.SetDefault("language.require_op", false)
	v.SetDefault("language.filter_comments", true)
	v.SetDefault("language.title_min_script_ratio", 0.30)
	v.SetDefault("output.base_dir", "reddit_dump")
	v.SetDefault("output.buffer_size", 2000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.CleanSubreddits()) == 0 {
		return fmt.Errorf("subreddits must be a non-empty list of subreddit names")
	}
	if _, err := crawler.NewListing(c.Crawling.Listing, c.Crawling.TimeFilter); err != nil {
		return fmt.Errorf("crawling: %w", err)
	}
	if c.Reddit.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("reddit.request_timeout_seconds must be > 0")
	}
	if c.Output.BufferSize <= 0 {
		return fmt.Errorf("output.buffer_size must be > 0")
	}
	if c.Language.TitleMinScriptRatio < 0 || c.Language.TitleMinScriptRatio > 1 {
		return fmt.Errorf("language.title_min_script_ratio must be within [0, 1]")
	}
	return nil
}

// CleanSubreddits returns the configured subreddit names, trimmed, with
// empty entries dropped.
func (c Config) CleanSubreddits() []string {
	out := make([]string, 0, len(c.Subreddits))
	for _, s := range c.Subreddits {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PostDelay converts the per-post sleep into a duration.
func (c CrawlingConfig) PostDelay() time.Duration {
	return time.Duration(c.PostSleepSeconds * float64(time.Second))
}

// RequestTimeout converts the API timeout into a duration.
func (c RedditConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Credentials resolves the Reddit API credentials from the environment.
// Missing or placeholder credentials are a fatal configuration error.
func (c RedditConfig) Credentials() (clientID, clientSecret, userAgent string, err error) {
	clientID = os.Getenv(c.ClientIDEnv)
	clientSecret = os.Getenv(c.ClientSecretEnv)
	if clientID == "" || clientSecret == "" || strings.Contains(clientID+clientSecret, "YOUR_") {
		return "", "", "", fmt.Errorf("reddit credentials missing: set %s and %s", c.ClientIDEnv, c.ClientSecretEnv)
	}
	userAgent = os.Getenv(c.UserAgentEnv)
	if userAgent == "" {
		userAgent = c.DefaultUserAgent
	}
	return clientID, clientSecret, userAgent, nil
}
