package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "subreddits:\n  - greece\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"greece"}, cfg.Subreddits)
	require.Equal(t, "top", cfg.Crawling.Listing)
	require.Equal(t, "all", cfg.Crawling.TimeFilter)
	require.Equal(t, 100, cfg.Crawling.PostLimit)
	require.InDelta(t, 0.4, cfg.Crawling.PostSleepSeconds, 0.001)
	require.Equal(t, "el", cfg.Language.Target)
	require.True(t, cfg.Language.RequireTitle)
	require.False(t, cfg.Language.RequireOP)
	require.True(t, cfg.Language.FilterComments)
	require.InDelta(t, 0.30, cfg.Language.TitleMinScriptRatio, 0.001)
	require.Equal(t, "reddit_dump", cfg.Output.BaseDir)
	require.Equal(t, 2000, cfg.Output.BufferSize)
	require.Equal(t, "REDDIT_CLIENT_ID", cfg.Reddit.ClientIDEnv)
	require.Equal(t, 30, cfg.Reddit.RequestTimeoutSeconds)
	require.True(t, cfg.Logging.Development)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
subreddits:
  - greece
  - athens
crawling:
  listing: new
  post_limit: 25
  post_sleep_seconds: 0
output:
  base_dir: /tmp/corpus
  buffer_size: 500
language:
  require_op: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"greece", "athens"}, cfg.Subreddits)
	require.Equal(t, "new", cfg.Crawling.Listing)
	require.Equal(t, 25, cfg.Crawling.PostLimit)
	require.Equal(t, time.Duration(0), cfg.Crawling.PostDelay())
	require.Equal(t, "/tmp/corpus", cfg.Output.BaseDir)
	require.Equal(t, 500, cfg.Output.BufferSize)
	require.True(t, cfg.Language.RequireOP)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Subreddits: []string{"greece"},
			Reddit:     RedditConfig{RequestTimeoutSeconds: 30},
			Crawling:   CrawlingConfig{Listing: "top", TimeFilter: "all"},
			Language:   LanguageConfig{TitleMinScriptRatio: 0.3},
			Output:     OutputConfig{BufferSize: 2000},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no subreddits", mutate: func(c *Config) { c.Subreddits = nil }},
		{name: "blank subreddits", mutate: func(c *Config) { c.Subreddits = []string{"  ", ""} }},
		{name: "unknown listing", mutate: func(c *Config) { c.Crawling.Listing = "gilded" }},
		{name: "bad timefilter", mutate: func(c *Config) { c.Crawling.TimeFilter = "decade" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Reddit.RequestTimeoutSeconds = 0 }},
		{name: "zero buffer", mutate: func(c *Config) { c.Output.BufferSize = 0 }},
		{name: "ratio above one", mutate: func(c *Config) { c.Language.TitleMinScriptRatio = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWindowlessListingIgnoresTimeFilter(t *testing.T) {
	cfg := Config{
		Subreddits: []string{"greece"},
		Reddit:     RedditConfig{RequestTimeoutSeconds: 30},
		Crawling:   CrawlingConfig{Listing: "new", TimeFilter: "all"},
		Language:   LanguageConfig{TitleMinScriptRatio: 0.3},
		Output:     OutputConfig{BufferSize: 2000},
	}
	require.NoError(t, cfg.Validate(), "leftover timefilter must not reject a windowless listing")
}

func TestCleanSubreddits(t *testing.T) {
	cfg := Config{Subreddits: []string{" greece ", "", "athens", "  "}}
	require.Equal(t, []string{"greece", "athens"}, cfg.CleanSubreddits())
}

func TestCredentials(t *testing.T) {
	rc := RedditConfig{
		ClientIDEnv:      "TEST_RC_ID",
		ClientSecretEnv:  "TEST_RC_SECRET",
		UserAgentEnv:     "TEST_RC_UA",
		DefaultUserAgent: "corpus:v2.0",
	}

	t.Setenv("TEST_RC_ID", "id123")
	t.Setenv("TEST_RC_SECRET", "secret456")
	t.Setenv("TEST_RC_UA", "")

	id, secret, ua, err := rc.Credentials()
	require.NoError(t, err)
	require.Equal(t, "id123", id)
	require.Equal(t, "secret456", secret)
	require.Equal(t, "corpus:v2.0", ua, "user agent falls back to the default")

	t.Setenv("TEST_RC_UA", "custom-agent")
	_, _, ua, err = rc.Credentials()
	require.NoError(t, err)
	require.Equal(t, "custom-agent", ua)

	t.Setenv("TEST_RC_SECRET", "")
	_, _, _, err = rc.Credentials()
	require.Error(t, err)

	t.Setenv("TEST_RC_SECRET", "YOUR_SECRET_HERE")
	_, _, _, err = rc.Credentials()
	require.Error(t, err, "placeholder credentials are rejected")
}
