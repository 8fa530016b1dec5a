package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
browser:
  headless: false
  timeout: 15s
scrape:
  scroll_depth: 4
  comments: true
  selectors:
    likes: "#likes"
export:
  results_dir: /tmp/out
database:
  driver: postgres
  url: postgres://localhost/yts
`)

	require.NoError(t, Load(path))
	cfg := Get()

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 4, cfg.Scrape.ScrollDepth)
	assert.True(t, cfg.Scrape.Comments)
	assert.True(t, cfg.Scrape.Metadata)
	assert.Equal(t, "#likes", cfg.Scrape.Selectors.Likes)
	assert.Equal(t, "a#video-title", cfg.Scrape.Selectors.VideoTitle)
	assert.Equal(t, "/tmp/out", cfg.Export.ResultsDir)
	assert.Equal(t, "./comments", cfg.Export.CommentsDir)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxConnections)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoadFillsZeroValues(t *testing.T) {
	path := writeConfig(t, `
browser:
  timeout: 0s
scrape:
  base_url: ""
  scroll_depth: -2
  item_pause: 0s
app:
  cli:
    prompt: ""
`)

	require.NoError(t, Load(path))
	cfg := Get()

	assert.Equal(t, 60*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, "https://www.youtube.com", cfg.Scrape.BaseURL)
	assert.Equal(t, 0, cfg.Scrape.ScrollDepth)
	assert.Equal(t, time.Second, cfg.Scrape.ItemPause)
	assert.Equal(t, "➜", cfg.App.CLI.Prompt)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("YTS_DB_URL", "/tmp/runs.db")
	t.Setenv("YTS_CHROME_PATH", "/opt/chrome")

	LoadDefault()
	cfg := Get()

	assert.Equal(t, "/tmp/runs.db", cfg.Database.URL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/opt/chrome", cfg.Browser.ExecPath)
}

func TestLoadErrors(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, Load(writeConfig(t, "browser: [not, a, map]")))
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	require.NoError(t, Load(filepath.Join("..", "..", "configs", "config.yaml")))
	assert.Equal(t, Default().Scrape.Selectors, Get().Scrape.Selectors)
	assert.Equal(t, Default().Export, Get().Export)
}
