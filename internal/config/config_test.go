package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job-crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, retry.DefaultPolicy(), cfg.Retry.Policy())
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.TimeoutMin)
	assert.Equal(t, 30*time.Second, cfg.HTTP.TimeoutMax)
	assert.Equal(t, 10*time.Second, cfg.HTTP.HeaderProfile(true).TimeoutMin)
	assert.Equal(t, 30*time.Second, cfg.HTTP.HeaderProfile(true).TimeoutMax)
	assert.Zero(t, cfg.HTTP.HeaderProfile(false).TimeoutMin)
	assert.True(t, cfg.HTTP.CloudflareBypass)
	assert.Equal(t, fetcher.DefaultUserAgents, cfg.HTTP.UserAgents)
	assert.Equal(t, fetcher.DefaultAcceptLanguage, cfg.HTTP.AcceptLanguage)
	assert.Equal(t, 2*time.Second, cfg.Crawl.DelayMin)
	assert.Equal(t, 5*time.Second, cfg.Crawl.DelayMax)
	assert.Equal(t, 5, cfg.Crawl.MaxConsecutiveFailures)
	assert.Equal(t, 10, cfg.Crawl.BatchSize)
	assert.Equal(t, "job_urls.txt", cfg.Output.URLsFile)
	assert.Equal(t, "batches", cfg.Output.Dir)
	assert.Equal(t, SinkJSON, cfg.Output.Sink)
	assert.False(t, cfg.Log.JSON)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_attempts: 3
  initial_delay: 2s
http:
  timeout_min: 10s
  timeout_max: 30s
  user_agents:
    - test-agent
crawl:
  end_page: 20
output:
  sink: sqlite
  sqlite_path: out/jobs.db
`)
	t.Setenv("JOBCRAWLER_CRAWL_BATCH_SIZE", "25")
	t.Setenv("JOBCRAWLER_RETRY_RATE_LIMIT_DELAY", "45s")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 45*time.Second, cfg.Retry.RateLimitDelay)
	assert.Equal(t, []string{"test-agent"}, cfg.HTTP.UserAgents)
	assert.Equal(t, 20, cfg.Crawl.EndPage)
	assert.Equal(t, 25, cfg.Crawl.BatchSize)
	assert.Equal(t, SinkSQLite, cfg.Output.Sink)
	assert.Equal(t, "out/jobs.db", cfg.Output.SQLitePath)

	profile := cfg.HTTP.HeaderProfile(true)
	assert.Equal(t, 10*time.Second, profile.TimeoutMin)
	assert.Equal(t, 30*time.Second, profile.TimeoutMax)
	assert.Zero(t, cfg.HTTP.HeaderProfile(false).TimeoutMax)

	crawlCfg := cfg.CrawlerConfig()
	assert.Equal(t, 3, crawlCfg.Policy.MaxAttempts)
	assert.Equal(t, 25, crawlCfg.BatchSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero attempts", "retry:\n  max_attempts: 0\n"},
		{"too many attempts", "retry:\n  max_attempts: 101\n"},
		{"factor not above one", "retry:\n  backoff_factor: 1\n"},
		{"unknown sink", "output:\n  sink: csv\n"},
		{"inverted delay range", "crawl:\n  delay_min: 6s\n  delay_max: 2s\n"},
		{"inverted timeout range", "http:\n  timeout_min: 30s\n  timeout_max: 10s\n"},
		{"empty user agents", "http:\n  user_agents: []\n"},
		{"broken yaml", "retry: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestConfig_YAML(t *testing.T) {
	cfg, err := Load(viper.New(), writeConfig(t, "{}\n"))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "initial_delay: 5s")
	assert.Contains(t, string(out), "sink: json")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "retry")
	assert.Contains(t, decoded, "output")
}
