package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-job-crawler/pkg/crawl"
	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

const (
	// EnvPrefix は環境変数のプレフィックスです (例: JOBCRAWLER_RETRY_MAX_ATTEMPTS)。
	EnvPrefix = "JOBCRAWLER"
	// DefaultConfigName は設定ファイルの既定の名前です (.job-crawler.yaml)。
	DefaultConfigName = ".job-crawler"

	SinkJSON   = "json"
	SinkSQLite = "sqlite"

	// 詳細ページ取得時のリクエストタイムアウトの範囲
	DefaultDetailTimeoutMin = 10 * time.Second
	DefaultDetailTimeoutMax = 30 * time.Second
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Retry  RetryConfig  `mapstructure:"retry" yaml:"retry"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`
	Crawl  CrawlConfig  `mapstructure:"crawl" yaml:"crawl"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1,lte=100"`
	BackoffFactor  float64       `mapstructure:"backoff_factor" yaml:"backoff_factor" validate:"gt=1"`
	InitialDelay   time.Duration `mapstructure:"initial_delay" yaml:"initial_delay" validate:"gt=0"`
	ChallengeDelay time.Duration `mapstructure:"challenge_delay" yaml:"challenge_delay" validate:"gte=0"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay" validate:"gte=0"`
}

type HTTPConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	TimeoutMin       time.Duration `mapstructure:"timeout_min" yaml:"timeout_min" validate:"gte=0"`
	TimeoutMax       time.Duration `mapstructure:"timeout_max" yaml:"timeout_max" validate:"gtefield=TimeoutMin"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass" yaml:"cloudflare_bypass"`
	MaxBodySize      int64         `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
	UserAgents       []string      `mapstructure:"user_agents" yaml:"user_agents" validate:"min=1,dive,required"`
	AcceptLanguage   string        `mapstructure:"accept_language" yaml:"accept_language"`
}

type CrawlConfig struct {
	DelayMin               time.Duration `mapstructure:"delay_min" yaml:"delay_min" validate:"gte=0"`
	DelayMax               time.Duration `mapstructure:"delay_max" yaml:"delay_max" validate:"gtefield=DelayMin"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures" validate:"gte=1"`
	StartPage              int           `mapstructure:"start_page" yaml:"start_page" validate:"gte=1"`
	EndPage                int           `mapstructure:"end_page" yaml:"end_page" validate:"gte=0"`
	BatchSize              int           `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1"`
}

type OutputConfig struct {
	URLsFile   string `mapstructure:"urls_file" yaml:"urls_file" validate:"required"`
	Dir        string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Sink       string `mapstructure:"sink" yaml:"sink" validate:"oneof=json sqlite"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required_if=Sink sqlite"`
}

type LogConfig struct {
	JSON bool `mapstructure:"json" yaml:"json"`
}

// SetDefaults は既定値を viper に登録します。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.backoff_factor", retry.DefaultBackoffFactor)
	v.SetDefault("retry.initial_delay", retry.DefaultInitialDelay)
	v.SetDefault("retry.challenge_delay", retry.DefaultChallengeDelay)
	v.SetDefault("retry.rate_limit_delay", retry.DefaultRateLimitDelay)

	v.SetDefault("http.timeout", httpclient.DefaultHTTPTimeout)
	v.SetDefault("http.timeout_min", DefaultDetailTimeoutMin)
	v.SetDefault("http.timeout_max", DefaultDetailTimeoutMax)
	v.SetDefault("http.cloudflare_bypass", true)
	v.SetDefault("http.max_body_size", httpclient.MaxBodySize)
	v.SetDefault("http.user_agents", fetcher.DefaultUserAgents)
	v.SetDefault("http.accept_language", fetcher.DefaultAcceptLanguage)

	v.SetDefault("crawl.delay_min", crawl.DefaultDelayMin)
	v.SetDefault("crawl.delay_max", crawl.DefaultDelayMax)
	v.SetDefault("crawl.max_consecutive_failures", crawl.DefaultMaxConsecutiveFailures)
	v.SetDefault("crawl.start_page", 1)
	v.SetDefault("crawl.end_page", 0)
	v.SetDefault("crawl.batch_size", crawl.DefaultBatchSize)

	v.SetDefault("output.urls_file", "job_urls.txt")
	v.SetDefault("output.dir", "batches")
	v.SetDefault("output.sink", SinkJSON)
	v.SetDefault("output.sqlite_path", "jobs.db")

	v.SetDefault("log.json", false)
}

// Load は既定値、設定ファイル、環境変数の順に設定を読み込み、検証します。
// configFile が空の場合はカレントディレクトリとホームディレクトリの .job-crawler.yaml を探し、
// 見つからなければ既定値を使用します。
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値を検証します。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}

// YAML は設定を YAML 形式で返します。
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("設定のYAML変換に失敗しました: %w", err)
	}
	return out, nil
}

// Policy はリトライ設定を retry.Policy に変換します。
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    c.MaxAttempts,
		BackoffFactor:  c.BackoffFactor,
		InitialDelay:   c.InitialDelay,
		ChallengeDelay: c.ChallengeDelay,
		RateLimitDelay: c.RateLimitDelay,
	}
}

// HeaderProfile はヘッダー設定を fetcher.HeaderProfile に変換します。
// withTimeoutRange が true の場合、リクエストごとのタイムアウト範囲を含めます。
func (c HTTPConfig) HeaderProfile(withTimeoutRange bool) fetcher.HeaderProfile {
	p := fetcher.HeaderProfile{
		UserAgents:     c.UserAgents,
		AcceptLanguage: c.AcceptLanguage,
	}
	if withTimeoutRange {
		p.TimeoutMin = c.TimeoutMin
		p.TimeoutMax = c.TimeoutMax
	}
	return p
}

// CrawlerConfig はクロール設定を crawl.Config に変換します。
func (c *Config) CrawlerConfig() crawl.Config {
	return crawl.Config{
		Policy:                 c.Retry.Policy(),
		DelayMin:               c.Crawl.DelayMin,
		DelayMax:               c.Crawl.DelayMax,
		MaxConsecutiveFailures: c.Crawl.MaxConsecutiveFailures,
		StartPage:              c.Crawl.StartPage,
		EndPage:                c.Crawl.EndPage,
		BatchSize:              c.Crawl.BatchSize,
	}
}
