package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shouni/go-job-crawler/internal/config"
	"github.com/shouni/go-job-crawler/internal/logging"
	"github.com/shouni/go-job-crawler/internal/pipeline"
	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/retry"
)

// --- グローバル定数 ---

const appName = "job-crawler"

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigFile  string        // --config-file 設定ファイル
	Timeout     time.Duration // --timeout タイムアウト
	MaxAttempts int           // --max-attempts 最大試行回数
	JSONLog     bool          // --json-log JSON形式のログ
}

var Flags AppFlags

var (
	v         = viper.New()
	appConfig *config.Config
	logger    *slog.Logger
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
// フラグは viper にバインドされ、指定された場合のみ設定ファイルと環境変数より優先されます。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&Flags.ConfigFile, "config-file", "",
		fmt.Sprintf("設定ファイルのパス (デフォルト: ./%s.yaml または $HOME/%s.yaml)", config.DefaultConfigName, config.DefaultConfigName))
	pf.DurationVar(&Flags.Timeout, "timeout", httpclient.DefaultHTTPTimeout, "HTTPリクエストのタイムアウト時間")
	pf.IntVar(&Flags.MaxAttempts, "max-attempts", retry.DefaultMaxAttempts, "1回の取得あたりの最大試行回数")
	pf.BoolVar(&Flags.JSONLog, "json-log", false, "ログをJSON形式で出力する")

	_ = v.BindPFlag("http.timeout", pf.Lookup("timeout"))
	_ = v.BindPFlag("retry.max_attempts", pf.Lookup("max-attempts"))
	_ = v.BindPFlag("log.json", pf.Lookup("json-log"))
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, Flags.ConfigFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	logger = logging.New(logging.Options{
		Verbose: clibase.Flags.Verbose,
		JSON:    cfg.Log.JSON,
		Output:  os.Stderr,
	})
	slog.SetDefault(logger)

	if clibase.Flags.Verbose {
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("設定ファイルを読み込みました", slog.String("path", used))
		}
		logger.Debug("HTTPクライアントを設定しました",
			slog.Duration("timeout", cfg.HTTP.Timeout),
			slog.Int("max_attempts", cfg.Retry.MaxAttempts),
			slog.Bool("cloudflare_bypass", cfg.HTTP.CloudflareBypass))
	}
	return nil
}

// newApp は読み込んだ設定から依存関係を組み立てます。
func newApp() (*pipeline.App, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("設定が初期化されていません")
	}
	return pipeline.New(appConfig, logger), nil
}

// --- エントリポイント ---

// Execute は、clibase を使用してルートコマンドを実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		urlsCmd,
		detailsCmd,
		feedCmd,
		fetchCmd,
		configCmd,
	)
}
