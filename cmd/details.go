package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-job-crawler/internal/config"
	"github.com/shouni/go-job-crawler/pkg/jobs"
)

var (
	detailsSite  string
	detailsInput string
	detailsSink  string
)

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "求人詳細ページを取得し、バッチ単位で保存します",
	Long: `URL ファイルの各URLの詳細ページを取得して項目を抽出し、設定されたバッチサイズごとに
JSON ファイル (batch_<n>.json) または SQLite に保存します。失敗したURLは飛ばします。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if detailsSink != "" {
			appConfig.Output.Sink = detailsSink
			if err := appConfig.Validate(); err != nil {
				return err
			}
		}

		app, err := newApp()
		if err != nil {
			return err
		}

		report, err := app.CrawlDetails(ctx, detailsSite, detailsInput)
		if err != nil {
			return fmt.Errorf("詳細ページの取得に失敗しました: %w", err)
		}

		for _, f := range report.Failures {
			fmt.Printf("❌ %s\n     エラー: %v\n", f.URL, f.Error)
		}
		fmt.Println("-------------------------------")
		fmt.Printf("完了: 成功 %d 件, 失敗 %d 件, バッチ %d 件 (出力先: %s)\n",
			report.Succeeded, report.Failed, report.Batches, outputLocation())
		return nil
	},
}

func outputLocation() string {
	if appConfig.Output.Sink == config.SinkSQLite {
		return appConfig.Output.SQLitePath
	}
	return appConfig.Output.Dir
}

func init() {
	detailsCmd.Flags().StringVar(&detailsSite, "site", "topcv",
		fmt.Sprintf("対象の求人サイト (%s)", strings.Join(jobs.Names(), ", ")))
	detailsCmd.Flags().StringVar(&detailsInput, "input", "", "URLファイルのパス (デフォルト: 設定の output.urls_file)")
	detailsCmd.Flags().StringVar(&detailsSink, "sink", "", "出力先 (json または sqlite, デフォルト: 設定の output.sink)")
}
