package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-job-crawler/pkg/jobs"
)

var (
	urlsSite      string
	urlsStartPage int
	urlsEndPage   int
	urlsFresh     bool
)

var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "求人サイトの一覧ページから求人URLを収集します",
	Long: `一覧ページを1ページ目から順番に取得し、求人詳細ページのURLを URL ファイルに追記します。
404 を受信するか、URLのないページに到達すると終了します。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if cmd.Flags().Changed("start-page") {
			appConfig.Crawl.StartPage = urlsStartPage
		}
		if cmd.Flags().Changed("end-page") {
			appConfig.Crawl.EndPage = urlsEndPage
		}
		if err := appConfig.Validate(); err != nil {
			return err
		}

		app, err := newApp()
		if err != nil {
			return err
		}

		sum, err := app.CollectURLs(ctx, urlsSite, urlsFresh)
		if err != nil {
			return fmt.Errorf("URLの収集に失敗しました: %w", err)
		}

		fmt.Printf("完了: %d ページ, %d 件のURLを %s に保存しました (最終ページ: %d, 終了理由: %s)\n",
			sum.Pages, sum.URLs, appConfig.Output.URLsFile, sum.LastPage, sum.StopReason)
		return nil
	},
}

func init() {
	urlsCmd.Flags().StringVar(&urlsSite, "site", "topcv",
		fmt.Sprintf("対象の求人サイト (%s)", strings.Join(jobs.Names(), ", ")))
	urlsCmd.Flags().IntVar(&urlsStartPage, "start-page", 1, "開始ページ")
	urlsCmd.Flags().IntVar(&urlsEndPage, "end-page", 0, "終了ページ (0 は上限なし)")
	urlsCmd.Flags().BoolVar(&urlsFresh, "fresh", false, "収集前にURLファイルを空にする")
}
