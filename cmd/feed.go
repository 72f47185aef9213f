package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var feedURL string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードから求人URLを収集します",
	Long:  `フィードを取得してパースし、各アイテムのリンク (クエリ除去済み) を URL ファイルに追記します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedURL == "" {
			return fmt.Errorf("--url フラグでフィードのURLを指定してください")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		app, err := newApp()
		if err != nil {
			return err
		}

		n, err := app.CollectFeed(ctx, feedURL)
		if err != nil {
			return err
		}
		fmt.Printf("完了: %d 件のURLを %s に保存しました\n", n, appConfig.Output.URLsFile)
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "フィードのURL")
}
