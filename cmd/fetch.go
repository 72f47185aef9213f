package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	fetchURL  string
	fetchBody bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "1つのURLをリトライポリシーに従って取得します",
	Long: `レート制限、サーバーエラー、ネットワークエラー、アンチボットチャレンジを指数バックオフで再試行しながら
URLを取得し、ステータス、試行回数、ボディのサイズを表示します。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchURL == "" {
			return fmt.Errorf("--url フラグで取得するURLを指定してください")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		app, err := newApp()
		if err != nil {
			return err
		}

		res, err := app.FetchOne(ctx, fetchURL)
		if err != nil {
			return err
		}

		fmt.Printf("URL: %s\nステータス: %d\n試行回数: %d\nボディ: %d バイト\n", res.URL, res.StatusCode, res.Attempts, len(res.Body))
		if fetchBody {
			fmt.Println("--- ボディ ---")
			fmt.Println(string(res.Body))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchURL, "url", "u", "", "取得するURL")
	fetchCmd.Flags().BoolVar(&fetchBody, "body", false, "取得したボディを表示する")
}
