package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options はロガーの出力設定です。
type Options struct {
	Verbose bool      // Debug レベルまで出力
	JSON    bool      // JSON 形式で出力
	Output  io.Writer // nil の場合は標準エラー出力
}

// New はプロセス起動時に一度だけ呼び出し、各コンポーネントに注入するロガーを生成します。
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// Discard は何も出力しないロガーを返します。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
