package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-job-crawler/pkg/types"
)

// BatchSink は求人のバッチを保存する出力先です。
type BatchSink interface {
	WriteBatch(ctx context.Context, batch types.Batch) error
	Close() error
}

// JSONBatchSink はバッチごとに batch_<n>.json を出力ディレクトリに書き込みます。
type JSONBatchSink struct {
	dir string
}

// NewJSONBatchSink は出力ディレクトリを作成し、JSONBatchSink を生成します。
func NewJSONBatchSink(dir string) (*JSONBatchSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}
	return &JSONBatchSink{dir: dir}, nil
}

// BatchPath はバッチ番号に対応するファイルパスを返します。
func (s *JSONBatchSink) BatchPath(number int) string {
	return filepath.Join(s.dir, fmt.Sprintf("batch_%d.json", number))
}

// WriteBatch はバッチをインデント付きのJSONとして書き込みます。非ASCII文字はそのまま出力されます。
func (s *JSONBatchSink) WriteBatch(_ context.Context, batch types.Batch) error {
	data, err := marshalJobs(batch.Jobs)
	if err != nil {
		return err
	}

	path := s.BatchPath(batch.Number)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("バッチファイル(%s)の書き込みに失敗しました: %w", path, err)
	}
	return nil
}

// Close は何もしません。
func (s *JSONBatchSink) Close() error {
	return nil
}

// marshalJobs は HTML エスケープを無効にして求人をJSONに変換します。
func marshalJobs(jobs []types.JobPosting) ([]byte, error) {
	if jobs == nil {
		jobs = []types.JobPosting{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(jobs); err != nil {
		return nil, fmt.Errorf("JSONへの変換に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}
