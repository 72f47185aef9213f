package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shouni/go-job-crawler/pkg/types"
)

const createJobsTable = `CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER NOT NULL PRIMARY KEY,
	run_id TEXT NOT NULL,
	batch INTEGER NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

const insertJob = `INSERT INTO jobs (run_id, batch, url, title, payload) VALUES (?, ?, ?, ?, ?);`

// SQLiteSink はバッチを SQLite の jobs テーブルに保存します。
// 1つのバッチは1つのトランザクションで書き込まれます。
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink はデータベースを開き、テーブルを作成します。
func NewSQLiteSink(ctx context.Context, path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("SQLiteデータベース(%s)のオープンに失敗しました: %w", path, err)
	}
	// go-sqlite3 は同時書き込みに対応しないため接続を1本に制限する
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createJobsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobsテーブルの作成に失敗しました: %w", err)
	}
	return &SQLiteSink{db: db, runID: runID}, nil
}

// WriteBatch はバッチ内の求人を1行ずつ挿入します。
func (s *SQLiteSink) WriteBatch(ctx context.Context, batch types.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertJob)
	if err != nil {
		return fmt.Errorf("INSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, job := range batch.Jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("求人(%s)のJSON変換に失敗しました: %w", job.URL, err)
		}
		if _, err := stmt.ExecContext(ctx, s.runID, batch.Number, job.URL, job.Title, string(payload)); err != nil {
			return fmt.Errorf("求人(%s)の保存に失敗しました: %w", job.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// CountJobs は指定した実行IDで保存された求人の件数を返します。
func (s *SQLiteSink) CountJobs(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE run_id = ?;`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("求人件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Close はデータベースを閉じます。
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
