package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// URLFile は改行区切りのURLリストファイルです。追記のみ行います。
type URLFile struct {
	path string
	mu   sync.Mutex
}

// NewURLFile は、新しいURLFileを生成します。ファイルは最初の書き込み時に作成されます。
func NewURLFile(path string) *URLFile {
	return &URLFile{path: path}
}

// Path はファイルのパスを返します。
func (f *URLFile) Path() string {
	return f.path
}

// Append はURLをファイル末尾に追記します。
func (f *URLFile) Append(urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("URLファイルのオープンに失敗しました: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, u := range urls {
		if _, err := w.WriteString(u + "\n"); err != nil {
			_ = file.Close()
			return fmt.Errorf("URLファイルへの書き込みに失敗しました: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("URLファイルへの書き込みに失敗しました: %w", err)
	}
	return file.Close()
}

// ReadURLs はファイルからURLを読み込みます。空行と前後の空白は無視されます。
func (f *URLFile) ReadURLs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("URLファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("URLファイルの読み込みに失敗しました: %w", err)
	}
	return urls, nil
}

// Truncate はファイルを空にします。ファイルが存在しない場合は何もしません。
func (f *URLFile) Truncate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Truncate(f.path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("URLファイルの初期化に失敗しました: %w", err)
	}
	return nil
}
