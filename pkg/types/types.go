package types

// JobPosting は求人詳細ページから抽出された構造化データです。
// JSON のキーはバッチファイルの出力形式です。
type JobPosting struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Company     string            `json:"company,omitempty"`
	Salary      string            `json:"salary"`
	Location    string            `json:"location"`
	Experience  string            `json:"experience"`
	Deadline    string            `json:"deadline"`
	Tags        []string          `json:"tags"`
	Description map[string]string `json:"description"`
	Workplace   string            `json:"workplace,omitempty"`
	WorkingTime string            `json:"working_time,omitempty"`
	ApplyMethod string            `json:"apply_method,omitempty"`
}

// URLResult は、特定のURLの詳細取得の結果、またはその処理中に発生したエラーを保持します。
// これは、DetailCrawler の出力として利用されます。
type URLResult struct {
	URL   string      // 処理対象のURL
	Job   *JobPosting // 抽出された求人 (失敗時は nil)
	Error error       // 処理中に発生したエラー
}

// Batch は一度に保存される求人のまとまりです。Number は1始まりです。
type Batch struct {
	Number int
	Jobs   []JobPosting
}
