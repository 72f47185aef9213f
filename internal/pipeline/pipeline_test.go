package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-job-crawler/internal/config"
	"github.com/shouni/go-job-crawler/internal/logging"
	"github.com/shouni/go-job-crawler/pkg/crawl"
	"github.com/shouni/go-job-crawler/pkg/fetcher"
	"github.com/shouni/go-job-crawler/pkg/httpclient"
	"github.com/shouni/go-job-crawler/pkg/store"
)

// rewriteTransport はすべてのリクエストをテストサーバーに転送します。
type rewriteTransport struct {
	target *url.URL
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tim-viec-lam-moi-nhat", func(w http.ResponseWriter, r *http.Request) {
		switch page := r.URL.Query().Get("page"); page {
		case "1", "2":
			fmt.Fprintf(w, `<div class="job-item-search-result"><h3 class="title"><a href="/viec-lam/job/%s.html?ta_source=list">job</a></h3></div>`, page)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1 class="job-detail__info--title">Job %s</h1></body></html>`, filepath.Base(r.URL.Path))
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>jobs</title>
<item><title>a</title><link>https://www.topcv.vn/viec-lam/a/1.html?utm=rss</link></item>
<item><title>b</title><link>https://www.topcv.vn/viec-lam/b/2.html</link></item>
</channel></rss>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestConfig(t *testing.T, sink string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
retry:
  max_attempts: 2
  initial_delay: 1s
http:
  cloudflare_bypass: false
crawl:
  delay_min: 0s
  delay_max: 0s
  batch_size: 1
output:
  urls_file: %s
  dir: %s
  sink: %s
  sqlite_path: %s
`, filepath.Join(dir, "job_urls.txt"), filepath.Join(dir, "batches"), sink, filepath.Join(dir, "jobs.db"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, server *httptest.Server) *App {
	t.Helper()
	target, err := url.Parse(server.URL)
	require.NoError(t, err)
	return New(cfg, logging.Discard(), httpclient.WithTransport(&rewriteTransport{target: target}))
}

func writeURLs(t *testing.T, path string, urls ...string) {
	t.Helper()
	require.NoError(t, store.NewURLFile(path).Append(urls))
}

func TestApp_FetchOne(t *testing.T) {
	server := newTestServer(t)
	app := newTestApp(t, newTestConfig(t, config.SinkJSON), server)
	ctx := context.Background()

	res, err := app.FetchOne(ctx, server.URL+"/job/7.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, string(res.Body), "Job 7.html")

	_, err = app.FetchOne(ctx, server.URL+"/nothing")
	assert.True(t, fetcher.IsNotFound(err))

	_, err = app.FetchOne(ctx, "ftp://example.com/file")
	require.Error(t, err)
}

func TestApp_CollectURLs(t *testing.T) {
	server := newTestServer(t)
	cfg := newTestConfig(t, config.SinkJSON)
	app := newTestApp(t, cfg, server)

	writeURLs(t, cfg.Output.URLsFile, "https://old.example/1")

	sum, err := app.CollectURLs(context.Background(), "topcv", true)
	require.NoError(t, err)
	assert.Equal(t, crawl.StopNotFound, sum.StopReason)
	assert.Equal(t, 2, sum.URLs)
	assert.Equal(t, app.RunID, sum.RunID)

	urls, err := store.NewURLFile(cfg.Output.URLsFile).ReadURLs()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.topcv.vn/viec-lam/job/1.html",
		"https://www.topcv.vn/viec-lam/job/2.html",
	}, urls)

	_, err = app.CollectURLs(context.Background(), "unknown", false)
	require.Error(t, err)
}

func TestApp_CrawlDetails_JSON(t *testing.T) {
	server := newTestServer(t)
	cfg := newTestConfig(t, config.SinkJSON)
	app := newTestApp(t, cfg, server)

	input := filepath.Join(t.TempDir(), "input.txt")
	writeURLs(t, input, server.URL+"/job/1", server.URL+"/missing", server.URL+"/job/2")

	report, err := app.CrawlDetails(context.Background(), "topcv", input)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Batches)

	for _, name := range []string{"batch_1.json", "batch_2.json"} {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, name))
		assert.NoError(t, err, name)
	}
}

func TestApp_CrawlDetails_SQLite(t *testing.T) {
	server := newTestServer(t)
	cfg := newTestConfig(t, config.SinkSQLite)
	app := newTestApp(t, cfg, server)

	writeURLs(t, cfg.Output.URLsFile, server.URL+"/job/1", server.URL+"/job/2", server.URL+"/job/3")

	report, err := app.CrawlDetails(context.Background(), "topcv", "")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)

	ctx := context.Background()
	sink, err := store.NewSQLiteSink(ctx, cfg.Output.SQLitePath, "reader")
	require.NoError(t, err)
	defer sink.Close()

	n, err := sink.CountJobs(ctx, app.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestApp_CollectFeed(t *testing.T) {
	server := newTestServer(t)
	cfg := newTestConfig(t, config.SinkJSON)
	app := newTestApp(t, cfg, server)

	n, err := app.CollectFeed(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	urls, err := store.NewURLFile(cfg.Output.URLsFile).ReadURLs()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.topcv.vn/viec-lam/a/1.html", "https://www.topcv.vn/viec-lam/b/2.html"}, urls)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.topcv.vn/viec-lam", "https://www.topcv.vn/viec-lam", false},
		{"  www.topcv.vn/viec-lam ", "https://www.topcv.vn/viec-lam", false},
		{"http://123job.vn", "http://123job.vn", false},
		{"", "", true},
		{"ftp://example.com", "", true},
		{"https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
