package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZanzyTHEbar/quizstat/internal/answers/answerstest"
	"github.com/ZanzyTHEbar/quizstat/internal/collate"
	"github.com/ZanzyTHEbar/quizstat/internal/config"
	"github.com/ZanzyTHEbar/quizstat/internal/database"
	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimitPerMinute = 1000
	for _, m := range mutate {
		m(cfg)
	}
	s := New(cfg, monitoring.Discard(), "test")
	t.Cleanup(s.Close)
	return s
}

func do(s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func respondentsJSON(t *testing.T, texts ...string) string {
	t.Helper()
	data, err := json.Marshal(map[string][]string{"respondents": texts})
	require.NoError(t, err)
	return string(data)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET /health returns OK status", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST /health is not routed", method: http.MethodPost, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, tt.method, "/health", "", "")
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	body := decode(t, do(s, http.MethodGet, "/health", "", ""))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "metrics")
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "rate_limit")
	assert.Equal(t, "DENY", do(s, http.MethodGet, "/health", "", "").Header().Get("X-Frame-Options"))
}

func TestExtractEndpoint(t *testing.T) {
	s := newTestServer(t)
	text := answerstest.QuizText(2, 0, 4)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "json body", contentType: "application/json", body: `{"text":` + mustJSON(t, text) + `}`},
		{name: "plain text body", contentType: "text/plain", body: text},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/extract", tt.contentType, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			body := decode(t, w)
			assert.EqualValues(t, 2, body["answered"])
			assert.EqualValues(t, 2.0, body["completion_rate"])
			ans := body["answers"].([]interface{})
			require.Len(t, ans, 100)
			assert.EqualValues(t, 2, ans[0])
			assert.EqualValues(t, 0, ans[1])
			assert.EqualValues(t, 4, ans[2])
			assert.True(t, strings.HasPrefix(body["summary"].(string), "Answer sequence: 2 0 4 0"))
		})
	}
}

func TestExtractRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodPost, "/extract", "application/json", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w)["category"])

	w = do(s, http.MethodPost, "/extract", "application/xml", "<quiz/>")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestAnalyzeRespondents(t *testing.T) {
	s := newTestServer(t)
	body := respondentsJSON(t,
		answerstest.QuizText(1, 2, 3, 4),
		answerstest.QuizText(1, 2, 3, 4),
	)

	w := do(s, http.MethodPost, "/analyze", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode(t, w)
	assert.Equal(t, "reported", res["stage"])
	stats := res["statistics"].(map[string]interface{})
	assert.EqualValues(t, 4, stats["answered_questions"])
	assert.EqualValues(t, 2.5, stats["overall_mean"])
	patterns := res["patterns"].(map[string]interface{})
	assert.Equal(t, "deliberate_pattern", patterns["hypothesis"])
	assert.EqualValues(t, 1, s.Metrics().PipelineRuns)
}

func TestAnalyzeCollatedDocument(t *testing.T) {
	s := newTestServer(t)
	doc := collate.Build([]collate.Entry{
		{Respondent: 1, Filename: collate.RespondentFilename(1), Content: answerstest.QuizText(answerstest.Repeat(2, 30)...)},
		{Respondent: 2, Filename: collate.RespondentFilename(2), Content: answerstest.QuizText(answerstest.Repeat(4, 30)...)},
	})

	w := do(s, http.MethodPost, "/analyze", "text/plain; charset=utf-8", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode(t, w)
	extraction := res["extraction"].(map[string]interface{})
	assert.EqualValues(t, 2, extraction["successful"])
	stats := res["statistics"].(map[string]interface{})
	assert.EqualValues(t, 3.0, stats["overall_mean"])
}

func TestAnalyzeFailures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name         string
		contentType  string
		body         string
		wantStatus   int
		wantCategory string
	}{
		{
			name:         "collated document without marker",
			contentType:  "text/plain",
			body:         "nothing to see here",
			wantStatus:   http.StatusUnprocessableEntity,
			wantCategory: "format",
		},
		{
			name:         "every respondent blank",
			contentType:  "application/json",
			body:         `{"respondents":["blank","also blank"]}`,
			wantStatus:   http.StatusUnprocessableEntity,
			wantCategory: "no_data",
		},
		{
			name:         "missing respondents",
			contentType:  "application/json",
			body:         `{}`,
			wantStatus:   http.StatusBadRequest,
			wantCategory: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/analyze", tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCategory, decode(t, w)["category"])
		})
	}
}

func TestAnalyzeFormats(t *testing.T) {
	s := newTestServer(t)
	body := respondentsJSON(t, answerstest.QuizText(1, 3, 1, 3))

	w := do(s, http.MethodPost, "/analyze?format=yaml", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "yaml")
	assert.Contains(t, w.Body.String(), "stage: reported")

	w = do(s, http.MethodPost, "/analyze?format=text", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "EXECUTIVE SUMMARY")

	w = do(s, http.MethodPost, "/analyze?format=xml", "application/json", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeIsCached(t *testing.T) {
	s := newTestServer(t)
	body := respondentsJSON(t, answerstest.QuizText(1, 2, 3))

	first := do(s, http.MethodPost, "/analyze", "application/json", body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(s, http.MethodPost, "/analyze", "application/json", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, s.Metrics().PipelineRuns)
}

func TestAnalyzeWithoutCache(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.CacheTTL = 0 })
	body := respondentsJSON(t, answerstest.QuizText(1, 2, 3))

	do(s, http.MethodPost, "/analyze", "application/json", body)
	w := do(s, http.MethodPost, "/analyze", "application/json", body)

	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, s.Metrics().PipelineRuns)
}

func TestSeriesEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := respondentsJSON(t,
		answerstest.QuizText(1, 2),
		answerstest.QuizText(3, 4),
	)

	tests := []struct {
		name       string
		kind       string
		wantStatus int
		wantKind   string
		wantLines  int
	}{
		{name: "scatter by number", kind: "1", wantStatus: http.StatusOK, wantKind: "scatter", wantLines: 1},
		{name: "lines by name", kind: "lines", wantStatus: http.StatusOK, wantKind: "lines", wantLines: 2},
		{name: "unknown kind", kind: "9", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/series/"+tt.kind, "application/json", body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			series := decode(t, w)
			assert.Equal(t, tt.wantKind, series["kind"])
			assert.Len(t, series["lines"], tt.wantLines)
		})
	}
}

func TestRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.RateLimitPerMinute = 1 })

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "", "").Code)
	w := do(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.EqualValues(t, 1, s.Metrics().RateLimited)
}

func TestGzipResponses(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(respondentsJSON(t, answerstest.QuizText(1, 2, 3))))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"stage":"reported"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.Default()
	s := New(cfg, monitoring.Discard(), "test")
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"https://a.test", "*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.test"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.test"}, cfg.AllowOrigins)
}

func TestRunHistory(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	s := New(cfg, monitoring.Discard(), "test", WithHistory(database.NewRepository(db)))
	defer s.Close()

	w := do(s, http.MethodPost, "/analyze", "application/json", respondentsJSON(t, answerstest.QuizText(1, 2, 3)))
	require.Equal(t, http.StatusOK, w.Code)
	runID := decode(t, w)["run_id"].(string)

	do(s, http.MethodPost, "/analyze", "application/json", `{"respondents":["blank"]}`)

	w = do(s, http.MethodGet, "/runs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode(t, w)["runs"].([]interface{})
	assert.Len(t, runs, 2)

	w = do(s, http.MethodGet, "/runs/"+runID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, runID, decode(t, w)["run_id"])

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/runs/missing", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/runs?limit=many", "", "").Code)
}

func TestRunsRouteNeedsHistory(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/runs", "", "").Code)
}
