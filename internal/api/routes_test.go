package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cankoe/misuse-recorder/internal/capture"
	"github.com/cankoe/misuse-recorder/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHistory struct {
	records []models.CaptureRecord
	err     error
	limit   int
}

func (f *fakeHistory) RecentHistory(ctx context.Context, limit int) ([]models.CaptureRecord, error) {
	f.limit = limit
	return f.records, f.err
}

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []capture.Job
}

func (s *recordingSubmitter) Submit(job capture.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return true
}

func newTestRouter(t *testing.T, mode string, hist *fakeHistory) (*gin.Engine, *recordingSubmitter) {
	t.Helper()
	responder, err := NewResponder(mode, nil)
	require.NoError(t, err)

	sub := &recordingSubmitter{}
	r, err := NewRouter(Dependencies{
		History:        hist,
		Pipeline:       sub,
		Responder:      responder,
		TrustedProxies: []string{"0.0.0.0/0"},
	})
	require.NoError(t, err)
	return r, sub
}

func serve(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDashboardRendersRecentHistory(t *testing.T) {
	hist := &fakeHistory{records: []models.CaptureRecord{
		{ID: 2, Method: "POST", URL: "wp-login.php", ClientIP: "192.0.2.2", ClientGeo: "Paris, FR", CreatedAt: time.Now()},
		{ID: 1, Method: "GET", URL: "<script>", ClientIP: "192.0.2.1", CreatedAt: time.Now()},
	}}
	r, sub := newTestRouter(t, ResponsePNG, hist)

	w := serve(r, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "wp-login.php")
	assert.Contains(t, body, "Paris, FR")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Less(t, strings.Index(body, "wp-login.php"), strings.Index(body, "&lt;script&gt;"))
	assert.Equal(t, 100, hist.limit)
	assert.Empty(t, sub.jobs)
}

func TestDashboardJSON(t *testing.T) {
	hist := &fakeHistory{records: []models.CaptureRecord{{ID: 5, Method: "GET", URL: "x"}}}
	r, _ := newTestRouter(t, ResponsePNG, hist)

	w := serve(r, http.MethodGet, "/", map[string]string{"Accept": "application/json"})

	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Records []models.CaptureRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.Records, 1)
	assert.Equal(t, int64(5), payload.Records[0].ID)
}

func TestDashboardStoreFailure(t *testing.T) {
	r, _ := newTestRouter(t, ResponsePNG, &fakeHistory{err: errors.New("db down")})

	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCaptureRouting(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		wantURL string
	}{
		{name: "root with query", method: http.MethodGet, target: "/?q=1", wantURL: "?q=1"},
		{name: "post root", method: http.MethodPost, target: "/", wantURL: ""},
		{name: "nested path", method: http.MethodGet, target: "/.env", wantURL: ".env"},
		{name: "escaped newline", method: http.MethodPut, target: "/a%0Ab?x=1", wantURL: `a\nb?x=1`},
		{name: "custom verb", method: "PROPFIND", target: "/webdav/", wantURL: "webdav/"},
		{name: "delete", method: http.MethodDelete, target: "/users/1", wantURL: "users/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sub := newTestRouter(t, ResponsePNG, &fakeHistory{})

			w := serve(r, tt.method, tt.target, map[string]string{"X-Forwarded-For": "203.0.113.50"})

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
			require.Len(t, sub.jobs, 1)
			job := sub.jobs[0]
			assert.Equal(t, tt.wantURL, job.URL)
			assert.Equal(t, strings.ToUpper(tt.method), job.Method)
			assert.Equal(t, "203.0.113.50", job.ClientIP)
			assert.WithinDuration(t, time.Now().UTC(), job.ReceivedAt, 5*time.Second)
			assert.NotContains(t, job.URL, "\n")
		})
	}
}

func TestFaviconIsNotCaptured(t *testing.T) {
	r, sub := newTestRouter(t, ResponsePNG, &fakeHistory{})

	for _, target := range []string{"/favicon.ico", "/favicon.ico?v=2"} {
		w := serve(r, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusOK, w.Code, target)
	}
	assert.Empty(t, sub.jobs)

	serve(r, http.MethodGet, "/static/favicon.ico", nil)
	require.Len(t, sub.jobs, 1)
	assert.Equal(t, "static/favicon.ico", sub.jobs[0].URL)
}

func TestTextResponseMode(t *testing.T) {
	r, sub := newTestRouter(t, ResponseText, &fakeHistory{})

	w := serve(r, http.MethodGet, "/scan", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "ok "))
	_, err := time.Parse(time.RFC3339, strings.TrimPrefix(w.Body.String(), "ok "))
	assert.NoError(t, err)
	assert.Len(t, sub.jobs, 1)
}

func TestPreflightIsAnsweredWithoutCapture(t *testing.T) {
	r, sub := newTestRouter(t, ResponsePNG, &fakeHistory{})

	w := serve(r, http.MethodOptions, "/api", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://evil.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, sub.jobs)

	w = serve(r, http.MethodOptions, "/api", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, sub.jobs, 1)
}

func TestNewResponder(t *testing.T) {
	_, err := NewResponder("gif", nil)
	assert.Error(t, err)

	resp, err := NewResponder(ResponsePNG, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultPNG, resp.png)

	png, err := LoadPNG("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

	_, err = LoadPNG("/does/not/exist.png")
	assert.Error(t, err)
}
