package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerExposesCollectors(t *testing.T) {
	Captures.WithLabelValues("queued").Inc()
	GeoLookups.WithLabelValues("hit").Inc()

	srv := NewServer(":0")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `misuse_captures_total{outcome="queued"}`)
	assert.Contains(t, w.Body.String(), `misuse_geo_lookups_total{result="hit"}`)
}
