package api

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/cankoe/misuse-recorder/internal/capture"
	"github.com/cankoe/misuse-recorder/internal/history"
	"github.com/cankoe/misuse-recorder/internal/metrics"
	"github.com/cankoe/misuse-recorder/internal/models"
	"github.com/cankoe/misuse-recorder/internal/urlnorm"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

//go:embed templates/index.html
var templatesFS embed.FS

// HistoryReader serves the dashboard.
type HistoryReader interface {
	RecentHistory(ctx context.Context, limit int) ([]models.CaptureRecord, error)
}

// Submitter accepts capture jobs without blocking.
type Submitter interface {
	Submit(job capture.Job) bool
}

type Dependencies struct {
	History        HistoryReader
	Pipeline       Submitter
	Responder      *Responder
	TrustedProxies []string
}

// NewRouter builds the gin engine. Every path and method reaches the same
// handler, which splits dashboard reads from captures.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORS())

	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	h := &handler{history: deps.History, pipeline: deps.Pipeline, responder: deps.Responder}
	r.Any("/*path", h.handle)
	// Methods outside gin's Any set (PROPFIND, custom verbs) land here.
	r.NoRoute(h.handle)

	return r, nil
}

type handler struct {
	history   HistoryReader
	pipeline  Submitter
	responder *Responder
}

// isDashboard reports whether r is a plain GET of the root without a query.
func isDashboard(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == "/" && r.URL.RawQuery == ""
}

func (h *handler) handle(c *gin.Context) {
	if isDashboard(c.Request) {
		c.Set(requestKindKey, "dashboard")
		h.dashboard(c)
		return
	}

	receivedAt := time.Now().UTC()
	url := urlnorm.Normalize(urlnorm.FromRequest(c.Request))

	if urlnorm.IsExcluded(url) {
		c.Set(requestKindKey, "excluded")
		metrics.Captures.WithLabelValues("skipped").Inc()
	} else {
		c.Set(requestKindKey, "capture")
		h.pipeline.Submit(capture.Job{
			URL:        url,
			Method:     strings.ToUpper(c.Request.Method),
			ClientIP:   c.ClientIP(),
			ReceivedAt: receivedAt,
		})
	}

	h.responder.Respond(c)
}

func (h *handler) dashboard(c *gin.Context) {
	records, err := h.history.RecentHistory(c.Request.Context(), history.DefaultLimit)
	if err != nil {
		log.Error().Err(err).Str("route", "GET /").Msg("Failed to fetch capture history")
		c.String(http.StatusInternalServerError, "Failed to fetch history. Please try again later.")
		return
	}

	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.JSON(http.StatusOK, gin.H{"records": records})
	default:
		c.HTML(http.StatusOK, "index.html", gin.H{"Records": records})
	}
}
