package api

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ResponsePNG  = "png"
	ResponseText = "text"
)

//go:embed assets/pixel.png
var defaultPNG []byte

// LoadPNG reads the image served in png mode; an empty path selects the
// embedded transparent pixel.
func LoadPNG(path string) ([]byte, error) {
	if path == "" {
		return defaultPNG, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response image %s: %w", path, err)
	}
	return b, nil
}

// Responder writes the synchronous answer to every captured request. It does
// not depend on whether the capture was queued.
type Responder struct {
	mode string
	png  []byte
	now  func() time.Time
}

func NewResponder(mode string, png []byte) (*Responder, error) {
	switch mode {
	case ResponsePNG:
		if len(png) == 0 {
			png = defaultPNG
		}
	case ResponseText:
	default:
		return nil, fmt.Errorf("unknown response mode %q", mode)
	}
	return &Responder{mode: mode, png: png, now: time.Now}, nil
}

func (r *Responder) Respond(c *gin.Context) {
	if r.mode == ResponsePNG {
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", r.png)
		return
	}
	c.String(http.StatusOK, "ok %s", r.now().UTC().Format(time.RFC3339))
}
