package geo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ipinfo/go/v2/ipinfo"
)

// Locator resolves an IP address against an upstream provider.
type Locator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// IPInfoLocator looks addresses up on ipinfo.io.
type IPInfoLocator struct {
	client *ipinfo.Client
}

// NewIPInfoLocator builds a locator authenticated with token. An empty token
// uses the anonymous, rate limited tier. The ipinfo client cache is left off
// because results are cached in Redis.
func NewIPInfoLocator(token string, timeout time.Duration) *IPInfoLocator {
	httpClient := &http.Client{Timeout: timeout}
	return &IPInfoLocator{client: ipinfo.NewClient(httpClient, nil, token)}
}

func (l *IPInfoLocator) Lookup(ctx context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("invalid ip address %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return Location{}, nil
	}

	type result struct {
		core *ipinfo.Core
		err  error
	}
	done := make(chan result, 1)
	go func() {
		core, err := l.client.GetIPInfo(parsed)
		done <- result{core: core, err: err}
	}()

	select {
	case <-ctx.Done():
		return Location{}, fmt.Errorf("ipinfo lookup for %s: %w", ip, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return Location{}, fmt.Errorf("ipinfo lookup for %s: %w", ip, res.err)
		}
		if res.core == nil {
			return Location{}, fmt.Errorf("ipinfo lookup for %s: empty response", ip)
		}
		return Location{City: res.core.City, Region: res.core.Region, Country: res.core.Country}, nil
	}
}
