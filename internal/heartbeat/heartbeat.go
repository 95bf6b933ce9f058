// Package heartbeat pings an external liveness monitor.
package heartbeat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger sends liveness pings to a monitoring URL. A zero URL disables it.
type Pinger struct {
	url    string
	client *http.Client
}

// New creates a Pinger. An empty url means pings are silently skipped.
func New(url string, timeout time.Duration) *Pinger {
	return &Pinger{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Ping notifies the monitor. When fail is true the failure variant of the
// URL is hit instead, marking the service as down before it exits.
func (p *Pinger) Ping(ctx context.Context, fail bool) error {
	if p == nil || p.url == "" {
		return nil
	}

	url := p.url
	if fail {
		url += "/fail"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat monitor returned %s", resp.Status)
	}

	log.Debug().Str("url", url).Msg("Heartbeat sent")
	return nil
}
