// Package viewer posts the current system state to an external status
// website so it can be viewed remotely.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Poster submits state snapshots to the viewer website. A zero base URL
// disables it.
type Poster struct {
	baseURL   string
	accessKey string
	client    *http.Client
}

// New creates a Poster. An empty baseURL means posts are silently skipped.
func New(baseURL, accessKey string, timeout time.Duration) *Poster {
	return &Poster{
		baseURL:   baseURL,
		accessKey: accessKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// Post submits a state snapshot. Failures are reported but never fatal:
// the viewer is a convenience, not part of the control loop's guarantees.
func (p *Poster) Post(ctx context.Context, state any) error {
	if p == nil || p.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(state)
	if err != nil {
		return err
	}

	endpoint := p.baseURL + "/api/submit"
	if p.accessKey != "" {
		endpoint += "?key=" + url.QueryEscape(p.accessKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		log.Error().Str("url", p.baseURL).Msg("Viewer website rejected access key")
		return fmt.Errorf("viewer website access denied")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viewer website returned %s", resp.Status)
	}

	log.Debug().Str("url", p.baseURL).Int("bytes", len(body)).Msg("State posted to viewer")
	return nil
}
