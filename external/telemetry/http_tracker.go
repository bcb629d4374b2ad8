package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hfcRed/Agent-8s-sub000/internal/telemetry"
)

// HTTPTracker posts lifecycle events to a webhook as JSON. An empty URL
// disables tracking entirely.
type HTTPTracker struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPTracker(webhookURL string) telemetry.Tracker {
	return &HTTPTracker{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

func (t *HTTPTracker) Track(ctx context.Context, ev telemetry.Event) error {
	if t.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("telemetry webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
