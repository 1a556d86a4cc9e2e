// Package valhalla implements the external pedestrian-matrix service
// client (§4.F, §6): a thin HTTP client shaped like
// angelodlfrtr-valhalla-http-client-go's typed request/response structs,
// with the 5-retry/100ms-backoff semantics grounded on
// solari/src/valhalla/mod.rs's matrix_request.
package valhalla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/solari-transit/engine/internal/metrics"
	"github.com/solari-transit/engine/internal/xerrors"
)

// Location is one source or target coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MatrixRequest is the request shape for POST|GET /sources_to_targets.
type MatrixRequest struct {
	Sources        []Location `json:"sources"`
	Targets        []Location `json:"targets"`
	Costing        string     `json:"costing"`
	MatrixLocations int       `json:"matrix_locations,omitempty"`
}

// MatrixLineItem is one entry of the sources_to_targets response matrix.
// Every field is optional per §6; missing or invalid entries are dropped
// by the caller rather than failing the whole response.
type MatrixLineItem struct {
	Distance  *float64 `json:"distance"`
	Time      *int     `json:"time"`
	ToIndex   *int     `json:"to_index"`
	FromIndex *int     `json:"from_index"`
}

// MatrixResponse is the /sources_to_targets response body.
type MatrixResponse struct {
	SourcesToTargets [][]MatrixLineItem `json:"sources_to_targets"`
}

// Client is a pedestrian-matrix HTTP client against a single Valhalla
// endpoint, shared across build and query goroutines as a connection
// pool (§5).
type Client struct {
	endpoint   string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// NewClient builds a Client against the given endpoint with a bounded
// per-call timeout, matching §5's "5 s default" external-service
// timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		retries:    5,
		backoff:    100 * time.Millisecond,
	}
}

// SourcesToTargets requests pedestrian walk times from sources to
// targets, retrying up to 5 times with a 100ms backoff on transient
// failure. Exhaustion surfaces xerrors.MatrixUnavailable.
func (c *Client) SourcesToTargets(ctx context.Context, sources, targets []Location) (*MatrixResponse, error) {
	req := MatrixRequest{Sources: sources, Targets: targets, Costing: "pedestrian"}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			metrics.MatrixRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
		resp, err := c.requestOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, xerrors.Wrap(xerrors.MatrixUnavailable, lastErr, "matrix service exhausted retries")
}

func (c *Client) requestOnce(ctx context.Context, req MatrixRequest) (*MatrixResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding matrix request")
	}
	u := fmt.Sprintf("%s/sources_to_targets?json=%s", c.endpoint, url.QueryEscape(string(body)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building matrix request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "matrix request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("matrix service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading matrix response")
	}
	var out MatrixResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decoding matrix response")
	}
	return &out, nil
}
