package codec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// HTTPTurnClient calls the turn service's JSON endpoint.
type HTTPTurnClient struct {
	httpClient *resty.Client
}

// NewHTTPTurnClient creates a client for the service at baseURL.
func NewHTTPTurnClient(baseURL string, timeout time.Duration) *HTTPTurnClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", "persona-controller/1.0").
		SetTimeout(timeout)
	return &HTTPTurnClient{httpClient: httpClient}
}

// Generate posts the request to /v1/turns.
func (c *HTTPTurnClient) Generate(ctx context.Context, req turn.Request) (turn.Response, error) {
	var resp turn.Response
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		Post("/v1/turns")
	if err != nil {
		return turn.Response{}, fmt.Errorf("turn request failed: %w", err)
	}
	if httpResp.IsError() {
		return turn.Response{}, fmt.Errorf("turn service error (%d): %s", httpResp.StatusCode(), httpResp.String())
	}
	return resp, nil
}

// Close is a no-op kept for symmetry with the gRPC client.
func (c *HTTPTurnClient) Close() error {
	return nil
}
