package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type DefaultHTTPClient struct{ *http.Client }

func NewHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{Client: &http.Client{Timeout: timeout}}
}

// Get performs a GET and enforces a 2xx status. The caller owns the body.
func Get(ctx context.Context, c HTTPClient, url string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		logger.Debug("failed to create request: %v", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		logger.Debug("failed to perform request: %v", err)
		return nil, fmt.Errorf("%w: %v", errs.ErrNetworkUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		utils.Try(resp.Body.Close)
		logger.Debug("received non-2xx response: %d", resp.StatusCode)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return resp, nil
}

// GetJSON performs a GET and decodes a JSON body into out.
func GetJSON(ctx context.Context, c HTTPClient, url string, out any) error {
	resp, err := Get(ctx, c, url)
	if err != nil {
		return err
	}
	defer utils.Try(resp.Body.Close)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Debug("failed to decode response: %v", err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
