package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Health returns the server health. A degraded or unhealthy server answers 503 with the
// same body, which is returned without an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	_, err := c.do(ctx, http.MethodGet, c.endpoint(nil, "health"), nil, &status)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if jerr := json.Unmarshal([]byte(apiErr.Message), &status); jerr == nil && status.Status != "" {
			return status, nil
		}
	}
	if err != nil {
		return HealthStatus{}, err
	}
	return status, nil
}
