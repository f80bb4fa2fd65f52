package sdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Usage returns the embedding usage report for the period. An empty period means day.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (_ *UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	var query url.Values
	if period != "" {
		query = url.Values{"period": {string(period)}}
	}

	var report UsageReport
	if _, err = c.do(ctx, http.MethodGet, c.endpoint(query, "v1", "usage"), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
