package promql

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/common/model"
)

const defaultQueryTimeout = 10 * time.Second

// Client queries a Prometheus-compatible HTTP API (instant queries against
// /api/v1/query). The HTTP client is built once and reused across calls.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the Prometheus server at baseURL
// (e.g. "http://localhost:9090").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultQueryTimeout},
	}
}

// apiResponse is the Prometheus query API response wrapper.
type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string          `json:"resultType"`
		Result     json.RawMessage `json:"result"`
	} `json:"data"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
}

// Query executes one instant PromQL query and returns the result as a sample
// vector. Scalar results are wrapped in a single-sample vector.
func (c *Client) Query(ctx context.Context, query string) (model.Vector, error) {
	u := c.baseURL + "/api/v1/query?" + url.Values{"query": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("promql: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("promql: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("promql: unexpected status %d", resp.StatusCode)
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("promql: decode response: %w", err)
	}
	if ar.Status != "success" {
		return nil, fmt.Errorf("promql: query failed: %s: %s", ar.ErrorType, ar.Error)
	}

	switch ar.Data.ResultType {
	case "vector":
		var vec model.Vector
		if err := json.Unmarshal(ar.Data.Result, &vec); err != nil {
			return nil, fmt.Errorf("promql: decode vector: %w", err)
		}
		return vec, nil

	case "scalar":
		var s model.Scalar
		if err := json.Unmarshal(ar.Data.Result, &s); err != nil {
			return nil, fmt.Errorf("promql: decode scalar: %w", err)
		}
		return model.Vector{{Value: s.Value, Timestamp: s.Timestamp}}, nil

	default:
		return nil, fmt.Errorf("promql: unsupported result type %q", ar.Data.ResultType)
	}
}

// queryScalar runs query and reduces the result to a single float.
// An empty result, NaN, or an infinity yields zero — absent series are
// treated as "no traffic", not as an error.
func (c *Client) queryScalar(ctx context.Context, query string) (float64, error) {
	vec, err := c.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, nil
	}
	v := float64(vec[0].Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}
