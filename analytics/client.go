package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client queries a remote reporting API (Core Reporting v3 shape). The access
// token is supplied by the host; the client neither refreshes nor retries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	ColumnHeaders []struct {
		Name string `json:"name"`
	} `json:"columnHeaders"`
	Rows         [][]string    `json:"rows"`
	TotalResults int           `json:"totalResults"`
	Error        *ServiceError `json:"error"`
}

// Query runs q against the remote API.
func (c *Client) Query(ctx context.Context, q Query) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/ga?"+q.Params().Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.ViewID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &ServiceError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		if out.Error.Code == 0 {
			out.Error.Code = resp.StatusCode
		}
		return nil, out.Error
	}
	if resp.StatusCode >= 400 {
		return nil, &ServiceError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	res := &Result{Rows: out.Rows, TotalResults: out.TotalResults}
	if res.Rows == nil {
		res.Rows = [][]string{}
	}
	for _, h := range out.ColumnHeaders {
		res.ColumnHeaders = append(res.ColumnHeaders, h.Name)
	}
	return res, nil
}
