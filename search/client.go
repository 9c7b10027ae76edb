// Package search wraps the external web search API and a video-scoped variant
// built on top of it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultSearchBaseURL = "https://google.serper.dev"
	defaultMaxResults    = 5
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client issues search queries against a Serper-compatible JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - SEARCH_API_KEY: required API key for the provider
//   - SEARCH_BASE_URL: optional override for the API base URL
func NewClientFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("SEARCH_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("search: SEARCH_API_KEY environment variable is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("SEARCH_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("search: invalid base URL %q", baseURL)
	}

	return NewClient(baseURL, apiKey), nil
}

// NewClient constructs a Client with explicit configuration.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search runs one query and returns up to maxResults hits. Hits without a
// title or URL are dropped.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c == nil {
		return nil, errors.New("search: client is nil")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(searchRequest{Query: trimmed, Num: maxResults}); err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", body)
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("search: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Organic))
	for _, item := range decoded.Organic {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		results = append(results, Result{
			Title:   title,
			URL:     link,
			Snippet: strings.TrimSpace(item.Snippet),
		})
		if len(results) == maxResults {
			break
		}
	}
	return results, nil
}
