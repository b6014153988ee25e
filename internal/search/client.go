package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"
)

const (
	providerName  = "imagesearch"
	searchTimeout = 45 * time.Second
)

// Client submits a local image to the reverse image search provider and
// maps the raw response into a Result. It performs no retries; retry
// policy belongs to the delivery layer and covers delivery only.
type Client struct {
	endpoint string
	breaker  *gobreaker.CircuitBreaker
}

// NewClient creates a search client for the given provider endpoint.
// Calls pass through a circuit breaker so a dead provider fails fast
// instead of tying up every interaction for the full timeout.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        providerName,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
		}),
	}
}

// wire format of the provider response.
type providerResponse struct {
	Results []providerMatch `json:"results"`
	URL     string          `json:"results_url"`
}

type providerMatch struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// Search uploads the image at imagePath and returns the match list.
// Every transport or provider error comes back as an error value; the
// network session is scoped to the call and torn down on all paths.
func (c *Client) Search(ctx context.Context, imagePath string) (*Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.doSearch(ctx, imagePath)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Result), nil
}

func (c *Client) doSearch(ctx context.Context, imagePath string) (*Result, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("upload", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	// Session is scoped to this call.
	httpClient := &http.Client{Timeout: searchTimeout}
	defer httpClient.CloseIdleConnections()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &SearchError{
			Provider: providerName,
			Code:     fmt.Sprintf("%d", resp.StatusCode),
			Message:  string(body),
		}
	}

	var raw providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &Result{ResultsURL: raw.URL}
	result.Matches = make([]Match, 0, len(raw.Results))
	for _, m := range raw.Results {
		if m.URL == "" {
			continue
		}
		result.Matches = append(result.Matches, Match{
			Title:     m.Title,
			URL:       m.URL,
			Thumbnail: m.Thumbnail,
		})
	}
	return result, nil
}
