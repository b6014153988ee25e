// Package meta looks up anime metadata by free-text title and renders
// it for chat delivery.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.jikan.moe/v4"
	lookupTimeout  = 20 * time.Second

	// searchLimit keeps candidate lists small; the lookup is single
	// best-effort, not paginated.
	searchLimit = 5
)

// Record is one anime's metadata. String fields are empty and numeric
// fields zero when the API does not know the value.
type Record struct {
	ID           int64
	Title        string
	TitleEnglish string
	Type         string
	AiredFrom    string
	AiredTo      string
	Status       string
	Episodes     int
	Duration     string
	Studios      []string
	Genres       []string
	Themes       []string
	Score        float64
	Rating       string
	Synopsis     string
	PosterURL    string
	URL          string
}

// LookupError is a metadata provider failure.
type LookupError struct {
	Code    int
	Message string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("metadata lookup failed (status %d): %s", e.Code, e.Message)
}

// Client queries a Jikan-compatible anime metadata API.
type Client struct {
	baseURL string
}

// NewClient creates a metadata client against the public API.
func NewClient() *Client {
	return &Client{baseURL: defaultBaseURL}
}

// NewClientWithBaseURL is used by tests to point at a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

// apiAnime mirrors the provider's anime object. Nullable fields use
// pointers so absent values stay zero.
type apiAnime struct {
	MalID        int64   `json:"mal_id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	TitleEnglish string  `json:"title_english"`
	Type         string  `json:"type"`
	Episodes     int     `json:"episodes"`
	Status       string  `json:"status"`
	Duration     string  `json:"duration"`
	Rating       string  `json:"rating"`
	Score        float64 `json:"score"`
	Synopsis     string  `json:"synopsis"`
	Aired        struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"aired"`
	Images struct {
		JPG struct {
			LargeImageURL string `json:"large_image_url"`
			ImageURL      string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Studios []apiNamed `json:"studios"`
	Genres  []apiNamed `json:"genres"`
	Themes  []apiNamed `json:"themes"`
}

type apiNamed struct {
	Name string `json:"name"`
}

func (a apiAnime) toRecord() Record {
	poster := a.Images.JPG.LargeImageURL
	if poster == "" {
		poster = a.Images.JPG.ImageURL
	}
	return Record{
		ID:           a.MalID,
		Title:        a.Title,
		TitleEnglish: a.TitleEnglish,
		Type:         a.Type,
		AiredFrom:    formatAirDate(a.Aired.From),
		AiredTo:      formatAirDate(a.Aired.To),
		Status:       a.Status,
		Episodes:     a.Episodes,
		Duration:     a.Duration,
		Studios:      names(a.Studios),
		Genres:       names(a.Genres),
		Themes:       names(a.Themes),
		Score:        a.Score,
		Rating:       a.Rating,
		Synopsis:     a.Synopsis,
		PosterURL:    poster,
		URL:          a.URL,
	}
}

func names(items []apiNamed) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			out = append(out, it.Name)
		}
	}
	return out
}

// formatAirDate reduces the provider's RFC 3339 timestamp to a date.
func formatAirDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

// SearchByTitle returns up to a handful of candidates matching the
// free-text title, best match first.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/anime?q=%s&limit=%d&sfw=true",
		c.baseURL, url.QueryEscape(title), searchLimit)

	var payload struct {
		Data []apiAnime `json:"data"`
	}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(payload.Data))
	for _, a := range payload.Data {
		records = append(records, a.toRecord())
	}
	return records, nil
}

// Detail fetches the full record for one anime ID.
func (c *Client) Detail(ctx context.Context, id int64) (*Record, error) {
	var payload struct {
		Data apiAnime `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/anime/%d", c.baseURL, id), &payload); err != nil {
		return nil, err
	}
	rec := payload.Data.toRecord()
	return &rec, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create metadata request: %w", err)
	}

	client := &http.Client{}
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &LookupError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode metadata response: %w", err)
	}
	return nil
}
