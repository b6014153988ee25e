package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sony/gobreaker"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/shot.jpg"
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart upload: %v", err)
		}
		if _, _, err := r.FormFile("upload"); err != nil {
			t.Errorf("missing upload field: %v", err)
		}
		fmt.Fprint(w, `{
			"results_url": "https://provider.example/r/123",
			"results": [
				{"title": "Show A – Episode 3", "url": "https://a.example", "thumbnail": "https://a.example/t.jpg"},
				{"title": "", "url": "https://b.example", "thumbnail": ""},
				{"title": "no url", "url": "", "thumbnail": ""}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.Search(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if result.ResultsURL != "https://provider.example/r/123" {
		t.Errorf("ResultsURL = %s", result.ResultsURL)
	}
	// Entries without a canonical URL are dropped.
	if len(result.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(result.Matches))
	}
	if got := result.Matches[0].CleanTitle(); got != "Show A" {
		t.Errorf("CleanTitle() = %q, want %q", got, "Show A")
	}
}

func TestSearchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), writeTestImage(t))
	var se *SearchError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SearchError", err)
	}
	if se.Code != "500" {
		t.Errorf("Code = %s, want 500", se.Code)
	}
}

func TestSearchMissingImage(t *testing.T) {
	c := NewClient("http://unused.example")
	_, err := c.Search(context.Background(), "/nonexistent/image.jpg")
	if err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestSearchBreakerOpensOnRepeatedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	img := writeTestImage(t)

	for i := 0; i < 4; i++ {
		if _, err := c.Search(context.Background(), img); err == nil {
			t.Fatalf("attempt %d unexpectedly succeeded", i)
		}
	}

	_, err := c.Search(context.Background(), img)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want circuit breaker open", err)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Naruto – Episode 1", "Naruto"},
		{"Bleach - best moments", "Bleach"},
		{"One Piece — compilation", "One Piece"},
		{"  Plain Title  ", "Plain Title"},
		{"", ""},
	}

	for _, tt := range tests {
		m := Match{Title: tt.title}
		if got := m.CleanTitle(); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
