package delivery

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/search"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

type fakeTransport struct {
	sendErrs  []error
	photoErrs []error
	groupErrs []error

	editTextErr  error
	editMediaErr error

	nextID int64

	sent        []telegram.SendMessageParams
	photos      []telegram.SendPhotoParams
	groups      [][]telegram.InputMediaPhoto
	editedText  []telegram.EditMessageTextParams
	editedMedia []int64
}

func popErr(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (f *fakeTransport) SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	if err := popErr(&f.sendErrs); err != nil {
		return nil, err
	}
	f.sent = append(f.sent, p)
	f.nextID++
	return &telegram.Message{MessageID: f.nextID}, nil
}

func (f *fakeTransport) SendPhoto(ctx context.Context, p telegram.SendPhotoParams) (*telegram.Message, error) {
	if err := popErr(&f.photoErrs); err != nil {
		return nil, err
	}
	f.photos = append(f.photos, p)
	f.nextID++
	return &telegram.Message{MessageID: f.nextID}, nil
}

func (f *fakeTransport) SendMediaGroup(ctx context.Context, chatID int64, media []telegram.InputMediaPhoto) ([]telegram.Message, error) {
	if err := popErr(&f.groupErrs); err != nil {
		return nil, err
	}
	f.groups = append(f.groups, media)
	return nil, nil
}

func (f *fakeTransport) EditMessageText(ctx context.Context, p telegram.EditMessageTextParams) error {
	if f.editTextErr != nil {
		return f.editTextErr
	}
	f.editedText = append(f.editedText, p)
	return nil
}

func (f *fakeTransport) EditMessageMedia(ctx context.Context, chatID, messageID int64, media telegram.InputMediaPhoto, markup *telegram.InlineKeyboardMarkup) error {
	if f.editMediaErr != nil {
		return f.editMediaErr
	}
	f.editedMedia = append(f.editedMedia, messageID)
	return nil
}

func newTestController(transport Transport) (*Controller, *[]time.Duration) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewController(transport, log)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func matchesWithThumbs(n int) []search.Match {
	matches := make([]search.Match, n)
	for i := range matches {
		matches[i] = search.Match{
			Title:     "Some Anime - Episode 3",
			URL:       "https://example.com/page",
			Thumbnail: "https://example.com/thumb.jpg",
		}
	}
	return matches
}

func textOnlyResult(n int) *search.Result {
	matches := make([]search.Match, n)
	for i := range matches {
		matches[i] = search.Match{Title: "Some Anime", URL: "https://example.com/page"}
	}
	return &search.Result{Matches: matches, ResultsURL: "https://provider.example/all"}
}

func TestRenderPageTextShapeSendsFresh(t *testing.T) {
	transport := &fakeTransport{}
	c, _ := newTestController(transport)

	msgID, err := c.RenderPage(context.Background(), 10, textOnlyResult(2), 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID == 0 {
		t.Error("no message ID returned")
	}
	if len(transport.sent) != 1 {
		t.Fatalf("SendMessage calls = %d, want 1", len(transport.sent))
	}
	if transport.sent[0].ReplyMarkup == nil {
		t.Error("pagination keyboard missing")
	}
	if len(transport.photos) != 0 || len(transport.groups) != 0 {
		t.Error("attachment-free page sent media")
	}
}

func TestRenderPageEditsInPlace(t *testing.T) {
	transport := &fakeTransport{}
	c, _ := newTestController(transport)

	msgID, err := c.RenderPage(context.Background(), 10, textOnlyResult(2), 1, 55)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID != 55 {
		t.Errorf("message ID = %d, want 55 (edited in place)", msgID)
	}
	if len(transport.editedText) != 1 {
		t.Fatalf("EditMessageText calls = %d, want 1", len(transport.editedText))
	}
	if len(transport.sent) != 0 {
		t.Error("edit success still sent a fresh message")
	}
}

func TestRenderPageEditFailureFallsToSend(t *testing.T) {
	transport := &fakeTransport{
		editTextErr: &telegram.RequestError{Code: 400, Description: "message is not modified"},
	}
	c, _ := newTestController(transport)

	msgID, err := c.RenderPage(context.Background(), 10, textOnlyResult(2), 1, 55)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID == 55 || msgID == 0 {
		t.Errorf("message ID = %d, want a fresh one", msgID)
	}
	if len(transport.sent) != 1 {
		t.Errorf("SendMessage calls = %d, want 1", len(transport.sent))
	}
}

func TestRenderPageSinglePhotoShape(t *testing.T) {
	transport := &fakeTransport{}
	c, _ := newTestController(transport)

	result := &search.Result{Matches: matchesWithThumbs(1), ResultsURL: "https://provider.example/all"}
	_, err := c.RenderPage(context.Background(), 10, result, 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if len(transport.photos) != 1 {
		t.Fatalf("SendPhoto calls = %d, want 1", len(transport.photos))
	}
	if transport.photos[0].ReplyMarkup == nil {
		t.Error("single photo page lost its keyboard")
	}
	if transport.photos[0].Caption == "" {
		t.Error("single photo page lost its caption body")
	}
	if len(transport.sent) != 0 {
		t.Error("single photo page sent a separate text message")
	}
}

func TestRenderPageSinglePhotoEditsMedia(t *testing.T) {
	transport := &fakeTransport{}
	c, _ := newTestController(transport)

	result := &search.Result{Matches: matchesWithThumbs(1), ResultsURL: "https://provider.example/all"}
	msgID, err := c.RenderPage(context.Background(), 10, result, 1, 55)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID != 55 {
		t.Errorf("message ID = %d, want 55", msgID)
	}
	if len(transport.editedMedia) != 1 || transport.editedMedia[0] != 55 {
		t.Errorf("EditMessageMedia calls = %v, want [55]", transport.editedMedia)
	}
}

func TestRenderPageGroupShapeNeverEdits(t *testing.T) {
	transport := &fakeTransport{}
	c, slept := newTestController(transport)

	result := &search.Result{Matches: matchesWithThumbs(3), ResultsURL: "https://provider.example/all"}
	msgID, err := c.RenderPage(context.Background(), 10, result, 1, 55)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if len(transport.editedText) != 0 || len(transport.editedMedia) != 0 {
		t.Error("grouped page attempted an edit")
	}
	if len(transport.groups) != 1 {
		t.Fatalf("SendMediaGroup calls = %d, want 1", len(transport.groups))
	}
	if len(transport.groups[0]) != 3 {
		t.Errorf("group size = %d, want 3", len(transport.groups[0]))
	}
	if len(transport.sent) != 1 {
		t.Fatalf("trailing controls message missing")
	}
	if transport.sent[0].ReplyMarkup == nil {
		t.Error("controls message has no keyboard")
	}
	if msgID == 55 || msgID == 0 {
		t.Errorf("message ID = %d, want the trailing message's", msgID)
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Errorf("group pacing delay = %v, want [1s]", *slept)
	}
}

func TestRenderPageFlowControlRetriesOnce(t *testing.T) {
	transport := &fakeTransport{
		// First page send is throttled; the wait notice and the retry
		// succeed.
		sendErrs: []error{&telegram.FlowControlError{RetryAfter: 2 * time.Second}},
	}
	c, slept := newTestController(transport)

	msgID, err := c.RenderPage(context.Background(), 10, textOnlyResult(2), 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID == 0 {
		t.Error("retry did not produce a message")
	}
	if len(*slept) != 1 || (*slept)[0] != 2*time.Second {
		t.Errorf("waits = %v, want [2s]", *slept)
	}

	// One wait notice plus the retried page send.
	var notices, pages int
	for _, p := range transport.sent {
		if strings.HasPrefix(p.Text, "⚠️") {
			notices++
		} else {
			pages++
		}
	}
	if notices != 1 || pages != 1 {
		t.Errorf("notices = %d, page sends = %d, want 1 and 1", notices, pages)
	}
}

func TestRenderPageFlowControlExhaustsIntoTextFallback(t *testing.T) {
	throttle := &telegram.FlowControlError{RetryAfter: time.Second}
	transport := &fakeTransport{
		// Each attempt is a page send followed by a wait notice; all
		// three page sends are throttled, then the fallback goes through.
		sendErrs: []error{throttle, nil, throttle, nil, throttle, nil},
	}
	c, slept := newTestController(transport)

	msgID, err := c.RenderPage(context.Background(), 10, textOnlyResult(2), 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID == 0 {
		t.Error("fallback did not produce a message")
	}
	if len(*slept) != 3 {
		t.Errorf("waits = %d, want 3", len(*slept))
	}

	last := transport.sent[len(transport.sent)-1]
	if !strings.Contains(last.Text, "Text version") {
		t.Errorf("final message is not the text fallback: %q", last.Text)
	}
}

func TestRenderPagePermanentErrorFallsToText(t *testing.T) {
	transport := &fakeTransport{
		photoErrs: []error{&telegram.RequestError{Code: 400, Description: "wrong file identifier"}},
	}
	c, _ := newTestController(transport)

	result := &search.Result{Matches: matchesWithThumbs(1), ResultsURL: "https://provider.example/all"}
	msgID, err := c.RenderPage(context.Background(), 10, result, 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if msgID == 0 {
		t.Error("fallback did not produce a message")
	}
	if len(transport.sent) != 1 || !strings.Contains(transport.sent[0].Text, "Text version") {
		t.Errorf("expected a single text fallback send, got %+v", transport.sent)
	}
}

func TestRenderPageEmptyResult(t *testing.T) {
	transport := &fakeTransport{}
	c, _ := newTestController(transport)

	_, err := c.RenderPage(context.Background(), 10, &search.Result{}, 1, 0)
	if err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("SendMessage calls = %d, want 1", len(transport.sent))
	}
	if transport.sent[0].Text != NotIdentifiedText {
		t.Errorf("text = %q, want the fixed not-identified message", transport.sent[0].Text)
	}
	if transport.sent[0].ReplyMarkup != nil {
		t.Error("empty result carries pagination controls")
	}
}

func TestPaginationKeyboard(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		total      int
		wantBack   bool
		wantNext   bool
	}{
		{"first of many", 1, 3, false, true},
		{"middle", 2, 3, true, true},
		{"last of many", 3, 3, true, false},
		{"single page", 1, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := PaginationKeyboard("https://provider.example/all", tt.page, tt.total)
			if markup == nil {
				t.Fatal("nil markup")
			}

			var back, next, link bool
			for _, row := range markup.InlineKeyboard {
				for _, btn := range row {
					switch {
					case btn.CallbackData == PageCallback(tt.page-1):
						back = true
					case btn.CallbackData == PageCallback(tt.page+1):
						next = true
					case btn.URL != "":
						link = true
					}
				}
			}
			if back != tt.wantBack {
				t.Errorf("back button = %v, want %v", back, tt.wantBack)
			}
			if next != tt.wantNext {
				t.Errorf("next button = %v, want %v", next, tt.wantNext)
			}
			if !link {
				t.Error("all-results link missing")
			}
		})
	}
}

func TestPaginationKeyboardNoURL(t *testing.T) {
	if markup := PaginationKeyboard("", 1, 1); markup != nil {
		t.Errorf("markup = %+v, want nil", markup)
	}
}
