package telegram

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
)

const (
	defaultBaseURL = "https://api.telegram.org"
	clientTimeout  = 60 * time.Second

	// ParseModeHTML is the formatting mode used for all rich text.
	ParseModeHTML = "HTML"
)

// Client is a minimal Bot API client covering the operations this bot
// needs. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: clientTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
	}
}

// NewClientWithBaseURL creates a client against a non-default API server.
// Tests point this at an httptest server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// apiResponse is the common Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// call performs a JSON POST to the given method and decodes the result
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp.Body, out)
}

func decodeResponse(r io.Reader, out any) error {
	var env apiResponse
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.OK {
		if env.ErrorCode == http.StatusTooManyRequests {
			retry := 1
			if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
				retry = env.Parameters.RetryAfter
			}
			return &FlowControlError{RetryAfter: time.Duration(retry) * time.Second}
		}
		return &RequestError{Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for new updates starting at offset and returns
// them together with the next offset to use.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// SendMessageParams configures a text send.
type SendMessageParams struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage sends a text message and returns the created message.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	if p.ParseMode == "" {
		p.ParseMode = ParseModeHTML
	}
	var m Message
	if err := c.call(ctx, "sendMessage", p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendPhotoParams configures a single-photo send. Photo is a remote URL
// or a file_id known to the transport.
type SendPhotoParams struct {
	ChatID      int64                 `json:"chat_id"`
	Photo       string                `json:"photo"`
	Caption     string                `json:"caption,omitempty"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendPhoto sends a photo with an optional caption and keyboard.
func (c *Client) SendPhoto(ctx context.Context, p SendPhotoParams) (*Message, error) {
	if p.ParseMode == "" {
		p.ParseMode = ParseModeHTML
	}
	var m Message
	if err := c.call(ctx, "sendPhoto", p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendMediaGroup sends 2..10 photos as one grouped message set.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, media []InputMediaPhoto) ([]Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"media":   media,
	}
	var msgs []Message
	if err := c.call(ctx, "sendMediaGroup", payload, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// EditMessageTextParams configures an in-place text edit.
type EditMessageTextParams struct {
	ChatID                int64                 `json:"chat_id"`
	MessageID             int64                 `json:"message_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageText replaces the text and keyboard of an existing message.
func (c *Client) EditMessageText(ctx context.Context, p EditMessageTextParams) error {
	if p.ParseMode == "" {
		p.ParseMode = ParseModeHTML
	}
	return c.call(ctx, "editMessageText", p, nil)
}

// EditMessageMedia replaces the photo and caption of an existing
// single-photo message.
func (c *Client) EditMessageMedia(ctx context.Context, chatID, messageID int64, media InputMediaPhoto, markup *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"media":      media,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageMedia", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with an
// alert popup.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error {
	payload := map[string]any{
		"callback_query_id": queryID,
	}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = showAlert
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// PinChatMessage pins a message without notifying chat members.
func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}
	return c.call(ctx, "pinChatMessage", payload, nil)
}

// UnpinChatMessage unpins the most recently pinned message.
func (c *Client) UnpinChatMessage(ctx context.Context, chatID int64) error {
	return c.call(ctx, "unpinChatMessage", map[string]any{"chat_id": chatID}, nil)
}

// GetFile resolves a file_id to a downloadable file path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile fetches a file previously resolved via GetFile and writes
// it to destPath. The partial file is removed on failure.
func (c *Client) DownloadFile(ctx context.Context, filePath, destPath string) error {
	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create download directory: %w", err)
		}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// SendPhotoUpload sends a photo from a local file via multipart upload.
func (c *Client) SendPhotoUpload(ctx context.Context, chatID int64, path, caption string) (*Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return nil, fmt.Errorf("write form field: %w", err)
		}
		if err := w.WriteField("parse_mode", ParseModeHTML); err != nil {
			return nil, fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := w.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	var m Message
	if err := decodeResponse(resp.Body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
