// Package delivery turns computed page views into chat messages. It
// owns the edit-vs-send decision, message shape selection, flow-control
// backoff and the text-only fallback path.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/paginate"
	"codeberg.org/arekan/animeshot/internal/search"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

const (
	// NotIdentifiedText is the fixed reply for an empty or absent
	// result set.
	NotIdentifiedText = "❌ Could not identify the anime. Try another screenshot."

	// maxSendAttempts bounds the flow-control retry loop. The wait-and
	// -retry cycle used to recurse without limit; a hard cap keeps a
	// hostile rate limiter from pinning a goroutine forever.
	maxSendAttempts = 3

	// mediaGroupDelay paces grouped sends, which trip the transport's
	// flood control far more readily than single messages.
	mediaGroupDelay = time.Second
)

// Transport is the slice of the chat transport the controller needs.
// *telegram.Client satisfies it; tests use a fake.
type Transport interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, p telegram.SendPhotoParams) (*telegram.Message, error)
	SendMediaGroup(ctx context.Context, chatID int64, media []telegram.InputMediaPhoto) ([]telegram.Message, error)
	EditMessageText(ctx context.Context, p telegram.EditMessageTextParams) error
	EditMessageMedia(ctx context.Context, chatID, messageID int64, media telegram.InputMediaPhoto, markup *telegram.InlineKeyboardMarkup) error
}

// Controller renders result pages. It is stateless itself; the caller
// passes the message to edit (zero for none) and stores the returned
// message ID.
type Controller struct {
	transport Transport
	log       *logrus.Logger
	pageSize  int

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewController creates a delivery controller with the default page
// size.
func NewController(transport Transport, log *logrus.Logger) *Controller {
	return &Controller{
		transport: transport,
		log:       log,
		pageSize:  paginate.DefaultPageSize,
		sleep:     time.Sleep,
	}
}

// RenderPage delivers one page of the result set to the chat, editing
// editMessageID in place when possible. It returns the ID of the
// message now carrying the pagination controls, or zero when nothing
// trackable was produced.
func (c *Controller) RenderPage(ctx context.Context, chatID int64, result *search.Result, page int, editMessageID int64) (int64, error) {
	if result.Empty() {
		return c.renderNotIdentified(ctx, chatID, editMessageID)
	}

	view := paginate.ComputePage(result.Matches, page, c.pageSize)
	markup := PaginationKeyboard(result.ResultsURL, view.Page, view.TotalPages)

	for attempt := 0; attempt < maxSendAttempts; attempt++ {
		msgID, err := c.renderOnce(ctx, chatID, view, markup, editMessageID)
		if err == nil {
			return msgID, nil
		}

		if delay, ok := telegram.RetryDelay(err); ok {
			c.log.WithFields(logrus.Fields{
				"chat_id": chatID,
				"delay":   delay,
				"attempt": attempt + 1,
			}).Warn("transport flow control, backing off")
			c.notifyWait(ctx, chatID, delay)
			c.sleep(delay)
			continue
		}

		// Anything non-flow-control degrades straight to the text-only
		// terminal path.
		c.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("delivery failed, falling back to text")
		return c.textFallback(ctx, chatID, view, markup, editMessageID)
	}

	return c.textFallback(ctx, chatID, view, markup, editMessageID)
}

// renderOnce performs a single edit-or-send pass for the page's shape.
func (c *Controller) renderOnce(ctx context.Context, chatID int64, view paginate.PageView, markup *telegram.InlineKeyboardMarkup, editMessageID int64) (int64, error) {
	switch {
	case len(view.Attachments) >= 2:
		// Grouped media cannot carry a keyboard and a sent group cannot
		// be edited into another shape, so a group page always sends
		// fresh: the photos first, then a trailing controls message.
		return c.sendGroup(ctx, chatID, view, markup)

	case len(view.Attachments) == 1:
		if editMessageID != 0 {
			media := telegram.NewPhotoMedia(view.Attachments[0].Thumbnail, view.Body)
			if err := c.transport.EditMessageMedia(ctx, chatID, editMessageID, media, markup); err == nil {
				return editMessageID, nil
			}
			// Edit rejected; fall through to a fresh send.
		}
		msg, err := c.transport.SendPhoto(ctx, telegram.SendPhotoParams{
			ChatID:      chatID,
			Photo:       view.Attachments[0].Thumbnail,
			Caption:     view.Body,
			ReplyMarkup: markup,
		})
		if err != nil {
			return 0, err
		}
		return msg.MessageID, nil

	default:
		if editMessageID != 0 {
			err := c.transport.EditMessageText(ctx, telegram.EditMessageTextParams{
				ChatID:                chatID,
				MessageID:             editMessageID,
				Text:                  view.Body,
				DisableWebPagePreview: true,
				ReplyMarkup:           markup,
			})
			if err == nil {
				return editMessageID, nil
			}
		}
		msg, err := c.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:                chatID,
			Text:                  view.Body,
			DisableWebPagePreview: true,
			ReplyMarkup:           markup,
		})
		if err != nil {
			return 0, err
		}
		return msg.MessageID, nil
	}
}

func (c *Controller) sendGroup(ctx context.Context, chatID int64, view paginate.PageView, markup *telegram.InlineKeyboardMarkup) (int64, error) {
	media := make([]telegram.InputMediaPhoto, 0, len(view.Attachments))
	for _, a := range view.Attachments {
		media = append(media, telegram.NewPhotoMedia(a.Thumbnail, a.Caption))
	}

	c.sleep(mediaGroupDelay)
	if _, err := c.transport.SendMediaGroup(ctx, chatID, media); err != nil {
		return 0, err
	}

	msg, err := c.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:                chatID,
		Text:                  view.Body,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// textFallback is the terminal best-effort path: the same page as plain
// text, attachments dropped, tried as an edit first and a send second.
func (c *Controller) textFallback(ctx context.Context, chatID int64, view paginate.PageView, markup *telegram.InlineKeyboardMarkup, editMessageID int64) (int64, error) {
	text := "An error occurred while sending the results. Text version:\n\n" + view.Body

	if editMessageID != 0 {
		err := c.transport.EditMessageText(ctx, telegram.EditMessageTextParams{
			ChatID:                chatID,
			MessageID:             editMessageID,
			Text:                  text,
			DisableWebPagePreview: true,
			ReplyMarkup:           markup,
		})
		if err == nil {
			return editMessageID, nil
		}
	}

	msg, err := c.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("text fallback failed")
		return 0, err
	}
	return msg.MessageID, nil
}

// renderNotIdentified delivers the fixed empty-result message with no
// pagination controls.
func (c *Controller) renderNotIdentified(ctx context.Context, chatID int64, editMessageID int64) (int64, error) {
	if editMessageID != 0 {
		err := c.transport.EditMessageText(ctx, telegram.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: editMessageID,
			Text:      NotIdentifiedText,
		})
		if err == nil {
			return editMessageID, nil
		}
	}
	msg, err := c.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: chatID,
		Text:   NotIdentifiedText,
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// notifyWait tells the user a mandatory wait is in progress. Best
// effort only.
func (c *Controller) notifyWait(ctx context.Context, chatID int64, delay time.Duration) {
	_, err := c.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("⚠️ Too fast! Waiting %d seconds...", int(delay.Seconds())),
	})
	if err != nil {
		c.log.WithField("chat_id", chatID).Debug("wait notice failed")
	}
}
