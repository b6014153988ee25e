package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/delivery"
	"codeberg.org/arekan/animeshot/internal/session"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

const (
	callbackContactAdmin = "contact_admin"
	callbackCancelAnime  = "cancel:anime_search"
	callbackCancelAdmin  = "cancel:admin_message"
)

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	sess, err := b.sessions.Get(ctx, userID)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session load failed")
		b.answer(ctx, cb.ID, "", false)
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, delivery.CallbackPagePrefix):
		b.handlePageCallback(ctx, cb, chatID, userID, sess)

	case cb.Data == callbackCancelAnime:
		b.handleCancel(ctx, cb, chatID, userID, sess,
			session.ModeAwaitingAnimeQuery, "🔍 Anime search cancelled")

	case cb.Data == callbackCancelAdmin:
		b.handleCancel(ctx, cb, chatID, userID, sess,
			session.ModeAwaitingAdminMessage, "✉️ Message to the admin cancelled")

	case cb.Data == callbackContactAdmin:
		b.handleContactAdmin(ctx, cb, chatID, userID, sess)

	default:
		b.answer(ctx, cb.ID, "", false)
	}
}

// handlePageCallback navigates the user's current result set. While a
// query mode is active the navigation is refused, keeping the pending
// input flow unambiguous.
func (b *Bot) handlePageCallback(ctx context.Context, cb *telegram.CallbackQuery, chatID, userID int64, sess *session.Session) {
	if sess.Mode != session.ModeIdle {
		b.answer(ctx, cb.ID, "Finish the current input or cancel it first", true)
		return
	}

	page, err := strconv.Atoi(strings.TrimPrefix(cb.Data, delivery.CallbackPagePrefix))
	if err != nil {
		b.answer(ctx, cb.ID, "", false)
		return
	}

	if sess.LastResult != nil {
		newID, err := b.renderer.RenderPage(ctx, chatID, sess.LastResult, page, sess.LastMessageID)
		if err != nil {
			b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("page render failed")
		}
		if newID != 0 && newID != sess.LastMessageID {
			sess.LastMessageID = newID
			if err := b.sessions.Put(ctx, userID, sess); err != nil {
				b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
			}
		}
	}

	b.answer(ctx, cb.ID, "", false)
}

// handleCancel flips the matching query mode back to idle. A stale
// cancel button whose mode is no longer active is acknowledged and
// otherwise ignored.
func (b *Bot) handleCancel(ctx context.Context, cb *telegram.CallbackQuery, chatID, userID int64, sess *session.Session, want session.Mode, confirmation string) {
	if sess.Mode == want {
		sess.Mode = session.ModeIdle
		if err := b.sessions.Put(ctx, userID, sess); err != nil {
			b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
		}

		if err := b.transport.EditMessageText(ctx, telegram.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: cb.Message.MessageID,
			Text:      confirmation,
		}); err != nil {
			b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Debug("cancel confirmation edit failed")
		}
	}
	b.answer(ctx, cb.ID, "", false)
}

func (b *Bot) handleContactAdmin(ctx context.Context, cb *telegram.CallbackQuery, chatID, userID int64, sess *session.Session) {
	b.replyMarkup(ctx, chatID, "Write your message for the admin (text or a photo with a caption):",
		cancelKeyboard("❌ Don't send", callbackCancelAdmin))

	sess.Mode = session.ModeAwaitingAdminMessage
	if err := b.sessions.Put(ctx, userID, sess); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
	}

	b.answer(ctx, cb.ID, "", false)
}

func (b *Bot) answer(ctx context.Context, queryID, text string, showAlert bool) {
	if err := b.transport.AnswerCallbackQuery(ctx, queryID, text, showAlert); err != nil {
		b.log.WithField("error", err).Debug("callback answer failed")
	}
}
