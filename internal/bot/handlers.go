package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/frame"
	"codeberg.org/arekan/animeshot/internal/media"
	"codeberg.org/arekan/animeshot/internal/meta"
	"codeberg.org/arekan/animeshot/internal/session"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

const botName = "Anime From a Screenshot"

var videoHosts = []string{"youtube.com/shorts/", "youtu.be/", "tiktok.com"}

func isVideoURL(text string) bool {
	for _, host := range videoHosts {
		if strings.Contains(text, host) {
			return true
		}
	}
	return false
}

// splitCommand separates "/cmd rest of line" into its command and
// argument string.
func splitCommand(text string) (cmd, args string) {
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	// Commands may carry the bot's username in group chats.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	sess, err := b.sessions.Get(ctx, userID)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session load failed")
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, chatID, msg, sess)
		return
	}

	switch {
	case sess.Mode == session.ModeAwaitingAdminMessage:
		b.relayToAdmin(ctx, chatID, msg, sess)

	case sess.Mode == session.ModeAwaitingAnimeQuery && msg.Text != "":
		b.lookupAnime(ctx, chatID, userID, msg.Text, true)

	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, chatID, userID, msg, sess)

	case isVideoURL(msg.Text):
		b.handleVideoURL(ctx, chatID, userID, msg.Text, sess)

	default:
		b.log.WithField("user_id", userID).Debug("unhandled message")
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, msg *telegram.Message, sess *session.Session) {
	cmd, args := splitCommand(msg.Text)

	switch cmd {
	case "/start":
		b.handleStart(ctx, chatID, msg.From)
	case "/anime":
		b.handleAnimeCommand(ctx, chatID, msg.From.ID, args, sess)
	case "/menu":
		b.replyMarkup(ctx, chatID, "Main menu:", actionsKeyboard())
	case "/answer":
		b.handleAnswer(ctx, chatID, msg.From.ID, args)
	case "/sendall":
		b.handleSendAll(ctx, chatID, msg.From.ID, args)
	default:
		b.log.WithField("command", cmd).Debug("unknown command")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, user *telegram.User) {
	if err := b.users.Add(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("user registration failed")
	}

	b.reply(ctx, chatID, fmt.Sprintf(
		"Welcome to %s!\n\n"+
			"Send me a screenshot or a TikTok / YouTube Shorts link and I will show possible matches.\n\n"+
			"Use /anime to look up anime info by title.", botName))

	menu, err := b.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        "Don't forget to check here 👇",
		ReplyMarkup: actionsKeyboard(),
	})
	if err != nil {
		b.log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Error("menu message failed")
		return
	}

	// Pinning is cosmetic; failure must not break /start.
	b.transport.UnpinChatMessage(ctx, chatID)
	if err := b.transport.PinChatMessage(ctx, chatID, menu.MessageID); err != nil {
		b.log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Warn("pin failed")
	}
}

func (b *Bot) handlePhoto(ctx context.Context, chatID, userID int64, msg *telegram.Message, sess *session.Session) {
	b.reply(ctx, chatID, "Processing the image...")

	// The largest resolution variant is listed last.
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	imagePath, err := b.acquirer.FromPhoto(ctx, fileID)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("photo acquisition failed")
		b.reply(ctx, chatID, "❌ Could not process the image. Try another screenshot.")
		return
	}
	defer os.Remove(imagePath)

	b.runSearch(ctx, chatID, userID, imagePath, sess, true)
}

func (b *Bot) handleVideoURL(ctx context.Context, chatID, userID int64, url string, sess *session.Session) {
	b.reply(ctx, chatID, "Downloading the video and extracting the first frame...")

	framePath, err := b.acquirer.FromVideoURL(ctx, url)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("video acquisition failed")
		switch {
		case errors.Is(err, media.ErrDownloadFailed):
			b.reply(ctx, chatID, "Could not download the video. Check the link.")
		case errors.Is(err, frame.ErrNoUsableFrame):
			b.reply(ctx, chatID, "Could not extract a frame from the video.")
		default:
			b.reply(ctx, chatID, "❌ Could not process the video.")
		}
		return
	}
	defer os.Remove(framePath)

	b.runSearch(ctx, chatID, userID, framePath, sess, false)
}

// runSearch performs the reverse image search over a local image and
// renders the first result page.
func (b *Bot) runSearch(ctx context.Context, chatID, userID int64, imagePath string, sess *session.Session, share bool) {
	result, err := b.searcher.Search(ctx, imagePath)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("image search failed")
		b.reply(ctx, chatID, "❌ Could not identify the anime. Try another screenshot.")
		return
	}

	sess.SetResult(result)

	msgID, err := b.renderer.RenderPage(ctx, chatID, result, 1, 0)
	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("result delivery failed")
	}
	sess.LastMessageID = msgID

	if err := b.sessions.Put(ctx, userID, sess); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
	}

	if share && !result.Empty() {
		b.replyMarkup(ctx, chatID, "❤ Like the bot?\n\nShare it with a friend 🤗", shareKeyboard())
	}
}

func (b *Bot) handleAnimeCommand(ctx context.Context, chatID, userID int64, args string, sess *session.Session) {
	if args != "" {
		b.lookupAnime(ctx, chatID, userID, args, false)
		return
	}

	b.replyMarkup(ctx, chatID, "Type the anime title to search for:",
		cancelKeyboard("❌ Cancel search", callbackCancelAnime))

	sess.Mode = session.ModeAwaitingAnimeQuery
	if err := b.sessions.Put(ctx, userID, sess); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
	}
}

// lookupAnime resolves a free-text title to a metadata record and
// presents it. The caller holds the user's lock; it is released while
// the remote lookup runs so a cancel callback can be handled in the
// meantime, and the mode re-check afterwards observes its effect.
func (b *Bot) lookupAnime(ctx context.Context, chatID, userID int64, title string, viaMode bool) {
	b.reply(ctx, chatID, fmt.Sprintf("🔍 Looking up '%s'...", title))

	mu := b.userLock(userID)
	mu.Unlock()
	records, err := b.metadata.SearchByTitle(ctx, title)
	var record *meta.Record
	if err == nil && len(records) > 0 {
		record = &records[0]
		if detail, derr := b.metadata.Detail(ctx, record.ID); derr == nil {
			record = detail
		} else {
			b.log.WithFields(logrus.Fields{"anime_id": record.ID, "error": derr}).Warn("detail fetch failed, using the search record")
		}
	}
	mu.Lock()

	if err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("metadata lookup failed")
		b.reply(ctx, chatID, "An error occurred during the anime lookup.")
		b.resetQueryMode(ctx, userID, viaMode)
		return
	}
	if record == nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Anime '%s' not found.", title))
		b.resetQueryMode(ctx, userID, viaMode)
		return
	}

	if viaMode {
		// The user may have cancelled while the lookup was running.
		current, err := b.sessions.Get(ctx, userID)
		if err == nil && current.Mode != session.ModeAwaitingAnimeQuery {
			b.log.WithField("user_id", userID).Info("lookup cancelled, discarding result")
			return
		}
		b.resetQueryMode(ctx, userID, true)
	}

	if err := meta.Present(ctx, b.transport, b.log, chatID, record); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("metadata delivery failed")
		return
	}

	b.replyMarkup(ctx, chatID, "❤ Like the bot?\n\nShare it with a friend 🤗", shareKeyboard())
}

func (b *Bot) resetQueryMode(ctx context.Context, userID int64, viaMode bool) {
	if !viaMode {
		return
	}
	sess, err := b.sessions.Get(ctx, userID)
	if err != nil || sess.Mode != session.ModeAwaitingAnimeQuery {
		return
	}
	sess.Mode = session.ModeIdle
	if err := b.sessions.Put(ctx, userID, sess); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("session save failed")
	}
}

// relayToAdmin forwards the user's text or photo to the admin.
func (b *Bot) relayToAdmin(ctx context.Context, chatID int64, msg *telegram.Message, sess *session.Session) {
	header := fmt.Sprintf("Message from user <code>%d</code> (@%s):\n", msg.From.ID, msg.From.Username)
	const answerHint = "\n\nUse /answer <user id> <text> to reply"

	switch {
	case msg.Text != "":
		b.reply(ctx, b.adminID, header+msg.Text+answerHint)

	case len(msg.Photo) > 0:
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		path, err := b.acquirer.FromPhoto(ctx, fileID)
		if err != nil {
			b.log.WithFields(logrus.Fields{"user_id": msg.From.ID, "error": err}).Error("contact photo download failed")
			b.reply(ctx, chatID, "Could not forward the photo, please try again.")
			return
		}
		defer os.Remove(path)

		caption := header
		if msg.Caption != "" {
			caption += msg.Caption
		} else {
			caption += "[no text]"
		}
		if _, err := b.transport.SendPhotoUpload(ctx, b.adminID, path, caption+answerHint); err != nil {
			b.log.WithFields(logrus.Fields{"user_id": msg.From.ID, "error": err}).Error("contact photo relay failed")
			b.reply(ctx, chatID, "Could not forward the photo, please try again.")
			return
		}

	default:
		b.reply(ctx, chatID, "Please send text or a photo with a caption in a single message.")
		return
	}

	b.reply(ctx, chatID, "Your message has been sent to the admin!")

	sess.Mode = session.ModeIdle
	if err := b.sessions.Put(ctx, msg.From.ID, sess); err != nil {
		b.log.WithFields(logrus.Fields{"user_id": msg.From.ID, "error": err}).Error("session save failed")
	}
}

// handleAnswer lets the admin reply to a relayed contact message.
func (b *Bot) handleAnswer(ctx context.Context, chatID, userID int64, args string) {
	if userID != b.adminID {
		return
	}

	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(ctx, chatID, "Usage: /answer <user id> <text>")
		return
	}
	target, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /answer <user id> <text>")
		return
	}
	text := strings.Join(fields[1:], " ")

	if _, err := b.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: target,
		Text:   "Reply from the admin:\n" + text,
	}); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Reply sent to user %d", target))
}
