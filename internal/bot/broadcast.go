package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/telegram"
)

// handleSendAll broadcasts a message to every registered user, paced by
// the bot's rate limiter. Users who have blocked the bot are dropped
// from the registry.
func (b *Bot) handleSendAll(ctx context.Context, chatID, userID int64, text string) {
	if userID != b.adminID {
		return
	}
	if text == "" {
		b.reply(ctx, chatID, "No message text given.\nUsage: /sendall <text>")
		return
	}

	ids, err := b.users.All(ctx)
	if err != nil {
		b.log.WithError(err).Error("registry listing failed")
		b.reply(ctx, chatID, fmt.Sprintf("Broadcast error: %v", err))
		return
	}

	b.reply(ctx, chatID, "Starting the broadcast to all users...")

	var success int
	var failedIDs []string
	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			b.log.WithError(err).Warn("broadcast interrupted")
			break
		}

		_, err := b.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: id,
			Text:   text,
		})
		if err == nil {
			success++
			continue
		}

		failedIDs = append(failedIDs, strconv.FormatInt(id, 10))
		b.log.WithFields(logrus.Fields{"user_id": id, "error": err}).Warn("broadcast delivery failed")

		if telegram.IsBlocked(err) {
			if err := b.users.Remove(ctx, id); err != nil {
				b.log.WithFields(logrus.Fields{"user_id": id, "error": err}).Error("registry removal failed")
			}
		}
	}

	report := fmt.Sprintf(
		"Broadcast finished!\nTotal users: %d\nDelivered: %d\nFailed: %d",
		len(ids), success, len(failedIDs))

	if len(failedIDs) > 0 {
		shown := failedIDs
		if len(shown) > 10 {
			shown = shown[:10]
		}
		report += fmt.Sprintf("\n\nDelivery failed for IDs: %s", strings.Join(shown, ", "))
		if len(failedIDs) > 10 {
			report += fmt.Sprintf(" and %d more...", len(failedIDs)-10)
		}
	}

	b.reply(ctx, chatID, report)
}
