package meta

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"codeberg.org/arekan/animeshot/internal/telegram"
)

// synopsisLimit caps the separate synopsis message.
const synopsisLimit = 1000

// Transport is the slice of the chat transport the presenter needs.
type Transport interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, p telegram.SendPhotoParams) (*telegram.Message, error)
}

// Caption builds the structured HTML caption for a record. Fields the
// provider does not know are simply omitted.
func Caption(r *Record) string {
	var b strings.Builder

	title := r.Title
	if r.TitleEnglish != "" && r.TitleEnglish != r.Title {
		title = fmt.Sprintf("%s (%s)", r.Title, r.TitleEnglish)
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))

	appendField(&b, "Type", r.Type)
	if r.AiredFrom != "" {
		aired := r.AiredFrom
		if r.AiredTo != "" {
			aired += " — " + r.AiredTo
		}
		appendField(&b, "Aired", aired)
	}
	appendField(&b, "Status", r.Status)
	if r.Episodes > 0 {
		appendField(&b, "Episodes", fmt.Sprintf("%d", r.Episodes))
	}
	appendField(&b, "Duration", r.Duration)
	appendField(&b, "Studio", strings.Join(r.Studios, ", "))
	appendField(&b, "Genres", strings.Join(r.Genres, ", "))
	appendField(&b, "Themes", strings.Join(r.Themes, ", "))
	if r.Score > 0 {
		appendField(&b, "Score", fmt.Sprintf("%.2f", r.Score))
	}
	appendField(&b, "Rating", r.Rating)

	if r.URL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">More</a>", r.URL)
	}
	return b.String()
}

func appendField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<b>%s:</b> %s\n", label, html.EscapeString(value))
}

// Synopsis returns the record's synopsis capped for chat delivery, or
// empty when the provider has none.
func Synopsis(r *Record) string {
	s := strings.TrimSpace(r.Synopsis)
	if len(s) <= synopsisLimit {
		return s
	}

	// Cut at the last word boundary near the cap; text without spaces
	// there gets a plain rune-safe cut instead.
	cut := synopsisLimit
	if i := strings.LastIndexByte(s[:cut], ' '); i > synopsisLimit-40 {
		cut = i
	} else {
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

// Present delivers one record to the chat: poster with the structured
// caption, then the synopsis as its own message. A poster failure
// degrades to a text-only rendition. Single best-effort attempt.
func Present(ctx context.Context, transport Transport, log *logrus.Logger, chatID int64, r *Record) error {
	caption := Caption(r)

	sent := false
	if r.PosterURL != "" {
		_, err := transport.SendPhoto(ctx, telegram.SendPhotoParams{
			ChatID:  chatID,
			Photo:   r.PosterURL,
			Caption: caption,
		})
		if err != nil {
			log.WithFields(logrus.Fields{
				"chat_id": chatID,
				"error":   err,
			}).Warn("poster send failed, falling back to text")
		} else {
			sent = true
		}
	}
	if !sent {
		if _, err := transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:                chatID,
			Text:                  caption,
			DisableWebPagePreview: true,
		}); err != nil {
			return fmt.Errorf("send metadata: %w", err)
		}
	}

	if synopsis := Synopsis(r); synopsis != "" {
		if _, err := transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:                chatID,
			Text:                  fmt.Sprintf("<b>Synopsis</b>\n%s", html.EscapeString(synopsis)),
			DisableWebPagePreview: true,
		}); err != nil {
			return fmt.Errorf("send synopsis: %w", err)
		}
	}
	return nil
}
