package delivery

import (
	"fmt"

	"codeberg.org/arekan/animeshot/internal/telegram"
)

// CallbackPagePrefix prefixes pagination callback payloads; the page
// number follows it.
const CallbackPagePrefix = "page_"

// PageCallback builds the callback payload selecting the given page.
func PageCallback(page int) string {
	return fmt.Sprintf("%s%d", CallbackPagePrefix, page)
}

// PaginationKeyboard builds the inline controls for a result page:
// previous/next buttons where a neighbouring page exists, plus a
// permanent link to the full provider results.
func PaginationKeyboard(resultsURL string, page, totalPages int) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton

	if totalPages > 1 {
		var nav []telegram.InlineKeyboardButton
		if page > 1 {
			nav = append(nav, telegram.InlineKeyboardButton{
				Text:         "⬅️ Back",
				CallbackData: PageCallback(page - 1),
			})
		}
		if page < totalPages {
			nav = append(nav, telegram.InlineKeyboardButton{
				Text:         "Next ➡️",
				CallbackData: PageCallback(page + 1),
			})
		}
		rows = append(rows, nav)
	}

	if resultsURL != "" {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text: "🔍 All results",
			URL:  resultsURL,
		}})
	}

	if len(rows) == 0 {
		return nil
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
