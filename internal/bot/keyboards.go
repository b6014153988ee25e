package bot

import "codeberg.org/arekan/animeshot/internal/telegram"

func actionsKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Contact the admin", CallbackData: callbackContactAdmin}},
		},
	}
}

func shareKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Share in a chat 🚀", SwitchInlineQuery: " – anime screenshot search bot"}},
		},
	}
}

func cancelKeyboard(text, data string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: text, CallbackData: data}},
		},
	}
}
