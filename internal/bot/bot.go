// Package bot wires the transport, media pipeline, search and delivery
// components into the long-poll update loop and the per-command
// handlers.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"codeberg.org/arekan/animeshot/internal/meta"
	"codeberg.org/arekan/animeshot/internal/search"
	"codeberg.org/arekan/animeshot/internal/session"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

const (
	pollTimeout   = 30 * time.Second
	pollRetryWait = 3 * time.Second
)

// Transport is the slice of the chat transport the handlers use
// directly. *telegram.Client satisfies it.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, p telegram.SendPhotoParams) (*telegram.Message, error)
	SendPhotoUpload(ctx context.Context, chatID int64, path, caption string) (*telegram.Message, error)
	EditMessageText(ctx context.Context, p telegram.EditMessageTextParams) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error
	PinChatMessage(ctx context.Context, chatID, messageID int64) error
	UnpinChatMessage(ctx context.Context, chatID int64) error
}

// Acquirer normalizes user media into a local still-image path.
type Acquirer interface {
	FromPhoto(ctx context.Context, fileID string) (string, error)
	FromVideoURL(ctx context.Context, url string) (string, error)
}

// Searcher runs a reverse image search over a local image file.
type Searcher interface {
	Search(ctx context.Context, imagePath string) (*search.Result, error)
}

// Metadata looks up anime records by free-text title.
type Metadata interface {
	SearchByTitle(ctx context.Context, title string) ([]meta.Record, error)
	Detail(ctx context.Context, id int64) (*meta.Record, error)
}

// Renderer delivers one page of a result set. *delivery.Controller
// satisfies it.
type Renderer interface {
	RenderPage(ctx context.Context, chatID int64, result *search.Result, page int, editMessageID int64) (int64, error)
}

// UserRegistry is the persistent set of known users.
type UserRegistry interface {
	Add(ctx context.Context, userID int64, username, firstName, lastName string) error
	All(ctx context.Context) ([]int64, error)
	Remove(ctx context.Context, userID int64) error
}

// Deps bundles the bot's collaborators.
type Deps struct {
	Transport Transport
	Acquirer  Acquirer
	Searcher  Searcher
	Metadata  Metadata
	Renderer  Renderer
	Sessions  session.Store
	Users     UserRegistry
	AdminID   int64
	Log       *logrus.Logger
}

// Bot runs the update loop and dispatches handlers. Updates from
// different users are handled concurrently; updates from the same user
// are serialized, except that a handler blocked on a remote lookup
// yields so the user can still cancel it.
type Bot struct {
	transport Transport
	acquirer  Acquirer
	searcher  Searcher
	metadata  Metadata
	renderer  Renderer
	sessions  session.Store
	users     UserRegistry
	adminID   int64
	log       *logrus.Logger

	// broadcast pacing, one message per second.
	limiter *rate.Limiter

	locks sync.Map // user ID -> *sync.Mutex
}

// New assembles a bot from its dependencies.
func New(d Deps) *Bot {
	return &Bot{
		transport: d.Transport,
		acquirer:  d.Acquirer,
		searcher:  d.Searcher,
		metadata:  d.Metadata,
		renderer:  d.Renderer,
		sessions:  d.Sessions,
		users:     d.Users,
		adminID:   d.AdminID,
		log:       d.Log,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("update loop started")

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, next, err := b.transport.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.WithError(err).Error("polling failed")
			time.Sleep(pollRetryWait)
			continue
		}
		offset = next

		for _, u := range updates {
			b.dispatch(ctx, u)
		}
	}
}

func updateUserID(u telegram.Update) int64 {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	}
	return 0
}

// dispatch hands the update to a goroutine. A panicking handler is
// logged and never takes down the loop.
func (b *Bot) dispatch(ctx context.Context, u telegram.Update) {
	userID := updateUserID(u)
	if userID == 0 {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.WithFields(logrus.Fields{
					"user_id": userID,
					"panic":   r,
				}).Error("handler panicked")
			}
		}()

		b.process(ctx, u)
	}()
}

// process runs one update under the user's lock. Handlers that block on
// a slow remote call may release the lock around it so that other
// updates from the same user, a cancel callback in particular, are not
// queued behind it; see lookupAnime.
func (b *Bot) process(ctx context.Context, u telegram.Update) {
	mu := b.userLock(updateUserID(u))
	mu.Lock()
	defer mu.Unlock()

	b.handleUpdate(ctx, u)
}

func (b *Bot) userLock(userID int64) *sync.Mutex {
	v, _ := b.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

// reply sends a plain text message to the chat, logging any failure.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.replyMarkup(ctx, chatID, text, nil)
}

func (b *Bot) replyMarkup(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	_, err := b.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("reply failed")
	}
}
