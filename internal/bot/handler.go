package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"clicktracker/internal/domain"
	"clicktracker/internal/registry"
)

// LinkRegistry is the subset of the registry the bot needs.
type LinkRegistry interface {
	Create(ctx context.Context, req registry.CreateRequest) (domain.Link, error)
	Resolve(code string) (domain.Link, bool)
	Delete(ctx context.Context, id string) error
	List() []domain.Link
	Now() time.Time
}

// sender is the part of *tgbot.Bot used for replies.
type sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot             *tgbot.Bot
	sender          sender
	reg             LinkRegistry
	defaultValidity int
	log             logrus.FieldLogger
	inFlight        sync.WaitGroup
}

// NewHandler creates a new bot handler instance.
func NewHandler(token string, reg LinkRegistry, defaultValidity int, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(nil, reg, defaultValidity, logger)

	b, err := tgbot.New(token,
		tgbot.WithDefaultHandler(h.defaultHandler),
		tgbot.WithMiddlewares(h.trackInFlight),
	)
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.sender = b

	h.registerHandlers()

	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(s sender, reg LinkRegistry, defaultValidity int, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sender:          s,
		reg:             reg,
		defaultValidity: defaultValidity,
		log:             logger.WithField("component", "bot_handler"),
	}
}

// registerHandlers sets up the command handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandlerMatchFunc(matchCommand("/start"), h.startHandler)
	h.bot.RegisterHandlerMatchFunc(matchCommand("/help"), h.startHandler)
	h.bot.RegisterHandlerMatchFunc(matchCommand("/shorten"), h.shortenHandler)
	h.bot.RegisterHandlerMatchFunc(matchCommand("/list"), h.listHandler)
	h.bot.RegisterHandlerMatchFunc(matchCommand("/stats"), h.statsHandler)
	h.bot.RegisterHandlerMatchFunc(matchCommand("/delete"), h.deleteHandler)
	h.log.Info("Registered command handlers")
}

// matchCommand matches messages whose first token is exactly command,
// optionally addressed as command@botname.
func matchCommand(command string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil {
			return false
		}
		return commandName(update.Message.Text) == command
	}
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled and every running
// handler has returned.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.inFlight.Wait()
	h.log.Info("Telegram bot polling stopped.")
}

// trackInFlight counts running handlers so Start can wait for them.
func (h *Handler) trackInFlight(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		h.inFlight.Add(1)
		defer h.inFlight.Done()
		next(ctx, b, update)
	}
}

func (h *Handler) reply(ctx context.Context, update *models.Update, text string) {
	_, err := h.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", update.Message.Chat.ID).Error("Failed to send message")
	}
}

func (h *Handler) logFor(update *models.Update, command string) logrus.FieldLogger {
	fields := logrus.Fields{"command": command}
	if update.Message.From != nil {
		fields["user_id"] = update.Message.From.ID
	}
	return h.log.WithFields(fields)
}

// startHandler handles /start and /help.
func (h *Handler) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.logFor(update, "/start").Info("Received /start command")
	h.reply(ctx, update, helpMessage)
}

// shortenHandler handles /shorten <url> [minutes] [code].
func (h *Handler) shortenHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	args, err := parseShortenArgs(commandArg(update.Message.Text), h.defaultValidity)
	if err != nil {
		h.reply(ctx, update, err.Error())
		return
	}
	h.shorten(ctx, update, args)
}

func (h *Handler) shorten(ctx context.Context, update *models.Update, args shortenArgs) {
	log := h.logFor(update, "/shorten")

	link, err := h.reg.Create(ctx, registry.CreateRequest{
		OriginalURL:     args.URL,
		CustomShortCode: args.CustomCode,
		ValidityMinutes: args.Minutes,
	})
	var pe *registry.PersistenceError
	switch {
	case err == nil:
		log.WithField("short_code", link.ShortCode).Info("Link shortened via Telegram")
		h.reply(ctx, update, formatCreated(link, h.reg.Now()))
	case registry.IsValidation(err):
		h.reply(ctx, update, "Sorry, "+err.Error())
	case errors.Is(err, registry.ErrDuplicateCode):
		h.reply(ctx, update, "Short code already exists. Please choose a different one.")
	case errors.As(err, &pe):
		log.WithError(err).Error("Link created but not persisted")
		h.reply(ctx, update, formatCreated(link, h.reg.Now())+"\n\nWarning: the link could not be saved and may be lost on restart.")
	default:
		log.WithError(err).Error("Failed to shorten link")
		h.reply(ctx, update, "Sorry, something went wrong while creating the short link.")
	}
}

// listHandler handles /list.
func (h *Handler) listHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, update, formatList(h.reg.List(), h.reg.Now()))
}

// statsHandler handles /stats <code>.
func (h *Handler) statsHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	code := commandArg(update.Message.Text)
	if code == "" {
		h.reply(ctx, update, "usage: /stats <code>")
		return
	}
	link, ok := h.reg.Resolve(code)
	if !ok {
		h.reply(ctx, update, "Link not found.")
		return
	}
	h.reply(ctx, update, formatStats(link, h.reg.Now()))
}

// deleteHandler handles /delete <id>.
func (h *Handler) deleteHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	id := commandArg(update.Message.Text)
	if id == "" {
		h.reply(ctx, update, "usage: /delete <id>")
		return
	}
	if err := h.reg.Delete(ctx, id); err != nil {
		h.logFor(update, "/delete").WithError(err).Error("Failed to delete link")
		h.reply(ctx, update, "Sorry, the link could not be deleted.")
		return
	}
	h.reply(ctx, update, "Link deleted.")
}

// defaultHandler shortens any plain message containing a URL.
func (h *Handler) defaultHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	u, ok := extractURL(update.Message.Text)
	if !ok {
		h.log.WithField("text", update.Message.Text).Debug("Received message without a link")
		h.reply(ctx, update, "Send me a URL to shorten, or use /start for help.")
		return
	}
	h.shorten(ctx, update, shortenArgs{URL: u, Minutes: h.defaultValidity})
}
