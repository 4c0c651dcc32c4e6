package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"recipe-planner/internal/config"
	"recipe-planner/internal/metrics"
	"recipe-planner/internal/recipe"
	"recipe-planner/internal/shopping"
	"recipe-planner/internal/user"
)

// WebhookPath is where the bot receives updates.
const WebhookPath = "/telegram/webhook"

const updateTimeout = 2 * time.Minute

// ShoppingService is the part of the shopping service the bot drives.
type ShoppingService interface {
	GenerateFromMealPlans(ctx context.Context, userID string, start, end time.Time) (*shopping.GeneratedList, error)
	SaveCheckedItems(ctx context.Context, userID string, weekStart time.Time, keys []string) (*shopping.ShoppingList, error)
	AddRecipeToList(ctx context.Context, userID string, weekStart time.Time, recipeID string) (*shopping.ShoppingList, error)
	AddCustomItem(ctx context.Context, userID string, weekStart time.Time, item shopping.CustomItem) (*shopping.ShoppingList, error)
	RemoveItem(ctx context.Context, userID string, weekStart time.Time, key string) (*shopping.ShoppingList, error)
	ClearCustomItems(ctx context.Context, userID string, weekStart time.Time) (*shopping.ShoppingList, error)
}

// UserStore registers and resolves Telegram users.
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error)
	Create(ctx context.Context, name string, telegramID *int64) (*user.User, error)
}

// UsageReporter reads recent LLM usage.
type UsageReporter interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// ClipFunc clips a recipe URL into the recipe store.
type ClipFunc func(ctx context.Context, url string) (*recipe.Recipe, error)

// Deps are the services the bot talks to. Clip, Usage and Health may be
// nil.
type Deps struct {
	Shopping ShoppingService
	Users    UserStore
	Clip     ClipFunc
	Usage    UsageReporter
	Health   func() metrics.SysHealth
}

// botAPI is the subset of the Telegram client the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot serves shopping lists over Telegram.
type Bot struct {
	api     botAPI
	deps    Deps
	allowed func(int64) bool
	logger  *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewBot authorizes against the Telegram API and, when a webhook URL is
// configured, registers the webhook.
func NewBot(cfg *config.Config, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized telegram bot", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		logger.Info("telegram webhook set", zap.String("description", resp.Description))
	}

	return newBot(api, deps, cfg.IsTelegramUserAllowed, logger), nil
}

func newBot(api botAPI, deps Deps, allowed func(int64) bool, logger *zap.Logger) *Bot {
	return &Bot{
		api:     api,
		deps:    deps,
		allowed: allowed,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ServeHTTP acknowledges a webhook update and processes it in the
// background.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("failed to parse telegram update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		b.handleUpdate(ctx, *update)
	}()
}

// Wait blocks until every in-flight update is processed.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From == nil || !b.allowed(q.From.ID) {
			return
		}
		b.handleCallback(ctx, q)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return
		}
		if !b.allowed(msg.From.ID) {
			b.logger.Warn("unauthorized telegram user",
				zap.Int64("telegram_id", msg.From.ID),
				zap.String("username", msg.From.UserName))
			return
		}
		b.handleMessage(ctx, msg)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if msg.IsCommand() && msg.Command() == "start" {
		b.handleStart(ctx, msg)
		return
	}

	u, err := b.deps.Users.GetByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to look up telegram user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}
	if u == nil {
		b.reply(msg.Chat.ID, "👋 Send /start to register first.")
		return
	}

	if !msg.IsCommand() {
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			b.handleClip(ctx, msg.Chat.ID, text)
			return
		}
		b.reply(msg.Chat.ID, helpText)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	week := shopping.WeekStart(b.now())
	switch msg.Command() {
	case "list":
		b.sendList(ctx, msg.Chat.ID, u.ID, week)
	case "add":
		if args == "" {
			b.reply(msg.Chat.ID, "Usage: /add <recipe-id>")
			return
		}
		list, err := b.deps.Shopping.AddRecipeToList(ctx, u.ID, week, args)
		if err != nil {
			b.replyError(msg.Chat.ID, "adding recipe", err)
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Added. Your list has %d custom items.", len(list.CustomItems)))
	case "item":
		item, ok := parseItemText(args)
		if !ok {
			b.reply(msg.Chat.ID, "Usage: /item <quantity> <unit> <name>, e.g. /item 2 cups rice")
			return
		}
		if _, err := b.deps.Shopping.AddCustomItem(ctx, u.ID, week, item); err != nil {
			b.replyError(msg.Chat.ID, "adding item", err)
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Added %s.", formatAmount(item.Quantity, item.Unit, item.Ingredient)))
	case "remove":
		if args == "" {
			b.reply(msg.Chat.ID, "Usage: /remove <key>, e.g. /remove rice|cups")
			return
		}
		if !strings.Contains(args, "|") {
			args = shopping.Key(args, "")
		}
		if _, err := b.deps.Shopping.RemoveItem(ctx, u.ID, week, args); err != nil {
			b.replyError(msg.Chat.ID, "removing item", err)
			return
		}
		b.reply(msg.Chat.ID, "🗑 Removed.")
	case "clear":
		if _, err := b.deps.Shopping.ClearCustomItems(ctx, u.ID, week); err != nil {
			b.replyError(msg.Chat.ID, "clearing items", err)
			return
		}
		b.reply(msg.Chat.ID, "🧹 Custom items cleared.")
	case "metrics":
		b.sendMetrics(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = `Commands:
/list - this week's shopping list
/add <recipe-id> - add a recipe's ingredients
/item <text> - add an item, e.g. /item 2 cups rice
/remove <key> - remove an item
/clear - remove all custom items
Send a recipe link to clip it.`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	existing, err := b.deps.Users.GetByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, "registering", err)
		return
	}
	if existing != nil {
		b.reply(msg.Chat.ID, "You are already registered.\n\n"+helpText)
		return
	}

	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	tgID := msg.From.ID
	u, err := b.deps.Users.Create(ctx, name, &tgID)
	if err != nil && !errors.Is(err, user.ErrTelegramIDTaken) {
		b.replyError(msg.Chat.ID, "registering", err)
		return
	}
	if u != nil {
		b.logger.Info("registered telegram user", zap.String("user_id", u.ID), zap.Int64("telegram_id", tgID))
	}
	b.reply(msg.Chat.ID, "🎉 Welcome!\n\n"+helpText)
}

func (b *Bot) handleClip(ctx context.Context, chatID int64, url string) {
	if b.deps.Clip == nil {
		b.reply(chatID, "Recipe clipping is not configured.")
		return
	}
	sent, err := b.api.Send(markdown(tgbotapi.NewMessage(chatID, "✂️ *Clipping recipe...*")))
	if err != nil {
		b.logger.Warn("failed to send telegram message", zap.Error(err))
		return
	}

	var text string
	rec, err := b.deps.Clip(ctx, url)
	if err != nil {
		b.logger.Warn("failed to clip recipe", zap.String("url", url), zap.Error(err))
		text = fmt.Sprintf("❌ *Error clipping recipe:*\n```\n%s\n```", strings.ReplaceAll(err.Error(), "`", "'"))
	} else {
		text = fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s\n*Ingredients:* %d\nAdd it with /add %s",
			escapeMarkdown(rec.Title), len(rec.Ingredients), rec.ID)
	}
	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

func (b *Bot) sendList(ctx context.Context, chatID int64, userID string, week time.Time) {
	list, err := b.deps.Shopping.GenerateFromMealPlans(ctx, userID, week, week.AddDate(0, 0, 6))
	if err != nil {
		b.replyError(chatID, "building your list", err)
		return
	}
	msg := markdown(tgbotapi.NewMessage(chatID, formatShoppingList(list)))
	if kb, ok := listKeyboard(list); ok {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}

	week, itemID, ok := parseToggleData(q.Data)
	if !ok || q.Message == nil {
		return
	}
	u, err := b.deps.Users.GetByTelegramID(ctx, q.From.ID)
	if err != nil || u == nil {
		return
	}

	list, err := b.deps.Shopping.GenerateFromMealPlans(ctx, u.ID, week, week.AddDate(0, 0, 6))
	if err != nil {
		b.logger.Warn("failed to regenerate shopping list", zap.Error(err))
		return
	}
	keys := toggleChecked(list.Items, itemID)
	if _, err := b.deps.Shopping.SaveCheckedItems(ctx, u.ID, week, keys); err != nil {
		b.logger.Warn("failed to save checked items", zap.Error(err))
		return
	}
	for i := range list.Items {
		list.Items[i].Checked = contains(keys, list.Items[i].Key)
	}

	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, formatShoppingList(list))
	edit.ParseMode = tgbotapi.ModeMarkdown
	if kb, ok := listKeyboard(list); ok {
		edit.ReplyMarkup = &kb
	}
	b.send(edit)
}

func (b *Bot) sendMetrics(ctx context.Context, chatID int64) {
	if b.deps.Usage == nil {
		b.reply(chatID, "Metrics are not available.")
		return
	}
	usage, err := b.deps.Usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.replyError(chatID, "fetching metrics", err)
		return
	}
	var health *metrics.SysHealth
	if b.deps.Health != nil {
		h := b.deps.Health()
		health = &h
	}
	b.send(markdown(tgbotapi.NewMessage(chatID, formatMetrics(usage, health))))
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyError(chatID int64, action string, err error) {
	switch {
	case errors.Is(err, shopping.ErrRecipeNotFound):
		b.reply(chatID, "❌ Recipe not found.")
	case errors.Is(err, shopping.ErrInvalidInput):
		b.reply(chatID, "❌ "+err.Error())
	default:
		b.logger.Error("telegram command failed", zap.String("action", action), zap.Error(err))
		b.reply(chatID, fmt.Sprintf("❌ Error %s, please try again.", action))
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("failed to send telegram message", zap.Error(err))
	}
}

func markdown(msg tgbotapi.MessageConfig) tgbotapi.MessageConfig {
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}
