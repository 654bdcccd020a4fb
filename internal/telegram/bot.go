package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alex199571/Student-Bot/internal/config"
	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/models"
	"github.com/alex199571/Student-Bot/internal/plans"
	"github.com/alex199571/Student-Bot/internal/service"
)

type Bot struct {
	cfg     config.Config
	api     *tgbotapi.BotAPI
	log     *slog.Logger
	users   *service.UserService
	actions *service.ActionService
	engine  *limits.Engine
	state   *StateManager
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, actions *service.ActionService, engine *limits.Engine) *Bot {
	return &Bot{
		cfg:     cfg,
		api:     api,
		log:     log,
		users:   users,
		actions: actions,
		engine:  engine,
		state:   NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			// Each inbound action is its own short-lived task; counters are
			// keyed per user, so no cross-update ordering is needed.
			go b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, _, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		b.log.Error("ensure user", "err", err)
		return
	}

	// Banned accounts are silently dropped; the account-creation side effect
	// above still stands.
	if user.IsBanned {
		return
	}

	b.dispatchMessage(ctx, msg, user)

	if err := b.users.Save(ctx, user); err != nil {
		b.log.Error("save user", "telegram_id", user.TelegramID, "err", err)
	}
}

func (b *Bot) dispatchMessage(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		b.state.Clear(chatID)
		b.sendStart(chatID, user)
		return
	case strings.HasPrefix(text, "/help"):
		b.sendText(chatID, textHelp)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.state.Clear(chatID)
		b.sendText(chatID, textCancelled)
		return
	}

	if isMenuText(text) {
		b.state.Clear(chatID)
		b.handleMenu(ctx, chatID, user, text)
		return
	}

	pending := b.state.Get(chatID)

	if action, ok := pending.textAction(); ok && text != "" {
		b.state.Clear(chatID)
		b.runTextAction(ctx, chatID, user, action, text)
		return
	}

	if pending == PendingImagePrompt && text != "" {
		b.state.Clear(chatID)
		b.runImageAction(ctx, chatID, user, text)
		return
	}

	if pending == PendingPhotoUpload && len(msg.Photo) == 0 {
		b.sendText(chatID, textRequestPhoto)
		return
	}

	// Photo analysis works with direct photo messages or after choosing the
	// menu mode.
	if len(msg.Photo) > 0 {
		b.state.Clear(chatID)
		prompt := strings.TrimSpace(msg.Caption)
		if prompt == "" {
			prompt = "Analyze this task and help the student solve it."
		}
		b.runPhotoAnalysis(ctx, chatID, user, msg.Photo, prompt)
		return
	}

	b.sendText(chatID, textUnsupportedMessage)
	b.sendMenu(chatID)
}

func (b *Bot) handleMenu(ctx context.Context, chatID int64, user *models.User, text string) {
	switch text {
	case menuExplain:
		b.state.Set(chatID, PendingExplainInput)
		b.sendText(chatID, textRequestExplain)
	case menuSolve:
		b.state.Set(chatID, PendingSolveInput)
		b.sendText(chatID, textRequestSolve)
	case menuSummary:
		b.state.Set(chatID, PendingSummaryInput)
		b.sendText(chatID, textRequestSummary)
	case menuLongText:
		if plans.Get(user.Plan).MonthlyLongTextLimit <= 0 {
			b.sendText(chatID, textLongTextPaidOnly)
			return
		}
		b.state.Set(chatID, PendingLongInput)
		b.sendText(chatID, textRequestLongText)
	case menuImage:
		if plans.Get(user.Plan).MonthlyImagesLimit <= 0 && user.BonusImageCredits <= 0 {
			b.sendText(chatID, textImageNotAvailable)
			return
		}
		b.state.Set(chatID, PendingImagePrompt)
		b.sendText(chatID, textRequestImage)
	case menuPhotoAnalysis:
		b.state.Set(chatID, PendingPhotoUpload)
		b.sendText(chatID, textRequestPhoto)
	case menuLimits:
		b.sendUsage(ctx, chatID, user)
	case menuInvite:
		b.sendText(chatID, fmt.Sprintf(
			"Share the bot with a friend: https://t.me/%s?start=ref_%d", b.api.Self.UserName, user.TelegramID))
	case menuSubscription:
		b.sendSubscription(chatID)
	case menuLanguage:
		b.sendLanguageKeyboard(chatID)
	}
}

func (b *Bot) runTextAction(ctx context.Context, chatID int64, user *models.User, action models.Action, input string) {
	result, err := b.actions.RunText(ctx, user, action, input)
	if err != nil {
		b.sendText(chatID, textGenerationFailed)
		return
	}
	if result.Denied {
		b.sendText(chatID, denyMessage(result.Reason))
		return
	}
	b.sendText(chatID, result.Text)
}

func (b *Bot) runImageAction(ctx context.Context, chatID int64, user *models.User, prompt string) {
	result, err := b.actions.RunImage(ctx, user, prompt)
	if err != nil {
		b.sendText(chatID, textImageFailed)
		return
	}
	if result.Denied {
		b.sendText(chatID, denyMessage(result.Reason))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: result.Image.Bytes})
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("send photo", "err", err)
	}
}

func (b *Bot) runPhotoAnalysis(ctx context.Context, chatID int64, user *models.User, sizes []tgbotapi.PhotoSize, prompt string) {
	imageURL, err := b.resolveFileURL(sizes)
	if err != nil {
		b.log.Error("resolve photo url", "err", err)
		b.sendText(chatID, textPhotoFailed)
		return
	}
	result, err := b.actions.RunPhotoAnalysis(ctx, user, imageURL, prompt)
	if err != nil {
		b.sendText(chatID, textPhotoFailed)
		return
	}
	if result.Denied {
		b.sendText(chatID, denyMessage(result.Reason))
		return
	}
	b.sendText(chatID, result.Text)
}

// resolveFileURL picks the largest photo rendition and asks Telegram for its
// download URL.
func (b *Bot) resolveFileURL(sizes []tgbotapi.PhotoSize) (string, error) {
	largest := sizes[0]
	for _, s := range sizes[1:] {
		if s.FileSize > largest.FileSize {
			largest = s
		}
	}
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: largest.FileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("file path empty")
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.api.Token, file.FilePath), nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Data == "" {
		return
	}

	user, _, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		b.log.Error("ensure user callback", "err", err)
		return
	}
	if user.IsBanned {
		return
	}

	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, "set_lang:"):
		lang := strings.TrimPrefix(cb.Data, "set_lang:")
		if !isSupportedLanguage(lang) {
			lang = "en"
		}
		user.Language = lang
		b.answerCallback(cb.ID, "Language set")
		b.sendText(chatID, textStart)
		b.sendMenu(chatID)
	case strings.HasPrefix(cb.Data, "set_plan:"):
		plan := strings.TrimPrefix(cb.Data, "set_plan:")
		if !plans.IsValid(plan) {
			b.answerCallback(cb.ID, "Unknown plan")
			return
		}
		user.Plan = plans.Normalize(plan)
		b.answerCallback(cb.ID, "Plan changed")
		b.sendText(chatID, fmt.Sprintf("Your plan is now %s.", user.Plan))
		b.sendMenu(chatID)
	default:
		b.answerCallback(cb.ID, "")
		return
	}

	if err := b.users.Save(ctx, user); err != nil {
		b.log.Error("save user callback", "telegram_id", user.TelegramID, "err", err)
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, bool, error) {
	lang := strings.ToLower(from.LanguageCode)
	if !isSupportedLanguage(lang) {
		lang = "unset"
	}
	return b.users.Ensure(ctx, from.ID, from.UserName, from.FirstName, lang)
}

func (b *Bot) sendStart(chatID int64, user *models.User) {
	if !isSupportedLanguage(user.Language) {
		b.sendLanguageKeyboard(chatID)
		return
	}
	b.sendText(chatID, textStart)
	b.sendMenu(chatID)
}

func (b *Bot) sendUsage(ctx context.Context, chatID int64, user *models.User) {
	limits.SyncMonth(user)
	daily, err := b.engine.DailyUsage(ctx, user)
	if err != nil {
		b.log.Error("daily usage", "telegram_id", user.TelegramID, "err", err)
		return
	}
	b.sendText(chatID, usageText(user, daily))
}

func (b *Bot) sendMenu(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuExplain), tgbotapi.NewKeyboardButton(menuSolve)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuSummary), tgbotapi.NewKeyboardButton(menuImage)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuPhotoAnalysis), tgbotapi.NewKeyboardButton(menuLimits)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuLongText), tgbotapi.NewKeyboardButton(menuInvite)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuSubscription), tgbotapi.NewKeyboardButton(menuLanguage)),
	)
	keyboard.ResizeKeyboard = true
	msg := tgbotapi.NewMessage(chatID, "Choose an action:")
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send menu", "err", err)
	}
}

func (b *Bot) sendLanguageKeyboard(chatID int64) {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, l := range supportedLanguages {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(l.Label, "set_lang:"+l.Code))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	msg := tgbotapi.NewMessage(chatID, textChooseLanguage)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send language keyboard", "err", err)
	}
}

func (b *Bot) sendSubscription(chatID int64) {
	text := fmt.Sprintf(
		"Plans:\n\nfree — basic daily limits\nstudent — $%d/month, more requests and long texts\npro — $%d/month, everything plus image generation",
		b.cfg.StudentPriceUSD, b.cfg.ProPriceUSD)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Free", "set_plan:free"),
			tgbotapi.NewInlineKeyboardButtonData("Student", "set_plan:student"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Pro", "set_plan:pro"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send subscription", "err", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("answer callback", "err", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}

func isMenuText(text string) bool {
	switch text {
	case menuExplain, menuSolve, menuSummary, menuImage, menuPhotoAnalysis,
		menuLongText, menuLimits, menuInvite, menuSubscription, menuLanguage:
		return true
	}
	return false
}
