package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"referral-bot/internal/config"
	"referral-bot/internal/moderation"
	"referral-bot/internal/referral"
	"referral-bot/internal/session"
	"referral-bot/internal/withdrawal"
)

// Pending carries a not yet registered user's referrer from /start to the
// contact share.
type Pending struct {
	ReferrerID *int64 `json:"referrer_id,omitempty"`
}

type Dependencies struct {
	Referrals   *referral.Engine
	Withdrawals *withdrawal.Service
	Moderation  *moderation.Gateway
	Membership  MembershipChecker
	Pending     session.Store[Pending]
}

type Bot struct {
	Instance    *telego.Bot
	cfg         *config.Config
	referrals   *referral.Engine
	withdrawals *withdrawal.Service
	moderation  *moderation.Gateway
	membership  MembershipChecker
	pending     session.Store[Pending]
	username    string
}

// NewTelegramBot creates the API client with its logs routed to logrus.
func NewTelegramBot(token string) (*telego.Bot, error) {
	tgBot, err := telego.NewBot(token, telego.WithLogger(log.WithField("component", "telego")))
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return tgBot, nil
}

func NewBot(instance *telego.Bot, cfg *config.Config, deps Dependencies) *Bot {
	return &Bot{
		Instance:    instance,
		cfg:         cfg,
		referrals:   deps.Referrals,
		withdrawals: deps.Withdrawals,
		moderation:  deps.Moderation,
		membership:  deps.Membership,
		pending:     deps.Pending,
	}
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.Instance.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	b.username = me.Username

	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create update handler: %w", err)
	}

	// Commands first: the text handler below matches any text.
	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleCancel, th.CommandEqual("cancel"))
	handler.Handle(b.handleBalanceCommand, th.CommandEqual("balance"))
	handler.Handle(b.handleAdmin, th.CommandEqual("admin"))
	handler.Handle(b.handleUsers, th.CommandEqual("users"))
	handler.Handle(b.handleWithdrawals, th.CommandEqual("withdrawals"))
	handler.Handle(b.handleBroadcastCommand, th.CommandEqual("broadcast"))
	handler.Handle(b.handleReferralsCommand, th.CommandEqual("referrals"))

	handler.Handle(b.handleContact, messageWithContact)
	handler.Handle(b.handleCallback, th.AnyCallbackQuery())
	handler.Handle(b.handleText, th.AnyMessageWithText())

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	log.WithField("username", b.username).Info("Bot started")
	handler.Start()
	return nil
}

func messageWithContact(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.Contact != nil && update.Message.From != nil
}

// send delivers an HTML message. Failures are logged only.
func (b *Bot) send(ctx *th.Context, chatID int64, text string, markup ...telego.ReplyMarkup) {
	params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if len(markup) > 0 {
		params = params.WithReplyMarkup(markup[0])
	}
	if _, err := ctx.Bot().SendMessage(ctx.Context(), params); err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("Failed to send message")
	}
}

func (b *Bot) sendMenu(ctx *th.Context, chatID int64, text string) {
	b.send(ctx, chatID, text, mainMenuKeyboard())
}

func (b *Bot) internalError(ctx *th.Context, chatID int64, op string, err error) {
	log.WithFields(log.Fields{
		"chat_id": chatID,
		"op":      op,
	}).WithError(err).Error("Request failed")
	b.send(ctx, chatID, msgInternalError)
}

func (b *Bot) answer(ctx *th.Context, queryID, text string, alert bool) {
	params := tu.CallbackQuery(queryID)
	if text != "" {
		params = params.WithText(text)
	}
	if alert {
		params = params.WithShowAlert()
	}
	if err := ctx.Bot().AnswerCallbackQuery(ctx.Context(), params); err != nil {
		log.WithField("callback_id", queryID).WithError(err).Debug("Failed to answer callback")
	}
}

// commandArgs returns everything after the command word, trimmed.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func userName(u telego.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
