package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"referral-bot/internal/fanout"
	"referral-bot/internal/models"
	"referral-bot/internal/moderation"
	"referral-bot/internal/referral"
	"referral-bot/internal/withdrawal"
	"referral-bot/internal/worker"
)

// MessageSender is the part of *telego.Bot used for outbound messages.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Notifier delivers the core's best-effort messages. Each call is bounded by
// timeout.
type Notifier struct {
	sender     MessageSender
	operatorID int64
	currency   string
	timeout    time.Duration
}

var (
	_ referral.Notifier   = (*Notifier)(nil)
	_ withdrawal.Notifier = (*Notifier)(nil)
	_ moderation.Sender   = (*Notifier)(nil)
	_ worker.Alerter      = (*Notifier)(nil)
)

func NewNotifier(sender MessageSender, operatorID int64, currency string, timeout time.Duration) *Notifier {
	return &Notifier{
		sender:     sender,
		operatorID: operatorID,
		currency:   currency,
		timeout:    timeout,
	}
}

func (n *Notifier) send(ctx context.Context, params *telego.SendMessageParams) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if _, err := n.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send message to %v: %w", params.ChatID, err)
	}
	return nil
}

func (n *Notifier) sendHTML(ctx context.Context, chatID int64, text string) error {
	return n.send(ctx, tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML))
}

// SendText delivers operator-written text as is.
func (n *Notifier) SendText(ctx context.Context, userID int64, text string) error {
	return n.send(ctx, tu.Message(tu.ID(userID), text))
}

func (n *Notifier) ReferralCredited(ctx context.Context, referrerID int64, referred models.User, bonus, balance int64) error {
	return n.sendHTML(ctx, referrerID, referralCreditedText(referred, bonus, balance, n.currency))
}

func (n *Notifier) MilestoneReached(ctx context.Context, referrerID int64, referrals, bonus int64) error {
	return n.sendHTML(ctx, referrerID, milestoneText(referrals, bonus, n.currency))
}

// WithdrawalSubmitted confirms to the owner and alerts the operator in
// parallel. It fails if either message could not be delivered.
func (n *Notifier) WithdrawalSubmitted(ctx context.Context, w models.Withdrawal, owner models.User) error {
	tally := fanout.Run(ctx, 2,
		func(ctx context.Context) error {
			return n.send(ctx, tu.Message(tu.ID(w.UserID), msgSubmitted).WithReplyMarkup(mainMenuKeyboard()))
		},
		func(ctx context.Context) error {
			return n.send(ctx, tu.Message(tu.ID(n.operatorID), newWithdrawalAlertText(w, owner, n.currency)).
				WithParseMode(telego.ModeHTML).
				WithReplyMarkup(decisionKeyboard(w.ID)))
		},
	)
	if tally.Failed > 0 {
		return fmt.Errorf("withdrawal %d: %d of %d notifications failed", w.ID, tally.Failed, tally.Total())
	}
	return nil
}

func (n *Notifier) WithdrawalApproved(ctx context.Context, w models.Withdrawal) error {
	return n.sendHTML(ctx, w.UserID, approvedText(w, n.currency))
}

func (n *Notifier) WithdrawalRejected(ctx context.Context, w models.Withdrawal) error {
	return n.sendHTML(ctx, w.UserID, rejectedText(w, n.currency))
}

// PendingReminder re-sends a stale request to the operator with its decision
// buttons.
func (n *Notifier) PendingReminder(ctx context.Context, w models.Withdrawal, waiting time.Duration) error {
	return n.send(ctx, tu.Message(tu.ID(n.operatorID), pendingReminderText(w, waiting, n.currency)).
		WithParseMode(telego.ModeHTML).
		WithReplyMarkup(decisionKeyboard(w.ID)))
}
