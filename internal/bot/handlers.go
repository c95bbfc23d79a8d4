package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"referral-bot/internal/referral"
	"referral-bot/internal/withdrawal"
)

const myReferralsLimit = 20

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}
	userID := message.From.ID
	chatID := message.Chat.ID

	var referrerID *int64
	if arg := commandArgs(message.Text); arg != "" {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id != userID {
			referrerID = &id
		}
	}

	registered, err := b.referrals.IsRegistered(ctx.Context(), userID)
	if err != nil {
		b.internalError(ctx, chatID, "start", err)
		return nil
	}
	if registered {
		b.sendMenu(ctx, chatID, msgWelcomeBack)
		return nil
	}

	if err := b.pending.Put(ctx.Context(), userID, Pending{ReferrerID: referrerID}); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Failed to remember referrer")
	}

	b.checkMembership(ctx, chatID, userID)
	return nil
}

func (b *Bot) checkMembership(ctx *th.Context, chatID, userID int64) {
	member, err := b.membership.IsMember(ctx.Context(), userID)
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Membership check failed")
		b.send(ctx, chatID, msgMembershipUnknown)
		return
	}
	if !member {
		b.send(ctx, chatID, msgVerifyJoin, verifyJoinKeyboard(b.cfg.Channel))
		return
	}
	b.send(ctx, chatID, msgAskPhone, requestPhoneKeyboard())
}

func (b *Bot) handleContact(ctx *th.Context, update telego.Update) error {
	message := update.Message
	from := message.From
	chatID := message.Chat.ID

	if message.Contact.UserID != 0 && message.Contact.UserID != from.ID {
		b.send(ctx, chatID, msgForeignContact, requestPhoneKeyboard())
		return nil
	}

	pending, _, err := b.pending.Get(ctx.Context(), from.ID)
	if err != nil {
		log.WithField("user_id", from.ID).WithError(err).Warn("Failed to load pending registration")
	}

	result, err := b.referrals.Register(ctx.Context(), referral.Registration{
		UserID:            from.ID,
		Name:              userName(*from),
		Contact:           message.Contact.PhoneNumber,
		ReferrerCandidate: pending.ReferrerID,
	})
	if err != nil {
		b.internalError(ctx, chatID, "register", err)
		return nil
	}
	_ = b.pending.Delete(ctx.Context(), from.ID)

	if !result.Created {
		b.send(ctx, chatID, msgWelcomeBack, tu.ReplyKeyboardRemove())
		b.sendMenu(ctx, chatID, msgDashboard)
		return nil
	}

	b.send(ctx, chatID, msgRegistered, tu.ReplyKeyboardRemove())
	b.sendMenu(ctx, chatID, msgDashboard)
	return nil
}

func (b *Bot) handleCallback(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery

	action, err := ParseAction(query.Data)
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": query.From.ID,
			"data":    query.Data,
		}).Debug("Ignoring unknown callback")
		b.answer(ctx, query.ID, "", false)
		return nil
	}

	b.dispatch(ctx, query, action)
	return nil
}

func (b *Bot) dispatch(ctx *th.Context, query *telego.CallbackQuery, action Action) {
	userID := query.From.ID

	switch a := action.(type) {
	case MainMenu:
		b.answer(ctx, query.ID, "", false)
		b.sendMenu(ctx, userID, msgMainMenu)
	case MyBalance:
		b.answer(ctx, query.ID, "", false)
		b.showBalance(ctx, userID)
	case ReferFriends:
		b.answer(ctx, query.ID, "", false)
		link := referral.ReferralLink(b.username, userID)
		b.send(ctx, userID, referFriendsText(link, b.cfg.ReferralBonus, b.cfg.Currency), backToMenuKeyboard())
	case MyReferrals:
		b.answer(ctx, query.ID, "", false)
		b.showMyReferrals(ctx, userID)
	case TopReferrers:
		b.answer(ctx, query.ID, "", false)
		b.showTopReferrers(ctx, userID)
	case Statistics:
		b.answer(ctx, query.ID, "", false)
		b.showStatistics(ctx, userID)
	case Help:
		b.answer(ctx, query.ID, "", false)
		b.send(ctx, userID, helpText(b.cfg.ReferralBonus, b.cfg.MinWithdrawal, b.cfg.Currency), backToMenuKeyboard())
	case VerifyJoin:
		b.verifyJoin(ctx, query)
	case StartWithdrawal:
		b.startWithdrawal(ctx, query)
	case SelectMethod:
		b.selectMethod(ctx, query, a.Method)
	case AdminStats:
		b.adminStats(ctx, query)
	case AdminPending:
		b.answer(ctx, query.ID, "", false)
		b.listPending(ctx, userID)
	case AdminBroadcast:
		b.beginBroadcast(ctx, query)
	case Approve:
		b.decide(ctx, query, a.ID, true)
	case Reject:
		b.decide(ctx, query, a.ID, false)
	default:
		log.WithField("action", action.CallbackData()).Error("Unhandled action")
		b.answer(ctx, query.ID, "", false)
	}
}

func (b *Bot) showBalance(ctx *th.Context, userID int64) {
	balance, err := b.referrals.Balance(ctx.Context(), userID)
	if err != nil {
		b.internalError(ctx, userID, "balance", err)
		return
	}
	b.send(ctx, userID, balanceText(balance, b.cfg.Currency), backToMenuKeyboard())
}

func (b *Bot) showMyReferrals(ctx *th.Context, userID int64) {
	users, total, err := b.referrals.Referrals(ctx.Context(), userID, myReferralsLimit)
	if err != nil {
		b.internalError(ctx, userID, "my_referrals", err)
		return
	}
	b.send(ctx, userID, myReferralsText(users, total), backToMenuKeyboard())
}

func (b *Bot) showTopReferrers(ctx *th.Context, userID int64) {
	top, err := b.referrals.TopReferrers(ctx.Context(), b.cfg.TopReferrersLimit)
	if err != nil {
		b.internalError(ctx, userID, "top_referrers", err)
		return
	}
	b.send(ctx, userID, topReferrersText(top, b.cfg.TopReferrersLimit), backToMenuKeyboard())
}

func (b *Bot) showStatistics(ctx *th.Context, userID int64) {
	count, err := b.referrals.UserCount(ctx.Context())
	if err != nil {
		b.internalError(ctx, userID, "statistics", err)
		return
	}
	b.send(ctx, userID, statisticsText(count), backToMenuKeyboard())
}

func (b *Bot) verifyJoin(ctx *th.Context, query *telego.CallbackQuery) {
	userID := query.From.ID

	registered, err := b.referrals.IsRegistered(ctx.Context(), userID)
	if err == nil && registered {
		b.answer(ctx, query.ID, "", false)
		b.sendMenu(ctx, userID, msgWelcomeBack)
		return
	}

	member, err := b.membership.IsMember(ctx.Context(), userID)
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Membership re-check failed")
		b.answer(ctx, query.ID, msgVerifyFailed, true)
		return
	}
	if !member {
		b.answer(ctx, query.ID, msgNotJoinedYet, true)
		return
	}

	b.answer(ctx, query.ID, "", false)
	b.send(ctx, userID, msgAskPhone, requestPhoneKeyboard())
}

func (b *Bot) startWithdrawal(ctx *th.Context, query *telego.CallbackQuery) {
	userID := query.From.ID

	_, err := b.withdrawals.Start(ctx.Context(), userID)
	var policyErr *withdrawal.PolicyError
	if errors.As(err, &policyErr) {
		b.answer(ctx, query.ID, policyText(policyErr, b.cfg.Currency), true)
		return
	}
	b.answer(ctx, query.ID, "", false)
	if err != nil {
		b.internalError(ctx, userID, "start_withdrawal", err)
		return
	}

	b.send(ctx, userID, msgSelectMethod, withdrawalMethodsKeyboard(b.withdrawals.Methods()))
}

func (b *Bot) selectMethod(ctx *th.Context, query *telego.CallbackQuery, key string) {
	userID := query.From.ID

	method, err := b.withdrawals.SelectMethod(ctx.Context(), userID, key)
	var policyErr *withdrawal.PolicyError
	switch {
	case err == nil:
		b.answer(ctx, query.ID, "", false)
		b.send(ctx, userID, method.Prompt)
	case errors.Is(err, withdrawal.ErrNoDialogue), errors.Is(err, withdrawal.ErrWrongStep):
		b.answer(ctx, query.ID, "This withdrawal is no longer active. Please start again from the menu.", true)
	case errors.As(err, &policyErr):
		b.answer(ctx, query.ID, policyText(policyErr, b.cfg.Currency), true)
	default:
		b.answer(ctx, query.ID, "", false)
		b.internalError(ctx, userID, "select_method", err)
	}
}

func (b *Bot) handleText(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || strings.HasPrefix(message.Text, "/") {
		return nil
	}
	userID := message.From.ID
	chatID := message.Chat.ID

	if draft, ok, err := b.moderation.ActiveDraft(ctx.Context(), userID); err == nil && ok {
		b.continueBroadcast(ctx, chatID, userID, draft, message.Text)
		return nil
	}

	dialogue, ok, err := b.withdrawals.Active(ctx.Context(), userID)
	if err != nil {
		b.internalError(ctx, chatID, "withdrawal_state", err)
		return nil
	}
	if !ok {
		return nil
	}

	switch dialogue.State {
	case withdrawal.StateAwaitingMethod:
		b.send(ctx, chatID, msgSelectMethod, withdrawalMethodsKeyboard(b.withdrawals.Methods()))
	case withdrawal.StateAwaitingDetails:
		balance, err := b.withdrawals.SubmitDetails(ctx.Context(), userID, message.Text)
		if err != nil {
			b.withdrawalError(ctx, chatID, err)
			return nil
		}
		b.send(ctx, chatID, askAmountText(balance, b.cfg.Currency))
	case withdrawal.StateAwaitingAmount:
		// The confirmation is sent by the notifier once the request is stored.
		if _, err := b.withdrawals.SubmitAmount(ctx.Context(), userID, message.Text); err != nil {
			b.withdrawalError(ctx, chatID, err)
		}
	}
	return nil
}

func (b *Bot) withdrawalError(ctx *th.Context, chatID int64, err error) {
	var policyErr *withdrawal.PolicyError
	switch {
	case errors.As(err, &policyErr):
		b.send(ctx, chatID, policyText(policyErr, b.cfg.Currency))
	case errors.Is(err, withdrawal.ErrNoDialogue):
		b.sendMenu(ctx, chatID, "This withdrawal is no longer active. Please start again.")
	default:
		b.internalError(ctx, chatID, "withdrawal", err)
	}
}

func (b *Bot) handleCancel(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}
	userID := message.From.ID
	chatID := message.Chat.ID

	if cancelled, err := b.moderation.CancelDraft(ctx.Context(), userID); err == nil && cancelled {
		b.send(ctx, chatID, msgBroadcastCancelled)
		return nil
	}

	cancelled, err := b.withdrawals.Cancel(ctx.Context(), userID)
	if err != nil {
		b.internalError(ctx, chatID, "cancel", err)
		return nil
	}
	if !cancelled {
		b.sendMenu(ctx, chatID, msgNothingToCancel)
		return nil
	}
	b.sendMenu(ctx, chatID, msgWithdrawalCancelled)
	return nil
}

func (b *Bot) handleBalanceCommand(ctx *th.Context, update telego.Update) error {
	if update.Message.From == nil {
		return nil
	}
	b.showBalance(ctx, update.Message.From.ID)
	return nil
}
