package bot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	log "github.com/sirupsen/logrus"

	"referral-bot/internal/ledger"
	"referral-bot/internal/moderation"
)

const operatorReferralsLimit = 50

// operatorFailed reports err to the operator. Calls from anyone else end
// here with ErrNotOperator and are dropped without a reply.
func (b *Bot) operatorFailed(ctx *th.Context, chatID int64, op string, err error) {
	var consistencyErr *ledger.ConsistencyError
	switch {
	case errors.Is(err, moderation.ErrNotOperator):
	case errors.Is(err, ledger.ErrAlreadyResolved):
		b.send(ctx, chatID, msgAlreadyResolved)
	case errors.Is(err, ledger.ErrNotFound):
		b.send(ctx, chatID, msgWithdrawalNotFound)
	case errors.As(err, &consistencyErr):
		b.send(ctx, chatID, msgConsistencyFault)
	case errors.Is(err, moderation.ErrEmptyMessage):
		b.send(ctx, chatID, msgBroadcastUsage)
	default:
		b.internalError(ctx, chatID, op, err)
	}
}

func (b *Bot) handleAdmin(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || !b.moderation.IsOperator(message.From.ID) {
		return nil
	}
	b.send(ctx, message.Chat.ID, msgAdminPanel, adminPanelKeyboard())
	return nil
}

func (b *Bot) handleUsers(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}

	stats, err := b.moderation.Stats(ctx.Context(), message.From.ID)
	if err != nil {
		b.operatorFailed(ctx, message.Chat.ID, "users", err)
		return nil
	}
	b.send(ctx, message.Chat.ID, fmt.Sprintf("Total registered users: %d", stats.Users))
	return nil
}

func (b *Bot) handleWithdrawals(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}
	b.listPendingFor(ctx, message.From.ID, message.Chat.ID)
	return nil
}

func (b *Bot) listPending(ctx *th.Context, operatorID int64) {
	b.listPendingFor(ctx, operatorID, operatorID)
}

func (b *Bot) listPendingFor(ctx *th.Context, caller, chatID int64) {
	pending, err := b.moderation.ListPending(ctx.Context(), caller)
	if err != nil {
		b.operatorFailed(ctx, chatID, "withdrawals", err)
		return
	}
	if len(pending) == 0 {
		b.send(ctx, chatID, msgNoPending)
		return
	}
	for _, w := range pending {
		b.send(ctx, chatID, withdrawalRequestText(w, w.User, b.cfg.Currency), decisionKeyboard(w.ID))
	}
}

func (b *Bot) handleBroadcastCommand(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || !b.moderation.IsOperator(message.From.ID) {
		return nil
	}

	text := commandArgs(message.Text)
	if text == "" {
		b.send(ctx, message.Chat.ID, msgBroadcastUsage)
		return nil
	}

	tally, err := b.moderation.Broadcast(ctx.Context(), message.From.ID, text)
	if err != nil {
		b.operatorFailed(ctx, message.Chat.ID, "broadcast", err)
		return nil
	}
	b.send(ctx, message.Chat.ID, broadcastResultText(tally))
	return nil
}

func (b *Bot) handleReferralsCommand(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || !b.moderation.IsOperator(message.From.ID) {
		return nil
	}

	target, err := strconv.ParseInt(commandArgs(message.Text), 10, 64)
	if err != nil {
		b.send(ctx, message.Chat.ID, msgReferralsUsage)
		return nil
	}

	users, total, err := b.moderation.ReferralsOf(ctx.Context(), message.From.ID, target, operatorReferralsLimit)
	if err != nil {
		b.operatorFailed(ctx, message.Chat.ID, "referrals", err)
		return nil
	}
	b.send(ctx, message.Chat.ID, userReferralsText(target, users, total))
	return nil
}

func (b *Bot) adminStats(ctx *th.Context, query *telego.CallbackQuery) {
	b.answer(ctx, query.ID, "", false)

	stats, err := b.moderation.Stats(ctx.Context(), query.From.ID)
	if err != nil {
		b.operatorFailed(ctx, query.From.ID, "admin_stats", err)
		return
	}
	b.send(ctx, query.From.ID, adminStatsText(stats))
}

func (b *Bot) beginBroadcast(ctx *th.Context, query *telego.CallbackQuery) {
	b.answer(ctx, query.ID, "", false)

	if err := b.moderation.BeginBroadcast(ctx.Context(), query.From.ID); err != nil {
		b.operatorFailed(ctx, query.From.ID, "begin_broadcast", err)
		return
	}
	b.send(ctx, query.From.ID, msgBroadcastPrompt)
}

func (b *Bot) continueBroadcast(ctx *th.Context, chatID, operatorID int64, draft moderation.Draft, text string) {
	switch draft.State {
	case moderation.DraftAwaitingMessage:
		d, err := b.moderation.DraftMessage(ctx.Context(), operatorID, text)
		if err != nil {
			b.operatorFailed(ctx, chatID, "draft_broadcast", err)
			return
		}
		b.send(ctx, chatID, broadcastConfirmText(d.Text))
	case moderation.DraftAwaitingConfirm:
		tally, sent, err := b.moderation.ConfirmBroadcast(ctx.Context(), operatorID, text)
		if err != nil {
			b.operatorFailed(ctx, chatID, "confirm_broadcast", err)
			return
		}
		if !sent {
			b.send(ctx, chatID, msgBroadcastCancelled)
			return
		}
		b.send(ctx, chatID, broadcastResultText(tally))
	}
}

func (b *Bot) decide(ctx *th.Context, query *telego.CallbackQuery, id int64, approve bool) {
	verdict := moderation.VerdictReject
	if approve {
		verdict = moderation.VerdictApprove
	}

	w, err := b.moderation.Decide(ctx.Context(), query.From.ID, id, verdict)
	if err != nil {
		b.answer(ctx, query.ID, "", false)
		if errors.Is(err, ledger.ErrAlreadyResolved) {
			log.WithFields(log.Fields{
				"withdrawal_id": id,
				"verdict":       verdict.String(),
			}).Warn("Decision on resolved withdrawal")
		}
		b.operatorFailed(ctx, query.From.ID, "decide", err)
		return
	}

	b.answer(ctx, query.ID, "Done", false)
	b.send(ctx, query.From.ID, decisionText(*w, verdict))
}
