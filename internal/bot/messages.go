package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"referral-bot/internal/fanout"
	"referral-bot/internal/models"
	"referral-bot/internal/moderation"
	"referral-bot/internal/withdrawal"
)

// Messages are sent with telego.ModeHTML; anything user supplied goes
// through html.EscapeString.

const (
	msgWelcomeBack         = "Welcome back!"
	msgMainMenu            = "Welcome to the main menu:"
	msgDashboard           = "Here is your dashboard:"
	msgRegistered          = "✅ Registration complete! Welcome to the bot."
	msgVerifyJoin          = "👋 Welcome!\n\nTo use this bot, you must be a member of our channel. Please join and then click 'Verify'."
	msgAskPhone            = "✅ Thank you for joining!\n\nTo complete your registration, please share your phone number with us by clicking the button below."
	msgMembershipUnknown   = "Sorry, we couldn't verify your channel membership. Please try again later."
	msgNotJoinedYet        = "You haven't joined the channel yet. Please join to continue."
	msgVerifyFailed        = "An error occurred during verification. Please try again."
	msgForeignContact      = "Please share your own phone number using the button below."
	msgWithdrawalCancelled = "Withdrawal cancelled."
	msgNothingToCancel     = "Nothing to cancel."
	msgSelectMethod        = "💸 <b>Withdrawal</b>\n\nPlease select your preferred withdrawal method:"
	msgEmptyDetails        = "Please enter the destination details."
	msgInvalidAmount       = "Invalid amount. Please enter a positive whole number."
	msgSubmitted           = "✅ Your withdrawal request has been submitted successfully!\nIt will be reviewed by an admin shortly."
	msgNoReferrals         = "You haven't referred anyone yet. Share your link to start earning!"
	msgInternalError       = "⚠️ Something went wrong. Please try again later."
	msgNoPending           = "No pending withdrawals."
	msgBroadcastUsage      = "Usage: /broadcast &lt;message&gt;"
	msgReferralsUsage      = "Usage: /referrals &lt;user_id&gt;"
	msgBroadcastPrompt     = "📢 Send the message to broadcast to all users. /cancel to abort."
	msgBroadcastCancelled  = "Broadcast cancelled."
	msgAlreadyResolved     = "This request has already been resolved."
	msgWithdrawalNotFound  = "Withdrawal request not found."
	msgConsistencyFault    = "⛔ Ledger inconsistency detected. The rejection was rolled back; check the logs."

	msgAdminPanel = "🧑‍💻 <b>Admin Panel</b>\n\n" +
		"<code>/users</code> - Get total user count.\n" +
		"<code>/broadcast &lt;message&gt;</code> - Send a message to all users.\n" +
		"<code>/withdrawals</code> - View pending withdrawal requests.\n" +
		"<code>/referrals &lt;user_id&gt;</code> - See who a user referred."
)

// displayName falls back to the id for users without a stored name.
func displayName(name string, id int64) string {
	if name == "" {
		return fmt.Sprintf("User ID: %d", id)
	}
	return html.EscapeString(name)
}

func balanceText(balance int64, currency string) string {
	return fmt.Sprintf("💰 <b>My Balance</b>\n\nYour current balance is: <b>%d %s</b>", balance, currency)
}

func referFriendsText(link string, bonus int64, currency string) string {
	return fmt.Sprintf("👥 <b>Refer &amp; Earn</b>\n\n"+
		"Invite your friends and earn <b>%d %s</b> for each successful referral!\n\n"+
		"Your unique referral link is:\n<code>%s</code>\n\n"+
		"<i>(Tap the link above to copy it)</i>", bonus, currency, html.EscapeString(link))
}

func referralListText(title string, users []models.User, total int64) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "- %s\n", displayName(u.Name, u.ID))
	}
	if rest := total - int64(len(users)); rest > 0 {
		fmt.Fprintf(&sb, "... and %d more.", rest)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func myReferralsText(users []models.User, total int64) string {
	if total == 0 {
		return msgNoReferrals
	}
	return referralListText(fmt.Sprintf("📝 <b>My Referrals (%d)</b>\n\nHere are the users you've referred:", total), users, total)
}

func userReferralsText(target int64, users []models.User, total int64) string {
	if total == 0 {
		return fmt.Sprintf("User %d has no referrals.", target)
	}
	return referralListText(fmt.Sprintf("User %d has referred %d users:", target, total), users, total)
}

func topReferrersText(top []models.TopReferrer, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Top %d Referrers</b>\n\n", limit)
	if len(top) == 0 {
		sb.WriteString("No referrals recorded yet.")
		return sb.String()
	}
	for i, r := range top {
		fmt.Fprintf(&sb, "%d. %s - %d referrals\n", i+1, displayName(r.Name, r.UserID), r.ReferralCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statisticsText(users int64) string {
	return fmt.Sprintf("📊 <b>Bot Statistics</b>\n\nTotal Registered Users: <b>%d</b>", users)
}

func helpText(bonus, minWithdrawal int64, currency string) string {
	return fmt.Sprintf("❓ <b>Help &amp; Support</b>\n\n"+
		"<b>How does it work?</b>\n"+
		"Share your referral link. When a new user joins through your link, completes the channel join, and phone verification, you earn %d %s.\n\n"+
		"<b>How can I withdraw?</b>\n"+
		"You need a minimum of %d %s to request a withdrawal. Go to the 'Withdraw' section and follow the instructions.\n\n"+
		"<b>Is self-referral allowed?</b>\n"+
		"No, referring yourself does not earn anything.\n\n"+
		"If you need further help, please contact the admin.",
		bonus, currency, minWithdrawal, currency)
}

func askAmountText(balance int64, currency string) string {
	return fmt.Sprintf("Your balance is %d %s. How much would you like to withdraw?", balance, currency)
}

// policyText renders the corrective prompt for a refused withdrawal step.
func policyText(err *withdrawal.PolicyError, currency string) string {
	switch err.Reason {
	case withdrawal.ReasonBelowMinimum:
		return fmt.Sprintf("You need at least %d %s to withdraw. Your balance is %d %s.", err.Min, currency, err.Max, currency)
	case withdrawal.ReasonAmountOutOfRange:
		if err.Max < err.Min {
			return fmt.Sprintf("Your balance is now %d %s, below the minimum of %d %s. Send /cancel to stop.", err.Max, currency, err.Min, currency)
		}
		return fmt.Sprintf("Please enter an amount between %d and %d %s.", err.Min, err.Max, currency)
	case withdrawal.ReasonInvalidAmount:
		return msgInvalidAmount
	case withdrawal.ReasonEmptyDetails:
		return msgEmptyDetails
	case withdrawal.ReasonUnknownMethod:
		return "This withdrawal method is not available."
	default:
		return msgInternalError
	}
}

func referralCreditedText(referred models.User, bonus, balance int64, currency string) string {
	return fmt.Sprintf("🎉 Congratulations! A new user (%s) joined with your link. You've earned %d %s!\n\nYour balance: %d %s",
		displayName(referred.Name, referred.ID), bonus, currency, balance, currency)
}

func milestoneText(referrals, bonus int64, currency string) string {
	return fmt.Sprintf("🏅 You reached %d referrals! A one-time bonus of %d %s has been added to your balance.", referrals, bonus, currency)
}

func withdrawalRequestText(w models.Withdrawal, owner models.User, currency string) string {
	return fmt.Sprintf("<b>Request ID:</b> %d\n"+
		"<b>User:</b> %s (<code>%d</code>)\n"+
		"<b>Method:</b> %s\n"+
		"<b>Details:</b> <code>%s</code>\n"+
		"<b>Amount:</b> %d %s",
		w.ID, displayName(owner.Name, owner.ID), owner.ID,
		html.EscapeString(strings.ToUpper(w.Method)), html.EscapeString(w.Details), w.Amount, currency)
}

func newWithdrawalAlertText(w models.Withdrawal, owner models.User, currency string) string {
	return "⚠️ <b>New Withdrawal Request!</b>\n\n" + withdrawalRequestText(w, owner, currency)
}

func approvedText(w models.Withdrawal, currency string) string {
	return fmt.Sprintf("✅ Your withdrawal request #%d for %d %s was approved.", w.ID, w.Amount, currency)
}

func rejectedText(w models.Withdrawal, currency string) string {
	return fmt.Sprintf("Your withdrawal request was rejected by the admin. The amount of %d %s has been returned to your balance.", w.Amount, currency)
}

func decisionText(w models.Withdrawal, verdict moderation.Verdict) string {
	if verdict == moderation.VerdictApprove {
		return fmt.Sprintf("Request #%d\n\n<b>Status: ✅ Approved</b>", w.ID)
	}
	return fmt.Sprintf("Request #%d\n\n<b>Status: ❌ Rejected (Amount Refunded)</b>", w.ID)
}

func adminStatsText(stats moderation.Stats) string {
	return fmt.Sprintf("📊 <b>Admin Statistics</b>\n\nTotal registered users: <b>%d</b>\nPending withdrawals: <b>%d</b>", stats.Users, stats.Pending)
}

func broadcastConfirmText(text string) string {
	return "📢 Send this message to all users? Reply <b>yes</b> to confirm, anything else cancels.\n\n" + html.EscapeString(text)
}

func broadcastResultText(tally fanout.Tally) string {
	return fmt.Sprintf("Broadcast finished.\nSent: %d\nFailed: %d", tally.Sent, tally.Failed)
}

func pendingReminderText(w models.Withdrawal, waiting time.Duration, currency string) string {
	owner := w.User
	if owner.ID == 0 {
		owner = models.User{ID: w.UserID}
	}
	return fmt.Sprintf("⏰ <b>Still pending after %s</b>\n\n", waiting.Truncate(time.Minute)) +
		withdrawalRequestText(w, owner, currency)
}
