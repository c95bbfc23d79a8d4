package bot

import (
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"referral-bot/internal/config"
)

func button(text string, a Action) telego.InlineKeyboardButton {
	return tu.InlineKeyboardButton(text).WithCallbackData(a.CallbackData())
}

func mainMenuKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			button("💰 My Balance", MyBalance{}),
			button("👥 Refer Friends", ReferFriends{}),
		),
		tu.InlineKeyboardRow(
			button("📝 My Referrals", MyReferrals{}),
			button("💸 Withdraw", StartWithdrawal{}),
		),
		tu.InlineKeyboardRow(
			button("🏆 Top Referrers", TopReferrers{}),
			button("📊 Statistics", Statistics{}),
		),
		tu.InlineKeyboardRow(
			button("❓ Help & Support", Help{}),
		),
	)
}

func backToMenuKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(button("⬅️ Back to Main Menu", MainMenu{})),
	)
}

func verifyJoinKeyboard(channel string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(button("✅ I Have Joined", VerifyJoin{})),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("➡️ Join Channel").WithURL("https://t.me/"+strings.TrimPrefix(channel, "@")),
		),
	)
}

func requestPhoneKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton("📱 Share My Phone Number").WithRequestContact()),
	).WithResizeKeyboard().WithOneTimeKeyboard()
}

// withdrawalMethodsKeyboard puts two methods per row.
func withdrawalMethodsKeyboard(methods []config.WithdrawalMethod) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	var row []telego.InlineKeyboardButton
	for _, m := range methods {
		row = append(row, button(m.Label, SelectMethod{Method: m.Key}))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tu.InlineKeyboardRow(button("⬅️ Back", MainMenu{})))
	return tu.InlineKeyboard(rows...)
}

func adminPanelKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(button("📊 View Statistics", AdminStats{})),
		tu.InlineKeyboardRow(button("📢 Broadcast Message", AdminBroadcast{})),
		tu.InlineKeyboardRow(button("⏳ Pending Withdrawals", AdminPending{})),
	)
}

func decisionKeyboard(withdrawalID int64) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			button("✅ Approve", Approve{ID: withdrawalID}),
			button("❌ Reject", Reject{ID: withdrawalID}),
		),
	)
}
