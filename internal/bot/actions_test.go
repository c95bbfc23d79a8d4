package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction_RoundTrip(t *testing.T) {
	actions := []Action{
		MainMenu{}, MyBalance{}, ReferFriends{}, MyReferrals{}, TopReferrers{},
		Statistics{}, Help{}, VerifyJoin{}, StartWithdrawal{},
		SelectMethod{Method: "telebirr"},
		AdminStats{}, AdminPending{}, AdminBroadcast{},
		Approve{ID: 17}, Reject{ID: 18},
	}

	for _, want := range actions {
		t.Run(want.CallbackData(), func(t *testing.T) {
			got, err := ParseAction(want.CallbackData())
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.LessOrEqual(t, len(want.CallbackData()), 64, "telegram limits callback data to 64 bytes")
		})
	}
}

func TestParseAction_KeepsLegacyNames(t *testing.T) {
	got, err := ParseAction("help_support")
	require.NoError(t, err)
	assert.Equal(t, Help{}, got)

	got, err = ParseAction("admin_withdrawals")
	require.NoError(t, err)
	assert.Equal(t, AdminPending{}, got)
}

func TestParseAction_Unknown(t *testing.T) {
	for _, data := range []string{
		"",
		"buy_vpn",
		"withdraw:",
		"admin_approve:",
		"admin_approve:abc",
		"admin_reject:-3",
		"admin_approve_12",
	} {
		_, err := ParseAction(data)
		assert.ErrorIs(t, err, ErrUnknownAction, data)
	}
}
