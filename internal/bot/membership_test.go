package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatMembers struct {
	member telego.ChatMember
	err    error
	params *telego.GetChatMemberParams
}

func (f *fakeChatMembers) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.params = params
	return f.member, f.err
}

func TestChannelMembership(t *testing.T) {
	tests := []struct {
		name   string
		member telego.ChatMember
		want   bool
	}{
		{"member", &telego.ChatMemberMember{Status: "member"}, true},
		{"administrator", &telego.ChatMemberAdministrator{Status: "administrator"}, true},
		{"creator", &telego.ChatMemberOwner{Status: "creator"}, true},
		{"left", &telego.ChatMemberLeft{Status: "left"}, false},
		{"banned", &telego.ChatMemberBanned{Status: "kicked"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeChatMembers{member: tt.member}
			checker := NewChannelMembership(api, "@earn_channel", time.Second)

			got, err := checker.IsMember(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "@earn_channel", api.params.ChatID.Username)
			assert.Equal(t, int64(42), api.params.UserID)
		})
	}
}

func TestChannelMembership_FailureIsUnknown(t *testing.T) {
	api := &fakeChatMembers{err: errors.New("Bad Request: chat not found")}
	checker := NewChannelMembership(api, "@earn_channel", time.Second)

	member, err := checker.IsMember(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMembershipUnknown)
	assert.False(t, member)
}

func TestChannelMembership_NoChannel(t *testing.T) {
	api := &fakeChatMembers{err: errors.New("must not be called")}
	member, err := NewChannelMembership(api, "", time.Second).IsMember(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Nil(t, api.params)
}
