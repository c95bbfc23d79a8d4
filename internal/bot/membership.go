package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ErrMembershipUnknown means the channel could not be asked. The user should
// retry; it does not mean they are not a member.
var ErrMembershipUnknown = errors.New("channel membership could not be checked")

type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// ChatMemberGetter is the part of *telego.Bot used for membership checks.
type ChatMemberGetter interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// ChannelMembership checks membership of a public channel. With no channel
// configured everyone counts as a member.
type ChannelMembership struct {
	bot     ChatMemberGetter
	channel string
	timeout time.Duration
}

func NewChannelMembership(bot ChatMemberGetter, channel string, timeout time.Duration) *ChannelMembership {
	return &ChannelMembership{bot: bot, channel: channel, timeout: timeout}
}

func (c *ChannelMembership) IsMember(ctx context.Context, userID int64) (bool, error) {
	if c.channel == "" {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.Username(c.channel),
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("%w: user %d in %s: %v", ErrMembershipUnknown, userID, c.channel, err)
	}

	switch member.MemberStatus() {
	case "member", "administrator", "creator":
		return true, nil
	default:
		return false, nil
	}
}
