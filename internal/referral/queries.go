package referral

import (
	"context"
	"fmt"

	"referral-bot/internal/models"
)

func (e *Engine) Balance(ctx context.Context, userID int64) (int64, error) {
	return e.ledger.GetBalance(ctx, userID)
}

// Referrals returns up to limit referred users, earliest first, and the total
// number of referrals.
func (e *Engine) Referrals(ctx context.Context, userID int64, limit int) ([]models.User, int64, error) {
	count, err := e.ledger.CountReferrals(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}

	users, err := e.ledger.ListReferrals(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

func (e *Engine) TopReferrers(ctx context.Context, limit int) ([]models.TopReferrer, error) {
	return e.ledger.TopReferrers(ctx, limit)
}

func (e *Engine) UserCount(ctx context.Context) (int64, error) {
	return e.ledger.CountUsers(ctx)
}

func (e *Engine) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	return e.ledger.UserExists(ctx, userID)
}

// ReferralLink is the deep link that starts the bot with userID as referrer.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}
