// Package referral admits new users, links them to the user who invited them
// and pays referral and milestone rewards.
package referral

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"referral-bot/internal/fanout"
	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
	"referral-bot/internal/utils"
)

// Notifier delivers best-effort messages about rewards. Errors are logged and
// never undo a credit.
type Notifier interface {
	ReferralCredited(ctx context.Context, referrerID int64, referred models.User, bonus, balance int64) error
	MilestoneReached(ctx context.Context, referrerID int64, referrals, bonus int64) error
}

type Settings struct {
	ReferralBonus      int64
	MilestoneThreshold int64
	MilestoneBonus     int64
}

type Engine struct {
	ledger   ledger.Ledger
	notifier Notifier
	settings Settings
}

func NewEngine(l ledger.Ledger, notifier Notifier, settings Settings) *Engine {
	return &Engine{
		ledger:   l,
		notifier: notifier,
		settings: settings,
	}
}

// Registration is everything known about a user at the moment they finish
// onboarding.
type Registration struct {
	UserID            int64
	Name              string
	Contact           string
	IP                string
	ReferrerCandidate *int64
}

// Result describes what Register did. Created is false when the user was
// already registered, in which case nothing else happened.
type Result struct {
	Created          bool
	ReferrerID       *int64
	ReferralCredited bool
	MilestoneAwarded bool
}

// Register creates the user once. On first registration with a valid
// referrer, the edge, the referral credit and a milestone bonus are written in
// one transaction; notifications go out after it commits.
func (e *Engine) Register(ctx context.Context, reg Registration) (Result, error) {
	exists, err := e.ledger.UserExists(ctx, reg.UserID)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, nil
	}

	referrerID, err := e.resolveReferrer(ctx, reg.UserID, reg.ReferrerCandidate)
	if err != nil {
		return Result{}, err
	}

	user := models.User{
		ID:         reg.UserID,
		Name:       reg.Name,
		Contact:    reg.Contact,
		IP:         utils.NormalizeIP(reg.IP),
		ReferredBy: referrerID,
	}

	result := Result{Created: true, ReferrerID: referrerID}
	var referrerBalance, referralCount int64

	err = e.ledger.InTx(ctx, func(tx ledger.Ledger) error {
		if err := tx.CreateUser(ctx, &user); err != nil {
			return err
		}
		if referrerID == nil {
			return nil
		}

		if err := tx.RecordReferral(ctx, *referrerID, user.ID); err != nil {
			return err
		}
		// Crediting first locks the referrer row, so concurrent registrations
		// under the same referrer see each other's edges when counting.
		balance, err := tx.AdjustBalance(ctx, *referrerID, e.settings.ReferralBonus)
		if err != nil {
			return fmt.Errorf("failed to credit referrer %d: %w", *referrerID, err)
		}
		referrerBalance = balance
		result.ReferralCredited = true

		count, err := tx.CountReferrals(ctx, *referrerID)
		if err != nil {
			return err
		}
		referralCount = count

		if count == e.settings.MilestoneThreshold && e.settings.MilestoneBonus > 0 {
			balance, err := tx.AdjustBalance(ctx, *referrerID, e.settings.MilestoneBonus)
			if err != nil {
				return fmt.Errorf("failed to pay milestone to referrer %d: %w", *referrerID, err)
			}
			referrerBalance = balance
			result.MilestoneAwarded = true
		}
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateUser) {
		// A concurrent registration of the same user won the insert.
		log.WithField("user_id", reg.UserID).Info("User registered concurrently, treating as existing")
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to register user %d: %w", reg.UserID, err)
	}

	fields := log.Fields{"user_id": user.ID}
	if referrerID != nil {
		fields["referrer_id"] = *referrerID
		fields["referrals"] = referralCount
		fields["referrer_balance"] = referrerBalance
		fields["milestone"] = result.MilestoneAwarded
	}
	log.WithFields(fields).Info("User registered")

	if referrerID != nil {
		e.notify(ctx, *referrerID, user, referrerBalance, referralCount, result.MilestoneAwarded)
	}
	return result, nil
}

func (e *Engine) resolveReferrer(ctx context.Context, userID int64, candidate *int64) (*int64, error) {
	if candidate == nil {
		return nil, nil
	}
	if *candidate == userID {
		log.WithField("user_id", userID).Warn("Ignoring self-referral")
		return nil, nil
	}

	exists, err := e.ledger.UserExists(ctx, *candidate)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"referrer_id": *candidate,
		}).Warn("Ignoring unknown referrer")
		return nil, nil
	}

	id := *candidate
	return &id, nil
}

func (e *Engine) notify(ctx context.Context, referrerID int64, referred models.User, balance, count int64, milestone bool) {
	if e.notifier == nil {
		return
	}

	tasks := []fanout.Task{
		func(ctx context.Context) error {
			return e.notifier.ReferralCredited(ctx, referrerID, referred, e.settings.ReferralBonus, balance)
		},
	}
	if milestone {
		tasks = append(tasks, func(ctx context.Context) error {
			return e.notifier.MilestoneReached(ctx, referrerID, count, e.settings.MilestoneBonus)
		})
	}

	tally := fanout.Run(ctx, len(tasks), tasks...)
	if tally.Failed > 0 {
		log.WithFields(log.Fields{
			"referrer_id": referrerID,
			"failed":      tally.Failed,
		}).Warn("Failed to notify referrer")
	}
}
