// Package moderation is the operator-only surface: pending withdrawal review,
// decisions, statistics and broadcast.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"referral-bot/internal/fanout"
	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
	"referral-bot/internal/session"
)

// ErrNotOperator is returned for every call made by someone other than the
// operator. Callers must not reveal it to the user.
var ErrNotOperator = errors.New("caller is not the operator")

var ErrEmptyMessage = errors.New("broadcast message is empty")

type Verdict int

const (
	VerdictApprove Verdict = iota + 1
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictApprove:
		return "approve"
	case VerdictReject:
		return "reject"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decider resolves pending withdrawals.
type Decider interface {
	Approve(ctx context.Context, id int64) (*models.Withdrawal, error)
	Reject(ctx context.Context, id int64) (*models.Withdrawal, error)
}

// Sender delivers one broadcast message to one user.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

type Settings struct {
	OperatorID           int64
	BroadcastConcurrency int
}

type Gateway struct {
	settings Settings
	ledger   ledger.Ledger
	decider  Decider
	sender   Sender
	drafts   session.Store[Draft]
}

func NewGateway(settings Settings, l ledger.Ledger, decider Decider, sender Sender, drafts session.Store[Draft]) *Gateway {
	return &Gateway{
		settings: settings,
		ledger:   l,
		decider:  decider,
		sender:   sender,
		drafts:   drafts,
	}
}

func (g *Gateway) IsOperator(caller int64) bool {
	return caller == g.settings.OperatorID
}

func (g *Gateway) authorize(caller int64) error {
	if !g.IsOperator(caller) {
		log.WithField("caller_id", caller).Debug("Ignoring operator action from non-operator")
		return ErrNotOperator
	}
	return nil
}

// ListPending returns pending requests oldest first, owners loaded.
func (g *Gateway) ListPending(ctx context.Context, caller int64) ([]models.Withdrawal, error) {
	if err := g.authorize(caller); err != nil {
		return nil, err
	}
	return g.ledger.PendingWithdrawals(ctx)
}

func (g *Gateway) Decide(ctx context.Context, caller, requestID int64, verdict Verdict) (*models.Withdrawal, error) {
	if err := g.authorize(caller); err != nil {
		return nil, err
	}

	switch verdict {
	case VerdictApprove:
		return g.decider.Approve(ctx, requestID)
	case VerdictReject:
		return g.decider.Reject(ctx, requestID)
	default:
		return nil, fmt.Errorf("unknown verdict %s for withdrawal %d", verdict, requestID)
	}
}

type Stats struct {
	Users   int64
	Pending int
}

func (g *Gateway) Stats(ctx context.Context, caller int64) (Stats, error) {
	if err := g.authorize(caller); err != nil {
		return Stats{}, err
	}

	users, err := g.ledger.CountUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	pending, err := g.ledger.PendingWithdrawals(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Users: users, Pending: len(pending)}, nil
}

// ReferralsOf lists up to limit users referred by target and the total count.
func (g *Gateway) ReferralsOf(ctx context.Context, caller, target int64, limit int) ([]models.User, int64, error) {
	if err := g.authorize(caller); err != nil {
		return nil, 0, err
	}

	count, err := g.ledger.CountReferrals(ctx, target)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}
	users, err := g.ledger.ListReferrals(ctx, target, limit)
	if err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

// Broadcast sends text to every registered user. Delivery failures are
// counted, never fatal.
func (g *Gateway) Broadcast(ctx context.Context, caller int64, text string) (fanout.Tally, error) {
	if err := g.authorize(caller); err != nil {
		return fanout.Tally{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fanout.Tally{}, ErrEmptyMessage
	}

	ids, err := g.ledger.ListAllUserIDs(ctx)
	if err != nil {
		return fanout.Tally{}, err
	}

	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"broadcast_id": runID,
		"recipients":   len(ids),
	})
	logger.Info("Broadcast started")
	started := time.Now()

	tally := fanout.Each(ctx, g.settings.BroadcastConcurrency, ids, func(ctx context.Context, id int64) error {
		if err := g.sender.SendText(ctx, id, text); err != nil {
			logger.WithField("user_id", id).WithError(err).Debug("Broadcast delivery failed")
			return err
		}
		return nil
	})

	logger.WithFields(log.Fields{
		"sent":     tally.Sent,
		"failed":   tally.Failed,
		"duration": time.Since(started).String(),
	}).Info("Broadcast finished")
	return tally, nil
}
