package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"referral-bot/internal/models"
)

// ReminderFlagTTL is how long a reminded request stays quiet.
const ReminderFlagTTL = 48 * time.Hour

// Flags is the subset of *redis.Client used to remember which requests were
// already reminded about.
type Flags interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type PendingLister interface {
	PendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Withdrawal, error)
}

type Alerter interface {
	PendingReminder(ctx context.Context, w models.Withdrawal, waiting time.Duration) error
}

// PendingReminder tells the operator about withdrawals left pending longer
// than age, once per request.
type PendingReminder struct {
	ledger   PendingLister
	flags    Flags
	alerter  Alerter
	age      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewPendingReminder(l PendingLister, flags Flags, alerter Alerter, age, interval time.Duration) *PendingReminder {
	return &PendingReminder{
		ledger:   l,
		flags:    flags,
		alerter:  alerter,
		age:      age,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a check immediately and then every interval until ctx is done.
func (r *PendingReminder) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	log.WithFields(log.Fields{
		"age":      r.age.String(),
		"interval": r.interval.String(),
	}).Info("Pending withdrawal reminder started")

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Pending withdrawal reminder stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce sends the due reminders and returns how many went out.
func (r *PendingReminder) RunOnce(ctx context.Context) int {
	now := r.now()
	stale, err := r.ledger.PendingOlderThan(ctx, now.Add(-r.age))
	if err != nil {
		log.WithError(err).Error("Error querying stale pending withdrawals")
		return 0
	}

	sent := 0
	for _, w := range stale {
		key := fmt.Sprintf("reminded_withdrawal_%d", w.ID)

		first, err := r.flags.SetNX(ctx, key, "true", ReminderFlagTTL).Result()
		if err != nil {
			log.WithField("withdrawal_id", w.ID).WithError(err).Warn("Failed to set reminder flag")
			continue
		}
		if !first {
			continue
		}

		if err := r.alerter.PendingReminder(ctx, w, now.Sub(w.CreatedAt)); err != nil {
			log.WithField("withdrawal_id", w.ID).WithError(err).Warn("Failed to send pending reminder")
			// Let the next run try again.
			_ = r.flags.Del(ctx, key).Err()
			continue
		}
		sent++
	}

	if sent > 0 {
		log.WithField("reminded", sent).Info("Sent pending withdrawal reminders")
	}
	return sent
}
