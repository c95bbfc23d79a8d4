package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"referral-bot/internal/config"
	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
	"referral-bot/internal/session"
)

// Notifier delivers best-effort messages about a request's lifecycle.
type Notifier interface {
	// WithdrawalSubmitted confirms to the owner and alerts the operator.
	WithdrawalSubmitted(ctx context.Context, w models.Withdrawal, owner models.User) error
	WithdrawalApproved(ctx context.Context, w models.Withdrawal) error
	WithdrawalRejected(ctx context.Context, w models.Withdrawal) error
}

type Settings struct {
	MinWithdrawal int64
	Methods       []config.WithdrawalMethod
}

type Service struct {
	ledger    ledger.Ledger
	dialogues session.Store[Dialogue]
	notifier  Notifier
	settings  Settings
	now       func() time.Time
}

func NewService(l ledger.Ledger, dialogues session.Store[Dialogue], notifier Notifier, settings Settings) *Service {
	return &Service{
		ledger:    l,
		dialogues: dialogues,
		notifier:  notifier,
		settings:  settings,
		now:       time.Now,
	}
}

func (s *Service) Methods() []config.WithdrawalMethod {
	return s.settings.Methods
}

func (s *Service) method(key string) (config.WithdrawalMethod, bool) {
	for _, m := range s.settings.Methods {
		if m.Key == key {
			return m, true
		}
	}
	return config.WithdrawalMethod{}, false
}

// Start opens a dialogue when the balance covers the minimum withdrawal. Any
// dialogue already in progress is replaced.
func (s *Service) Start(ctx context.Context, userID int64) (Dialogue, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return Dialogue{}, err
	}
	if balance < s.settings.MinWithdrawal {
		return Dialogue{}, &PolicyError{Reason: ReasonBelowMinimum, Min: s.settings.MinWithdrawal, Max: balance}
	}

	d := NewDialogue(userID, s.now())
	if err := s.dialogues.Put(ctx, userID, d); err != nil {
		return Dialogue{}, err
	}
	return d, nil
}

// Active returns the dialogue in progress for userID, if any.
func (s *Service) Active(ctx context.Context, userID int64) (Dialogue, bool, error) {
	return s.dialogues.Get(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID int64) (Dialogue, error) {
	d, ok, err := s.dialogues.Get(ctx, userID)
	if err != nil {
		return Dialogue{}, err
	}
	if !ok {
		return Dialogue{}, ErrNoDialogue
	}
	return d, nil
}

func (s *Service) SelectMethod(ctx context.Context, userID int64, key string) (config.WithdrawalMethod, error) {
	d, err := s.load(ctx, userID)
	if err != nil {
		return config.WithdrawalMethod{}, err
	}

	method, ok := s.method(key)
	if !ok {
		return config.WithdrawalMethod{}, &PolicyError{Reason: ReasonUnknownMethod}
	}

	next, err := d.WithMethod(method.Key)
	if err != nil {
		return config.WithdrawalMethod{}, err
	}
	if err := s.dialogues.Put(ctx, userID, next); err != nil {
		return config.WithdrawalMethod{}, err
	}
	return method, nil
}

// SubmitDetails stores the destination and returns the current balance so
// the caller can ask for an amount.
func (s *Service) SubmitDetails(ctx context.Context, userID int64, details string) (int64, error) {
	d, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}

	next, err := d.WithDetails(details)
	if err != nil {
		return 0, err
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.dialogues.Put(ctx, userID, next); err != nil {
		return 0, err
	}
	return balance, nil
}

// SubmitAmount validates the amount against the live balance and reserves it.
// On a PolicyError the dialogue stays at the amount step.
func (s *Service) SubmitAmount(ctx context.Context, userID int64, text string) (*models.Withdrawal, error) {
	d, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.State != StateAwaitingAmount {
		return nil, fmt.Errorf("submit amount in state %s: %w", d.State, ErrWrongStep)
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 {
		return nil, &PolicyError{Reason: ReasonInvalidAmount}
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount < s.settings.MinWithdrawal || amount > balance {
		return nil, &PolicyError{Reason: ReasonAmountOutOfRange, Min: s.settings.MinWithdrawal, Max: balance}
	}

	w, err := s.ledger.CreateWithdrawal(ctx, userID, d.Method, d.Details, amount)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		// Another submission spent the balance between the check and the debit.
		balance, berr := s.ledger.GetBalance(ctx, userID)
		if berr != nil {
			return nil, berr
		}
		return nil, &PolicyError{Reason: ReasonAmountOutOfRange, Min: s.settings.MinWithdrawal, Max: balance}
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"withdrawal_id": w.ID,
		"user_id":       userID,
		"method":        w.Method,
		"amount":        w.Amount,
	}).Info("Withdrawal submitted")

	if err := s.dialogues.Delete(ctx, userID); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Failed to clear withdrawal dialogue")
	}

	s.notifySubmitted(ctx, *w)
	return w, nil
}

func (s *Service) notifySubmitted(ctx context.Context, w models.Withdrawal) {
	if s.notifier == nil {
		return
	}
	owner, err := s.ledger.GetUser(ctx, w.UserID)
	if err != nil {
		log.WithField("withdrawal_id", w.ID).WithError(err).Warn("Failed to load owner for notification")
		owner = &models.User{ID: w.UserID}
	}
	if err := s.notifier.WithdrawalSubmitted(ctx, w, *owner); err != nil {
		log.WithField("withdrawal_id", w.ID).WithError(err).Warn("Failed to deliver withdrawal notification")
	}
}

// Cancel discards the dialogue. It reports whether one was in progress.
func (s *Service) Cancel(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := s.dialogues.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.dialogues.Delete(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}
