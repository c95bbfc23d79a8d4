package withdrawal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"referral-bot/internal/config"
	"referral-bot/internal/ledger"
	"referral-bot/internal/ledger/ledgertest"
	"referral-bot/internal/models"
	"referral-bot/internal/session"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) WithdrawalSubmitted(ctx context.Context, w models.Withdrawal, owner models.User) error {
	return m.Called(ctx, w.ID, owner.ID).Error(0)
}

func (m *mockNotifier) WithdrawalApproved(ctx context.Context, w models.Withdrawal) error {
	return m.Called(ctx, w.ID, w.UserID).Error(0)
}

func (m *mockNotifier) WithdrawalRejected(ctx context.Context, w models.Withdrawal) error {
	return m.Called(ctx, w.ID, w.UserID, w.Amount).Error(0)
}

var testMethods = []config.WithdrawalMethod{
	{Key: "telebirr", Label: "Telebirr", Prompt: "Please enter your Telebirr phone number:"},
	{Key: "cbe", Label: "CBE Bank", Prompt: "Please enter your CBE bank account number:"},
}

func newTestService(l ledger.Ledger, n Notifier) (*Service, *session.MemoryStore[Dialogue]) {
	store := session.NewMemoryStore[Dialogue](100, time.Minute)
	return NewService(l, store, n, Settings{MinWithdrawal: 100, Methods: testMethods}), store
}

func seedDialogue(t *testing.T, store *session.MemoryStore[Dialogue], userID int64, state State) {
	t.Helper()
	d := NewDialogue(userID, time.Now())
	d.State = state
	if state != StateAwaitingMethod {
		d.Method = "telebirr"
	}
	if state == StateAwaitingAmount {
		d.Details = "+251911"
	}
	require.NoError(t, store.Put(context.Background(), userID, d))
}

func TestStart_BelowMinimumCreatesNothing(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	l.On("GetBalance", ctx, int64(1)).Return(int64(0), nil)
	svc, store := newTestService(l, nil)

	_, err := svc.Start(ctx, 1)

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, ReasonBelowMinimum, policyErr.Reason)
	assert.Equal(t, int64(100), policyErr.Min)
	assert.Equal(t, int64(0), policyErr.Max)
	assert.Zero(t, store.Len())
}

func TestStart_OpensDialogue(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	l.On("GetBalance", ctx, int64(1)).Return(int64(100), nil)
	svc, _ := newTestService(l, nil)

	d, err := svc.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingMethod, d.State)

	active, ok, err := svc.Active(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d, active)
}

func TestSelectMethod(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(new(ledgertest.MockLedger), nil)

	_, err := svc.SelectMethod(ctx, 1, "cbe")
	assert.ErrorIs(t, err, ErrNoDialogue)

	seedDialogue(t, store, 1, StateAwaitingMethod)

	_, err = svc.SelectMethod(ctx, 1, "paypal")
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, ReasonUnknownMethod, policyErr.Reason)

	method, err := svc.SelectMethod(ctx, 1, "cbe")
	require.NoError(t, err)
	assert.Equal(t, "Please enter your CBE bank account number:", method.Prompt)

	d, _, _ := store.Get(ctx, 1)
	assert.Equal(t, StateAwaitingDetails, d.State)
	assert.Equal(t, "cbe", d.Method)
}

func TestSubmitDetails_EchoesBalance(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	l.On("GetBalance", ctx, int64(1)).Return(int64(150), nil)
	svc, store := newTestService(l, nil)
	seedDialogue(t, store, 1, StateAwaitingDetails)

	balance, err := svc.SubmitDetails(ctx, 1, "0911223344")
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	d, _, _ := store.Get(ctx, 1)
	assert.Equal(t, StateAwaitingAmount, d.State)
	assert.Equal(t, "0911223344", d.Details)
}

func TestSubmitAmount_Validation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"not a number", "lots", ReasonInvalidAmount},
		{"fraction", "120.5", ReasonInvalidAmount},
		{"zero", "0", ReasonInvalidAmount},
		{"negative", "-120", ReasonInvalidAmount},
		{"below minimum", "99", ReasonAmountOutOfRange},
		{"above balance", "151", ReasonAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := new(ledgertest.MockLedger)
			l.On("GetBalance", ctx, int64(1)).Return(int64(150), nil).Maybe()
			svc, store := newTestService(l, nil)
			seedDialogue(t, store, 1, StateAwaitingAmount)

			_, err := svc.SubmitAmount(ctx, 1, tt.input)

			var policyErr *PolicyError
			require.ErrorAs(t, err, &policyErr)
			assert.Equal(t, tt.reason, policyErr.Reason)
			if tt.reason == ReasonAmountOutOfRange {
				assert.Equal(t, int64(100), policyErr.Min)
				assert.Equal(t, int64(150), policyErr.Max)
			}

			d, ok, _ := store.Get(ctx, 1)
			require.True(t, ok, "dialogue must survive a refused amount")
			assert.Equal(t, StateAwaitingAmount, d.State)
			l.AssertNotCalled(t, "CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitAmount_ReservesAndNotifies(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)
	w := &models.Withdrawal{ID: 9, UserID: 1, Method: "telebirr", Details: "+251911", Amount: 120, Status: models.WithdrawalPending}

	l.On("GetBalance", ctx, int64(1)).Return(int64(150), nil)
	l.On("CreateWithdrawal", ctx, int64(1), "telebirr", "+251911", int64(120)).Return(w, nil)
	l.On("GetUser", ctx, int64(1)).Return(&models.User{ID: 1, Name: "alice"}, nil)
	n.On("WithdrawalSubmitted", ctx, int64(9), int64(1)).Return(nil)

	svc, store := newTestService(l, n)
	seedDialogue(t, store, 1, StateAwaitingAmount)

	got, err := svc.SubmitAmount(ctx, 1, " 120 ")
	require.NoError(t, err)
	assert.Equal(t, w, got)

	_, ok, _ := store.Get(ctx, 1)
	assert.False(t, ok, "dialogue ends on submission")
	l.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestSubmitAmount_NotificationFailureKeepsRequest(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)
	w := &models.Withdrawal{ID: 9, UserID: 1, Amount: 100}

	l.On("GetBalance", ctx, int64(1)).Return(int64(100), nil)
	l.On("CreateWithdrawal", ctx, int64(1), "telebirr", "+251911", int64(100)).Return(w, nil)
	l.On("GetUser", ctx, int64(1)).Return(nil, ledger.ErrNotFound)
	n.On("WithdrawalSubmitted", ctx, int64(9), int64(1)).Return(errors.New("timeout"))

	svc, store := newTestService(l, n)
	seedDialogue(t, store, 1, StateAwaitingAmount)

	got, err := svc.SubmitAmount(ctx, 1, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
}

func TestSubmitAmount_LostRaceReportsRefreshedRange(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	l.On("GetBalance", ctx, int64(1)).Return(int64(150), nil).Once()
	l.On("CreateWithdrawal", ctx, int64(1), "telebirr", "+251911", int64(150)).Return(nil, ledger.ErrInsufficientFunds)
	l.On("GetBalance", ctx, int64(1)).Return(int64(30), nil).Once()

	svc, store := newTestService(l, nil)
	seedDialogue(t, store, 1, StateAwaitingAmount)

	_, err := svc.SubmitAmount(ctx, 1, "150")

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, ReasonAmountOutOfRange, policyErr.Reason)
	assert.Equal(t, int64(30), policyErr.Max)

	_, ok, _ := store.Get(ctx, 1)
	assert.True(t, ok)
}

func TestSubmitAmount_WrongStep(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(new(ledgertest.MockLedger), nil)
	seedDialogue(t, store, 1, StateAwaitingDetails)

	_, err := svc.SubmitAmount(ctx, 1, "120")
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	svc, store := newTestService(l, nil)

	cancelled, err := svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cancelled)

	seedDialogue(t, store, 1, StateAwaitingAmount)
	cancelled, err = svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cancelled)

	_, ok, _ := store.Get(ctx, 1)
	assert.False(t, ok)
	assert.Empty(t, l.Calls, "cancel never touches the ledger")
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)

	l.On("SetWithdrawalStatus", ctx, int64(9), models.WithdrawalApproved).Return(nil)
	l.On("GetWithdrawal", ctx, int64(9)).Return(&models.Withdrawal{ID: 9, UserID: 1, Amount: 120, Status: models.WithdrawalApproved}, nil)
	n.On("WithdrawalApproved", ctx, int64(9), int64(1)).Return(nil)

	svc, _ := newTestService(l, n)
	w, err := svc.Approve(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, w.Status)

	l.AssertExpectations(t)
	n.AssertExpectations(t)
	l.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_Guards(t *testing.T) {
	for _, guard := range []error{ledger.ErrNotFound, ledger.ErrAlreadyResolved} {
		ctx := context.Background()
		l := new(ledgertest.MockLedger)
		n := new(mockNotifier)
		l.On("SetWithdrawalStatus", ctx, int64(9), models.WithdrawalApproved).Return(guard)

		svc, _ := newTestService(l, n)
		_, err := svc.Approve(ctx, 9)
		assert.ErrorIs(t, err, guard)
		n.AssertNotCalled(t, "WithdrawalApproved", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestReject_RefundsOwner(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)

	l.On("InTx", ctx).Return(nil)
	l.On("SetWithdrawalStatus", ctx, int64(9), models.WithdrawalRejected).Return(nil)
	l.On("WithdrawalOwnerAndAmount", ctx, int64(9)).Return(int64(1), int64(120), nil)
	l.On("AdjustBalance", ctx, int64(1), int64(120)).Return(int64(150), nil)
	l.On("GetWithdrawal", ctx, int64(9)).Return(&models.Withdrawal{ID: 9, UserID: 1, Amount: 120, Status: models.WithdrawalRejected}, nil)
	n.On("WithdrawalRejected", ctx, int64(9), int64(1), int64(120)).Return(nil)

	svc, _ := newTestService(l, n)
	w, err := svc.Reject(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, w.Status)

	l.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestReject_LoserDoesNotRefund(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)

	l.On("InTx", ctx).Return(nil)
	l.On("SetWithdrawalStatus", ctx, int64(9), models.WithdrawalRejected).Return(ledger.ErrAlreadyResolved)

	svc, _ := newTestService(l, n)
	_, err := svc.Reject(ctx, 9)
	assert.ErrorIs(t, err, ledger.ErrAlreadyResolved)

	l.AssertNotCalled(t, "AdjustBalance", mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "WithdrawalRejected", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReject_MissingOwnerIsConsistencyFault(t *testing.T) {
	ctx := context.Background()
	l := new(ledgertest.MockLedger)
	n := new(mockNotifier)

	l.On("InTx", ctx).Return(nil)
	l.On("SetWithdrawalStatus", ctx, int64(9), models.WithdrawalRejected).Return(nil)
	l.On("WithdrawalOwnerAndAmount", ctx, int64(9)).Return(int64(1), int64(120), nil)
	l.On("AdjustBalance", ctx, int64(1), int64(120)).Return(int64(0), ledger.ErrNotFound)

	svc, _ := newTestService(l, n)
	_, err := svc.Reject(ctx, 9)

	var consistencyErr *ledger.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "reject", consistencyErr.Op)
	n.AssertNotCalled(t, "WithdrawalRejected", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
