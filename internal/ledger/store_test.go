package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/internal/ledger"
	"referral-bot/internal/ledger/ledgertest"
	"referral-bot/internal/models"
)

func createUser(t *testing.T, store *ledger.Store, id int64, referredBy *int64) {
	t.Helper()
	err := store.CreateUser(context.Background(), &models.User{
		ID:         id,
		Name:       "user",
		Contact:    "+251900000000",
		ReferredBy: referredBy,
	})
	require.NoError(t, err)
}

func fund(t *testing.T, store *ledger.Store, id, amount int64) {
	t.Helper()
	_, err := store.AdjustBalance(context.Background(), id, amount)
	require.NoError(t, err)
}

func TestStore_Users(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()

	t.Run("create and read", func(t *testing.T) {
		ip := "10.0.0.1"
		err := store.CreateUser(ctx, &models.User{ID: 100, Name: "alice", Contact: "+251911", IP: &ip})
		require.NoError(t, err)

		exists, err := store.UserExists(ctx, 100)
		require.NoError(t, err)
		assert.True(t, exists)

		user, err := store.GetUser(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Name)
		assert.Equal(t, "+251911", user.Contact)
		require.NotNil(t, user.IP)
		assert.Equal(t, ip, *user.IP)
		assert.Nil(t, user.ReferredBy)
		assert.Zero(t, user.Balance)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("duplicate user", func(t *testing.T) {
		err := store.CreateUser(ctx, &models.User{ID: 100, Name: "again"})
		assert.ErrorIs(t, err, ledger.ErrDuplicateUser)
	})

	t.Run("unknown referrer", func(t *testing.T) {
		missing := int64(999)
		err := store.CreateUser(ctx, &models.User{ID: 101, ReferredBy: &missing})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := store.GetUser(ctx, 404)
		assert.ErrorIs(t, err, ledger.ErrNotFound)

		exists, err := store.UserExists(ctx, 404)
		require.NoError(t, err)
		assert.False(t, exists)

		balance, err := store.GetBalance(ctx, 404)
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("count and list", func(t *testing.T) {
		createUser(t, store, 102, nil)

		count, err := store.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		ids, err := store.ListAllUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{100, 102}, ids)
	})
}

func TestStore_AdjustBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)

	balance, err := store.AdjustBalance(ctx, 1, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	balance, err = store.AdjustBalance(ctx, 1, -120)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	_, err = store.AdjustBalance(ctx, 1, -31)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err = store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance, "refused debit must not change the balance")

	_, err = store.AdjustBalance(ctx, 2, 5)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStore_ConcurrentCredits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AdjustBalance(ctx, 1, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)
}

func TestStore_Referrals(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()

	referrerA, referrerB := int64(1), int64(2)
	createUser(t, store, referrerA, nil)
	createUser(t, store, referrerB, nil)
	fund(t, store, referrerB, 50)

	for _, id := range []int64{10, 11, 12} {
		createUser(t, store, id, &referrerA)
		require.NoError(t, store.RecordReferral(ctx, referrerA, id))
	}
	for _, id := range []int64{20, 21, 22} {
		createUser(t, store, id, &referrerB)
		require.NoError(t, store.RecordReferral(ctx, referrerB, id))
	}
	createUser(t, store, 30, &referrerB)
	require.NoError(t, store.RecordReferral(ctx, referrerB, 30))

	t.Run("second edge for same user is refused", func(t *testing.T) {
		err := store.RecordReferral(ctx, referrerB, 10)
		assert.ErrorIs(t, err, ledger.ErrReferralExists)

		count, err := store.CountReferrals(ctx, referrerB)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("edge to unknown user", func(t *testing.T) {
		err := store.RecordReferral(ctx, referrerA, 999)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("list referrals in join order", func(t *testing.T) {
		users, err := store.ListReferrals(ctx, referrerA, 2)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, int64(10), users[0].ID)
		assert.Equal(t, int64(11), users[1].ID)
	})

	t.Run("top referrers", func(t *testing.T) {
		// Give A the same count as B to exercise the balance tiebreak.
		createUser(t, store, 13, &referrerA)
		require.NoError(t, store.RecordReferral(ctx, referrerA, 13))

		top, err := store.TopReferrers(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 2)

		assert.Equal(t, referrerB, top[0].UserID)
		assert.Equal(t, int64(4), top[0].ReferralCount)
		assert.Equal(t, int64(50), top[0].Balance)
		assert.Equal(t, referrerA, top[1].UserID)
		assert.Equal(t, int64(4), top[1].ReferralCount)

		top, err = store.TopReferrers(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, top, 1)
	})
}

func TestStore_Withdrawals(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)
	fund(t, store, 1, 150)

	t.Run("create reserves the amount", func(t *testing.T) {
		w, err := store.CreateWithdrawal(ctx, 1, "telebirr", "+251911", 120)
		require.NoError(t, err)
		assert.NotZero(t, w.ID)
		assert.Equal(t, models.WithdrawalPending, w.Status)

		balance, err := store.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(30), balance)

		owner, amount, err := store.WithdrawalOwnerAndAmount(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), owner)
		assert.Equal(t, int64(120), amount)
	})

	t.Run("overdraw creates nothing", func(t *testing.T) {
		_, err := store.CreateWithdrawal(ctx, 1, "cbe", "1000", 31)
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		pending, err := store.PendingWithdrawals(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		balance, err := store.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(30), balance)
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := store.CreateWithdrawal(ctx, 404, "cbe", "1000", 10)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := store.CreateWithdrawal(ctx, 1, "cbe", "1000", 0)
		assert.Error(t, err)
	})

	t.Run("status is set once", func(t *testing.T) {
		pending, err := store.PendingWithdrawals(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		id := pending[0].ID
		assert.Equal(t, int64(1), pending[0].User.ID)

		require.NoError(t, store.SetWithdrawalStatus(ctx, id, models.WithdrawalApproved))

		err = store.SetWithdrawalStatus(ctx, id, models.WithdrawalRejected)
		assert.ErrorIs(t, err, ledger.ErrAlreadyResolved)

		w, err := store.GetWithdrawal(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalApproved, w.Status)

		err = store.SetWithdrawalStatus(ctx, 9999, models.WithdrawalApproved)
		assert.ErrorIs(t, err, ledger.ErrNotFound)

		err = store.SetWithdrawalStatus(ctx, id, models.WithdrawalPending)
		assert.Error(t, err)
	})
}

func TestStore_PendingOrderAndAge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)
	fund(t, store, 1, 1000)

	var ids []int64
	for i := 0; i < 3; i++ {
		w, err := store.CreateWithdrawal(ctx, 1, "usdt", "T-addr", 100)
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}

	pending, err := store.PendingWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, w := range pending {
		assert.Equal(t, ids[i], w.ID)
	}

	stale, err := store.PendingOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = store.PendingOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, stale, 3)
}

func TestStore_ConcurrentWithdrawalsCannotDoubleSpend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)
	fund(t, store, 1, 150)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateWithdrawal(ctx, 1, "telebirr", "+251911", 100)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, refused int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, refused)

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestStore_ConcurrentStatusChangeHasOneWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)
	fund(t, store, 1, 100)

	w, err := store.CreateWithdrawal(ctx, 1, "cbe", "1000", 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, status := range []models.WithdrawalStatus{models.WithdrawalApproved, models.WithdrawalRejected} {
		wg.Add(1)
		go func(status models.WithdrawalStatus) {
			defer wg.Done()
			results <- store.SetWithdrawalStatus(ctx, w.ID, status)
		}(status)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
		} else if errors.Is(err, ledger.ErrAlreadyResolved) {
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestStore_InTxRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := ledgertest.SetupPostgres(t)
	ctx := context.Background()
	createUser(t, store, 1, nil)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx ledger.Ledger) error {
		if _, err := tx.AdjustBalance(ctx, 1, 40); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, &models.User{ID: 2}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)

	exists, err := store.UserExists(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)
}
