package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

func ledgerBalance(t *testing.T, s *Store, variantID string) int {
	t.Helper()
	var balance int
	require.NoError(t, s.WithinTx(context.Background(), func(tx store.Tx) error {
		ledger, err := tx.LockLedger(context.Background(), variantID)
		if err != nil {
			return err
		}
		balance = ledger.Balance
		return nil
	}))
	return balance
}

func TestWithinTxRestoresSnapshotOnError(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		ledger, err := tx.LockLedger(ctx, "var-tea")
		if err != nil {
			return err
		}
		ledger.Balance = 0
		if err := tx.SaveLedger(ctx, *ledger); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 80, ledgerBalance(t, s, "var-tea"))
}

func TestWithinTxRestoresSnapshotOnPanic(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(tx store.Tx) error {
			ledger, err := tx.LockLedger(ctx, "var-egg")
			if err != nil {
				return err
			}
			ledger.Balance = 1
			_ = tx.SaveLedger(ctx, *ledger)
			panic("half-written")
		})
	})
	assert.Equal(t, 60, ledgerBalance(t, s, "var-egg"))
}

func TestWithinTxHonoursCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCouponCodesAreUniqueIgnoringCase(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertCoupon(ctx, domain.Coupon{ID: "cpn-dup", Code: "welcome5", ValueType: domain.ValueTypeFixed, Value: decimal.NewFromInt(1)})
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestTierThresholdsAreUnique(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertRewardTier(ctx, domain.RewardTier{ID: "tier-clash", Name: "Clash", MinPoints: 100, ExchangeRate: decimal.NewFromInt(1)})
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	var ladder []domain.RewardTier
	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		ladder, err = tx.ListRewardTiers(ctx)
		return err
	}))
	require.Len(t, ladder, 3)
	assert.Equal(t, "tier-gold", ladder[0].ID)
	assert.Equal(t, "tier-bronze", ladder[2].ID)
}

func TestOrderLinesKeepInsertionOrderAndMove(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		for _, id := range []string{"ord-a", "ord-b"} {
			if err := tx.InsertOrder(ctx, domain.Order{ID: id, Status: domain.OrderStatusPending}); err != nil {
				return err
			}
		}
		for _, id := range []string{"line-z", "line-a", "line-m"} {
			if err := tx.InsertOrderLine(ctx, domain.OrderLine{ID: id, OrderID: "ord-b", Qty: 1}); err != nil {
				return err
			}
		}
		return tx.MoveOrderLines(ctx, "ord-b", "ord-a")
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, "ord-a")
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(order.Lines))
		for _, line := range order.Lines {
			ids = append(ids, line.ID)
		}
		assert.Equal(t, []string{"line-z", "line-a", "line-m"}, ids)

		emptied, err := tx.GetOrder(ctx, "ord-b")
		if err != nil {
			return err
		}
		assert.Empty(t, emptied.Lines)
		return nil
	}))
}

func TestReturnedQtyByOrderSumsPerVariant(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		for _, ret := range []string{"ret-1", "ret-2"} {
			if err := tx.InsertReturnOrder(ctx, domain.ReturnOrder{ID: ret, OrderID: "ord-1"}); err != nil {
				return err
			}
			if err := tx.InsertReturnLine(ctx, domain.ReturnLine{ID: ret + "-l", ReturnOrderID: ret, VariantID: "var-tea", Qty: 2}); err != nil {
				return err
			}
		}
		if err := tx.InsertReturnOrder(ctx, domain.ReturnOrder{ID: "ret-other", OrderID: "ord-2"}); err != nil {
			return err
		}
		return tx.InsertReturnLine(ctx, domain.ReturnLine{ID: "ret-other-l", ReturnOrderID: "ret-other", VariantID: "var-tea", Qty: 9})
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		returned, err := tx.ReturnedQtyByOrder(ctx, "ord-1")
		if err != nil {
			return err
		}
		assert.Equal(t, map[string]int{"var-tea": 4}, returned)
		return nil
	}))
}

func TestEnsureLedgerKeepsExistingRow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.EnsureLedger(ctx, "var-tea")
	}))
	assert.Equal(t, 80, ledgerBalance(t, s, "var-tea"))

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.EnsureLedger(ctx, "var-fresh")
	}))
	assert.Equal(t, 0, ledgerBalance(t, s, "var-fresh"))
}
