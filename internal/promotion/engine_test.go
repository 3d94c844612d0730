package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
)

var today = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *memory.Store
	stock  *inventory.Stock
	engine *Engine
	order  domain.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return today }
	f := &fixture{repo: memory.New(), stock: inventory.NewStock(now)}
	f.engine = New(f.stock, now)
	f.order = domain.Order{ID: "ord-1", Status: domain.OrderStatusPending, CreatedAt: today}

	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		if err := tx.InsertOrder(context.Background(), f.order); err != nil {
			return err
		}
		_, err := f.stock.Receive(context.Background(), tx, domain.StockBatch{
			VariantID: "var-gift", UnitID: "unit-pcs", Qty: 3, UnitCost: decimal.NewFromInt(4),
		})
		return err
	}))
	return f
}

func (f *fixture) insertDiscount(t *testing.T, d domain.Discount) {
	t.Helper()
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertDiscount(context.Background(), d)
	}))
}

func (f *fixture) insertCoupon(t *testing.T, c domain.Coupon) {
	t.Helper()
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertCoupon(context.Background(), c)
	}))
}

func (f *fixture) applyDiscount(id string, total decimal.Decimal) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = f.engine.ApplyDiscount(context.Background(), tx, &f.order, id, total)
		return err
	})
	return out, err
}

func (f *fixture) discountLimit(t *testing.T, id string) *int {
	t.Helper()
	var limit *int
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		d, err := tx.GetDiscount(context.Background(), id)
		if err != nil {
			return err
		}
		limit = d.UsageLimit
		return nil
	}))
	return limit
}

func (f *fixture) giftStock(t *testing.T) domain.StockView {
	t.Helper()
	var view domain.StockView
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		view, err = f.stock.View(context.Background(), tx, "var-gift")
		return err
	}))
	return view
}

func intPtr(v int) *int { return &v }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestApplyDiscountPercentageAndFixed(t *testing.T) {
	f := newFixture(t)
	f.insertDiscount(t, domain.Discount{ID: "dis-pct", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypePercentage, Value: dec(15)})
	f.insertDiscount(t, domain.Discount{ID: "dis-fix", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypeFixed, Value: dec(30)})

	total, err := f.applyDiscount("dis-pct", dec(200))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(170)), total.String())

	total, err = f.applyDiscount("dis-fix", dec(200))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(170)), total.String())

	assert.Nil(t, f.discountLimit(t, "dis-pct"))
}

func TestDiscountUsageSymmetryAndExhaustion(t *testing.T) {
	f := newFixture(t)
	f.insertDiscount(t, domain.Discount{ID: "dis-3", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypeFixed, Value: dec(1), UsageLimit: intPtr(3)})

	_, err := f.applyDiscount("dis-3", dec(10))
	require.NoError(t, err)
	assert.Equal(t, 2, *f.discountLimit(t, "dis-3"))

	f.order.DiscountID = "dis-3"
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return f.engine.Rollback(context.Background(), tx, &f.order)
	}))
	assert.Equal(t, 3, *f.discountLimit(t, "dis-3"))

	for i := 0; i < 3; i++ {
		_, err := f.applyDiscount("dis-3", dec(10))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, *f.discountLimit(t, "dis-3"))

	_, err = f.applyDiscount("dis-3", dec(10))
	require.ErrorIs(t, err, store.ErrPromotionExhausted)
	assert.Equal(t, 0, *f.discountLimit(t, "dis-3"))
}

func TestDiscountOutsideWindowIsExpired(t *testing.T) {
	f := newFixture(t)
	past := today.AddDate(0, 0, -1)
	future := today.AddDate(0, 0, 2)
	f.insertDiscount(t, domain.Discount{ID: "dis-old", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypeFixed, Value: dec(1), EndDate: &past, UsageLimit: intPtr(5)})
	f.insertDiscount(t, domain.Discount{ID: "dis-soon", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypeFixed, Value: dec(1), StartDate: &future})

	_, err := f.applyDiscount("dis-old", dec(10))
	require.ErrorIs(t, err, store.ErrPromotionExpired)
	assert.Equal(t, 5, *f.discountLimit(t, "dis-old"))

	_, err = f.applyDiscount("dis-soon", dec(10))
	require.ErrorIs(t, err, store.ErrPromotionExpired)
}

func TestDiscountEndingTodayIsStillValid(t *testing.T) {
	f := newFixture(t)
	end := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	f.insertDiscount(t, domain.Discount{ID: "dis-last", Type: domain.DiscountTypeFlat, ValueType: domain.ValueTypeFixed, Value: dec(1), StartDate: &end, EndDate: &end})

	_, err := f.applyDiscount("dis-last", dec(10))
	require.NoError(t, err)
}

func TestUnknownDiscountIsInvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.applyDiscount("dis-nope", dec(10))
	require.ErrorIs(t, err, store.ErrInvalidInput)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuyXGetYAddsGiftLineAndReservesStock(t *testing.T) {
	f := newFixture(t)
	f.insertDiscount(t, domain.Discount{
		ID: "dis-gift", Type: domain.DiscountTypeBuyXGetY, GiftVariantID: "var-gift", GiftUnitID: "unit-pcs", GiftQty: 2, UsageLimit: intPtr(4),
	})

	total, err := f.applyDiscount("dis-gift", dec(80))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(80)))

	require.Len(t, f.order.Lines, 1)
	gift := f.order.Lines[0]
	assert.True(t, gift.IsGift)
	assert.Equal(t, "dis-gift", gift.GiftDiscountID)
	assert.Equal(t, 2, gift.Qty)
	assert.True(t, gift.Total.IsZero())
	assert.Equal(t, 1, f.giftStock(t).Ledger.Balance)
	assert.Equal(t, 3, *f.discountLimit(t, "dis-gift"))
}

func TestBuyXGetYWithoutGiftStockFailsWhole(t *testing.T) {
	f := newFixture(t)
	f.insertDiscount(t, domain.Discount{
		ID: "dis-gift", Type: domain.DiscountTypeBuyXGetY, GiftVariantID: "var-gift", GiftUnitID: "unit-pcs", GiftQty: 5, UsageLimit: intPtr(4),
	})

	_, err := f.applyDiscount("dis-gift", dec(80))
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 4, *f.discountLimit(t, "dis-gift"))
	assert.Equal(t, 3, f.giftStock(t).Ledger.Balance)
}

func TestRollbackReclaimsGiftStock(t *testing.T) {
	f := newFixture(t)
	f.insertDiscount(t, domain.Discount{
		ID: "dis-gift", Type: domain.DiscountTypeBuyXGetY, GiftVariantID: "var-gift", GiftUnitID: "unit-pcs", GiftQty: 2, UsageLimit: intPtr(1),
	})
	_, err := f.applyDiscount("dis-gift", dec(80))
	require.NoError(t, err)
	f.order.DiscountID = "dis-gift"

	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return f.engine.Rollback(context.Background(), tx, &f.order)
	}))

	assert.Empty(t, f.order.Lines)
	view := f.giftStock(t)
	assert.Equal(t, 3, view.Ledger.Balance)
	assert.Equal(t, 3, inventory.Available(view.Batches))
	assert.Equal(t, 1, *f.discountLimit(t, "dis-gift"))

	var stored *domain.Order
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		stored, err = tx.GetOrder(context.Background(), f.order.ID)
		return err
	}))
	assert.Empty(t, stored.Lines)
}

func TestCouponLimitedAndUnlimited(t *testing.T) {
	f := newFixture(t)
	f.insertCoupon(t, domain.Coupon{ID: "cpn-once", Code: "ONCE", ValueType: domain.ValueTypePercentage, Value: dec(50), UsageLimit: intPtr(1)})
	f.insertCoupon(t, domain.Coupon{ID: "cpn-free", Code: "FREE", ValueType: domain.ValueTypeFixed, Value: dec(5)})
	ended := today.AddDate(0, 0, -30)
	f.insertCoupon(t, domain.Coupon{ID: "cpn-lapsed", Code: "LAPSED", ValueType: domain.ValueTypeFixed, Value: dec(4), UsageLimit: intPtr(3), EndDate: &ended})
	f.insertCoupon(t, domain.Coupon{ID: "cpn-evergreen", Code: "EVERGREEN", ValueType: domain.ValueTypeFixed, Value: dec(4), EndDate: &ended})

	apply := func(id string) (decimal.Decimal, error) {
		var out decimal.Decimal
		err := f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
			var err error
			out, err = f.engine.ApplyCoupon(context.Background(), tx, id, dec(40))
			return err
		})
		return out, err
	}

	total, err := apply("cpn-once")
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(20)))
	_, err = apply("cpn-once")
	require.ErrorIs(t, err, store.ErrPromotionExhausted)

	for i := 0; i < 3; i++ {
		total, err = apply("cpn-free")
		require.NoError(t, err)
		assert.True(t, total.Equal(dec(35)))
	}

	_, err = apply("cpn-lapsed")
	require.ErrorIs(t, err, store.ErrPromotionExpired)
	total, err = apply("cpn-evergreen")
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(36)))

	f.order.CouponID = "cpn-once"
	require.NoError(t, f.repo.WithinTx(context.Background(), func(tx store.Tx) error {
		return f.engine.Rollback(context.Background(), tx, &f.order)
	}))
	_, err = apply("cpn-once")
	require.NoError(t, err)
}

func TestFloorAndConditions(t *testing.T) {
	assert.True(t, Floor(dec(-5)).IsZero())
	assert.Equal(t, "12.35", Floor(decimal.RequireFromString("12.345")).StringFixed(2))

	d := domain.Discount{Conditions: []domain.PromotionCondition{{MinPurchaseQty: 2, MinPurchaseAmount: dec(50)}}}
	assert.True(t, ConditionsMet(d, 2, dec(50)))
	assert.False(t, ConditionsMet(d, 1, dec(100)))
	assert.False(t, ConditionsMet(d, 3, dec(49)))
	assert.True(t, ConditionsMet(domain.Discount{}, 0, decimal.Zero))
}
