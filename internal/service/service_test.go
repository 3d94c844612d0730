package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	repo store.Store
	ctx  context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, Options{
		DefaultTier:      loyalty.EntryTier{},
		Clock:            func() time.Time { return baseTime },
		ReturnExpiryDays: 180,
	})
	ctx := WithActor(context.Background(), domain.Actor{EmployeeID: "emp-cashier", Role: "cashier"})
	return fixture{svc: svc, repo: repo, ctx: ctx}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func strPtr(s string) *string { return &s }

func (f fixture) balance(t *testing.T, variantID string) int {
	t.Helper()
	view, err := f.svc.GetStock(f.ctx, variantID)
	require.NoError(t, err)
	total := 0
	for _, b := range view.Batches {
		total += b.Qty
	}
	require.Equal(t, view.Ledger.Balance, total, "batches out of step with ledger for %s", variantID)
	require.Equal(t, view.Ledger.QuantityIn-view.Ledger.QuantityOut, view.Ledger.Balance)
	return view.Ledger.Balance
}

func (f fixture) discountLimit(t *testing.T, id string) *int {
	t.Helper()
	var limit *int
	require.NoError(t, f.repo.WithinTx(f.ctx, func(tx store.Tx) error {
		d, err := tx.GetDiscount(f.ctx, id)
		if err != nil {
			return err
		}
		limit = d.UsageLimit
		return nil
	}))
	return limit
}

func (f fixture) customer(t *testing.T, id string) domain.CustomerProfile {
	t.Helper()
	profile, err := f.svc.GetCustomer(f.ctx, id)
	require.NoError(t, err)
	return profile
}

func (f fixture) order(t *testing.T, req domain.CreateOrderRequest) domain.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(f.ctx, req)
	require.NoError(t, err)
	return order
}

func (f fixture) pay(t *testing.T, order domain.Order) domain.InvoiceResult {
	t.Helper()
	result, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: order.TotalAmount})
	require.NoError(t, err)
	return result
}

func batchFrom(t *testing.T, view domain.StockView, source string) domain.StockBatch {
	t.Helper()
	for _, b := range view.Batches {
		if b.SourceType == source {
			return b
		}
	}
	t.Fatalf("no %s batch for %s", source, view.Ledger.VariantID)
	return domain.StockBatch{}
}

func TestCreateOrderReservesStockAndAppliesDiscountThenCoupon(t *testing.T) {
	f := newFixture(t)

	order := f.order(t, domain.CreateOrderRequest{
		PaymentMethod: "cash",
		DiscountID:    "dis-breakfast",
		CouponID:      "cpn-welcome",
		Lines:         []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 4}},
	})

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentMethodCash, order.PaymentMethod)
	assert.Equal(t, "emp-cashier", order.EmployeeID)
	require.Len(t, order.Lines, 1)
	assert.True(t, order.Lines[0].Total.Equal(dec(140)))
	assert.True(t, order.TotalAmount.Equal(dec(121)), "got %s", order.TotalAmount)
	assert.Equal(t, 116, f.balance(t, "var-noodle"))
	assert.Equal(t, 49, *f.discountLimit(t, "dis-breakfast"))

	stored, err := f.svc.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(order.TotalAmount))
}

func TestCreateOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{
		DiscountID: "dis-breakfast",
		Lines: []domain.OrderLineInput{
			{VariantID: "var-tea", Qty: 2},
			{VariantID: "var-egg", Qty: 61},
		},
	})

	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 80, f.balance(t, "var-tea"))
	assert.Equal(t, 60, f.balance(t, "var-egg"))
	assert.Equal(t, 50, *f.discountLimit(t, "dis-breakfast"))
}

func TestCreateOrderValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 0}}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{PaymentMethod: "cheque", Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-missing", Qty: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{CustomerID: "cus-ghost", Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateOrderBuyXGetYReservesGift(t *testing.T) {
	f := newFixture(t)

	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-tea-egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}},
	})

	require.Len(t, order.Lines, 2)
	gift := order.Lines[1]
	assert.True(t, gift.IsGift)
	assert.Equal(t, "var-egg", gift.VariantID)
	assert.True(t, gift.Total.IsZero())
	assert.True(t, order.TotalAmount.Equal(dec(100)))
	assert.Equal(t, 78, f.balance(t, "var-tea"))
	assert.Equal(t, 59, f.balance(t, "var-egg"))
}

func TestCreateOrderRejectsUnmetDiscountCondition(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{
		DiscountID: "dis-tea-egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}},
	})

	require.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 80, f.balance(t, "var-tea"))
	assert.Equal(t, 60, f.balance(t, "var-egg"))
}

func TestUpdateOrderScalarOnlyKeepsStockAndPromotions(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-breakfast",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 2}},
	})

	updated, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{
		CustomerID:    strPtr("cus-walkin"),
		PaymentMethod: strPtr("transfer"),
		DiscountID:    strPtr(""),
	})

	require.NoError(t, err)
	assert.Equal(t, "cus-walkin", updated.CustomerID)
	assert.Equal(t, domain.PaymentMethodTransfer, updated.PaymentMethod)
	assert.Equal(t, "dis-breakfast", updated.DiscountID)
	assert.True(t, updated.TotalAmount.Equal(order.TotalAmount))
	assert.Equal(t, 118, f.balance(t, "var-noodle"))
	assert.Equal(t, 49, *f.discountLimit(t, "dis-breakfast"))
}

func TestUpdateOrderReconcilesLines(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-breakfast",
		Lines: []domain.OrderLineInput{
			{VariantID: "var-noodle", Qty: 4},
			{VariantID: "var-tea", Qty: 2},
		},
	})
	noodleLine := order.Lines[0].ID

	updated, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{
		Lines: []domain.OrderLineInput{
			{ID: noodleLine, VariantID: "var-noodle", Qty: 2},
			{VariantID: "var-coffee", Qty: 5},
		},
	})

	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	assert.Equal(t, noodleLine, updated.Lines[0].ID)
	assert.True(t, updated.Lines[0].Total.Equal(dec(70)))
	assert.True(t, updated.TotalAmount.Equal(dec(153)), "got %s", updated.TotalAmount)
	assert.Equal(t, 118, f.balance(t, "var-noodle"))
	assert.Equal(t, 80, f.balance(t, "var-tea"))
	assert.Equal(t, 195, f.balance(t, "var-coffee"))
	assert.Equal(t, 49, *f.discountLimit(t, "dis-breakfast"))

	stored, err := f.svc.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestUpdateOrderSwapsVariantOnKnownLine(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 3}}})

	updated, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{
		Lines: []domain.OrderLineInput{{ID: order.Lines[0].ID, VariantID: "var-tea", Qty: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, "var-tea", updated.Lines[0].VariantID)
	assert.True(t, updated.TotalAmount.Equal(dec(50)))
	assert.Equal(t, 120, f.balance(t, "var-noodle"))
	assert.Equal(t, 79, f.balance(t, "var-tea"))
}

func TestUpdateOrderClearingDiscountReclaimsGiftStock(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-tea-egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}},
	})
	require.Equal(t, 59, f.balance(t, "var-egg"))

	updated, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{
		DiscountID: strPtr(""),
		Lines:      []domain.OrderLineInput{{ID: order.Lines[0].ID, Qty: 2}},
	})

	require.NoError(t, err)
	assert.Empty(t, updated.DiscountID)
	require.Len(t, updated.Lines, 1)
	assert.False(t, updated.Lines[0].IsGift)
	assert.Equal(t, 60, f.balance(t, "var-egg"))
	assert.Equal(t, 78, f.balance(t, "var-tea"))
}

func TestUpdateOrderRejectsGiftLineReference(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-tea-egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}},
	})

	_, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{
		Lines: []domain.OrderLineInput{
			{ID: order.Lines[0].ID, Qty: 2},
			{ID: order.Lines[1].ID, Qty: 5},
		},
	})

	require.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 59, f.balance(t, "var-egg"))
}

func TestUpdateOrderRejectedOnceCompleted(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	f.pay(t, order)

	_, err := f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}}})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)

	_, err = f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{PaymentMethod: strPtr("transfer")})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)

	_, err = f.svc.UpdateOrder(f.ctx, "ord-missing", domain.UpdateOrderRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateOrderRejectsLineEditsOnInvoicedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}},
	})
	_, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: dec(0)})
	require.NoError(t, err)

	_, err = f.svc.UpdateOrder(f.ctx, order.ID, domain.UpdateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
	assert.Equal(t, 78, f.balance(t, "var-tea"))
}

func TestMergeOrdersCombinesLinesAndTotals(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{
		{VariantID: "var-tea", Qty: 1},
		{VariantID: "var-egg", Qty: 2},
	}})
	b := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	require.True(t, a.TotalAmount.Equal(dec(100)))
	require.True(t, b.TotalAmount.Equal(dec(50)))

	resp, err := f.svc.MergeOrders(f.ctx, domain.MergeOrdersRequest{OrderIDs: []string{a.ID, b.ID}})

	require.NoError(t, err)
	assert.Equal(t, a.ID, resp.MergedOrderID)
	survivor, err := f.svc.GetOrder(f.ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, survivor.TotalAmount.Equal(dec(150)))
	assert.Len(t, survivor.Lines, 3)
	merged, err := f.svc.GetOrder(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancel, merged.Status)
	assert.Empty(t, merged.Lines)
	assert.Equal(t, 78, f.balance(t, "var-tea"))
}

func TestMergeOrdersRejectsCompletedOrderWithoutChanges(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	b := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-egg", Qty: 1}}})
	f.pay(t, b)

	_, err := f.svc.MergeOrders(f.ctx, domain.MergeOrdersRequest{OrderIDs: []string{a.ID, b.ID}})

	require.ErrorIs(t, err, store.ErrInvalidInput)
	stored, err := f.svc.GetOrder(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Len(t, stored.Lines, 1)
	assert.True(t, stored.TotalAmount.Equal(dec(50)))
}

func TestMergeOrdersValidatesRequest(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})

	_, err := f.svc.MergeOrders(f.ctx, domain.MergeOrdersRequest{OrderIDs: []string{a.ID}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.MergeOrders(f.ctx, domain.MergeOrdersRequest{OrderIDs: []string{a.ID, a.ID}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.MergeOrders(f.ctx, domain.MergeOrdersRequest{OrderIDs: []string{a.ID, "ord-missing"}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSplitOrderMovesQuantityWithoutStockMovement(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 10}},
	})
	lineID := order.Lines[0].ID

	_, err := f.svc.SplitOrder(f.ctx, domain.SplitOrderRequest{OrderID: order.ID, SplitItems: []domain.SplitItem{{LineID: lineID, Qty: 10}}})
	require.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.SplitOrder(f.ctx, domain.SplitOrderRequest{OrderID: order.ID, SplitItems: []domain.SplitItem{{LineID: lineID, Qty: 0}}})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	split, err := f.svc.SplitOrder(f.ctx, domain.SplitOrderRequest{OrderID: order.ID, SplitItems: []domain.SplitItem{{LineID: lineID, Qty: 4}}})

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, split.Status)
	assert.Equal(t, "cus-walkin", split.CustomerID)
	require.Len(t, split.Lines, 1)
	assert.Equal(t, 4, split.Lines[0].Qty)
	assert.True(t, split.Lines[0].Total.Equal(dec(140)))
	assert.True(t, split.TotalAmount.Equal(dec(140)))

	original, err := f.svc.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, original.Lines[0].Qty)
	assert.True(t, original.Lines[0].Total.Equal(dec(210)))
	assert.True(t, original.TotalAmount.Equal(dec(210)))
	assert.Equal(t, 110, f.balance(t, "var-noodle"))
}

func TestSplitGiftLineCanBeEditedOnNewOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.WithinTx(f.ctx, func(tx store.Tx) error {
		return tx.InsertDiscount(f.ctx, domain.Discount{
			ID: "dis-tea-2egg", Name: "Tea with two eggs", Type: domain.DiscountTypeBuyXGetY,
			ValueType: domain.ValueTypeFixed, GiftVariantID: "var-egg", GiftUnitID: "unit-pcs", GiftQty: 2,
		})
	}))
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-tea-2egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}},
	})
	require.Len(t, order.Lines, 2)
	gift := order.Lines[1]
	require.True(t, gift.IsGift)

	split, err := f.svc.SplitOrder(f.ctx, domain.SplitOrderRequest{OrderID: order.ID, SplitItems: []domain.SplitItem{{LineID: gift.ID, Qty: 1}}})
	require.NoError(t, err)
	require.Len(t, split.Lines, 1)
	assert.Empty(t, split.DiscountID)

	edited, err := f.svc.UpdateOrder(f.ctx, split.ID, domain.UpdateOrderRequest{
		Lines: []domain.OrderLineInput{{ID: split.Lines[0].ID, Qty: 1}},
	})
	require.NoError(t, err)
	require.Len(t, edited.Lines, 1)
	assert.Equal(t, "var-egg", edited.Lines[0].VariantID)
	assert.Equal(t, 58, f.balance(t, "var-egg"))
}

func TestCancelOrderReleasesStockAndPromotions(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-tea-egg",
		Lines:      []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}},
	})

	canceled, err := f.svc.CancelOrder(f.ctx, order.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancel, canceled.Status)
	assert.Len(t, canceled.Lines, 1)
	assert.Equal(t, 80, f.balance(t, "var-tea"))
	assert.Equal(t, 60, f.balance(t, "var-egg"))

	_, err = f.svc.CancelOrder(f.ctx, order.ID)
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
}

func TestCancelOrderRestoresDiscountUsage(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		DiscountID: "dis-breakfast",
		Lines:      []domain.OrderLineInput{{VariantID: "var-coffee", Qty: 3}},
	})
	require.Equal(t, 49, *f.discountLimit(t, "dis-breakfast"))

	_, err := f.svc.CancelOrder(f.ctx, order.ID)

	require.NoError(t, err)
	assert.Equal(t, 50, *f.discountLimit(t, "dis-breakfast"))
	assert.Equal(t, 200, f.balance(t, "var-coffee"))
}

func TestInvoicePaidCompletesOrderAndCreditsPoints(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 10}},
	})

	result := f.pay(t, order)

	assert.Equal(t, domain.PaymentStatusPaid, result.Invoice.PaymentStatus)
	assert.True(t, result.Invoice.AmountChange.IsZero())
	require.NotNil(t, result.Points)
	assert.Equal(t, int64(35), result.Points.PointsEarned)
	assert.Equal(t, "tier-bronze", result.TierID)

	stored, err := f.svc.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusComplete, stored.Status)
	profile := f.customer(t, "cus-walkin")
	assert.Equal(t, int64(35), profile.Account.Points)
	assert.Len(t, profile.Transactions, 1)

	_, err = f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: order.TotalAmount})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
}

func TestInvoicePromotesAndSpendsRewardPoints(t *testing.T) {
	f := newFixture(t)
	big := f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 30}},
	})
	first := f.pay(t, big)
	require.Equal(t, "tier-silver", first.TierID)

	small := f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		CouponID:   "cpn-welcome",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 2}},
	})
	require.True(t, small.TotalAmount.Equal(dec(65)))
	second := f.pay(t, small)

	require.NotNil(t, second.Points)
	assert.Equal(t, int64(8), second.Points.PointsEarned)
	assert.Equal(t, int64(20), second.Points.PointsUsed)
	assert.Equal(t, "tier-bronze", second.TierID)
	assert.Equal(t, int64(93), f.customer(t, "cus-walkin").Account.Points)
}

func TestInvoicePaymentStatusBoundaries(t *testing.T) {
	f := newFixture(t)

	unpaid := f.order(t, domain.CreateOrderRequest{CustomerID: "cus-walkin", Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	result, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: unpaid.ID, AmountReceived: dec(0)})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUnpaid, result.Invoice.PaymentStatus)
	assert.True(t, f.customer(t, "cus-walkin").Customer.DebtAmount.IsZero())

	partial := f.order(t, domain.CreateOrderRequest{CustomerID: "cus-walkin", Lines: []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 4}}})
	result, err = f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: partial.ID, TotalAmount: dec(140), AmountReceived: dec(100)})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, result.Invoice.PaymentStatus)
	assert.True(t, result.Invoice.AmountChange.Equal(dec(-40)))
	assert.True(t, f.customer(t, "cus-walkin").Customer.DebtAmount.Equal(dec(40)))

	stored, err := f.svc.GetOrder(f.ctx, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	settled, err := f.svc.RecordPayment(f.ctx, result.Invoice.ID, domain.RecordPaymentRequest{Amount: dec(40)})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, settled.PaymentStatus)
	assert.True(t, f.customer(t, "cus-walkin").Customer.DebtAmount.IsZero())
	stored, err = f.svc.GetOrder(f.ctx, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusComplete, stored.Status)

	_, err = f.svc.RecordPayment(f.ctx, result.Invoice.ID, domain.RecordPaymentRequest{Amount: dec(1)})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
}

func TestRecordPaymentOnUnpaidInvoiceBooksDebtOnce(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{CustomerID: "cus-walkin", Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}}})
	result, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(f.ctx, result.Invoice.ID, domain.RecordPaymentRequest{Amount: dec(30)})
	require.NoError(t, err)
	assert.True(t, f.customer(t, "cus-walkin").Customer.DebtAmount.Equal(dec(70)))

	_, err = f.svc.RecordPayment(f.ctx, result.Invoice.ID, domain.RecordPaymentRequest{Amount: dec(20)})
	require.NoError(t, err)
	assert.True(t, f.customer(t, "cus-walkin").Customer.DebtAmount.Equal(dec(50)))
}

func TestInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})

	_, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: dec(20)})
	assert.ErrorIs(t, err, store.ErrInvalidInput, "partial payment needs a customer")

	_, err = f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, TotalAmount: dec(49), AmountReceived: dec(49)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: "ord-missing"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: dec(-1)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	result, err := f.svc.CreateInvoice(f.ctx, domain.CreateInvoiceRequest{OrderID: order.ID, AmountReceived: dec(100)})
	require.NoError(t, err)
	assert.True(t, result.Invoice.AmountChange.Equal(dec(50)))
	assert.Nil(t, result.Points)

	_, err = f.svc.CancelOrder(f.ctx, order.ID)
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
}

func TestPurchaseOrderReceiveAddsBatchesAndCost(t *testing.T) {
	f := newFixture(t)
	po, err := f.svc.CreatePurchaseOrder(f.ctx, domain.CreatePurchaseOrderRequest{
		SupplierID: "sup-1",
		Status:     domain.PurchaseStatusReceive,
		Lines: []domain.PurchaseLineInput{
			{VariantID: "var-coffee", Qty: 10, Total: dec(100)},
			{VariantID: "var-tea", Qty: 0, Total: dec(0)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, po.Status)
	assert.True(t, po.TotalAmount.Equal(dec(100)))
	assert.Equal(t, 200, f.balance(t, "var-coffee"))

	expiry := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	received, err := f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{
		Status: "receive",
		Lines:  []domain.PurchaseLineInput{{ID: po.Lines[0].ID, Qty: 10, Total: dec(100), ExpiryDate: &expiry}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusReceive, received.Status)
	require.NotNil(t, received.ReceivedAt)
	assert.Equal(t, 210, f.balance(t, "var-coffee"))
	assert.Equal(t, 80, f.balance(t, "var-tea"))

	view, err := f.svc.GetStock(f.ctx, "var-coffee")
	require.NoError(t, err)
	last := batchFrom(t, view, domain.BatchSourcePurchase)
	assert.Equal(t, domain.BatchSourcePurchase, last.SourceType)
	assert.Equal(t, po.ID, last.SourceID)
	assert.True(t, last.UnitCost.Equal(dec(10)))
	require.NotNil(t, last.ExpiryDate)
	assert.True(t, last.ExpiryDate.Equal(expiry))

	var cost decimal.Decimal
	require.NoError(t, f.repo.WithinTx(f.ctx, func(tx store.Tx) error {
		v, err := tx.GetVariant(f.ctx, "var-coffee")
		if err != nil {
			return err
		}
		cost = v.CostPrice
		return nil
	}))
	assert.True(t, cost.Equal(dec(10)))

	_, err = f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{Status: domain.PurchaseStatusCanceled})
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)
}

func TestPurchaseOrderLineEditRules(t *testing.T) {
	f := newFixture(t)
	po, err := f.svc.CreatePurchaseOrder(f.ctx, domain.CreatePurchaseOrderRequest{
		SupplierID: "sup-1",
		Lines:      []domain.PurchaseLineInput{{VariantID: "var-egg", Qty: 12, Total: dec(200)}},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{
		Lines: []domain.PurchaseLineInput{{VariantID: "var-tea", Qty: 1, Total: dec(30)}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{
		Lines: []domain.PurchaseLineInput{{ID: po.Lines[0].ID, VariantID: "var-tea", Qty: 1, Total: dec(30)}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{Status: "shipped"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	edited, err := f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{
		Lines: []domain.PurchaseLineInput{{ID: po.Lines[0].ID, Qty: 24, Total: dec(360)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, edited.Status)
	assert.True(t, edited.TotalAmount.Equal(dec(360)))

	canceled, err := f.svc.UpdatePurchaseOrder(f.ctx, po.ID, domain.UpdatePurchaseOrderRequest{Status: domain.PurchaseStatusCanceled})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCanceled, canceled.Status)
	assert.Equal(t, 60, f.balance(t, "var-egg"))

	stored, err := f.svc.GetPurchaseOrder(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, 24, stored.Lines[0].Qty)
}

func TestReturnCreatesFreshBatch(t *testing.T) {
	f := newFixture(t)

	ret, err := f.svc.CreateReturnOrder(f.ctx, domain.CreateReturnOrderRequest{
		CustomerID: "cus-walkin",
		Note:       "damaged box",
		Lines:      []domain.ReturnLineInput{{VariantID: "var-tea", Qty: 2, UnitPrice: dec(50), Reason: "dented"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "emp-cashier", ret.HandledByID)
	assert.Equal(t, domain.ReturnStatusCompleted, ret.Status)
	assert.True(t, ret.TotalRefund.Equal(dec(100)))
	assert.Equal(t, 82, f.balance(t, "var-tea"))

	view, err := f.svc.GetStock(f.ctx, "var-tea")
	require.NoError(t, err)
	require.Len(t, view.Batches, 2)
	batch := batchFrom(t, view, domain.BatchSourceReturn)
	assert.Equal(t, domain.BatchSourceReturn, batch.SourceType)
	assert.True(t, batch.UnitCost.Equal(dec(50)))
	require.NotNil(t, batch.ExpiryDate)
	assert.True(t, batch.ExpiryDate.Equal(time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)))

	stored, err := f.svc.GetReturnOrder(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
}

func TestReturnBoundedBySoldQuantity(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, domain.CreateOrderRequest{Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 2}}})
	f.pay(t, order)

	over := domain.CreateReturnOrderRequest{OrderID: order.ID, Lines: []domain.ReturnLineInput{{VariantID: "var-tea", Qty: 3, UnitPrice: dec(50)}}}
	_, err := f.svc.CreateReturnOrder(f.ctx, over)
	require.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = f.svc.CreateReturnOrder(f.ctx, domain.CreateReturnOrderRequest{OrderID: order.ID, Lines: []domain.ReturnLineInput{{VariantID: "var-tea", Qty: 2, UnitPrice: dec(50)}}})
	require.NoError(t, err)

	_, err = f.svc.CreateReturnOrder(f.ctx, domain.CreateReturnOrderRequest{OrderID: order.ID, Lines: []domain.ReturnLineInput{{VariantID: "var-tea", Qty: 1, UnitPrice: dec(50)}}})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 80, f.balance(t, "var-tea"))
}

func TestReturnRequiresHandler(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReturnOrder(context.Background(), domain.CreateReturnOrderRequest{
		Lines: []domain.ReturnLineInput{{VariantID: "var-tea", Qty: 1, UnitPrice: dec(50)}},
	})

	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestRewardTierWritesSweepCustomers(t *testing.T) {
	f := newFixture(t)
	f.pay(t, f.order(t, domain.CreateOrderRequest{
		CustomerID: "cus-walkin",
		Lines:      []domain.OrderLineInput{{VariantID: "var-noodle", Qty: 10}},
	}))
	require.Equal(t, int64(35), f.customer(t, "cus-walkin").Account.Points)

	member, err := f.svc.CreateRewardTier(f.ctx, domain.RewardTierRequest{Name: "Member", MinPoints: 30, ExchangeRate: dec(9)})
	require.NoError(t, err)
	assert.Equal(t, member.ID, f.customer(t, "cus-walkin").Customer.TierID)

	_, err = f.svc.CreateRewardTier(f.ctx, domain.RewardTierRequest{Name: "Clash", MinPoints: 100, ExchangeRate: dec(9)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	raised := int64(40)
	_, err = f.svc.UpdateRewardTier(f.ctx, member.ID, domain.RewardTierUpdateRequest{MinPoints: &raised})
	require.NoError(t, err)
	assert.Equal(t, "tier-bronze", f.customer(t, "cus-walkin").Customer.TierID)
}

func TestCreateCustomerOpensAccountOnEntryTier(t *testing.T) {
	f := newFixture(t)

	customer, err := f.svc.CreateCustomer(f.ctx, domain.CreateCustomerRequest{Name: "Sari", Phone: "0812"})

	require.NoError(t, err)
	assert.Equal(t, "tier-bronze", customer.TierID)
	profile := f.customer(t, customer.ID)
	assert.Equal(t, int64(0), profile.Account.Points)

	_, err = f.svc.CreateCustomer(f.ctx, domain.CreateCustomerRequest{})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateLoyaltyRewardChecksReferences(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLoyaltyReward(f.ctx, domain.LoyaltyRewardRequest{TierID: "tier-gold", CouponID: "cpn-missing", PointsRequired: 5})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	reward, err := f.svc.CreateLoyaltyReward(f.ctx, domain.LoyaltyRewardRequest{TierID: "tier-gold", CouponID: "cpn-welcome", PointsRequired: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, reward.ID)
}

func TestCreatePromotionsValidate(t *testing.T) {
	f := newFixture(t)
	start := baseTime
	end := baseTime.AddDate(0, 0, -1)

	_, err := f.svc.CreateDiscount(f.ctx, domain.DiscountRequest{Name: "Too much", ValueType: "percentage", Value: dec(150)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.CreateDiscount(f.ctx, domain.DiscountRequest{Name: "Backwards", ValueType: "fixed", Value: dec(5), StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.CreateDiscount(f.ctx, domain.DiscountRequest{Name: "No gift", Type: domain.DiscountTypeBuyXGetY})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	gift, err := f.svc.CreateDiscount(f.ctx, domain.DiscountRequest{Name: "Free coffee", Type: domain.DiscountTypeBuyXGetY, GiftVariantID: "var-coffee", GiftQty: 2})
	require.NoError(t, err)
	assert.Equal(t, "unit-pcs", gift.GiftUnitID)

	limit := 1
	coupon, err := f.svc.CreateCoupon(f.ctx, domain.CouponRequest{Code: " once ", ValueType: "fixed", Value: dec(3), UsageLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "ONCE", coupon.Code)
	_, err = f.svc.CreateCoupon(f.ctx, domain.CouponRequest{Code: "once", ValueType: "fixed", Value: dec(3)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	f.order(t, domain.CreateOrderRequest{CouponID: coupon.ID, Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	_, err = f.svc.CreateOrder(f.ctx, domain.CreateOrderRequest{CouponID: coupon.ID, Lines: []domain.OrderLineInput{{VariantID: "var-tea", Qty: 1}}})
	assert.ErrorIs(t, err, store.ErrPromotionExhausted)
	assert.Equal(t, 79, f.balance(t, "var-tea"))
}

func TestAdjustStockAddsAdjustmentBatch(t *testing.T) {
	f := newFixture(t)
	variant, err := f.svc.CreateVariant(f.ctx, domain.CreateVariantRequest{Name: "Rice 5kg", UnitID: "unit-pcs", SellPrice: dec(70), CostPrice: dec(60)})
	require.NoError(t, err)

	view, err := f.svc.AdjustStock(f.ctx, domain.StockAdjustmentRequest{VariantID: variant.ID, Qty: 15, UnitCost: dec(60)})

	require.NoError(t, err)
	assert.Equal(t, 15, view.Ledger.Balance)
	require.Len(t, view.Batches, 1)
	assert.Equal(t, domain.BatchSourceAdjustment, view.Batches[0].SourceType)

	_, err = f.svc.AdjustStock(f.ctx, domain.StockAdjustmentRequest{VariantID: variant.ID, Qty: 0})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.CreateVariant(f.ctx, domain.CreateVariantRequest{Name: "Ghost", UnitID: "unit-ghost"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.GetStock(f.ctx, "var-ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateVariantPersistsEmptyLedgerRow(t *testing.T) {
	f := newFixture(t)
	variant, err := f.svc.CreateVariant(f.ctx, domain.CreateVariantRequest{Name: "Salt 1kg", UnitID: "unit-pcs", SellPrice: dec(8)})
	require.NoError(t, err)

	require.NoError(t, f.repo.WithinTx(f.ctx, func(tx store.Tx) error {
		ledger, err := tx.LockLedger(f.ctx, variant.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, ledger.QuantityIn)
		assert.Equal(t, 0, ledger.Balance)
		return nil
	}))
}

func TestReferenceDataRejectsCycles(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetCategoryParent(f.ctx, "cat-food", domain.ParentRequest{ParentID: "cat-noodle"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.SetCategoryParent(f.ctx, "cat-food", domain.ParentRequest{ParentID: "cat-food"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.SetUnitReference(f.ctx, "unit-pcs", domain.ParentRequest{ParentID: "unit-box"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	snack, err := f.svc.CreateCategory(f.ctx, domain.CategoryRequest{Name: "Snacks", ParentID: "cat-food"})
	require.NoError(t, err)
	moved, err := f.svc.SetCategoryParent(f.ctx, "cat-noodle", domain.ParentRequest{ParentID: snack.ID})
	require.NoError(t, err)
	assert.Equal(t, snack.ID, moved.ParentID)

	_, err = f.svc.SetCategoryParent(f.ctx, "cat-food", domain.ParentRequest{ParentID: "cat-noodle"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	crate, err := f.svc.CreateUnit(f.ctx, domain.UnitRequest{Name: "crate", ReferenceUnitID: "unit-box", ConversionRate: dec(4)})
	require.NoError(t, err)
	_, err = f.svc.SetUnitReference(f.ctx, "unit-pcs", domain.ParentRequest{ParentID: crate.ID})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = f.svc.CreateUnit(f.ctx, domain.UnitRequest{Name: "pallet", ReferenceUnitID: "unit-ghost"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}
