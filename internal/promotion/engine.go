package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

// Engine applies discounts and coupons to an order total and reverses them.
// Usage limits are decremented under a row lock; gift stock for BUY_X_GET_Y
// discounts goes through the same ledger and batches as regular sales.
type Engine struct {
	stock *inventory.Stock
	now   func() time.Time
}

func New(stock *inventory.Stock, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{stock: stock, now: now}
}

// ApplyDiscount consumes one use of the discount and returns the new running
// total. For BUY_X_GET_Y it appends a zero-priced gift line to order.Lines
// instead of changing the total.
func (e *Engine) ApplyDiscount(ctx context.Context, tx store.Tx, order *domain.Order, discountID string, total decimal.Decimal) (decimal.Decimal, error) {
	discount, err := tx.GetDiscount(ctx, discountID)
	if err != nil {
		return total, store.MissingReference(err)
	}
	if err := e.checkUsable("discount", discount.ID, discount.UsageLimit, discount.StartDate, discount.EndDate); err != nil {
		return total, err
	}

	// Gift stock is locked and reserved before the discount row so the lock
	// order stays ledger, batches, promotion.
	var gift *domain.OrderLine
	if discount.Type == domain.DiscountTypeBuyXGetY {
		if err := e.stock.LockVariants(ctx, tx, []string{discount.GiftVariantID}); err != nil {
			return total, err
		}
		if _, err := e.stock.Reserve(ctx, tx, discount.GiftVariantID, discount.GiftQty); err != nil {
			return total, fmt.Errorf("gift for discount %s: %w", discount.ID, err)
		}
		gift = &domain.OrderLine{
			ID:             xid.New("oln"),
			OrderID:        order.ID,
			VariantID:      discount.GiftVariantID,
			UnitID:         discount.GiftUnitID,
			Qty:            discount.GiftQty,
			UnitPrice:      decimal.Zero,
			Total:          decimal.Zero,
			IsGift:         true,
			GiftDiscountID: discount.ID,
		}
	}

	locked, err := tx.LockDiscount(ctx, discount.ID)
	if err != nil {
		return total, err
	}
	if err := e.checkUsable("discount", locked.ID, locked.UsageLimit, locked.StartDate, locked.EndDate); err != nil {
		return total, err
	}
	if locked.UsageLimit != nil {
		remaining := *locked.UsageLimit - 1
		if err := tx.UpdateDiscountUsage(ctx, locked.ID, &remaining); err != nil {
			return total, err
		}
	}

	if gift != nil {
		if err := tx.InsertOrderLine(ctx, *gift); err != nil {
			return total, err
		}
		order.Lines = append(order.Lines, *gift)
		return total, nil
	}
	return applyValue(locked.ValueType, locked.Value, total), nil
}

// ApplyCoupon consumes one use of a limited coupon and returns the new total.
// Coupons without a usage limit are never counted and skip the window check.
func (e *Engine) ApplyCoupon(ctx context.Context, tx store.Tx, couponID string, total decimal.Decimal) (decimal.Decimal, error) {
	coupon, err := tx.LockCoupon(ctx, couponID)
	if err != nil {
		return total, store.MissingReference(err)
	}
	if coupon.UsageLimit != nil {
		if err := e.checkUsable("coupon", coupon.ID, coupon.UsageLimit, coupon.StartDate, coupon.EndDate); err != nil {
			return total, err
		}
		remaining := *coupon.UsageLimit - 1
		if err := tx.UpdateCouponUsage(ctx, coupon.ID, &remaining); err != nil {
			return total, err
		}
	}
	return applyValue(coupon.ValueType, coupon.Value, total), nil
}

// Rollback gives back the uses consumed by the order's current discount and
// coupon. Gift lines produced by the discount are deleted and their stock is
// released; order.Lines is updated to match.
func (e *Engine) Rollback(ctx context.Context, tx store.Tx, order *domain.Order) error {
	if order.DiscountID != "" {
		kept := order.Lines[:0:0]
		for _, line := range order.Lines {
			if !line.IsGift || line.GiftDiscountID != order.DiscountID {
				kept = append(kept, line)
				continue
			}
			if err := e.stock.Release(ctx, tx, line.VariantID, line.Qty); err != nil {
				return fmt.Errorf("release gift line %s: %w", line.ID, err)
			}
			if err := tx.DeleteOrderLine(ctx, line.ID); err != nil {
				return err
			}
		}
		order.Lines = kept

		discount, err := tx.LockDiscount(ctx, order.DiscountID)
		if err != nil {
			return err
		}
		if discount.UsageLimit != nil {
			restored := *discount.UsageLimit + 1
			if err := tx.UpdateDiscountUsage(ctx, discount.ID, &restored); err != nil {
				return err
			}
		}
	}

	if order.CouponID != "" {
		coupon, err := tx.LockCoupon(ctx, order.CouponID)
		if err != nil {
			return err
		}
		if coupon.UsageLimit != nil {
			restored := *coupon.UsageLimit + 1
			if err := tx.UpdateCouponUsage(ctx, coupon.ID, &restored); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConditionsMet reports whether an order of qty units worth amount passes
// every purchase condition attached to the discount.
func ConditionsMet(discount domain.Discount, qty int, amount decimal.Decimal) bool {
	for _, c := range discount.Conditions {
		if qty < c.MinPurchaseQty {
			return false
		}
		if amount.LessThan(c.MinPurchaseAmount) {
			return false
		}
	}
	return true
}

// Floor clamps a total at zero and rounds it to cents.
func Floor(total decimal.Decimal) decimal.Decimal {
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

func applyValue(valueType string, value decimal.Decimal, total decimal.Decimal) decimal.Decimal {
	switch valueType {
	case domain.ValueTypePercentage:
		return total.Mul(decimal.NewFromInt(1).Sub(value.Div(hundred)))
	case domain.ValueTypeFixed:
		return total.Sub(value)
	default:
		return total
	}
}

func (e *Engine) checkUsable(kind string, id string, usageLimit *int, start *time.Time, end *time.Time) error {
	if usageLimit != nil && *usageLimit <= 0 {
		return fmt.Errorf("%w: %s %s has no uses left", store.ErrPromotionExhausted, kind, id)
	}
	today := dateOf(e.now())
	if start != nil && today.Before(dateOf(*start)) {
		return fmt.Errorf("%w: %s %s starts on %s", store.ErrPromotionExpired, kind, id, start.Format(time.DateOnly))
	}
	if end != nil && today.After(dateOf(*end)) {
		return fmt.Errorf("%w: %s %s ended on %s", store.ErrPromotionExpired, kind, id, end.Format(time.DateOnly))
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
