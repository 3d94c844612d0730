package postgres

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"posledger/backend/internal/domain"
)

var (
	discountColumns = []string{
		"id", "name", "type", "value_type", "value", "start_date", "end_date", "usage_limit",
		optional("gift_variant_id"), "gift_unit_id", "gift_qty",
	}
	couponColumns = []string{"id", "code", "value_type", "value", "start_date", "end_date", "usage_limit"}
)

func (t *tx) GetDiscount(ctx context.Context, id string) (*domain.Discount, error) {
	return t.loadDiscount(ctx, id, "")
}

func (t *tx) LockDiscount(ctx context.Context, id string) (*domain.Discount, error) {
	return t.loadDiscount(ctx, id, "FOR UPDATE")
}

func (t *tx) loadDiscount(ctx context.Context, id string, suffix string) (*domain.Discount, error) {
	var d domain.Discount
	q := t.sb.Select(discountColumns...).From("discounts").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &d, q); err != nil {
		return nil, missing(err, "discount", id)
	}

	conditions := t.sb.Select("min_purchase_qty", "min_purchase_amount").
		From("promotion_conditions").
		Where(squirrel.Eq{"discount_id": id}).
		OrderBy("id")
	if err := t.selectRows(ctx, &d.Conditions, conditions); err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *tx) InsertDiscount(ctx context.Context, d domain.Discount) error {
	_, err := t.exec(ctx, t.sb.Insert("discounts").
		Columns("id", "name", "type", "value_type", "value", "start_date", "end_date", "usage_limit",
			"gift_variant_id", "gift_unit_id", "gift_qty").
		Values(d.ID, d.Name, d.Type, d.ValueType, d.Value, d.StartDate, d.EndDate, d.UsageLimit,
			nullable(d.GiftVariantID), d.GiftUnitID, d.GiftQty))
	if err != nil || len(d.Conditions) == 0 {
		return err
	}

	insert := t.sb.Insert("promotion_conditions").Columns("discount_id", "min_purchase_qty", "min_purchase_amount")
	for _, c := range d.Conditions {
		insert = insert.Values(d.ID, c.MinPurchaseQty, c.MinPurchaseAmount)
	}
	_, err = t.exec(ctx, insert)
	return err
}

func (t *tx) UpdateDiscountUsage(ctx context.Context, id string, usageLimit *int) error {
	return t.update(ctx, t.sb.Update("discounts").Set("usage_limit", usageLimit).Where(squirrel.Eq{"id": id}), "discount", id)
}

func (t *tx) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return t.loadCoupon(ctx, id, "")
}

func (t *tx) LockCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return t.loadCoupon(ctx, id, "FOR UPDATE")
}

func (t *tx) loadCoupon(ctx context.Context, id string, suffix string) (*domain.Coupon, error) {
	var c domain.Coupon
	q := t.sb.Select(couponColumns...).From("coupons").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &c, q); err != nil {
		return nil, missing(err, "coupon", id)
	}
	return &c, nil
}

func (t *tx) InsertCoupon(ctx context.Context, c domain.Coupon) error {
	_, err := t.exec(ctx, t.sb.Insert("coupons").
		Columns(couponColumns...).
		Values(c.ID, strings.TrimSpace(c.Code), c.ValueType, c.Value, c.StartDate, c.EndDate, c.UsageLimit))
	return err
}

func (t *tx) UpdateCouponUsage(ctx context.Context, id string, usageLimit *int) error {
	return t.update(ctx, t.sb.Update("coupons").Set("usage_limit", usageLimit).Where(squirrel.Eq{"id": id}), "coupon", id)
}
