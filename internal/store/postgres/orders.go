package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"

	"posledger/backend/internal/domain"
)

var (
	orderColumns = []string{
		"id", "status", "payment_method", "total_amount", optional("customer_id"),
		"employee_id", optional("discount_id"), optional("coupon_id"), "created_at", "updated_at",
	}
	orderLineColumns = []string{
		"id", "order_id", "variant_id", "unit_id", "qty", "unit_price", "total", "is_gift", "gift_discount_id",
	}
)

func (t *tx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.loadOrder(ctx, id, "")
}

func (t *tx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.loadOrder(ctx, id, "FOR UPDATE")
}

func (t *tx) loadOrder(ctx context.Context, id string, suffix string) (*domain.Order, error) {
	var o domain.Order
	q := t.sb.Select(orderColumns...).From("orders").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &o, q); err != nil {
		return nil, missing(err, "order", id)
	}

	o.Lines = make([]domain.OrderLine, 0)
	lines := t.sb.Select(orderLineColumns...).From("order_lines").
		Where(squirrel.Eq{"order_id": id}).
		OrderBy("seq")
	if err := t.selectRows(ctx, &o.Lines, lines); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *tx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.exec(ctx, t.sb.Insert("orders").
		Columns("id", "status", "payment_method", "total_amount", "customer_id",
			"employee_id", "discount_id", "coupon_id", "created_at", "updated_at").
		Values(o.ID, o.Status, o.PaymentMethod, o.TotalAmount, nullable(o.CustomerID),
			o.EmployeeID, nullable(o.DiscountID), nullable(o.CouponID), o.CreatedAt, o.UpdatedAt))
	return err
}

func (t *tx) UpdateOrder(ctx context.Context, o domain.Order) error {
	return t.update(ctx, t.sb.Update("orders").SetMap(map[string]any{
		"status":         o.Status,
		"payment_method": o.PaymentMethod,
		"total_amount":   o.TotalAmount,
		"customer_id":    nullable(o.CustomerID),
		"employee_id":    o.EmployeeID,
		"discount_id":    nullable(o.DiscountID),
		"coupon_id":      nullable(o.CouponID),
		"updated_at":     o.UpdatedAt,
	}).Where(squirrel.Eq{"id": o.ID}), "order", o.ID)
}

func (t *tx) InsertOrderLine(ctx context.Context, l domain.OrderLine) error {
	_, err := t.exec(ctx, t.sb.Insert("order_lines").
		Columns(orderLineColumns...).
		Values(l.ID, l.OrderID, l.VariantID, l.UnitID, l.Qty, l.UnitPrice, l.Total, l.IsGift, l.GiftDiscountID))
	return err
}

func (t *tx) UpdateOrderLine(ctx context.Context, l domain.OrderLine) error {
	return t.update(ctx, t.sb.Update("order_lines").SetMap(map[string]any{
		"order_id":         l.OrderID,
		"variant_id":       l.VariantID,
		"unit_id":          l.UnitID,
		"qty":              l.Qty,
		"unit_price":       l.UnitPrice,
		"total":            l.Total,
		"is_gift":          l.IsGift,
		"gift_discount_id": l.GiftDiscountID,
	}).Where(squirrel.Eq{"id": l.ID}), "order line", l.ID)
}

func (t *tx) DeleteOrderLine(ctx context.Context, lineID string) error {
	return t.update(ctx, t.sb.Delete("order_lines").Where(squirrel.Eq{"id": lineID}), "order line", lineID)
}

func (t *tx) MoveOrderLines(ctx context.Context, fromOrderID string, toOrderID string) error {
	var exists bool
	if err := t.get(ctx, &exists, t.sb.Select("true").From("orders").Where(squirrel.Eq{"id": toOrderID})); err != nil {
		return missing(err, "order", toOrderID)
	}
	_, err := t.exec(ctx, t.sb.Update("order_lines").
		Set("order_id", toOrderID).
		Where(squirrel.Eq{"order_id": fromOrderID}))
	return err
}
