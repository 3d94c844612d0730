package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"

	"posledger/backend/internal/domain"
)

var (
	invoiceColumns = []string{
		"id", "order_id", "total_amount", "amount_received", "amount_change", "payment_status", "created_at", "updated_at",
	}
	purchaseColumns     = []string{"id", "supplier_id", "employee_id", "status", "total_amount", "created_at", "received_at"}
	purchaseLineColumns = []string{"id", "purchase_order_id", "variant_id", "unit_id", "qty", "total", "expiry_date"}
	returnColumns       = []string{
		"id", optional("customer_id"), optional("order_id"), "handled_by_id", "note", "status", "total_refund", "return_date",
	}
	returnLineColumns = []string{
		"id", "return_order_id", "variant_id", "unit_id", "qty", "unit_price", "refund_amount", "reason",
	}
)

// Invoices

func (t *tx) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return t.loadInvoice(ctx, squirrel.Eq{"id": id}, "", "invoice", id)
}

func (t *tx) LockInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return t.loadInvoice(ctx, squirrel.Eq{"id": id}, "FOR UPDATE", "invoice", id)
}

func (t *tx) GetInvoiceByOrder(ctx context.Context, orderID string) (*domain.Invoice, error) {
	return t.loadInvoice(ctx, squirrel.Eq{"order_id": orderID}, "", "invoice for order", orderID)
}

func (t *tx) loadInvoice(ctx context.Context, where squirrel.Eq, suffix string, kind string, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	q := t.sb.Select(invoiceColumns...).From("invoices").Where(where)
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &inv, q); err != nil {
		return nil, missing(err, kind, id)
	}
	return &inv, nil
}

func (t *tx) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	_, err := t.exec(ctx, t.sb.Insert("invoices").
		Columns(invoiceColumns...).
		Values(inv.ID, inv.OrderID, inv.TotalAmount, inv.AmountReceived, inv.AmountChange,
			inv.PaymentStatus, inv.CreatedAt, inv.UpdatedAt))
	return err
}

func (t *tx) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	return t.update(ctx, t.sb.Update("invoices").SetMap(map[string]any{
		"total_amount":    inv.TotalAmount,
		"amount_received": inv.AmountReceived,
		"amount_change":   inv.AmountChange,
		"payment_status":  inv.PaymentStatus,
		"updated_at":      inv.UpdatedAt,
	}).Where(squirrel.Eq{"id": inv.ID}), "invoice", inv.ID)
}

// Purchasing

func (t *tx) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return t.loadPurchaseOrder(ctx, id, "")
}

func (t *tx) LockPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return t.loadPurchaseOrder(ctx, id, "FOR UPDATE")
}

func (t *tx) loadPurchaseOrder(ctx context.Context, id string, suffix string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	q := t.sb.Select(purchaseColumns...).From("purchase_orders").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &po, q); err != nil {
		return nil, missing(err, "purchase order", id)
	}

	po.Lines = make([]domain.PurchaseLine, 0)
	lines := t.sb.Select(purchaseLineColumns...).From("purchase_lines").
		Where(squirrel.Eq{"purchase_order_id": id}).
		OrderBy("seq")
	if err := t.selectRows(ctx, &po.Lines, lines); err != nil {
		return nil, err
	}
	return &po, nil
}

func (t *tx) InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	_, err := t.exec(ctx, t.sb.Insert("purchase_orders").
		Columns(purchaseColumns...).
		Values(po.ID, po.SupplierID, po.EmployeeID, po.Status, po.TotalAmount, po.CreatedAt, po.ReceivedAt))
	return err
}

func (t *tx) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	return t.update(ctx, t.sb.Update("purchase_orders").SetMap(map[string]any{
		"supplier_id":  po.SupplierID,
		"employee_id":  po.EmployeeID,
		"status":       po.Status,
		"total_amount": po.TotalAmount,
		"received_at":  po.ReceivedAt,
	}).Where(squirrel.Eq{"id": po.ID}), "purchase order", po.ID)
}

func (t *tx) InsertPurchaseLine(ctx context.Context, l domain.PurchaseLine) error {
	_, err := t.exec(ctx, t.sb.Insert("purchase_lines").
		Columns(purchaseLineColumns...).
		Values(l.ID, l.PurchaseOrderID, l.VariantID, l.UnitID, l.Qty, l.Total, l.ExpiryDate))
	return err
}

func (t *tx) UpdatePurchaseLine(ctx context.Context, l domain.PurchaseLine) error {
	return t.update(ctx, t.sb.Update("purchase_lines").SetMap(map[string]any{
		"variant_id":  l.VariantID,
		"unit_id":     l.UnitID,
		"qty":         l.Qty,
		"total":       l.Total,
		"expiry_date": l.ExpiryDate,
	}).Where(squirrel.Eq{"id": l.ID}), "purchase line", l.ID)
}

// Returns

func (t *tx) GetReturnOrder(ctx context.Context, id string) (*domain.ReturnOrder, error) {
	var ret domain.ReturnOrder
	q := t.sb.Select(returnColumns...).From("return_orders").Where(squirrel.Eq{"id": id})
	if err := t.get(ctx, &ret, q); err != nil {
		return nil, missing(err, "return order", id)
	}

	ret.Lines = make([]domain.ReturnLine, 0)
	lines := t.sb.Select(returnLineColumns...).From("return_lines").
		Where(squirrel.Eq{"return_order_id": id}).
		OrderBy("seq")
	if err := t.selectRows(ctx, &ret.Lines, lines); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (t *tx) InsertReturnOrder(ctx context.Context, ret domain.ReturnOrder) error {
	_, err := t.exec(ctx, t.sb.Insert("return_orders").
		Columns("id", "customer_id", "order_id", "handled_by_id", "note", "status", "total_refund", "return_date").
		Values(ret.ID, nullable(ret.CustomerID), nullable(ret.OrderID), ret.HandledByID, ret.Note,
			ret.Status, ret.TotalRefund, ret.ReturnDate))
	return err
}

func (t *tx) InsertReturnLine(ctx context.Context, l domain.ReturnLine) error {
	_, err := t.exec(ctx, t.sb.Insert("return_lines").
		Columns(returnLineColumns...).
		Values(l.ID, l.ReturnOrderID, l.VariantID, l.UnitID, l.Qty, l.UnitPrice, l.RefundAmount, l.Reason))
	return err
}

func (t *tx) ReturnedQtyByOrder(ctx context.Context, orderID string) (map[string]int, error) {
	var rows []struct {
		VariantID string
		Qty       int
	}
	q := t.sb.Select("l.variant_id", "SUM(l.qty)::int AS qty").
		From("return_lines l").
		Join("return_orders r ON r.id = l.return_order_id").
		Where(squirrel.Eq{"r.order_id": orderID}).
		GroupBy("l.variant_id")
	if err := t.selectRows(ctx, &rows, q); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.VariantID] = row.Qty
	}
	return out, nil
}
