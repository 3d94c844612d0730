package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// CreateReturnOrder takes goods back into stock as fresh batches. Promotion
// usage and loyalty points of the original sale are left as they are.
func (s *Service) CreateReturnOrder(ctx context.Context, req domain.CreateReturnOrderRequest) (domain.ReturnOrder, error) {
	handledBy := s.actorID(ctx, req.HandledByID)
	if handledBy == "" {
		return domain.ReturnOrder{}, invalid("handled by id is required")
	}
	if len(req.Lines) == 0 {
		return domain.ReturnOrder{}, invalid("return needs at least one line")
	}
	requested := make(map[string]int, len(req.Lines))
	for i := range req.Lines {
		req.Lines[i].VariantID = strings.TrimSpace(req.Lines[i].VariantID)
		in := req.Lines[i]
		if in.VariantID == "" {
			return domain.ReturnOrder{}, invalid("line %d needs a variant", i+1)
		}
		if in.Qty < 1 {
			return domain.ReturnOrder{}, invalid("line %d quantity must be at least 1", i+1)
		}
		if in.UnitPrice.IsNegative() {
			return domain.ReturnOrder{}, invalid("line %d unit price cannot be negative", i+1)
		}
		requested[in.VariantID] += in.Qty
	}

	var created domain.ReturnOrder
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		customerID := strings.TrimSpace(req.CustomerID)
		if customerID != "" {
			if _, err := tx.GetCustomer(ctx, customerID); err != nil {
				return store.MissingReference(err)
			}
		}
		orderID := strings.TrimSpace(req.OrderID)
		if orderID != "" {
			if err := checkReturnable(ctx, tx, orderID, requested); err != nil {
				return err
			}
		}

		variants := make([]string, 0, len(requested))
		for id := range requested {
			variants = append(variants, id)
		}
		catalog, err := loadVariants(ctx, tx, variants)
		if err != nil {
			return err
		}
		if err := s.stock.LockVariants(ctx, tx, variants); err != nil {
			return err
		}

		now := s.now().UTC()
		ret := domain.ReturnOrder{
			ID:          xid.New("ret"),
			CustomerID:  customerID,
			OrderID:     orderID,
			HandledByID: handledBy,
			Note:        strings.TrimSpace(req.Note),
			Status:      domain.ReturnStatusCompleted,
			TotalRefund: decimal.Zero,
			ReturnDate:  now,
		}
		for _, in := range req.Lines {
			unitID := strings.TrimSpace(in.UnitID)
			if unitID == "" {
				unitID = catalog[in.VariantID].UnitID
			}
			refund := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Qty)))
			ret.Lines = append(ret.Lines, domain.ReturnLine{
				ID:            xid.New("rtl"),
				ReturnOrderID: ret.ID,
				VariantID:     in.VariantID,
				UnitID:        unitID,
				Qty:           in.Qty,
				UnitPrice:     in.UnitPrice,
				RefundAmount:  refund,
				Reason:        strings.TrimSpace(in.Reason),
			})
			ret.TotalRefund = ret.TotalRefund.Add(refund)
		}

		if err := tx.InsertReturnOrder(ctx, ret); err != nil {
			return err
		}
		expiry := dateOf(now).AddDate(0, 0, s.returnExpiry)
		for _, line := range ret.Lines {
			if err := tx.InsertReturnLine(ctx, line); err != nil {
				return err
			}
			if _, err := s.stock.Receive(ctx, tx, domain.StockBatch{
				VariantID:  line.VariantID,
				UnitID:     line.UnitID,
				Qty:        line.Qty,
				ExpiryDate: &expiry,
				UnitCost:   line.UnitPrice,
				SourceType: domain.BatchSourceReturn,
				SourceID:   ret.ID,
			}); err != nil {
				return err
			}
		}
		created = ret
		return nil
	})
	if err != nil {
		return domain.ReturnOrder{}, err
	}

	s.logger(ctx).Info("return recorded",
		zap.String("return_id", created.ID),
		zap.String("order_id", created.OrderID),
		zap.String("refund", created.TotalRefund.StringFixed(2)))
	return created, nil
}

func (s *Service) GetReturnOrder(ctx context.Context, id string) (domain.ReturnOrder, error) {
	var ret domain.ReturnOrder
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		found, err := tx.GetReturnOrder(ctx, id)
		if err != nil {
			return err
		}
		ret = *found
		return nil
	})
	return ret, err
}

// checkReturnable bounds each variant by what the order sold minus what
// earlier returns already took back. The order stays locked so returns
// against it run one at a time.
func checkReturnable(ctx context.Context, tx store.Tx, orderID string, requested map[string]int) error {
	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return store.MissingReference(err)
	}
	if order.Status == domain.OrderStatusCancel {
		return invalid("order %s is canceled", order.ID)
	}
	sold := make(map[string]int, len(order.Lines))
	for _, line := range order.Lines {
		sold[line.VariantID] += line.Qty
	}
	returned, err := tx.ReturnedQtyByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	for variantID, qty := range requested {
		if left := sold[variantID] - returned[variantID]; qty > left {
			return invalid("order %s has %d units of variant %s left to return, requested %d", order.ID, left, variantID, qty)
		}
	}
	return nil
}
