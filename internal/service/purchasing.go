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

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.CreatePurchaseOrderRequest) (domain.PurchaseOrder, error) {
	supplierID := strings.TrimSpace(req.SupplierID)
	if supplierID == "" {
		return domain.PurchaseOrder{}, invalid("supplier id is required")
	}
	if len(req.Lines) == 0 {
		return domain.PurchaseOrder{}, invalid("purchase order needs at least one line")
	}
	for i, in := range req.Lines {
		if strings.TrimSpace(in.VariantID) == "" {
			return domain.PurchaseOrder{}, invalid("line %d needs a variant", i+1)
		}
		if err := validatePurchaseAmounts(i+1, in.Qty, in.Total); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}

	var created domain.PurchaseOrder
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		po := domain.PurchaseOrder{
			ID:          xid.New("po"),
			SupplierID:  supplierID,
			EmployeeID:  s.actorID(ctx, req.EmployeeID),
			Status:      domain.PurchaseStatusPending,
			TotalAmount: decimal.Zero,
			CreatedAt:   s.now().UTC(),
		}

		lines := make([]domain.PurchaseLine, 0, len(req.Lines))
		for _, in := range req.Lines {
			variant, err := tx.GetVariant(ctx, strings.TrimSpace(in.VariantID))
			if err != nil {
				return store.MissingReference(err)
			}
			unitID := strings.TrimSpace(in.UnitID)
			if unitID == "" {
				unitID = variant.UnitID
			}
			lines = append(lines, domain.PurchaseLine{
				ID:              xid.New("pol"),
				PurchaseOrderID: po.ID,
				VariantID:       variant.ID,
				UnitID:          unitID,
				Qty:             in.Qty,
				Total:           in.Total,
			})
			po.TotalAmount = po.TotalAmount.Add(in.Total)
		}

		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.InsertPurchaseLine(ctx, line); err != nil {
				return err
			}
		}
		po.Lines = lines
		created = po
		return nil
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.logger(ctx).Info("purchase order created",
		zap.String("purchase_order_id", created.ID),
		zap.String("supplier_id", created.SupplierID),
		zap.Int("lines", len(created.Lines)))
	return created, nil
}

// UpdatePurchaseOrder edits a pending purchase order and optionally moves it
// to RECEIVE or CANCELED. Receiving is the only path that adds purchased
// stock.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, id string, req domain.UpdatePurchaseOrderRequest) (domain.PurchaseOrder, error) {
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case "", domain.PurchaseStatusPending, domain.PurchaseStatusReceive, domain.PurchaseStatusCanceled:
	default:
		return domain.PurchaseOrder{}, invalid("unknown purchase order status %q", req.Status)
	}
	if req.SupplierID != nil && strings.TrimSpace(*req.SupplierID) == "" {
		return domain.PurchaseOrder{}, invalid("supplier id cannot be empty")
	}

	var updated domain.PurchaseOrder
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		po, err := tx.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != domain.PurchaseStatusPending {
			return badState("purchase order %s is %s", po.ID, po.Status)
		}

		if req.SupplierID != nil {
			po.SupplierID = strings.TrimSpace(*req.SupplierID)
		}
		if req.EmployeeID != nil {
			po.EmployeeID = strings.TrimSpace(*req.EmployeeID)
		}
		if req.Lines != nil {
			if err := editPurchaseLines(ctx, tx, po, req.Lines); err != nil {
				return err
			}
		}

		switch status {
		case domain.PurchaseStatusReceive:
			if err := s.receivePurchase(ctx, tx, po); err != nil {
				return err
			}
		case domain.PurchaseStatusCanceled:
			po.Status = domain.PurchaseStatusCanceled
		}

		if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}
		updated = *po
		return nil
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.logger(ctx).Info("purchase order updated",
		zap.String("purchase_order_id", updated.ID),
		zap.String("status", updated.Status))
	return updated, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		found, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		po = *found
		return nil
	})
	return po, err
}

// editPurchaseLines changes quantity, total and expiry of existing lines.
// Lines cannot be added and a line keeps its variant and unit.
func editPurchaseLines(ctx context.Context, tx store.PurchaseTx, po *domain.PurchaseOrder, inputs []domain.PurchaseLineInput) error {
	index := make(map[string]int, len(po.Lines))
	for i, line := range po.Lines {
		index[line.ID] = i
	}

	for n, in := range inputs {
		lineID := strings.TrimSpace(in.ID)
		if lineID == "" {
			return invalid("purchase order %s cannot take new lines", po.ID)
		}
		i, ok := index[lineID]
		if !ok {
			return invalid("line %s does not belong to purchase order %s", lineID, po.ID)
		}
		line := po.Lines[i]
		if variantID := strings.TrimSpace(in.VariantID); variantID != "" && variantID != line.VariantID {
			return invalid("line %s cannot change variant", line.ID)
		}
		if unitID := strings.TrimSpace(in.UnitID); unitID != "" && unitID != line.UnitID {
			return invalid("line %s cannot change unit", line.ID)
		}
		if err := validatePurchaseAmounts(n+1, in.Qty, in.Total); err != nil {
			return err
		}

		line.Qty = in.Qty
		line.Total = in.Total
		if in.ExpiryDate != nil {
			expiry := in.ExpiryDate.UTC()
			line.ExpiryDate = &expiry
		}
		if err := tx.UpdatePurchaseLine(ctx, line); err != nil {
			return err
		}
		po.Lines[i] = line
	}

	po.TotalAmount = decimal.Zero
	for _, line := range po.Lines {
		po.TotalAmount = po.TotalAmount.Add(line.Total)
	}
	return nil
}

func (s *Service) receivePurchase(ctx context.Context, tx store.Tx, po *domain.PurchaseOrder) error {
	ids := make([]string, 0, len(po.Lines))
	for _, line := range po.Lines {
		if line.Qty > 0 {
			ids = append(ids, line.VariantID)
		}
	}
	if err := s.stock.LockVariants(ctx, tx, ids); err != nil {
		return err
	}

	for _, line := range po.Lines {
		if line.Qty == 0 {
			continue
		}
		cost := line.Total.DivRound(decimal.NewFromInt(int64(line.Qty)), 4)
		if err := tx.UpdateVariantCost(ctx, line.VariantID, cost); err != nil {
			return err
		}
		if _, err := s.stock.Receive(ctx, tx, domain.StockBatch{
			VariantID:  line.VariantID,
			UnitID:     line.UnitID,
			Qty:        line.Qty,
			ExpiryDate: line.ExpiryDate,
			UnitCost:   cost,
			SourceType: domain.BatchSourcePurchase,
			SourceID:   po.ID,
		}); err != nil {
			return err
		}
	}

	received := s.now().UTC()
	po.Status = domain.PurchaseStatusReceive
	po.ReceivedAt = &received
	return nil
}

func validatePurchaseAmounts(n int, qty int, total decimal.Decimal) error {
	if qty < 0 {
		return invalid("line %d quantity cannot be negative", n)
	}
	if total.IsNegative() {
		return invalid("line %d total cannot be negative", n)
	}
	return nil
}
