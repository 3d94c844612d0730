package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/promotion"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	paymentMethod, err := normalizePaymentMethod(req.PaymentMethod)
	if err != nil {
		return domain.Order{}, err
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, invalid("order needs at least one line")
	}
	if err := validateOrderLines(req.Lines); err != nil {
		return domain.Order{}, err
	}

	var created domain.Order
	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		customerID := strings.TrimSpace(req.CustomerID)
		if customerID != "" {
			if _, err := tx.GetCustomer(ctx, customerID); err != nil {
				return store.MissingReference(err)
			}
		}

		variants, err := loadVariants(ctx, tx, lineVariantIDs(req.Lines))
		if err != nil {
			return err
		}
		discountID := strings.TrimSpace(req.DiscountID)
		lockIDs := lineVariantIDs(req.Lines)
		gift, err := giftVariant(ctx, tx, discountID)
		if err != nil {
			return err
		}
		if gift != "" {
			lockIDs = append(lockIDs, gift)
		}
		if err := s.stock.LockVariants(ctx, tx, lockIDs); err != nil {
			return err
		}

		now := s.now().UTC()
		order := domain.Order{
			ID:            xid.New("ord"),
			Status:        domain.OrderStatusPending,
			PaymentMethod: paymentMethod,
			TotalAmount:   decimal.Zero,
			CustomerID:    customerID,
			EmployeeID:    s.actorID(ctx, req.EmployeeID),
			DiscountID:    discountID,
			CouponID:      strings.TrimSpace(req.CouponID),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, in := range req.Lines {
			line, err := s.reserveLine(ctx, tx, order.ID, variants[in.VariantID], in)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, line)
			subtotal = subtotal.Add(line.Total)
		}

		total, err := s.applyPromotions(ctx, tx, &order, subtotal)
		if err != nil {
			return err
		}
		order.TotalAmount = total
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx).Info("order created",
		zap.String("order_id", created.ID),
		zap.Int("lines", len(created.Lines)),
		zap.String("total", created.TotalAmount.StringFixed(2)))
	return created, nil
}

// UpdateOrder edits a pending order. Without lines only the scalar fields
// change. With lines the promotions are rolled back, stock is reconciled line
// by line and the discount and coupon are applied again on the new subtotal.
func (s *Service) UpdateOrder(ctx context.Context, orderID string, req domain.UpdateOrderRequest) (domain.Order, error) {
	var paymentMethod string
	if req.PaymentMethod != nil {
		pm, err := normalizePaymentMethod(*req.PaymentMethod)
		if err != nil {
			return domain.Order{}, err
		}
		paymentMethod = pm
	}
	if req.Lines != nil {
		if err := validateOrderLines(req.Lines); err != nil {
			return domain.Order{}, err
		}
	}

	var updated domain.Order
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return badState("order %s is %s", order.ID, order.Status)
		}

		if req.CustomerID != nil {
			customerID := strings.TrimSpace(*req.CustomerID)
			if customerID != "" {
				if _, err := tx.GetCustomer(ctx, customerID); err != nil {
					return store.MissingReference(err)
				}
			}
			order.CustomerID = customerID
		}
		if req.EmployeeID != nil {
			order.EmployeeID = strings.TrimSpace(*req.EmployeeID)
		}
		if req.PaymentMethod != nil {
			order.PaymentMethod = paymentMethod
		}
		order.UpdatedAt = s.now().UTC()

		if req.Lines == nil {
			if err := tx.UpdateOrder(ctx, *order); err != nil {
				return err
			}
			updated = *order
			return nil
		}

		if err := ensureNotInvoiced(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.replaceLines(ctx, tx, order, req); err != nil {
			return err
		}
		updated = *order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx).Info("order updated",
		zap.String("order_id", updated.ID),
		zap.Bool("lines_changed", req.Lines != nil),
		zap.String("total", updated.TotalAmount.StringFixed(2)))
	return updated, nil
}

func (s *Service) replaceLines(ctx context.Context, tx store.Tx, order *domain.Order, req domain.UpdateOrderRequest) error {
	existing := make(map[string]domain.OrderLine, len(order.Lines))
	for _, line := range order.Lines {
		existing[line.ID] = line
	}
	for i, in := range req.Lines {
		if in.ID == "" {
			continue
		}
		old, ok := existing[in.ID]
		if !ok || (old.IsGift && order.DiscountID != "" && old.GiftDiscountID == order.DiscountID) {
			return invalid("line %s does not belong to order %s", in.ID, order.ID)
		}
		if in.VariantID == "" {
			req.Lines[i].VariantID = old.VariantID
		}
	}

	discountID := order.DiscountID
	if req.DiscountID != nil {
		discountID = strings.TrimSpace(*req.DiscountID)
	}
	couponID := order.CouponID
	if req.CouponID != nil {
		couponID = strings.TrimSpace(*req.CouponID)
	}

	variants, err := loadVariants(ctx, tx, lineVariantIDs(req.Lines))
	if err != nil {
		return err
	}
	lockIDs := lineVariantIDs(req.Lines)
	for _, line := range order.Lines {
		lockIDs = append(lockIDs, line.VariantID)
	}
	newGift, err := giftVariant(ctx, tx, discountID)
	if err != nil {
		return err
	}
	lockIDs = append(lockIDs, newGift)
	if err := s.stock.LockVariants(ctx, tx, lockIDs); err != nil {
		return err
	}

	if err := s.promos.Rollback(ctx, tx, order); err != nil {
		return err
	}

	keep := make(map[string]bool, len(req.Lines))
	for _, in := range req.Lines {
		if in.ID != "" {
			keep[in.ID] = true
		}
	}
	for _, line := range order.Lines {
		if keep[line.ID] {
			continue
		}
		if err := s.stock.Release(ctx, tx, line.VariantID, line.Qty); err != nil {
			return err
		}
		if err := tx.DeleteOrderLine(ctx, line.ID); err != nil {
			return err
		}
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, in := range req.Lines {
		variant := variants[in.VariantID]
		var line domain.OrderLine
		if in.ID == "" {
			line, err = s.reserveLine(ctx, tx, order.ID, variant, in)
		} else {
			line, err = s.adjustLine(ctx, tx, existing[in.ID], variant, in)
		}
		if err != nil {
			return err
		}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.Total)
	}

	order.Lines = lines
	order.DiscountID = discountID
	order.CouponID = couponID
	total, err := s.applyPromotions(ctx, tx, order, subtotal)
	if err != nil {
		return err
	}
	order.TotalAmount = total
	return tx.UpdateOrder(ctx, *order)
}

// adjustLine moves only the stock difference for a kept line. A changed
// variant releases the old quantity in full and reserves the new one.
func (s *Service) adjustLine(ctx context.Context, tx store.Tx, old domain.OrderLine, variant domain.Variant, in domain.OrderLineInput) (domain.OrderLine, error) {
	line := old
	if variant.ID != old.VariantID {
		if err := s.stock.Release(ctx, tx, old.VariantID, old.Qty); err != nil {
			return domain.OrderLine{}, err
		}
		if _, err := s.stock.Reserve(ctx, tx, variant.ID, in.Qty); err != nil {
			return domain.OrderLine{}, err
		}
		line.VariantID = variant.ID
		line.UnitID = variant.UnitID
	} else if delta := in.Qty - old.Qty; delta > 0 {
		if _, err := s.stock.Reserve(ctx, tx, variant.ID, delta); err != nil {
			return domain.OrderLine{}, err
		}
	} else if delta < 0 {
		if err := s.stock.Release(ctx, tx, variant.ID, -delta); err != nil {
			return domain.OrderLine{}, err
		}
	}

	if unitID := strings.TrimSpace(in.UnitID); unitID != "" {
		line.UnitID = unitID
	}
	line.Qty = in.Qty
	line.UnitPrice = variant.SellPrice
	line.Total = variant.SellPrice.Mul(decimal.NewFromInt(int64(in.Qty)))
	line.IsGift = false
	line.GiftDiscountID = ""
	if err := tx.UpdateOrderLine(ctx, line); err != nil {
		return domain.OrderLine{}, err
	}
	return line, nil
}

// MergeOrders folds every listed order into the first one. The others are
// canceled with their lines moved and their totals added to the survivor.
func (s *Service) MergeOrders(ctx context.Context, req domain.MergeOrdersRequest) (domain.MergeOrdersResponse, error) {
	if len(req.OrderIDs) < 2 {
		return domain.MergeOrdersResponse{}, invalid("merge needs at least two orders")
	}
	ids := make([]string, 0, len(req.OrderIDs))
	seen := make(map[string]bool, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return domain.MergeOrdersResponse{}, invalid("order id is required")
		}
		if seen[id] {
			return domain.MergeOrdersResponse{}, invalid("order %s listed twice", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}

	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		locked := make([]string, len(ids))
		copy(locked, ids)
		sort.Strings(locked)

		orders := make(map[string]*domain.Order, len(ids))
		for _, id := range locked {
			order, err := tx.LockOrder(ctx, id)
			if err != nil {
				return store.MissingReference(err)
			}
			if order.Status != domain.OrderStatusPending {
				return invalid("order %s is %s", id, order.Status)
			}
			if err := ensureNotInvoiced(ctx, tx, id); err != nil {
				if errors.Is(err, store.ErrInvalidStateTransition) {
					return invalid("order %s already has an invoice", id)
				}
				return err
			}
			orders[id] = order
		}

		now := s.now().UTC()
		survivor := orders[ids[0]]
		for _, id := range ids[1:] {
			order := orders[id]
			if err := tx.MoveOrderLines(ctx, order.ID, survivor.ID); err != nil {
				return err
			}
			survivor.TotalAmount = survivor.TotalAmount.Add(order.TotalAmount)
			order.Status = domain.OrderStatusCancel
			order.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, *order); err != nil {
				return err
			}
		}
		survivor.UpdatedAt = now
		return tx.UpdateOrder(ctx, *survivor)
	})
	if err != nil {
		return domain.MergeOrdersResponse{}, err
	}

	s.logger(ctx).Info("orders merged", zap.String("order_id", ids[0]), zap.Strings("merged", ids[1:]))
	return domain.MergeOrdersResponse{MergedOrderID: ids[0]}, nil
}

// SplitOrder moves part of some lines into a new pending order. The reserved
// stock travels with the quantities so no ledger entry changes.
func (s *Service) SplitOrder(ctx context.Context, req domain.SplitOrderRequest) (domain.Order, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, invalid("order id is required")
	}
	if len(req.SplitItems) == 0 {
		return domain.Order{}, invalid("split needs at least one item")
	}
	seen := make(map[string]bool, len(req.SplitItems))
	for _, item := range req.SplitItems {
		if seen[item.LineID] {
			return domain.Order{}, invalid("line %s listed twice", item.LineID)
		}
		seen[item.LineID] = true
	}

	var created domain.Order
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return store.MissingReference(err)
		}
		if order.Status != domain.OrderStatusPending {
			return badState("order %s is %s", order.ID, order.Status)
		}
		if err := ensureNotInvoiced(ctx, tx, order.ID); err != nil {
			return err
		}

		lines := make(map[string]domain.OrderLine, len(order.Lines))
		for _, line := range order.Lines {
			lines[line.ID] = line
		}

		now := s.now().UTC()
		split := domain.Order{
			ID:            xid.New("ord"),
			Status:        domain.OrderStatusPending,
			PaymentMethod: order.PaymentMethod,
			TotalAmount:   decimal.Zero,
			CustomerID:    order.CustomerID,
			EmployeeID:    order.EmployeeID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertOrder(ctx, split); err != nil {
			return err
		}

		moved := decimal.Zero
		for _, item := range req.SplitItems {
			line, ok := lines[item.LineID]
			if !ok {
				return invalid("line %s does not belong to order %s", item.LineID, order.ID)
			}
			if item.Qty <= 0 || item.Qty >= line.Qty {
				return invalid("split quantity %d for line %s must be between 1 and %d", item.Qty, line.ID, line.Qty-1)
			}

			line.Qty -= item.Qty
			line.Total = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
			if err := tx.UpdateOrderLine(ctx, line); err != nil {
				return err
			}

			part := domain.OrderLine{
				ID:        xid.New("oln"),
				OrderID:   split.ID,
				VariantID: line.VariantID,
				UnitID:    line.UnitID,
				Qty:       item.Qty,
				UnitPrice: line.UnitPrice,
				Total:     line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))),
				IsGift:    line.IsGift,
			}
			if err := tx.InsertOrderLine(ctx, part); err != nil {
				return err
			}
			split.Lines = append(split.Lines, part)
			split.TotalAmount = split.TotalAmount.Add(part.Total)
			moved = moved.Add(part.Total)
		}

		order.TotalAmount = promotion.Floor(order.TotalAmount.Sub(moved))
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, split); err != nil {
			return err
		}
		created = split
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx).Info("order split", zap.String("order_id", orderID), zap.String("new_order_id", created.ID))
	return created, nil
}

// CancelOrder returns every reserved unit to stock and gives back the uses of
// the order's discount and coupon.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var canceled domain.Order
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return badState("order %s is %s", order.ID, order.Status)
		}
		if err := ensureNotInvoiced(ctx, tx, order.ID); err != nil {
			return err
		}

		ids := make([]string, 0, len(order.Lines))
		for _, line := range order.Lines {
			ids = append(ids, line.VariantID)
		}
		if err := s.stock.LockVariants(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.promos.Rollback(ctx, tx, order); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if line.Qty == 0 {
				continue
			}
			if err := s.stock.Release(ctx, tx, line.VariantID, line.Qty); err != nil {
				return err
			}
		}

		order.Status = domain.OrderStatusCancel
		order.UpdatedAt = s.now().UTC()
		if err := tx.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		canceled = *order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx).Info("order canceled", zap.String("order_id", canceled.ID))
	return canceled, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		found, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		order = *found
		return nil
	})
	return order, err
}

func (s *Service) reserveLine(ctx context.Context, tx store.Tx, orderID string, variant domain.Variant, in domain.OrderLineInput) (domain.OrderLine, error) {
	if _, err := s.stock.Reserve(ctx, tx, variant.ID, in.Qty); err != nil {
		return domain.OrderLine{}, err
	}
	unitID := strings.TrimSpace(in.UnitID)
	if unitID == "" {
		unitID = variant.UnitID
	}
	line := domain.OrderLine{
		ID:        xid.New("oln"),
		OrderID:   orderID,
		VariantID: variant.ID,
		UnitID:    unitID,
		Qty:       in.Qty,
		UnitPrice: variant.SellPrice,
		Total:     variant.SellPrice.Mul(decimal.NewFromInt(int64(in.Qty))),
	}
	if err := tx.InsertOrderLine(ctx, line); err != nil {
		return domain.OrderLine{}, err
	}
	return line, nil
}

// applyPromotions runs the discount first and the coupon second against the
// subtotal. Purchase conditions are checked against the non-gift lines.
func (s *Service) applyPromotions(ctx context.Context, tx store.Tx, order *domain.Order, subtotal decimal.Decimal) (decimal.Decimal, error) {
	total := subtotal
	if order.DiscountID != "" {
		discount, err := tx.GetDiscount(ctx, order.DiscountID)
		if err != nil {
			return total, store.MissingReference(err)
		}
		qty := 0
		for _, line := range order.Lines {
			if !line.IsGift {
				qty += line.Qty
			}
		}
		if !promotion.ConditionsMet(*discount, qty, subtotal) {
			return total, invalid("order does not meet the conditions of discount %s", discount.ID)
		}
		total, err = s.promos.ApplyDiscount(ctx, tx, order, discount.ID, total)
		if err != nil {
			return total, err
		}
	}
	if order.CouponID != "" {
		var err error
		total, err = s.promos.ApplyCoupon(ctx, tx, order.CouponID, total)
		if err != nil {
			return total, err
		}
	}
	return promotion.Floor(total), nil
}

func ensureNotInvoiced(ctx context.Context, tx store.Tx, orderID string) error {
	_, err := tx.GetInvoiceByOrder(ctx, orderID)
	switch {
	case err == nil:
		return badState("order %s already has an invoice", orderID)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

func giftVariant(ctx context.Context, tx store.Tx, discountID string) (string, error) {
	if discountID == "" {
		return "", nil
	}
	discount, err := tx.GetDiscount(ctx, discountID)
	if err != nil {
		return "", store.MissingReference(err)
	}
	if discount.Type != domain.DiscountTypeBuyXGetY {
		return "", nil
	}
	return discount.GiftVariantID, nil
}

func loadVariants(ctx context.Context, tx store.CatalogTx, ids []string) (map[string]domain.Variant, error) {
	variants := make(map[string]domain.Variant, len(ids))
	for _, id := range ids {
		if _, ok := variants[id]; ok {
			continue
		}
		variant, err := tx.GetVariant(ctx, id)
		if err != nil {
			return nil, store.MissingReference(err)
		}
		variants[id] = *variant
	}
	return variants, nil
}

func lineVariantIDs(lines []domain.OrderLineInput) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	return ids
}

func validateOrderLines(lines []domain.OrderLineInput) error {
	seen := make(map[string]bool, len(lines))
	for i := range lines {
		lines[i].ID = strings.TrimSpace(lines[i].ID)
		lines[i].VariantID = strings.TrimSpace(lines[i].VariantID)
		line := lines[i]
		if line.ID == "" && line.VariantID == "" {
			return invalid("line %d needs a variant", i+1)
		}
		if line.Qty < 1 {
			return invalid("line %d quantity must be at least 1", i+1)
		}
		if line.ID != "" {
			if seen[line.ID] {
				return invalid("line %s listed twice", line.ID)
			}
			seen[line.ID] = true
		}
	}
	return nil
}

func normalizePaymentMethod(value string) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(value))
	switch method {
	case "":
		return domain.PaymentMethodCash, nil
	case domain.PaymentMethodCash, domain.PaymentMethodTransfer:
		return method, nil
	default:
		return "", invalid("unknown payment method %q", value)
	}
}
