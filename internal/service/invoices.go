package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// CreateInvoice records the first payment for a pending order. A full payment
// completes the order, a partial one books the shortfall as customer debt.
// Loyalty points are credited whenever the order has a customer.
func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.InvoiceResult, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.InvoiceResult{}, invalid("order id is required")
	}
	if req.AmountReceived.IsNegative() {
		return domain.InvoiceResult{}, invalid("amount received cannot be negative")
	}
	if req.TotalAmount.IsNegative() {
		return domain.InvoiceResult{}, invalid("total amount cannot be negative")
	}

	var result domain.InvoiceResult
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

		total := order.TotalAmount
		if !req.TotalAmount.IsZero() && !req.TotalAmount.Equal(total) {
			return invalid("invoice total %s does not match order total %s", req.TotalAmount.StringFixed(2), total.StringFixed(2))
		}

		now := s.now().UTC()
		invoice := domain.Invoice{
			ID:             xid.New("inv"),
			OrderID:        order.ID,
			TotalAmount:    total,
			AmountReceived: req.AmountReceived,
			AmountChange:   req.AmountReceived.Sub(total),
			PaymentStatus:  paymentStatus(total, req.AmountReceived),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		switch invoice.PaymentStatus {
		case domain.PaymentStatusPaid:
			order.Status = domain.OrderStatusComplete
			order.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, *order); err != nil {
				return err
			}
		case domain.PaymentStatusPartiallyPaid:
			if order.CustomerID == "" {
				return invalid("partial payment on order %s needs a customer to carry the debt", order.ID)
			}
			if err := adjustDebt(ctx, tx, order.CustomerID, bookedDebt(invoice)); err != nil {
				return err
			}
		}
		if err := tx.InsertInvoice(ctx, invoice); err != nil {
			return err
		}
		result.Invoice = invoice

		if order.CustomerID != "" {
			credited, err := s.loyalty.Apply(ctx, tx, order.CustomerID, order.ID, order.CouponID, total)
			if err != nil {
				return err
			}
			result.Points = &credited.Transaction
			result.TierID = credited.TierID
		}
		return nil
	})
	if err != nil {
		return domain.InvoiceResult{}, err
	}

	s.logger(ctx).Info("invoice created",
		zap.String("invoice_id", result.Invoice.ID),
		zap.String("order_id", result.Invoice.OrderID),
		zap.String("payment_status", result.Invoice.PaymentStatus))
	return result, nil
}

// RecordPayment adds a later payment to an unsettled invoice. Customer debt
// follows the outstanding amount that was booked for partially paid invoices.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req domain.RecordPaymentRequest) (domain.Invoice, error) {
	if !req.Amount.IsPositive() {
		return domain.Invoice{}, invalid("payment amount must be positive")
	}

	var updated domain.Invoice
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.PaymentStatus == domain.PaymentStatusPaid {
			return badState("invoice %s is already paid", invoice.ID)
		}
		order, err := tx.LockOrder(ctx, invoice.OrderID)
		if err != nil {
			return err
		}

		before := bookedDebt(*invoice)
		now := s.now().UTC()
		invoice.AmountReceived = invoice.AmountReceived.Add(req.Amount)
		invoice.AmountChange = invoice.AmountReceived.Sub(invoice.TotalAmount)
		invoice.PaymentStatus = paymentStatus(invoice.TotalAmount, invoice.AmountReceived)
		invoice.UpdatedAt = now

		if delta := bookedDebt(*invoice).Sub(before); !delta.IsZero() {
			if order.CustomerID == "" {
				return invalid("partial payment on order %s needs a customer to carry the debt", order.ID)
			}
			if err := adjustDebt(ctx, tx, order.CustomerID, delta); err != nil {
				return err
			}
		}
		if invoice.PaymentStatus == domain.PaymentStatusPaid && order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusComplete
			order.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, *order); err != nil {
				return err
			}
		}
		if err := tx.UpdateInvoice(ctx, *invoice); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logger(ctx).Info("payment recorded",
		zap.String("invoice_id", updated.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("payment_status", updated.PaymentStatus))
	return updated, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		found, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		invoice = *found
		return nil
	})
	return invoice, err
}

func paymentStatus(total decimal.Decimal, received decimal.Decimal) string {
	switch {
	case received.GreaterThanOrEqual(total):
		return domain.PaymentStatusPaid
	case received.IsZero():
		return domain.PaymentStatusUnpaid
	default:
		return domain.PaymentStatusPartiallyPaid
	}
}

// bookedDebt is the part of an invoice carried as customer debt. Only
// partially paid invoices carry any.
func bookedDebt(invoice domain.Invoice) decimal.Decimal {
	if invoice.PaymentStatus != domain.PaymentStatusPartiallyPaid {
		return decimal.Zero
	}
	return invoice.TotalAmount.Sub(invoice.AmountReceived)
}

func adjustDebt(ctx context.Context, tx store.LoyaltyTx, customerID string, delta decimal.Decimal) error {
	customer, err := tx.LockCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.MissingReference(err)
		}
		return err
	}
	customer.DebtAmount = customer.DebtAmount.Add(delta)
	if customer.DebtAmount.IsNegative() {
		customer.DebtAmount = decimal.Zero
	}
	return tx.UpdateCustomer(ctx, *customer)
}
