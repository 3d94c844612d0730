package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) CreateDiscount(ctx context.Context, req domain.DiscountRequest) (domain.Discount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Discount{}, invalid("discount name is required")
	}
	kind := strings.ToUpper(strings.TrimSpace(req.Type))
	if kind == "" {
		kind = domain.DiscountTypeFlat
	}
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return domain.Discount{}, err
	}
	if err := validateLimit(req.UsageLimit); err != nil {
		return domain.Discount{}, err
	}
	for i, cond := range req.Conditions {
		if cond.MinPurchaseQty < 0 || cond.MinPurchaseAmount.IsNegative() {
			return domain.Discount{}, invalid("condition %d cannot be negative", i+1)
		}
	}

	discount := domain.Discount{
		ID:         xid.New("dis"),
		Name:       name,
		Type:       kind,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		UsageLimit: req.UsageLimit,
		Conditions: req.Conditions,
	}
	switch kind {
	case domain.DiscountTypeFlat:
		valueType, err := validateValue(req.ValueType, req.Value)
		if err != nil {
			return domain.Discount{}, err
		}
		discount.ValueType = valueType
		discount.Value = req.Value
	case domain.DiscountTypeBuyXGetY:
		if strings.TrimSpace(req.GiftVariantID) == "" {
			return domain.Discount{}, invalid("buy x get y discount needs a gift variant")
		}
		if req.GiftQty < 1 {
			return domain.Discount{}, invalid("gift quantity must be at least 1")
		}
		discount.GiftVariantID = strings.TrimSpace(req.GiftVariantID)
		discount.GiftQty = req.GiftQty
		discount.Value = decimal.Zero
	default:
		return domain.Discount{}, invalid("unknown discount type %q", req.Type)
	}

	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if discount.Type == domain.DiscountTypeBuyXGetY {
			gift, err := tx.GetVariant(ctx, discount.GiftVariantID)
			if err != nil {
				return store.MissingReference(err)
			}
			discount.GiftUnitID = gift.UnitID
		}
		return tx.InsertDiscount(ctx, discount)
	})
	if err != nil {
		return domain.Discount{}, err
	}

	s.logger(ctx).Info("discount created", zap.String("discount_id", discount.ID), zap.String("type", discount.Type))
	return discount, nil
}

func (s *Service) CreateCoupon(ctx context.Context, req domain.CouponRequest) (domain.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.Coupon{}, invalid("coupon code is required")
	}
	valueType, err := validateValue(req.ValueType, req.Value)
	if err != nil {
		return domain.Coupon{}, err
	}
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return domain.Coupon{}, err
	}
	if err := validateLimit(req.UsageLimit); err != nil {
		return domain.Coupon{}, err
	}

	coupon := domain.Coupon{
		ID:         xid.New("cpn"),
		Code:       code,
		ValueType:  valueType,
		Value:      req.Value,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		UsageLimit: req.UsageLimit,
	}
	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertCoupon(ctx, coupon)
	})
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logger(ctx).Info("coupon created", zap.String("coupon_id", coupon.ID), zap.String("code", coupon.Code))
	return coupon, nil
}

func validateValue(valueType string, value decimal.Decimal) (string, error) {
	kind := strings.ToUpper(strings.TrimSpace(valueType))
	switch kind {
	case domain.ValueTypeFixed:
	case domain.ValueTypePercentage:
		if value.GreaterThan(hundred) {
			return "", invalid("percentage cannot exceed 100")
		}
	default:
		return "", invalid("unknown value type %q", valueType)
	}
	if value.IsNegative() {
		return "", invalid("promotion value cannot be negative")
	}
	return kind, nil
}

func validateWindow(start *time.Time, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("promotion ends before it starts")
	}
	return nil
}

func validateLimit(limit *int) error {
	if limit != nil && *limit < 0 {
		return invalid("usage limit cannot be negative")
	}
	return nil
}
