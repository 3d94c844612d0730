package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderLineInput struct {
	ID        string `json:"id,omitempty"`
	VariantID string `json:"variant_id"`
	UnitID    string `json:"unit_id"`
	Qty       int    `json:"qty"`
}

type CreateOrderRequest struct {
	CustomerID    string           `json:"customer_id"`
	EmployeeID    string           `json:"employee_id"`
	PaymentMethod string           `json:"payment_method"`
	DiscountID    string           `json:"discount_id"`
	CouponID      string           `json:"coupon_id"`
	Lines         []OrderLineInput `json:"lines"`
}

// UpdateOrderRequest leaves Lines nil when the payload carries no "lines" key.
// An explicit empty list is a line change that removes every line.
// DiscountID and CouponID follow the same rule: nil keeps the current
// reference and an empty string clears it.
type UpdateOrderRequest struct {
	CustomerID    *string          `json:"customer_id,omitempty"`
	EmployeeID    *string          `json:"employee_id,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	DiscountID    *string          `json:"discount_id,omitempty"`
	CouponID      *string          `json:"coupon_id,omitempty"`
	Lines         []OrderLineInput `json:"lines"`
}

type MergeOrdersRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type MergeOrdersResponse struct {
	MergedOrderID string `json:"merged_order_id"`
}

type SplitItem struct {
	LineID string `json:"line_id"`
	Qty    int    `json:"qty"`
}

type SplitOrderRequest struct {
	OrderID    string      `json:"order_id"`
	SplitItems []SplitItem `json:"split_items"`
}

type CreateInvoiceRequest struct {
	OrderID        string          `json:"order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountReceived decimal.Decimal `json:"amount_received"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PurchaseLineInput struct {
	ID         string          `json:"id,omitempty"`
	VariantID  string          `json:"variant_id"`
	UnitID     string          `json:"unit_id"`
	Qty        int             `json:"qty"`
	Total      decimal.Decimal `json:"total"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

type CreatePurchaseOrderRequest struct {
	SupplierID string              `json:"supplier_id"`
	EmployeeID string              `json:"employee_id"`
	Status     string              `json:"status"`
	Lines      []PurchaseLineInput `json:"lines"`
}

type UpdatePurchaseOrderRequest struct {
	SupplierID *string             `json:"supplier_id,omitempty"`
	EmployeeID *string             `json:"employee_id,omitempty"`
	Status     string              `json:"status"`
	Lines      []PurchaseLineInput `json:"lines"`
}

type ReturnLineInput struct {
	VariantID string          `json:"variant_id"`
	UnitID    string          `json:"unit_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason"`
}

type CreateReturnOrderRequest struct {
	CustomerID  string            `json:"customer_id"`
	OrderID     string            `json:"order_id"`
	HandledByID string            `json:"handled_by_id"`
	Note        string            `json:"note"`
	Lines       []ReturnLineInput `json:"lines"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CreateVariantRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitID    string          `json:"unit_id"`
	SellPrice decimal.Decimal `json:"sell_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type StockAdjustmentRequest struct {
	VariantID  string          `json:"variant_id"`
	Qty        int             `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

type RewardTierRequest struct {
	Name         string          `json:"name"`
	MinPoints    int64           `json:"min_points"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

type RewardTierUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	MinPoints    *int64           `json:"min_points,omitempty"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
}

type LoyaltyRewardRequest struct {
	TierID         string `json:"tier_id"`
	CouponID       string `json:"coupon_id"`
	PointsRequired int64  `json:"points_required"`
}

type DiscountRequest struct {
	Name          string               `json:"name"`
	Type          string               `json:"type"`
	ValueType     string               `json:"value_type"`
	Value         decimal.Decimal      `json:"value"`
	StartDate     *time.Time           `json:"start_date,omitempty"`
	EndDate       *time.Time           `json:"end_date,omitempty"`
	UsageLimit    *int                 `json:"usage_limit,omitempty"`
	GiftVariantID string               `json:"gift_variant_id,omitempty"`
	GiftQty       int                  `json:"gift_qty,omitempty"`
	Conditions    []PromotionCondition `json:"conditions,omitempty"`
}

type CouponRequest struct {
	Code       string          `json:"code"`
	ValueType  string          `json:"value_type"`
	Value      decimal.Decimal `json:"value"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	UsageLimit *int            `json:"usage_limit,omitempty"`
}

type CategoryRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

type UnitRequest struct {
	Name            string          `json:"name"`
	ReferenceUnitID string          `json:"reference_unit_id"`
	ConversionRate  decimal.Decimal `json:"conversion_rate"`
}

type ParentRequest struct {
	ParentID string `json:"parent_id"`
}
