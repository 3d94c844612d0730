package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending  = "PENDING"
	OrderStatusComplete = "COMPLETE"
	OrderStatusCancel   = "CANCEL"
)

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	DiscountTypeFlat     = "FLAT_DISCOUNT"
	DiscountTypeBuyXGetY = "BUY_X_GET_Y"
)

const (
	ValueTypeFixed      = "FIXED"
	ValueTypePercentage = "PERCENTAGE"
)

const (
	PaymentStatusUnpaid        = "UNPAID"
	PaymentStatusPaid          = "PAID"
	PaymentStatusPartiallyPaid = "PARTIALLY_PAID"
)

const (
	PurchaseStatusPending  = "PENDING"
	PurchaseStatusReceive  = "RECEIVE"
	PurchaseStatusCanceled = "CANCELED"
)

const (
	BatchSourcePurchase   = "PURCHASE"
	BatchSourceReturn     = "RETURN"
	BatchSourceAdjustment = "ADJUSTMENT"
)

const ReturnStatusCompleted = "COMPLETED"

type Actor struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
}

type Variant struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitID    string          `json:"unit_id"`
	SellPrice decimal.Decimal `json:"sell_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type InventoryLedger struct {
	VariantID   string    `json:"variant_id"`
	UnitID      string    `json:"unit_id"`
	QuantityIn  int       `json:"quantity_in"`
	QuantityOut int       `json:"quantity_out"`
	Balance     int       `json:"balance"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StockBatch struct {
	ID         string          `json:"id"`
	VariantID  string          `json:"variant_id"`
	UnitID     string          `json:"unit_id"`
	Qty        int             `json:"qty"`
	ReceivedAt time.Time       `json:"received_at"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SourceType string          `json:"source_type"`
	SourceID   string          `json:"source_id,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CustomerID    string          `json:"customer_id,omitempty"`
	EmployeeID    string          `json:"employee_id,omitempty"`
	DiscountID    string          `json:"discount_id,omitempty"`
	CouponID      string          `json:"coupon_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []OrderLine     `json:"lines"`
}

type OrderLine struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	VariantID      string          `json:"variant_id"`
	UnitID         string          `json:"unit_id"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Total          decimal.Decimal `json:"total"`
	IsGift         bool            `json:"is_gift"`
	GiftDiscountID string          `json:"gift_discount_id,omitempty"`
}

type PromotionCondition struct {
	MinPurchaseQty    int             `json:"min_purchase_qty"`
	MinPurchaseAmount decimal.Decimal `json:"min_purchase_amount"`
}

type Discount struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Type          string               `json:"type"`
	ValueType     string               `json:"value_type"`
	Value         decimal.Decimal      `json:"value"`
	StartDate     *time.Time           `json:"start_date,omitempty"`
	EndDate       *time.Time           `json:"end_date,omitempty"`
	UsageLimit    *int                 `json:"usage_limit"`
	GiftVariantID string               `json:"gift_variant_id,omitempty"`
	GiftUnitID    string               `json:"gift_unit_id,omitempty"`
	GiftQty       int                  `json:"gift_qty,omitempty"`
	Conditions    []PromotionCondition `json:"conditions,omitempty"`
}

type Coupon struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	ValueType  string          `json:"value_type"`
	Value      decimal.Decimal `json:"value"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	UsageLimit *int            `json:"usage_limit"`
}

type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone,omitempty"`
	TierID     string          `json:"tier_id,omitempty"`
	DebtAmount decimal.Decimal `json:"debt_amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

type RewardTier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MinPoints    int64           `json:"min_points"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

type LoyaltyAccount struct {
	CustomerID  string    `json:"customer_id"`
	Points      int64     `json:"points"`
	LastUpdated time.Time `json:"last_updated"`
}

type LoyaltyReward struct {
	ID             string `json:"id"`
	TierID         string `json:"tier_id"`
	CouponID       string `json:"coupon_id"`
	PointsRequired int64  `json:"points_required"`
}

type PointTransaction struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	OrderID      string    `json:"order_id"`
	PointsEarned int64     `json:"points_earned"`
	PointsUsed   int64     `json:"points_used"`
	CreatedAt    time.Time `json:"created_at"`
}

type Invoice struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	AmountChange   decimal.Decimal `json:"amount_change"`
	PaymentStatus  string          `json:"payment_status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type PurchaseOrder struct {
	ID          string          `json:"id"`
	SupplierID  string          `json:"supplier_id"`
	EmployeeID  string          `json:"employee_id,omitempty"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	Lines       []PurchaseLine  `json:"lines"`
}

type PurchaseLine struct {
	ID              string          `json:"id"`
	PurchaseOrderID string          `json:"purchase_order_id"`
	VariantID       string          `json:"variant_id"`
	UnitID          string          `json:"unit_id"`
	Qty             int             `json:"qty"`
	Total           decimal.Decimal `json:"total"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
}

type ReturnOrder struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id,omitempty"`
	OrderID     string          `json:"order_id,omitempty"`
	HandledByID string          `json:"handled_by_id"`
	Note        string          `json:"note,omitempty"`
	Status      string          `json:"status"`
	TotalRefund decimal.Decimal `json:"total_refund"`
	ReturnDate  time.Time       `json:"return_date"`
	Lines       []ReturnLine    `json:"lines"`
}

type ReturnLine struct {
	ID            string          `json:"id"`
	ReturnOrderID string          `json:"return_order_id"`
	VariantID     string          `json:"variant_id"`
	UnitID        string          `json:"unit_id"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Reason        string          `json:"reason,omitempty"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

type Unit struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ReferenceUnitID string          `json:"reference_unit_id,omitempty"`
	ConversionRate  decimal.Decimal `json:"conversion_rate"`
}

type StockView struct {
	Ledger  InventoryLedger `json:"ledger"`
	Batches []StockBatch    `json:"batches"`
}

type InvoiceResult struct {
	Invoice Invoice           `json:"invoice"`
	Points  *PointTransaction `json:"points,omitempty"`
	TierID  string            `json:"tier_id,omitempty"`
}

type CustomerProfile struct {
	Customer     Customer           `json:"customer"`
	Account      LoyaltyAccount     `json:"account"`
	Transactions []PointTransaction `json:"transactions"`
}
