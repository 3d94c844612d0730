package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPromotionExpired       = errors.New("promotion expired")
	ErrPromotionExhausted     = errors.New("promotion exhausted")
)

// MissingReference reports a row that a request pointed at but that does not
// exist as an input error, keeping ErrNotFound in the chain.
func MissingReference(err error) error {
	if errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidInput) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// Store runs every unit of work inside a single transaction. Returning an
// error (or panicking) from fn discards all writes made through tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the transactional view of the repository. Lock* methods take a row
// level exclusive lock held until the transaction ends; callers acquire them in
// the order ledger, batches, promotions, customers/loyalty.
type Tx interface {
	CatalogTx
	StockTx
	OrderTx
	PromotionTx
	LoyaltyTx
	InvoiceTx
	PurchaseTx
	ReturnTx
}

type CatalogTx interface {
	GetVariant(ctx context.Context, id string) (*domain.Variant, error)
	InsertVariant(ctx context.Context, variant domain.Variant) error
	UpdateVariantCost(ctx context.Context, id string, cost decimal.Decimal) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	InsertCategory(ctx context.Context, category domain.Category) error
	UpdateCategoryParent(ctx context.Context, id string, parentID string) error
	GetUnit(ctx context.Context, id string) (*domain.Unit, error)
	InsertUnit(ctx context.Context, unit domain.Unit) error
	UpdateUnitReference(ctx context.Context, id string, referenceID string) error
}

type StockTx interface {
	LockLedger(ctx context.Context, variantID string) (*domain.InventoryLedger, error)
	SaveLedger(ctx context.Context, ledger domain.InventoryLedger) error
	// EnsureLedger creates an empty ledger row for the variant if none exists.
	EnsureLedger(ctx context.Context, variantID string) error
	// LockBatches returns the variant's batches oldest first.
	LockBatches(ctx context.Context, variantID string) ([]domain.StockBatch, error)
	InsertBatch(ctx context.Context, batch domain.StockBatch) error
	UpdateBatchQty(ctx context.Context, batchID string, qty int) error
}

type OrderTx interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	InsertOrder(ctx context.Context, order domain.Order) error
	UpdateOrder(ctx context.Context, order domain.Order) error
	InsertOrderLine(ctx context.Context, line domain.OrderLine) error
	UpdateOrderLine(ctx context.Context, line domain.OrderLine) error
	DeleteOrderLine(ctx context.Context, lineID string) error
	MoveOrderLines(ctx context.Context, fromOrderID string, toOrderID string) error
}

type PromotionTx interface {
	GetDiscount(ctx context.Context, id string) (*domain.Discount, error)
	LockDiscount(ctx context.Context, id string) (*domain.Discount, error)
	InsertDiscount(ctx context.Context, discount domain.Discount) error
	UpdateDiscountUsage(ctx context.Context, id string, usageLimit *int) error
	GetCoupon(ctx context.Context, id string) (*domain.Coupon, error)
	LockCoupon(ctx context.Context, id string) (*domain.Coupon, error)
	InsertCoupon(ctx context.Context, coupon domain.Coupon) error
	UpdateCouponUsage(ctx context.Context, id string, usageLimit *int) error
}

type LoyaltyTx interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	LockCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomersByTier(ctx context.Context, tierID string) ([]domain.Customer, error)
	InsertCustomer(ctx context.Context, customer domain.Customer) error
	UpdateCustomer(ctx context.Context, customer domain.Customer) error
	LockLoyaltyAccount(ctx context.Context, customerID string) (*domain.LoyaltyAccount, error)
	ListLoyaltyAccountsFrom(ctx context.Context, minPoints int64) ([]domain.LoyaltyAccount, error)
	SaveLoyaltyAccount(ctx context.Context, account domain.LoyaltyAccount) error
	InsertPointTransaction(ctx context.Context, entry domain.PointTransaction) error
	ListPointTransactions(ctx context.Context, customerID string) ([]domain.PointTransaction, error)
	FindLoyaltyReward(ctx context.Context, tierID string, couponID string) (*domain.LoyaltyReward, error)
	InsertLoyaltyReward(ctx context.Context, reward domain.LoyaltyReward) error
	// ListRewardTiers returns the ladder ordered by MinPoints descending.
	ListRewardTiers(ctx context.Context) ([]domain.RewardTier, error)
	GetRewardTier(ctx context.Context, id string) (*domain.RewardTier, error)
	LockRewardTier(ctx context.Context, id string) (*domain.RewardTier, error)
	InsertRewardTier(ctx context.Context, tier domain.RewardTier) error
	UpdateRewardTier(ctx context.Context, tier domain.RewardTier) error
}

type InvoiceTx interface {
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	LockInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID string) (*domain.Invoice, error)
	InsertInvoice(ctx context.Context, invoice domain.Invoice) error
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) error
}

type PurchaseTx interface {
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	LockPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	InsertPurchaseLine(ctx context.Context, line domain.PurchaseLine) error
	UpdatePurchaseLine(ctx context.Context, line domain.PurchaseLine) error
}

type ReturnTx interface {
	GetReturnOrder(ctx context.Context, id string) (*domain.ReturnOrder, error)
	InsertReturnOrder(ctx context.Context, ret domain.ReturnOrder) error
	InsertReturnLine(ctx context.Context, line domain.ReturnLine) error
	// ReturnedQtyByOrder sums returned quantities per variant for an order.
	ReturnedQtyByOrder(ctx context.Context, orderID string) (map[string]int, error)
}
