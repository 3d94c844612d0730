package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// Store keeps every table in maps guarded by one mutex. A transaction holds
// the mutex for its whole duration and works on the live maps; a snapshot
// taken at the start is swapped back in when the transaction fails.
type Store struct {
	mu   sync.Mutex
	data *data
}

type data struct {
	seq           int64
	rowSeq        map[string]int64
	variants      map[string]domain.Variant
	ledgers       map[string]domain.InventoryLedger
	batches       map[string][]domain.StockBatch
	orders        map[string]domain.Order
	orderLines    map[string]domain.OrderLine
	discounts     map[string]domain.Discount
	coupons       map[string]domain.Coupon
	customers     map[string]domain.Customer
	accounts      map[string]domain.LoyaltyAccount
	pointTxs      []domain.PointTransaction
	rewards       map[string]domain.LoyaltyReward
	tiers         map[string]domain.RewardTier
	invoices      map[string]domain.Invoice
	purchases     map[string]domain.PurchaseOrder
	purchaseLines map[string]domain.PurchaseLine
	returns       map[string]domain.ReturnOrder
	returnLines   map[string]domain.ReturnLine
	categories    map[string]domain.Category
	units         map[string]domain.Unit
}

func New() *Store {
	return &Store{data: newData()}
}

func newData() *data {
	return &data{
		rowSeq:        make(map[string]int64),
		variants:      make(map[string]domain.Variant),
		ledgers:       make(map[string]domain.InventoryLedger),
		batches:       make(map[string][]domain.StockBatch),
		orders:        make(map[string]domain.Order),
		orderLines:    make(map[string]domain.OrderLine),
		discounts:     make(map[string]domain.Discount),
		coupons:       make(map[string]domain.Coupon),
		customers:     make(map[string]domain.Customer),
		accounts:      make(map[string]domain.LoyaltyAccount),
		rewards:       make(map[string]domain.LoyaltyReward),
		tiers:         make(map[string]domain.RewardTier),
		invoices:      make(map[string]domain.Invoice),
		purchases:     make(map[string]domain.PurchaseOrder),
		purchaseLines: make(map[string]domain.PurchaseLine),
		returns:       make(map[string]domain.ReturnOrder),
		returnLines:   make(map[string]domain.ReturnLine),
		categories:    make(map[string]domain.Category),
		units:         make(map[string]domain.Unit),
	}
}

// NewSeeded returns a store with a small catalog, opening stock, a tier
// ladder and a couple of promotions, used when no database is configured.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	d := s.data

	d.units["unit-pcs"] = domain.Unit{ID: "unit-pcs", Name: "pcs", ConversionRate: decimal.NewFromInt(1)}
	d.units["unit-box"] = domain.Unit{ID: "unit-box", Name: "box", ReferenceUnitID: "unit-pcs", ConversionRate: decimal.NewFromInt(12)}
	d.categories["cat-food"] = domain.Category{ID: "cat-food", Name: "Food"}
	d.categories["cat-noodle"] = domain.Category{ID: "cat-noodle", Name: "Noodles", ParentID: "cat-food"}

	seedVariant := func(id, name string, sell, cost int64, stock int) {
		d.variants[id] = domain.Variant{
			ID:        id,
			ProductID: "prd-" + strings.TrimPrefix(id, "var-"),
			Name:      name,
			UnitID:    "unit-pcs",
			SellPrice: decimal.NewFromInt(sell),
			CostPrice: decimal.NewFromInt(cost),
		}
		d.ledgers[id] = domain.InventoryLedger{VariantID: id, UnitID: "unit-pcs", QuantityIn: stock, Balance: stock, UpdatedAt: now}
		d.batches[id] = []domain.StockBatch{{
			ID:         "bat-seed-" + id,
			VariantID:  id,
			UnitID:     "unit-pcs",
			Qty:        stock,
			ReceivedAt: now.AddDate(0, 0, -7),
			UnitCost:   decimal.NewFromInt(cost),
			SourceType: domain.BatchSourceAdjustment,
		}}
	}
	seedVariant("var-noodle", "Instant Noodle", 35, 25, 120)
	seedVariant("var-tea", "Bottled Tea", 50, 32, 80)
	seedVariant("var-coffee", "Coffee Sachet", 20, 12, 200)
	seedVariant("var-egg", "Egg", 25, 18, 60)

	d.tiers["tier-bronze"] = domain.RewardTier{ID: "tier-bronze", Name: "Bronze", MinPoints: 0, ExchangeRate: decimal.NewFromInt(10)}
	d.tiers["tier-silver"] = domain.RewardTier{ID: "tier-silver", Name: "Silver", MinPoints: 100, ExchangeRate: decimal.NewFromInt(8)}
	d.tiers["tier-gold"] = domain.RewardTier{ID: "tier-gold", Name: "Gold", MinPoints: 500, ExchangeRate: decimal.NewFromInt(5)}

	d.customers["cus-walkin"] = domain.Customer{ID: "cus-walkin", Name: "Walk-in Member", TierID: "tier-bronze", CreatedAt: now}
	d.accounts["cus-walkin"] = domain.LoyaltyAccount{CustomerID: "cus-walkin", LastUpdated: now}

	limit := 50
	d.discounts["dis-breakfast"] = domain.Discount{
		ID:         "dis-breakfast",
		Name:       "Breakfast 10%",
		Type:       domain.DiscountTypeFlat,
		ValueType:  domain.ValueTypePercentage,
		Value:      decimal.NewFromInt(10),
		UsageLimit: &limit,
	}
	d.discounts["dis-tea-egg"] = domain.Discount{
		ID:            "dis-tea-egg",
		Name:          "Buy tea get an egg",
		Type:          domain.DiscountTypeBuyXGetY,
		ValueType:     domain.ValueTypeFixed,
		GiftVariantID: "var-egg",
		GiftUnitID:    "unit-pcs",
		GiftQty:       1,
		Conditions:    []domain.PromotionCondition{{MinPurchaseQty: 2}},
	}
	d.coupons["cpn-welcome"] = domain.Coupon{ID: "cpn-welcome", Code: "WELCOME5", ValueType: domain.ValueTypeFixed, Value: decimal.NewFromInt(5)}
	d.rewards["rwd-welcome"] = domain.LoyaltyReward{ID: "rwd-welcome", TierID: "tier-silver", CouponID: "cpn-welcome", PointsRequired: 20}

	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(&tx{d: s.data}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (d *data) clone() *data {
	c := newData()
	c.seq = d.seq
	for k, v := range d.rowSeq {
		c.rowSeq[k] = v
	}
	for k, v := range d.variants {
		c.variants[k] = v
	}
	for k, v := range d.ledgers {
		c.ledgers[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = append([]domain.StockBatch(nil), v...)
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.orderLines {
		c.orderLines[k] = v
	}
	for k, v := range d.discounts {
		c.discounts[k] = cloneDiscount(v)
	}
	for k, v := range d.coupons {
		c.coupons[k] = cloneCoupon(v)
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	c.pointTxs = append([]domain.PointTransaction(nil), d.pointTxs...)
	for k, v := range d.rewards {
		c.rewards[k] = v
	}
	for k, v := range d.tiers {
		c.tiers[k] = v
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.purchases {
		c.purchases[k] = v
	}
	for k, v := range d.purchaseLines {
		c.purchaseLines[k] = v
	}
	for k, v := range d.returns {
		c.returns[k] = v
	}
	for k, v := range d.returnLines {
		c.returnLines[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.units {
		c.units[k] = v
	}
	return c
}

func cloneDiscount(d domain.Discount) domain.Discount {
	d.UsageLimit = cloneLimit(d.UsageLimit)
	d.Conditions = append([]domain.PromotionCondition(nil), d.Conditions...)
	return d
}

func cloneCoupon(c domain.Coupon) domain.Coupon {
	c.UsageLimit = cloneLimit(c.UsageLimit)
	return c
}

func cloneLimit(limit *int) *int {
	if limit == nil {
		return nil
	}
	v := *limit
	return &v
}

type tx struct {
	d *data
}

func (t *tx) track(id string) {
	if _, ok := t.d.rowSeq[id]; ok {
		return
	}
	t.d.seq++
	t.d.rowSeq[id] = t.d.seq
}

func (t *tx) sortBySeq(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return t.d.rowSeq[ids[i]] < t.d.rowSeq[ids[j]]
	})
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
}

func duplicate(kind string, id string) error {
	return fmt.Errorf("%w: %s %s already exists", store.ErrInvalidInput, kind, id)
}

// Catalog

func (t *tx) GetVariant(_ context.Context, id string) (*domain.Variant, error) {
	v, ok := t.d.variants[id]
	if !ok {
		return nil, notFound("variant", id)
	}
	return &v, nil
}

func (t *tx) InsertVariant(_ context.Context, variant domain.Variant) error {
	if _, ok := t.d.variants[variant.ID]; ok {
		return duplicate("variant", variant.ID)
	}
	t.d.variants[variant.ID] = variant
	return nil
}

func (t *tx) UpdateVariantCost(_ context.Context, id string, cost decimal.Decimal) error {
	v, ok := t.d.variants[id]
	if !ok {
		return notFound("variant", id)
	}
	v.CostPrice = cost
	t.d.variants[id] = v
	return nil
}

func (t *tx) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	c, ok := t.d.categories[id]
	if !ok {
		return nil, notFound("category", id)
	}
	return &c, nil
}

func (t *tx) InsertCategory(_ context.Context, category domain.Category) error {
	if _, ok := t.d.categories[category.ID]; ok {
		return duplicate("category", category.ID)
	}
	t.d.categories[category.ID] = category
	return nil
}

func (t *tx) UpdateCategoryParent(_ context.Context, id string, parentID string) error {
	c, ok := t.d.categories[id]
	if !ok {
		return notFound("category", id)
	}
	c.ParentID = parentID
	t.d.categories[id] = c
	return nil
}

func (t *tx) GetUnit(_ context.Context, id string) (*domain.Unit, error) {
	u, ok := t.d.units[id]
	if !ok {
		return nil, notFound("unit", id)
	}
	return &u, nil
}

func (t *tx) InsertUnit(_ context.Context, unit domain.Unit) error {
	if _, ok := t.d.units[unit.ID]; ok {
		return duplicate("unit", unit.ID)
	}
	t.d.units[unit.ID] = unit
	return nil
}

func (t *tx) UpdateUnitReference(_ context.Context, id string, referenceID string) error {
	u, ok := t.d.units[id]
	if !ok {
		return notFound("unit", id)
	}
	u.ReferenceUnitID = referenceID
	t.d.units[id] = u
	return nil
}

// Stock

func (t *tx) LockLedger(_ context.Context, variantID string) (*domain.InventoryLedger, error) {
	l, ok := t.d.ledgers[variantID]
	if !ok {
		return nil, notFound("ledger", variantID)
	}
	return &l, nil
}

func (t *tx) SaveLedger(_ context.Context, ledger domain.InventoryLedger) error {
	t.d.ledgers[ledger.VariantID] = ledger
	return nil
}

func (t *tx) EnsureLedger(_ context.Context, variantID string) error {
	if _, ok := t.d.ledgers[variantID]; !ok {
		t.d.ledgers[variantID] = domain.InventoryLedger{VariantID: variantID}
	}
	return nil
}

func (t *tx) LockBatches(_ context.Context, variantID string) ([]domain.StockBatch, error) {
	batches := append([]domain.StockBatch(nil), t.d.batches[variantID]...)
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].ReceivedAt.Before(batches[j].ReceivedAt)
	})
	return batches, nil
}

func (t *tx) InsertBatch(_ context.Context, batch domain.StockBatch) error {
	t.d.batches[batch.VariantID] = append(t.d.batches[batch.VariantID], batch)
	return nil
}

func (t *tx) UpdateBatchQty(_ context.Context, batchID string, qty int) error {
	for variantID, batches := range t.d.batches {
		for i := range batches {
			if batches[i].ID == batchID {
				t.d.batches[variantID][i].Qty = qty
				return nil
			}
		}
	}
	return notFound("batch", batchID)
}

// Orders

func (t *tx) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	o.Lines = t.orderLines(id)
	return &o, nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) orderLines(orderID string) []domain.OrderLine {
	ids := make([]string, 0)
	for id, line := range t.d.orderLines {
		if line.OrderID == orderID {
			ids = append(ids, id)
		}
	}
	t.sortBySeq(ids)
	lines := make([]domain.OrderLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, t.d.orderLines[id])
	}
	return lines
}

func (t *tx) InsertOrder(_ context.Context, order domain.Order) error {
	if _, ok := t.d.orders[order.ID]; ok {
		return duplicate("order", order.ID)
	}
	order.Lines = nil
	t.d.orders[order.ID] = order
	return nil
}

func (t *tx) UpdateOrder(_ context.Context, order domain.Order) error {
	if _, ok := t.d.orders[order.ID]; !ok {
		return notFound("order", order.ID)
	}
	order.Lines = nil
	t.d.orders[order.ID] = order
	return nil
}

func (t *tx) InsertOrderLine(_ context.Context, line domain.OrderLine) error {
	if _, ok := t.d.orders[line.OrderID]; !ok {
		return notFound("order", line.OrderID)
	}
	if _, ok := t.d.orderLines[line.ID]; ok {
		return duplicate("order line", line.ID)
	}
	t.d.orderLines[line.ID] = line
	t.track(line.ID)
	return nil
}

func (t *tx) UpdateOrderLine(_ context.Context, line domain.OrderLine) error {
	if _, ok := t.d.orderLines[line.ID]; !ok {
		return notFound("order line", line.ID)
	}
	t.d.orderLines[line.ID] = line
	return nil
}

func (t *tx) DeleteOrderLine(_ context.Context, lineID string) error {
	if _, ok := t.d.orderLines[lineID]; !ok {
		return notFound("order line", lineID)
	}
	delete(t.d.orderLines, lineID)
	delete(t.d.rowSeq, lineID)
	return nil
}

func (t *tx) MoveOrderLines(_ context.Context, fromOrderID string, toOrderID string) error {
	if _, ok := t.d.orders[toOrderID]; !ok {
		return notFound("order", toOrderID)
	}
	for id, line := range t.d.orderLines {
		if line.OrderID == fromOrderID {
			line.OrderID = toOrderID
			t.d.orderLines[id] = line
		}
	}
	return nil
}

// Promotions

func (t *tx) GetDiscount(_ context.Context, id string) (*domain.Discount, error) {
	d, ok := t.d.discounts[id]
	if !ok {
		return nil, notFound("discount", id)
	}
	d = cloneDiscount(d)
	return &d, nil
}

func (t *tx) LockDiscount(ctx context.Context, id string) (*domain.Discount, error) {
	return t.GetDiscount(ctx, id)
}

func (t *tx) InsertDiscount(_ context.Context, discount domain.Discount) error {
	if _, ok := t.d.discounts[discount.ID]; ok {
		return duplicate("discount", discount.ID)
	}
	t.d.discounts[discount.ID] = cloneDiscount(discount)
	return nil
}

func (t *tx) UpdateDiscountUsage(_ context.Context, id string, usageLimit *int) error {
	d, ok := t.d.discounts[id]
	if !ok {
		return notFound("discount", id)
	}
	d.UsageLimit = cloneLimit(usageLimit)
	t.d.discounts[id] = d
	return nil
}

func (t *tx) GetCoupon(_ context.Context, id string) (*domain.Coupon, error) {
	c, ok := t.d.coupons[id]
	if !ok {
		return nil, notFound("coupon", id)
	}
	c = cloneCoupon(c)
	return &c, nil
}

func (t *tx) LockCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return t.GetCoupon(ctx, id)
}

func (t *tx) InsertCoupon(_ context.Context, coupon domain.Coupon) error {
	if _, ok := t.d.coupons[coupon.ID]; ok {
		return duplicate("coupon", coupon.ID)
	}
	for _, existing := range t.d.coupons {
		if strings.EqualFold(existing.Code, coupon.Code) {
			return duplicate("coupon code", coupon.Code)
		}
	}
	t.d.coupons[coupon.ID] = cloneCoupon(coupon)
	return nil
}

func (t *tx) UpdateCouponUsage(_ context.Context, id string, usageLimit *int) error {
	c, ok := t.d.coupons[id]
	if !ok {
		return notFound("coupon", id)
	}
	c.UsageLimit = cloneLimit(usageLimit)
	t.d.coupons[id] = c
	return nil
}

// Customers and loyalty

func (t *tx) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := t.d.customers[id]
	if !ok {
		return nil, notFound("customer", id)
	}
	return &c, nil
}

func (t *tx) LockCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return t.GetCustomer(ctx, id)
}

func (t *tx) ListCustomersByTier(_ context.Context, tierID string) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0)
	for _, c := range t.d.customers {
		if c.TierID == tierID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) InsertCustomer(_ context.Context, customer domain.Customer) error {
	if _, ok := t.d.customers[customer.ID]; ok {
		return duplicate("customer", customer.ID)
	}
	t.d.customers[customer.ID] = customer
	return nil
}

func (t *tx) UpdateCustomer(_ context.Context, customer domain.Customer) error {
	if _, ok := t.d.customers[customer.ID]; !ok {
		return notFound("customer", customer.ID)
	}
	t.d.customers[customer.ID] = customer
	return nil
}

func (t *tx) LockLoyaltyAccount(_ context.Context, customerID string) (*domain.LoyaltyAccount, error) {
	a, ok := t.d.accounts[customerID]
	if !ok {
		return nil, notFound("loyalty account", customerID)
	}
	return &a, nil
}

func (t *tx) ListLoyaltyAccountsFrom(_ context.Context, minPoints int64) ([]domain.LoyaltyAccount, error) {
	out := make([]domain.LoyaltyAccount, 0)
	for _, a := range t.d.accounts {
		if a.Points >= minPoints {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (t *tx) SaveLoyaltyAccount(_ context.Context, account domain.LoyaltyAccount) error {
	if _, ok := t.d.customers[account.CustomerID]; !ok {
		return notFound("customer", account.CustomerID)
	}
	t.d.accounts[account.CustomerID] = account
	return nil
}

func (t *tx) InsertPointTransaction(_ context.Context, entry domain.PointTransaction) error {
	t.d.pointTxs = append(t.d.pointTxs, entry)
	return nil
}

func (t *tx) ListPointTransactions(_ context.Context, customerID string) ([]domain.PointTransaction, error) {
	out := make([]domain.PointTransaction, 0)
	for _, entry := range t.d.pointTxs {
		if entry.CustomerID == customerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (t *tx) FindLoyaltyReward(_ context.Context, tierID string, couponID string) (*domain.LoyaltyReward, error) {
	ids := make([]string, 0, len(t.d.rewards))
	for id := range t.d.rewards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := t.d.rewards[id]
		if r.TierID == tierID && r.CouponID == couponID {
			return &r, nil
		}
	}
	return nil, notFound("loyalty reward", tierID+"/"+couponID)
}

func (t *tx) InsertLoyaltyReward(_ context.Context, reward domain.LoyaltyReward) error {
	if _, ok := t.d.rewards[reward.ID]; ok {
		return duplicate("loyalty reward", reward.ID)
	}
	t.d.rewards[reward.ID] = reward
	return nil
}

func (t *tx) ListRewardTiers(_ context.Context) ([]domain.RewardTier, error) {
	out := make([]domain.RewardTier, 0, len(t.d.tiers))
	for _, tier := range t.d.tiers {
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinPoints == out[j].MinPoints {
			return out[i].ID < out[j].ID
		}
		return out[i].MinPoints > out[j].MinPoints
	})
	return out, nil
}

func (t *tx) GetRewardTier(_ context.Context, id string) (*domain.RewardTier, error) {
	tier, ok := t.d.tiers[id]
	if !ok {
		return nil, notFound("reward tier", id)
	}
	return &tier, nil
}

func (t *tx) LockRewardTier(ctx context.Context, id string) (*domain.RewardTier, error) {
	return t.GetRewardTier(ctx, id)
}

func (t *tx) InsertRewardTier(_ context.Context, tier domain.RewardTier) error {
	if _, ok := t.d.tiers[tier.ID]; ok {
		return duplicate("reward tier", tier.ID)
	}
	if err := t.checkTierThreshold(tier); err != nil {
		return err
	}
	t.d.tiers[tier.ID] = tier
	return nil
}

func (t *tx) UpdateRewardTier(_ context.Context, tier domain.RewardTier) error {
	if _, ok := t.d.tiers[tier.ID]; !ok {
		return notFound("reward tier", tier.ID)
	}
	if err := t.checkTierThreshold(tier); err != nil {
		return err
	}
	t.d.tiers[tier.ID] = tier
	return nil
}

func (t *tx) checkTierThreshold(tier domain.RewardTier) error {
	for _, existing := range t.d.tiers {
		if existing.ID != tier.ID && existing.MinPoints == tier.MinPoints {
			return fmt.Errorf("%w: reward tier min points %d already used by %s", store.ErrInvalidInput, tier.MinPoints, existing.ID)
		}
	}
	return nil
}

// Invoices

func (t *tx) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	inv, ok := t.d.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	return &inv, nil
}

func (t *tx) LockInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return t.GetInvoice(ctx, id)
}

func (t *tx) GetInvoiceByOrder(_ context.Context, orderID string) (*domain.Invoice, error) {
	for _, inv := range t.d.invoices {
		if inv.OrderID == orderID {
			return &inv, nil
		}
	}
	return nil, notFound("invoice for order", orderID)
}

func (t *tx) InsertInvoice(ctx context.Context, invoice domain.Invoice) error {
	if _, err := t.GetInvoiceByOrder(ctx, invoice.OrderID); err == nil {
		return duplicate("invoice for order", invoice.OrderID)
	}
	t.d.invoices[invoice.ID] = invoice
	return nil
}

func (t *tx) UpdateInvoice(_ context.Context, invoice domain.Invoice) error {
	if _, ok := t.d.invoices[invoice.ID]; !ok {
		return notFound("invoice", invoice.ID)
	}
	t.d.invoices[invoice.ID] = invoice
	return nil
}

// Purchasing

func (t *tx) GetPurchaseOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	po, ok := t.d.purchases[id]
	if !ok {
		return nil, notFound("purchase order", id)
	}
	ids := make([]string, 0)
	for lineID, line := range t.d.purchaseLines {
		if line.PurchaseOrderID == id {
			ids = append(ids, lineID)
		}
	}
	t.sortBySeq(ids)
	po.Lines = make([]domain.PurchaseLine, 0, len(ids))
	for _, lineID := range ids {
		po.Lines = append(po.Lines, t.d.purchaseLines[lineID])
	}
	return &po, nil
}

func (t *tx) LockPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return t.GetPurchaseOrder(ctx, id)
}

func (t *tx) InsertPurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if _, ok := t.d.purchases[po.ID]; ok {
		return duplicate("purchase order", po.ID)
	}
	po.Lines = nil
	t.d.purchases[po.ID] = po
	return nil
}

func (t *tx) UpdatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if _, ok := t.d.purchases[po.ID]; !ok {
		return notFound("purchase order", po.ID)
	}
	po.Lines = nil
	t.d.purchases[po.ID] = po
	return nil
}

func (t *tx) InsertPurchaseLine(_ context.Context, line domain.PurchaseLine) error {
	if _, ok := t.d.purchases[line.PurchaseOrderID]; !ok {
		return notFound("purchase order", line.PurchaseOrderID)
	}
	t.d.purchaseLines[line.ID] = line
	t.track(line.ID)
	return nil
}

func (t *tx) UpdatePurchaseLine(_ context.Context, line domain.PurchaseLine) error {
	if _, ok := t.d.purchaseLines[line.ID]; !ok {
		return notFound("purchase line", line.ID)
	}
	t.d.purchaseLines[line.ID] = line
	return nil
}

// Returns

func (t *tx) GetReturnOrder(_ context.Context, id string) (*domain.ReturnOrder, error) {
	ret, ok := t.d.returns[id]
	if !ok {
		return nil, notFound("return order", id)
	}
	ids := make([]string, 0)
	for lineID, line := range t.d.returnLines {
		if line.ReturnOrderID == id {
			ids = append(ids, lineID)
		}
	}
	t.sortBySeq(ids)
	ret.Lines = make([]domain.ReturnLine, 0, len(ids))
	for _, lineID := range ids {
		ret.Lines = append(ret.Lines, t.d.returnLines[lineID])
	}
	return &ret, nil
}

func (t *tx) InsertReturnOrder(_ context.Context, ret domain.ReturnOrder) error {
	if _, ok := t.d.returns[ret.ID]; ok {
		return duplicate("return order", ret.ID)
	}
	ret.Lines = nil
	t.d.returns[ret.ID] = ret
	return nil
}

func (t *tx) InsertReturnLine(_ context.Context, line domain.ReturnLine) error {
	if _, ok := t.d.returns[line.ReturnOrderID]; !ok {
		return notFound("return order", line.ReturnOrderID)
	}
	t.d.returnLines[line.ID] = line
	t.track(line.ID)
	return nil
}

func (t *tx) ReturnedQtyByOrder(_ context.Context, orderID string) (map[string]int, error) {
	out := make(map[string]int)
	for _, line := range t.d.returnLines {
		ret, ok := t.d.returns[line.ReturnOrderID]
		if !ok || ret.OrderID != orderID {
			continue
		}
		out[line.VariantID] += line.Qty
	}
	return out, nil
}
