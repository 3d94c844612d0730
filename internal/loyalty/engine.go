package loyalty

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// LadderCache holds the reward tier ladder between invoices. Entries are
// ordered by MinPoints descending.
type LadderCache interface {
	GetLadder(ctx context.Context) ([]domain.RewardTier, bool, error)
	SetLadder(ctx context.Context, ladder []domain.RewardTier) error
	InvalidateLadder(ctx context.Context) error
}

// Result is the outcome of crediting one invoice to a customer.
type Result struct {
	Transaction domain.PointTransaction `json:"transaction"`
	Balance     int64                   `json:"balance"`
	TierID      string                  `json:"tier_id,omitempty"`
}

type Engine struct {
	defaults DefaultTierPolicy
	cache    LadderCache
	log      *zap.Logger
	now      func() time.Time
}

func New(defaults DefaultTierPolicy, cache LadderCache, log *zap.Logger, now func() time.Time) *Engine {
	if defaults == nil {
		defaults = NoDefaultTier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{defaults: defaults, cache: cache, log: log, now: now}
}

// InitialTier is the tier a new customer starts on.
func (e *Engine) InitialTier(ctx context.Context, tx store.LoyaltyTx) (string, error) {
	tier, err := e.defaults.DefaultTier(ctx, tx)
	if err != nil || tier == nil {
		return "", err
	}
	return tier.ID, nil
}

// Apply credits an invoice: points used by a tier reward tied to the order's
// coupon are spent, points earned at the tier's exchange rate are added and
// the customer's tier is recomputed from the new balance.
func (e *Engine) Apply(ctx context.Context, tx store.LoyaltyTx, customerID string, orderID string, couponID string, invoiceTotal decimal.Decimal) (Result, error) {
	customer, err := tx.LockCustomer(ctx, customerID)
	if err != nil {
		return Result{}, store.MissingReference(err)
	}

	tier, err := e.currentTier(ctx, tx, customer)
	if err != nil {
		return Result{}, err
	}

	var used int64
	if tier != nil && couponID != "" {
		reward, err := tx.FindLoyaltyReward(ctx, tier.ID, couponID)
		switch {
		case err == nil:
			used = reward.PointsRequired
		case !errors.Is(err, store.ErrNotFound):
			return Result{}, err
		}
	}
	earned := PointsEarned(invoiceTotal, tier)

	account, err := e.lockAccount(ctx, tx, customer.ID)
	if err != nil {
		return Result{}, err
	}
	balance := account.Points + earned - used
	if balance < 0 {
		return Result{}, fmt.Errorf("%w: customer %s has %d points, reward needs %d", store.ErrInvalidInput, customer.ID, account.Points+earned, used)
	}

	now := e.now().UTC()
	account.Points = balance
	account.LastUpdated = now
	if err := tx.SaveLoyaltyAccount(ctx, account); err != nil {
		return Result{}, err
	}

	entry := domain.PointTransaction{
		ID:           xid.New("ptx"),
		CustomerID:   customer.ID,
		OrderID:      orderID,
		PointsEarned: earned,
		PointsUsed:   used,
		CreatedAt:    now,
	}
	if err := tx.InsertPointTransaction(ctx, entry); err != nil {
		return Result{}, err
	}

	ladder, err := e.ladder(ctx, tx)
	if err != nil {
		return Result{}, err
	}
	next := TierFor(ladder, balance)
	if customer.TierID != next {
		e.log.Info("customer tier changed",
			zap.String("customer_id", customer.ID),
			zap.String("from", customer.TierID),
			zap.String("to", next),
			zap.Int64("points", balance))
		customer.TierID = next
		if err := tx.UpdateCustomer(ctx, *customer); err != nil {
			return Result{}, err
		}
	}

	return Result{Transaction: entry, Balance: balance, TierID: next}, nil
}

// OnTierCreated reassigns every account that holds at least the new tier's
// threshold. It returns the number of customers whose tier changed.
func (e *Engine) OnTierCreated(ctx context.Context, tx store.LoyaltyTx, tier domain.RewardTier) (int, error) {
	accounts, err := tx.ListLoyaltyAccountsFrom(ctx, tier.MinPoints)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.CustomerID)
	}
	return e.reassign(ctx, tx, ids)
}

// OnTierUpdated re-evaluates the customers sitting on the tier when its
// threshold moved. A lowered threshold also sweeps accounts that now reach it.
func (e *Engine) OnTierUpdated(ctx context.Context, tx store.LoyaltyTx, before domain.RewardTier, after domain.RewardTier) (int, error) {
	if before.MinPoints == after.MinPoints {
		return 0, nil
	}
	members, err := tx.ListCustomersByTier(ctx, after.ID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(members))
	for _, c := range members {
		ids = append(ids, c.ID)
	}
	if after.MinPoints < before.MinPoints {
		accounts, err := tx.ListLoyaltyAccountsFrom(ctx, after.MinPoints)
		if err != nil {
			return 0, err
		}
		for _, a := range accounts {
			ids = append(ids, a.CustomerID)
		}
	}
	return e.reassign(ctx, tx, ids)
}

// InvalidateLadder drops the cached ladder. Call it after a tier write commits.
func (e *Engine) InvalidateLadder(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateLadder(ctx); err != nil {
		e.log.Warn("tier ladder invalidation failed", zap.Error(err))
	}
}

func (e *Engine) reassign(ctx context.Context, tx store.LoyaltyTx, customerIDs []string) (int, error) {
	ladder, err := tx.ListRewardTiers(ctx)
	if err != nil {
		return 0, err
	}

	sort.Strings(customerIDs)
	changed := 0
	last := ""
	for _, id := range customerIDs {
		if id == last {
			continue
		}
		last = id

		customer, err := tx.LockCustomer(ctx, id)
		if err != nil {
			return changed, err
		}
		account, err := e.lockAccount(ctx, tx, id)
		if err != nil {
			return changed, err
		}
		next := TierFor(ladder, account.Points)
		if customer.TierID == next {
			continue
		}
		customer.TierID = next
		if err := tx.UpdateCustomer(ctx, *customer); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (e *Engine) currentTier(ctx context.Context, tx store.LoyaltyTx, customer *domain.Customer) (*domain.RewardTier, error) {
	if customer.TierID == "" {
		return e.defaults.DefaultTier(ctx, tx)
	}
	tier, err := tx.GetRewardTier(ctx, customer.TierID)
	if errors.Is(err, store.ErrNotFound) {
		return e.defaults.DefaultTier(ctx, tx)
	}
	return tier, err
}

func (e *Engine) lockAccount(ctx context.Context, tx store.LoyaltyTx, customerID string) (domain.LoyaltyAccount, error) {
	account, err := tx.LockLoyaltyAccount(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoyaltyAccount{CustomerID: customerID}, nil
	}
	if err != nil {
		return domain.LoyaltyAccount{}, err
	}
	return *account, nil
}

func (e *Engine) ladder(ctx context.Context, tx store.LoyaltyTx) ([]domain.RewardTier, error) {
	if e.cache != nil {
		ladder, ok, err := e.cache.GetLadder(ctx)
		if err != nil {
			e.log.Warn("tier ladder cache read failed", zap.Error(err))
		} else if ok {
			return ladder, nil
		}
	}

	ladder, err := tx.ListRewardTiers(ctx)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.SetLadder(ctx, ladder); err != nil {
			e.log.Warn("tier ladder cache write failed", zap.Error(err))
		}
	}
	return ladder, nil
}

// PointsEarned floors total / exchange rate. A missing tier or a rate that is
// not positive earns one point per currency unit.
func PointsEarned(total decimal.Decimal, tier *domain.RewardTier) int64 {
	rate := decimal.NewFromInt(1)
	if tier != nil && tier.ExchangeRate.IsPositive() {
		rate = tier.ExchangeRate
	}
	if !total.IsPositive() {
		return 0
	}
	return total.Div(rate).Floor().IntPart()
}

// TierFor returns the first tier of a descending ladder whose threshold the
// balance reaches, or "" when none does.
func TierFor(ladder []domain.RewardTier, points int64) string {
	for _, tier := range ladder {
		if tier.MinPoints <= points {
			return tier.ID
		}
	}
	return ""
}
