package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"

	"posledger/backend/internal/domain"
)

var (
	customerColumns = []string{"id", "name", "phone", optional("tier_id"), "debt_amount", "created_at"}
	accountColumns  = []string{"customer_id", "points", "last_updated"}
	pointColumns    = []string{"id", "customer_id", "order_id", "points_earned", "points_used", "created_at"}
	rewardColumns   = []string{"id", "tier_id", "coupon_id", "points_required"}
	tierColumns     = []string{"id", "name", "min_points", "exchange_rate"}
)

func (t *tx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return t.loadCustomer(ctx, id, "")
}

func (t *tx) LockCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return t.loadCustomer(ctx, id, "FOR UPDATE")
}

func (t *tx) loadCustomer(ctx context.Context, id string, suffix string) (*domain.Customer, error) {
	var c domain.Customer
	q := t.sb.Select(customerColumns...).From("customers").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &c, q); err != nil {
		return nil, missing(err, "customer", id)
	}
	return &c, nil
}

func (t *tx) ListCustomersByTier(ctx context.Context, tierID string) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0)
	q := t.sb.Select(customerColumns...).From("customers").OrderBy("id")
	if tierID == "" {
		q = q.Where(squirrel.Eq{"tier_id": nil})
	} else {
		q = q.Where(squirrel.Eq{"tier_id": tierID})
	}
	if err := t.selectRows(ctx, &customers, q); err != nil {
		return nil, err
	}
	return customers, nil
}

func (t *tx) InsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := t.exec(ctx, t.sb.Insert("customers").
		Columns("id", "name", "phone", "tier_id", "debt_amount", "created_at").
		Values(c.ID, c.Name, c.Phone, nullable(c.TierID), c.DebtAmount, c.CreatedAt))
	return err
}

func (t *tx) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	return t.update(ctx, t.sb.Update("customers").SetMap(map[string]any{
		"name":        c.Name,
		"phone":       c.Phone,
		"tier_id":     nullable(c.TierID),
		"debt_amount": c.DebtAmount,
	}).Where(squirrel.Eq{"id": c.ID}), "customer", c.ID)
}

func (t *tx) LockLoyaltyAccount(ctx context.Context, customerID string) (*domain.LoyaltyAccount, error) {
	var a domain.LoyaltyAccount
	q := t.sb.Select(accountColumns...).From("loyalty_accounts").
		Where(squirrel.Eq{"customer_id": customerID}).
		Suffix("FOR UPDATE")
	if err := t.get(ctx, &a, q); err != nil {
		return nil, missing(err, "loyalty account", customerID)
	}
	return &a, nil
}

func (t *tx) ListLoyaltyAccountsFrom(ctx context.Context, minPoints int64) ([]domain.LoyaltyAccount, error) {
	accounts := make([]domain.LoyaltyAccount, 0)
	q := t.sb.Select(accountColumns...).From("loyalty_accounts").
		Where(squirrel.GtOrEq{"points": minPoints}).
		OrderBy("customer_id")
	if err := t.selectRows(ctx, &accounts, q); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (t *tx) SaveLoyaltyAccount(ctx context.Context, a domain.LoyaltyAccount) error {
	_, err := t.exec(ctx, t.sb.Insert("loyalty_accounts").
		Columns(accountColumns...).
		Values(a.CustomerID, a.Points, a.LastUpdated).
		Suffix("ON CONFLICT (customer_id) DO UPDATE SET points = EXCLUDED.points, last_updated = EXCLUDED.last_updated"))
	return err
}

func (t *tx) InsertPointTransaction(ctx context.Context, p domain.PointTransaction) error {
	_, err := t.exec(ctx, t.sb.Insert("point_transactions").
		Columns(pointColumns...).
		Values(p.ID, p.CustomerID, p.OrderID, p.PointsEarned, p.PointsUsed, p.CreatedAt))
	return err
}

func (t *tx) ListPointTransactions(ctx context.Context, customerID string) ([]domain.PointTransaction, error) {
	entries := make([]domain.PointTransaction, 0)
	q := t.sb.Select(pointColumns...).From("point_transactions").
		Where(squirrel.Eq{"customer_id": customerID}).
		OrderBy("created_at", "id")
	if err := t.selectRows(ctx, &entries, q); err != nil {
		return nil, err
	}
	return entries, nil
}

func (t *tx) FindLoyaltyReward(ctx context.Context, tierID string, couponID string) (*domain.LoyaltyReward, error) {
	var r domain.LoyaltyReward
	q := t.sb.Select(rewardColumns...).From("loyalty_rewards").
		Where(squirrel.Eq{"tier_id": tierID, "coupon_id": couponID})
	if err := t.get(ctx, &r, q); err != nil {
		return nil, missing(err, "loyalty reward", tierID+"/"+couponID)
	}
	return &r, nil
}

func (t *tx) InsertLoyaltyReward(ctx context.Context, r domain.LoyaltyReward) error {
	_, err := t.exec(ctx, t.sb.Insert("loyalty_rewards").
		Columns(rewardColumns...).
		Values(r.ID, r.TierID, r.CouponID, r.PointsRequired))
	return err
}

func (t *tx) ListRewardTiers(ctx context.Context) ([]domain.RewardTier, error) {
	tiers := make([]domain.RewardTier, 0)
	q := t.sb.Select(tierColumns...).From("reward_tiers").OrderBy("min_points DESC", "id")
	if err := t.selectRows(ctx, &tiers, q); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (t *tx) GetRewardTier(ctx context.Context, id string) (*domain.RewardTier, error) {
	return t.loadRewardTier(ctx, id, "")
}

func (t *tx) LockRewardTier(ctx context.Context, id string) (*domain.RewardTier, error) {
	return t.loadRewardTier(ctx, id, "FOR UPDATE")
}

func (t *tx) loadRewardTier(ctx context.Context, id string, suffix string) (*domain.RewardTier, error) {
	var tier domain.RewardTier
	q := t.sb.Select(tierColumns...).From("reward_tiers").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	if err := t.get(ctx, &tier, q); err != nil {
		return nil, missing(err, "reward tier", id)
	}
	return &tier, nil
}

func (t *tx) InsertRewardTier(ctx context.Context, tier domain.RewardTier) error {
	_, err := t.exec(ctx, t.sb.Insert("reward_tiers").
		Columns(tierColumns...).
		Values(tier.ID, tier.Name, tier.MinPoints, tier.ExchangeRate))
	return err
}

func (t *tx) UpdateRewardTier(ctx context.Context, tier domain.RewardTier) error {
	return t.update(ctx, t.sb.Update("reward_tiers").SetMap(map[string]any{
		"name":          tier.Name,
		"min_points":    tier.MinPoints,
		"exchange_rate": tier.ExchangeRate,
	}).Where(squirrel.Eq{"id": tier.ID}), "reward tier", tier.ID)
}
