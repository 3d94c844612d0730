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

// CreateCustomer opens a customer together with an empty loyalty account on
// the configured default tier.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, invalid("customer name is required")
	}

	var created domain.Customer
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		tierID, err := s.loyalty.InitialTier(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		customer := domain.Customer{
			ID:         xid.New("cus"),
			Name:       name,
			Phone:      strings.TrimSpace(req.Phone),
			TierID:     tierID,
			DebtAmount: decimal.Zero,
			CreatedAt:  now,
		}
		if err := tx.InsertCustomer(ctx, customer); err != nil {
			return err
		}
		if err := tx.SaveLoyaltyAccount(ctx, domain.LoyaltyAccount{CustomerID: customer.ID, LastUpdated: now}); err != nil {
			return err
		}
		created = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger(ctx).Info("customer created", zap.String("customer_id", created.ID), zap.String("tier_id", created.TierID))
	return created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.CustomerProfile, error) {
	var profile domain.CustomerProfile
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		customer, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		profile.Customer = *customer
		profile.Account = domain.LoyaltyAccount{CustomerID: customer.ID}
		if account, err := tx.LockLoyaltyAccount(ctx, customer.ID); err == nil {
			profile.Account = *account
		}
		entries, err := tx.ListPointTransactions(ctx, customer.ID)
		if err != nil {
			return err
		}
		profile.Transactions = entries
		return nil
	})
	return profile, err
}

// CreateRewardTier adds a rung to the ladder and moves every account that
// already reaches it.
func (s *Service) CreateRewardTier(ctx context.Context, req domain.RewardTierRequest) (domain.RewardTier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RewardTier{}, invalid("tier name is required")
	}
	if req.MinPoints < 0 {
		return domain.RewardTier{}, invalid("tier threshold cannot be negative")
	}
	if req.ExchangeRate.IsNegative() {
		return domain.RewardTier{}, invalid("tier exchange rate cannot be negative")
	}

	tier := domain.RewardTier{
		ID:           xid.New("tier"),
		Name:         name,
		MinPoints:    req.MinPoints,
		ExchangeRate: req.ExchangeRate,
	}
	var moved int
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertRewardTier(ctx, tier); err != nil {
			return err
		}
		n, err := s.loyalty.OnTierCreated(ctx, tx, tier)
		moved = n
		return err
	})
	if err != nil {
		return domain.RewardTier{}, err
	}
	s.loyalty.InvalidateLadder(ctx)

	s.logger(ctx).Info("reward tier created",
		zap.String("tier_id", tier.ID),
		zap.Int64("min_points", tier.MinPoints),
		zap.Int("customers_moved", moved))
	return tier, nil
}

func (s *Service) UpdateRewardTier(ctx context.Context, id string, req domain.RewardTierUpdateRequest) (domain.RewardTier, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return domain.RewardTier{}, invalid("tier name cannot be empty")
	}
	if req.MinPoints != nil && *req.MinPoints < 0 {
		return domain.RewardTier{}, invalid("tier threshold cannot be negative")
	}
	if req.ExchangeRate != nil && req.ExchangeRate.IsNegative() {
		return domain.RewardTier{}, invalid("tier exchange rate cannot be negative")
	}

	var updated domain.RewardTier
	var moved int
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		current, err := tx.LockRewardTier(ctx, id)
		if err != nil {
			return err
		}
		before := *current
		after := *current
		if req.Name != nil {
			after.Name = strings.TrimSpace(*req.Name)
		}
		if req.MinPoints != nil {
			after.MinPoints = *req.MinPoints
		}
		if req.ExchangeRate != nil {
			after.ExchangeRate = *req.ExchangeRate
		}
		if err := tx.UpdateRewardTier(ctx, after); err != nil {
			return err
		}
		n, err := s.loyalty.OnTierUpdated(ctx, tx, before, after)
		if err != nil {
			return err
		}
		moved = n
		updated = after
		return nil
	})
	if err != nil {
		return domain.RewardTier{}, err
	}
	s.loyalty.InvalidateLadder(ctx)

	s.logger(ctx).Info("reward tier updated",
		zap.String("tier_id", updated.ID),
		zap.Int64("min_points", updated.MinPoints),
		zap.Int("customers_moved", moved))
	return updated, nil
}

// CreateLoyaltyReward ties a coupon to a tier. Redeeming the coupon on an
// invoice spends the required points.
func (s *Service) CreateLoyaltyReward(ctx context.Context, req domain.LoyaltyRewardRequest) (domain.LoyaltyReward, error) {
	if req.PointsRequired < 0 {
		return domain.LoyaltyReward{}, invalid("points required cannot be negative")
	}

	reward := domain.LoyaltyReward{
		ID:             xid.New("rwd"),
		TierID:         strings.TrimSpace(req.TierID),
		CouponID:       strings.TrimSpace(req.CouponID),
		PointsRequired: req.PointsRequired,
	}
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetRewardTier(ctx, reward.TierID); err != nil {
			return store.MissingReference(err)
		}
		if _, err := tx.GetCoupon(ctx, reward.CouponID); err != nil {
			return store.MissingReference(err)
		}
		return tx.InsertLoyaltyReward(ctx, reward)
	})
	if err != nil {
		return domain.LoyaltyReward{}, err
	}
	return reward, nil
}
