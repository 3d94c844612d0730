package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// DefaultTierPolicy decides which tier applies to a customer that has none.
// A nil tier with a nil error means "no tier".
type DefaultTierPolicy interface {
	DefaultTier(ctx context.Context, tx store.LoyaltyTx) (*domain.RewardTier, error)
}

type NoDefaultTier struct{}

func (NoDefaultTier) DefaultTier(context.Context, store.LoyaltyTx) (*domain.RewardTier, error) {
	return nil, nil
}

// FixedTier names the default tier by id.
type FixedTier string

func (f FixedTier) DefaultTier(ctx context.Context, tx store.LoyaltyTx) (*domain.RewardTier, error) {
	tier, err := tx.GetRewardTier(ctx, string(f))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("default reward tier %q is not configured: %w", string(f), err)
	}
	return tier, err
}

// EntryTier uses the tier with the lowest threshold.
type EntryTier struct{}

func (EntryTier) DefaultTier(ctx context.Context, tx store.LoyaltyTx) (*domain.RewardTier, error) {
	ladder, err := tx.ListRewardTiers(ctx)
	if err != nil || len(ladder) == 0 {
		return nil, err
	}
	tier := ladder[len(ladder)-1]
	return &tier, nil
}

// PolicyFromConfig maps the DEFAULT_TIER_ID setting: empty disables the
// default, "entry" picks the lowest tier, anything else is a tier id.
func PolicyFromConfig(value string) DefaultTierPolicy {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return NoDefaultTier{}
	case "entry":
		return EntryTier{}
	default:
		return FixedTier(value)
	}
}
