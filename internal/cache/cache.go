package cache

import (
	"context"

	"posledger/backend/internal/domain"
)

type TierCache interface {
	GetLadder(ctx context.Context) ([]domain.RewardTier, bool, error)
	SetLadder(ctx context.Context, ladder []domain.RewardTier) error
	InvalidateLadder(ctx context.Context) error
}

type NoopTierCache struct{}

func (NoopTierCache) GetLadder(_ context.Context) ([]domain.RewardTier, bool, error) {
	return nil, false, nil
}

func (NoopTierCache) SetLadder(_ context.Context, _ []domain.RewardTier) error {
	return nil
}

func (NoopTierCache) InvalidateLadder(_ context.Context) error {
	return nil
}
