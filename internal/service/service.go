package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/inventory"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/promotion"
	"posledger/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	DefaultTier      loyalty.DefaultTierPolicy
	TierCache        loyalty.LadderCache
	Logger           *zap.Logger
	Clock            func() time.Time
	ReturnExpiryDays int
}

type Service struct {
	repo         store.Store
	stock        *inventory.Stock
	promos       *promotion.Engine
	loyalty      *loyalty.Engine
	log          *zap.Logger
	now          func() time.Time
	returnExpiry int
}

func New(repo store.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReturnExpiryDays < 1 {
		opts.ReturnExpiryDays = 180
	}

	stock := inventory.NewStock(opts.Clock)
	return &Service{
		repo:         repo,
		stock:        stock,
		promos:       promotion.New(stock, opts.Clock),
		loyalty:      loyalty.New(opts.DefaultTier, opts.TierCache, opts.Logger.Named("loyalty"), opts.Clock),
		log:          opts.Logger.Named("service"),
		now:          opts.Clock,
		returnExpiry: opts.ReturnExpiryDays,
	}
}

func (s *Service) actorID(ctx context.Context, explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		return explicit
	}
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.EmployeeID
	}
	return ""
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{store.ErrInvalidInput}, args...)...)
}

func badState(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{store.ErrInvalidStateTransition}, args...)...)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// logger prefers the request-scoped logger so entries carry the request id.
func (s *Service) logger(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.log)
}
