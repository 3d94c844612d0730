package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// Stock moves quantities through the ledger and the batches together so the
// two stay reconciled inside one transaction.
type Stock struct {
	Ledger    *Ledger
	Allocator *Allocator
}

func NewStock(now func() time.Time) *Stock {
	return &Stock{
		Ledger:    NewLedger(now),
		Allocator: NewAllocator(now),
	}
}

// LockVariants takes the ledger locks and then the batch locks for every
// variant, in sorted order, so concurrent transactions on overlapping
// variants cannot deadlock.
func (s *Stock) LockVariants(ctx context.Context, tx store.StockTx, variantIDs []string) error {
	ids := uniqueSorted(variantIDs)
	for _, id := range ids {
		if _, err := tx.LockLedger(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	for _, id := range ids {
		if _, err := tx.LockBatches(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Reserve checks both the ledger balance and the batch total before writing
// either of them.
func (s *Stock) Reserve(ctx context.Context, tx store.StockTx, variantID string, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	row, err := s.Ledger.Lock(ctx, tx, variantID)
	if err != nil {
		return nil, err
	}
	batches, err := tx.LockBatches(ctx, variantID)
	if err != nil {
		return nil, err
	}
	available := min(row.Balance, Available(batches))
	if available < qty {
		return nil, fmt.Errorf("%w: variant %s requested %d, available %d", store.ErrInsufficientStock, variantID, qty, available)
	}

	if err := s.Ledger.Reserve(ctx, tx, variantID, qty); err != nil {
		return nil, err
	}
	return s.Allocator.Allocate(ctx, tx, variantID, qty)
}

func (s *Stock) Release(ctx context.Context, tx store.StockTx, variantID string, qty int) error {
	row, err := s.Ledger.Lock(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if err := s.Ledger.Release(ctx, tx, variantID, qty); err != nil {
		return err
	}
	return s.Allocator.Restore(ctx, tx, variantID, row.UnitID, qty)
}

// Receive books fresh stock as a new batch.
func (s *Stock) Receive(ctx context.Context, tx store.StockTx, batch domain.StockBatch) (domain.StockBatch, error) {
	if err := s.Ledger.Receive(ctx, tx, batch.VariantID, batch.UnitID, batch.Qty); err != nil {
		return domain.StockBatch{}, err
	}
	return s.Allocator.ReceiveNew(ctx, tx, batch)
}

// View returns the ledger row and batches of a variant.
func (s *Stock) View(ctx context.Context, tx store.StockTx, variantID string) (domain.StockView, error) {
	row, err := s.Ledger.Lock(ctx, tx, variantID)
	if err != nil {
		return domain.StockView{}, err
	}
	batches, err := tx.LockBatches(ctx, variantID)
	if err != nil {
		return domain.StockView{}, err
	}
	return domain.StockView{Ledger: row, Batches: batches}, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
