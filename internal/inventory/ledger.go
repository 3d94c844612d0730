package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// Ledger keeps the running in/out/balance totals per variant.
type Ledger struct {
	now func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Lock returns the variant's ledger row under lock. A missing row is
// created empty first so concurrent first receipts queue on the same row.
func (l *Ledger) Lock(ctx context.Context, tx store.StockTx, variantID string) (domain.InventoryLedger, error) {
	row, err := tx.LockLedger(ctx, variantID)
	if errors.Is(err, store.ErrNotFound) {
		if err := tx.EnsureLedger(ctx, variantID); err != nil {
			return domain.InventoryLedger{}, err
		}
		row, err = tx.LockLedger(ctx, variantID)
	}
	if err != nil {
		return domain.InventoryLedger{}, err
	}
	return *row, nil
}

func (l *Ledger) Reserve(ctx context.Context, tx store.StockTx, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reserve qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	row, err := l.Lock(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if row.Balance < qty {
		return fmt.Errorf("%w: variant %s requested %d, balance %d", store.ErrInsufficientStock, variantID, qty, row.Balance)
	}
	row.QuantityOut += qty
	return l.save(ctx, tx, row)
}

func (l *Ledger) Release(ctx context.Context, tx store.StockTx, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	row, err := l.Lock(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if row.QuantityOut < qty {
		return fmt.Errorf("%w: variant %s releasing %d but only %d reserved", store.ErrInvalidInput, variantID, qty, row.QuantityOut)
	}
	row.QuantityOut -= qty
	return l.save(ctx, tx, row)
}

func (l *Ledger) Receive(ctx context.Context, tx store.StockTx, variantID string, unitID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: receive qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	row, err := l.Lock(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if row.UnitID == "" {
		row.UnitID = unitID
	}
	row.QuantityIn += qty
	return l.save(ctx, tx, row)
}

func (l *Ledger) save(ctx context.Context, tx store.StockTx, row domain.InventoryLedger) error {
	row.Balance = row.QuantityIn - row.QuantityOut
	row.UpdatedAt = l.now().UTC()
	return tx.SaveLedger(ctx, row)
}
