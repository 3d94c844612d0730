package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// Allocation is the quantity drawn from one batch.
type Allocation struct {
	BatchID  string          `json:"batch_id"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Allocator treats a variant's batches as a FIFO cost queue. Quantities put
// back through Restore land on the oldest batch, not on the batch they were
// drawn from, so restored units may carry a different cost basis.
type Allocator struct {
	now func() time.Time
}

func NewAllocator(now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{now: now}
}

func Available(batches []domain.StockBatch) int {
	total := 0
	for _, b := range batches {
		total += b.Qty
	}
	return total
}

// Allocate drains batches oldest first. Drained batches stay at zero.
func (a *Allocator) Allocate(ctx context.Context, tx store.StockTx, variantID string, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: allocate qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	batches, err := tx.LockBatches(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if available := Available(batches); available < qty {
		return nil, fmt.Errorf("%w: variant %s requested %d, batches hold %d", store.ErrInsufficientStock, variantID, qty, available)
	}

	remaining := qty
	allocations := make([]Allocation, 0, 2)
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.Qty == 0 {
			continue
		}
		take := min(b.Qty, remaining)
		if err := tx.UpdateBatchQty(ctx, b.ID, b.Qty-take); err != nil {
			return nil, err
		}
		allocations = append(allocations, Allocation{BatchID: b.ID, Qty: take, UnitCost: b.UnitCost})
		remaining -= take
	}
	return allocations, nil
}

// Restore adds qty back onto the earliest batch. A variant without batches
// gets a zero-cost adjustment batch so batches keep matching the ledger.
func (a *Allocator) Restore(ctx context.Context, tx store.StockTx, variantID string, unitID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: restore qty must be positive for variant %s", store.ErrInvalidInput, variantID)
	}
	batches, err := tx.LockBatches(ctx, variantID)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		_, err := a.ReceiveNew(ctx, tx, domain.StockBatch{
			VariantID:  variantID,
			UnitID:     unitID,
			Qty:        qty,
			UnitCost:   decimal.Zero,
			SourceType: domain.BatchSourceAdjustment,
		})
		return err
	}
	earliest := batches[0]
	return tx.UpdateBatchQty(ctx, earliest.ID, earliest.Qty+qty)
}

func (a *Allocator) ReceiveNew(ctx context.Context, tx store.StockTx, batch domain.StockBatch) (domain.StockBatch, error) {
	if batch.Qty <= 0 {
		return domain.StockBatch{}, fmt.Errorf("%w: batch qty must be positive for variant %s", store.ErrInvalidInput, batch.VariantID)
	}
	if batch.UnitCost.IsNegative() {
		return domain.StockBatch{}, fmt.Errorf("%w: batch unit cost must not be negative for variant %s", store.ErrInvalidInput, batch.VariantID)
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = a.now().UTC()
	}
	if err := tx.InsertBatch(ctx, batch); err != nil {
		return domain.StockBatch{}, err
	}
	return batch, nil
}
