package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

var (
	variantColumns  = []string{"id", "product_id", "name", optional("unit_id"), "sell_price", "cost_price"}
	categoryColumns = []string{"id", "name", optional("parent_id")}
	unitColumns     = []string{"id", "name", optional("reference_unit_id"), "conversion_rate"}
	ledgerColumns   = []string{"variant_id", "unit_id", "quantity_in", "quantity_out", "balance", "updated_at"}
	batchColumns    = []string{"id", "variant_id", "unit_id", "qty", "received_at", "expiry_date", "unit_cost", "source_type", "source_id"}
)

func (t *tx) GetVariant(ctx context.Context, id string) (*domain.Variant, error) {
	var v domain.Variant
	q := t.sb.Select(variantColumns...).From("variants").Where(squirrel.Eq{"id": id})
	if err := t.get(ctx, &v, q); err != nil {
		return nil, missing(err, "variant", id)
	}
	return &v, nil
}

func (t *tx) InsertVariant(ctx context.Context, v domain.Variant) error {
	_, err := t.exec(ctx, t.sb.Insert("variants").
		Columns("id", "product_id", "name", "unit_id", "sell_price", "cost_price").
		Values(v.ID, v.ProductID, v.Name, nullable(v.UnitID), v.SellPrice, v.CostPrice))
	return err
}

func (t *tx) UpdateVariantCost(ctx context.Context, id string, cost decimal.Decimal) error {
	return t.update(ctx, t.sb.Update("variants").Set("cost_price", cost).Where(squirrel.Eq{"id": id}), "variant", id)
}

func (t *tx) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	q := t.sb.Select(categoryColumns...).From("categories").Where(squirrel.Eq{"id": id})
	if err := t.get(ctx, &c, q); err != nil {
		return nil, missing(err, "category", id)
	}
	return &c, nil
}

func (t *tx) InsertCategory(ctx context.Context, c domain.Category) error {
	_, err := t.exec(ctx, t.sb.Insert("categories").
		Columns("id", "name", "parent_id").
		Values(c.ID, c.Name, nullable(c.ParentID)))
	return err
}

func (t *tx) UpdateCategoryParent(ctx context.Context, id string, parentID string) error {
	return t.update(ctx, t.sb.Update("categories").Set("parent_id", nullable(parentID)).Where(squirrel.Eq{"id": id}), "category", id)
}

func (t *tx) GetUnit(ctx context.Context, id string) (*domain.Unit, error) {
	var u domain.Unit
	q := t.sb.Select(unitColumns...).From("units").Where(squirrel.Eq{"id": id})
	if err := t.get(ctx, &u, q); err != nil {
		return nil, missing(err, "unit", id)
	}
	return &u, nil
}

func (t *tx) InsertUnit(ctx context.Context, u domain.Unit) error {
	_, err := t.exec(ctx, t.sb.Insert("units").
		Columns("id", "name", "reference_unit_id", "conversion_rate").
		Values(u.ID, u.Name, nullable(u.ReferenceUnitID), u.ConversionRate))
	return err
}

func (t *tx) UpdateUnitReference(ctx context.Context, id string, referenceID string) error {
	return t.update(ctx, t.sb.Update("units").Set("reference_unit_id", nullable(referenceID)).Where(squirrel.Eq{"id": id}), "unit", id)
}

// Stock

func (t *tx) LockLedger(ctx context.Context, variantID string) (*domain.InventoryLedger, error) {
	var l domain.InventoryLedger
	q := t.sb.Select(ledgerColumns...).From("inventory_ledgers").
		Where(squirrel.Eq{"variant_id": variantID}).
		Suffix("FOR UPDATE")
	if err := t.get(ctx, &l, q); err != nil {
		return nil, missing(err, "ledger", variantID)
	}
	return &l, nil
}

func (t *tx) SaveLedger(ctx context.Context, l domain.InventoryLedger) error {
	_, err := t.exec(ctx, t.sb.Insert("inventory_ledgers").
		Columns(ledgerColumns...).
		Values(l.VariantID, l.UnitID, l.QuantityIn, l.QuantityOut, l.Balance, l.UpdatedAt).
		Suffix(`ON CONFLICT (variant_id) DO UPDATE SET
			unit_id = EXCLUDED.unit_id,
			quantity_in = EXCLUDED.quantity_in,
			quantity_out = EXCLUDED.quantity_out,
			balance = EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at`))
	return err
}

func (t *tx) EnsureLedger(ctx context.Context, variantID string) error {
	_, err := t.exec(ctx, t.sb.Insert("inventory_ledgers").
		Columns("variant_id").
		Values(variantID).
		Suffix("ON CONFLICT (variant_id) DO NOTHING"))
	return err
}

func (t *tx) LockBatches(ctx context.Context, variantID string) ([]domain.StockBatch, error) {
	batches := make([]domain.StockBatch, 0)
	q := t.sb.Select(batchColumns...).From("stock_batches").
		Where(squirrel.Eq{"variant_id": variantID}).
		OrderBy("received_at", "id").
		Suffix("FOR UPDATE")
	if err := t.selectRows(ctx, &batches, q); err != nil {
		return nil, err
	}
	return batches, nil
}

func (t *tx) InsertBatch(ctx context.Context, b domain.StockBatch) error {
	_, err := t.exec(ctx, t.sb.Insert("stock_batches").
		Columns(batchColumns...).
		Values(b.ID, b.VariantID, b.UnitID, b.Qty, b.ReceivedAt, b.ExpiryDate, b.UnitCost, b.SourceType, b.SourceID))
	return err
}

func (t *tx) UpdateBatchQty(ctx context.Context, batchID string, qty int) error {
	return t.update(ctx, t.sb.Update("stock_batches").Set("qty", qty).Where(squirrel.Eq{"id": batchID}), "batch", batchID)
}
