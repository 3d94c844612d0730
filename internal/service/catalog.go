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

func (s *Service) CreateVariant(ctx context.Context, req domain.CreateVariantRequest) (domain.Variant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Variant{}, invalid("variant name is required")
	}
	if req.SellPrice.IsNegative() || req.CostPrice.IsNegative() {
		return domain.Variant{}, invalid("variant prices cannot be negative")
	}

	variant := domain.Variant{
		ID:        xid.New("var"),
		ProductID: strings.TrimSpace(req.ProductID),
		Name:      name,
		UnitID:    strings.TrimSpace(req.UnitID),
		SellPrice: req.SellPrice,
		CostPrice: req.CostPrice,
	}
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if variant.UnitID != "" {
			if _, err := tx.GetUnit(ctx, variant.UnitID); err != nil {
				return store.MissingReference(err)
			}
		}
		if err := tx.InsertVariant(ctx, variant); err != nil {
			return err
		}
		return tx.EnsureLedger(ctx, variant.ID)
	})
	if err != nil {
		return domain.Variant{}, err
	}
	return variant, nil
}

// AdjustStock books opening or found stock as an ADJUSTMENT batch.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockView, error) {
	variantID := strings.TrimSpace(req.VariantID)
	if req.Qty < 1 {
		return domain.StockView{}, invalid("adjustment quantity must be at least 1")
	}
	if req.UnitCost.IsNegative() {
		return domain.StockView{}, invalid("unit cost cannot be negative")
	}

	var view domain.StockView
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		variant, err := tx.GetVariant(ctx, variantID)
		if err != nil {
			return store.MissingReference(err)
		}
		if err := s.stock.LockVariants(ctx, tx, []string{variant.ID}); err != nil {
			return err
		}
		if _, err := s.stock.Receive(ctx, tx, domain.StockBatch{
			VariantID:  variant.ID,
			UnitID:     variant.UnitID,
			Qty:        req.Qty,
			ExpiryDate: req.ExpiryDate,
			UnitCost:   req.UnitCost,
			SourceType: domain.BatchSourceAdjustment,
		}); err != nil {
			return err
		}
		view, err = s.stock.View(ctx, tx, variant.ID)
		return err
	})
	if err != nil {
		return domain.StockView{}, err
	}

	s.logger(ctx).Info("stock adjusted", zap.String("variant_id", variantID), zap.Int("qty", req.Qty), zap.Int("balance", view.Ledger.Balance))
	return view, nil
}

func (s *Service) GetStock(ctx context.Context, variantID string) (domain.StockView, error) {
	var view domain.StockView
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetVariant(ctx, variantID); err != nil {
			return err
		}
		var err error
		view, err = s.stock.View(ctx, tx, variantID)
		return err
	})
	return view, err
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, invalid("category name is required")
	}
	category := domain.Category{ID: xid.New("cat"), Name: name, ParentID: strings.TrimSpace(req.ParentID)}
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if err := checkAcyclic(ctx, category.ID, category.ParentID, categoryParent(tx)); err != nil {
			return err
		}
		return tx.InsertCategory(ctx, category)
	})
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) SetCategoryParent(ctx context.Context, id string, req domain.ParentRequest) (domain.Category, error) {
	parentID := strings.TrimSpace(req.ParentID)
	var updated domain.Category
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		category, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if err := checkAcyclic(ctx, category.ID, parentID, categoryParent(tx)); err != nil {
			return err
		}
		if err := tx.UpdateCategoryParent(ctx, category.ID, parentID); err != nil {
			return err
		}
		category.ParentID = parentID
		updated = *category
		return nil
	})
	return updated, err
}

func (s *Service) CreateUnit(ctx context.Context, req domain.UnitRequest) (domain.Unit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Unit{}, invalid("unit name is required")
	}
	if req.ConversionRate.IsNegative() {
		return domain.Unit{}, invalid("conversion rate cannot be negative")
	}
	rate := req.ConversionRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	unit := domain.Unit{
		ID:              xid.New("unit"),
		Name:            name,
		ReferenceUnitID: strings.TrimSpace(req.ReferenceUnitID),
		ConversionRate:  rate,
	}
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if err := checkAcyclic(ctx, unit.ID, unit.ReferenceUnitID, unitReference(tx)); err != nil {
			return err
		}
		return tx.InsertUnit(ctx, unit)
	})
	if err != nil {
		return domain.Unit{}, err
	}
	return unit, nil
}

func (s *Service) SetUnitReference(ctx context.Context, id string, req domain.ParentRequest) (domain.Unit, error) {
	referenceID := strings.TrimSpace(req.ParentID)
	var updated domain.Unit
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		unit, err := tx.GetUnit(ctx, id)
		if err != nil {
			return err
		}
		if err := checkAcyclic(ctx, unit.ID, referenceID, unitReference(tx)); err != nil {
			return err
		}
		if err := tx.UpdateUnitReference(ctx, unit.ID, referenceID); err != nil {
			return err
		}
		unit.ReferenceUnitID = referenceID
		updated = *unit
		return nil
	})
	return updated, err
}

type parentLookup func(ctx context.Context, id string) (string, error)

func categoryParent(tx store.CatalogTx) parentLookup {
	return func(ctx context.Context, id string) (string, error) {
		category, err := tx.GetCategory(ctx, id)
		if err != nil {
			return "", err
		}
		return category.ParentID, nil
	}
}

func unitReference(tx store.CatalogTx) parentLookup {
	return func(ctx context.Context, id string) (string, error) {
		unit, err := tx.GetUnit(ctx, id)
		if err != nil {
			return "", err
		}
		return unit.ReferenceUnitID, nil
	}
}

// checkAcyclic walks up from parentID and fails if it reaches id or loops.
func checkAcyclic(ctx context.Context, id string, parentID string, parentOf parentLookup) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return invalid("%s cannot reference itself", id)
	}
	seen := map[string]bool{id: true}
	for current := parentID; current != ""; {
		if seen[current] {
			return invalid("linking %s to %s creates a cycle", id, parentID)
		}
		seen[current] = true
		next, err := parentOf(ctx, current)
		if err != nil {
			return store.MissingReference(err)
		}
		current = next
	}
	return nil
}
