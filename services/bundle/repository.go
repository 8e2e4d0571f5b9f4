package bundle

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListParams describes filters applied when listing bundles.
type ListParams struct {
	Status          BundleStatus
	IncludeArchived bool
	Limit           int
}

// Repository describes database operations available for bundles and their
// owned records.
type Repository interface {
	Create(ctx context.Context, b *Bundle) error
	GetByID(ctx context.Context, shopID, bundleID string) (*Bundle, error)
	// GetWithAssociations loads the bundle with add-on sets (and variants),
	// targeted items, product groups (and items) and style. Sync passes use
	// this to reload a fresh snapshot before any write.
	GetWithAssociations(ctx context.Context, bundleID string) (*Bundle, error)
	List(ctx context.Context, shopID string, params ListParams) ([]Bundle, error)
	Update(ctx context.Context, b *Bundle) error
	Delete(ctx context.Context, shopID, bundleID string) error

	UpdateStatus(ctx context.Context, bundleID string, status BundleStatus) error
	SetExternalDiscountID(ctx context.Context, bundleID, discountID string) error
	ClearExternalDiscountID(ctx context.Context, bundleID string) error

	ReplaceAddOnSets(ctx context.Context, bundleID string, sets []AddOnSet) error
	ReplaceTargeting(ctx context.Context, bundleID string, targetingType TargetingType, items []TargetedItem, groups []ProductGroup) error
	UpsertStyle(ctx context.Context, style *WidgetStyle) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, b *Bundle) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *gormRepository) GetByID(ctx context.Context, shopID, bundleID string) (*Bundle, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var b Bundle
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND bundle_id = ?", shopID, bundleID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) GetWithAssociations(ctx context.Context, bundleID string) (*Bundle, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var b Bundle
	err := r.db.WithContext(ctx).
		Preload("AddOnSets", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, add_on_id ASC")
		}).
		Preload("AddOnSets.Variants").
		Preload("TargetedItems").
		Preload("ProductGroups", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, group_id ASC")
		}).
		Preload("ProductGroups.Items").
		Preload("Style").
		Where("bundle_id = ?", bundleID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) List(ctx context.Context, shopID string, params ListParams) ([]Bundle, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Bundle{}).
		Where("shop_id = ?", shopID)

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	} else if !params.IncludeArchived {
		query = query.Where("status <> ?", StatusArchived)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var bundles []Bundle
	if err := query.Order("created_at DESC").Find(&bundles).Error; err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *gormRepository) Update(ctx context.Context, b *Bundle) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&Bundle{}).
		Where("bundle_id = ?", b.BundleID).
		Updates(map[string]any{
			"title":                  b.Title,
			"subtitle":               b.Subtitle,
			"handle":                 b.Handle,
			"status":                 b.Status,
			"start_at":               b.StartAt,
			"end_at":                 b.EndAt,
			"selection_mode":         b.SelectionMode,
			"targeting_type":         b.TargetingType,
			"combines_with_product":  b.CombinesWithProduct,
			"combines_with_order":    b.CombinesWithOrder,
			"combines_with_shipping": b.CombinesWithShipping,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the bundle and every owned row in one transaction. Nested
// children (variants, group items) are deleted explicitly so the cascade
// does not depend on DB-level foreign keys being enforced.
func (r *gormRepository) Delete(ctx context.Context, shopID, bundleID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Bundle
		if err := tx.Where("shop_id = ? AND bundle_id = ?", shopID, bundleID).First(&b).Error; err != nil {
			return err
		}

		var sets []AddOnSet
		if err := tx.Where("bundle_id = ?", bundleID).Find(&sets).Error; err != nil {
			return err
		}
		for _, s := range sets {
			if err := tx.Where("add_on_id = ?", s.AddOnID).Delete(&Variant{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&AddOnSet{}).Error; err != nil {
			return err
		}

		var groups []ProductGroup
		if err := tx.Where("bundle_id = ?", bundleID).Find(&groups).Error; err != nil {
			return err
		}
		for _, g := range groups {
			if err := tx.Where("group_id = ?", g.GroupID).Delete(&ProductGroupItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&ProductGroup{}).Error; err != nil {
			return err
		}

		if err := tx.Where("bundle_id = ?", bundleID).Delete(&TargetedItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&WidgetStyle{}).Error; err != nil {
			return err
		}

		return tx.Where("bundle_id = ?", bundleID).Delete(&Bundle{}).Error
	})
}

func (r *gormRepository) UpdateStatus(ctx context.Context, bundleID string, status BundleStatus) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&Bundle{}).
		Where("bundle_id = ?", bundleID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) SetExternalDiscountID(ctx context.Context, bundleID, discountID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).
		Model(&Bundle{}).
		Where("bundle_id = ?", bundleID).
		Update("external_discount_id", discountID).Error
}

func (r *gormRepository) ClearExternalDiscountID(ctx context.Context, bundleID string) error {
	return r.SetExternalDiscountID(ctx, bundleID, "")
}

// ReplaceAddOnSets swaps the bundle's add-on sets (and their variants)
// wholesale inside one transaction, mirroring how derived configs are
// rebuilt rather than patched.
func (r *gormRepository) ReplaceAddOnSets(ctx context.Context, bundleID string, sets []AddOnSet) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []AddOnSet
		if err := tx.Where("bundle_id = ?", bundleID).Find(&existing).Error; err != nil {
			return err
		}
		for _, e := range existing {
			if err := tx.Where("add_on_id = ?", e.AddOnID).Delete(&Variant{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&AddOnSet{}).Error; err != nil {
			return err
		}

		for i := range sets {
			sets[i].BundleID = bundleID
			if err := tx.Create(&sets[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormRepository) ReplaceTargeting(ctx context.Context, bundleID string, targetingType TargetingType, items []TargetedItem, groups []ProductGroup) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&TargetedItem{}).Error; err != nil {
			return err
		}

		var existing []ProductGroup
		if err := tx.Where("bundle_id = ?", bundleID).Find(&existing).Error; err != nil {
			return err
		}
		for _, g := range existing {
			if err := tx.Where("group_id = ?", g.GroupID).Delete(&ProductGroupItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bundle_id = ?", bundleID).Delete(&ProductGroup{}).Error; err != nil {
			return err
		}

		res := tx.Model(&Bundle{}).
			Where("bundle_id = ?", bundleID).
			Update("targeting_type", targetingType)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		for i := range items {
			items[i].BundleID = bundleID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		for i := range groups {
			groups[i].BundleID = bundleID
			if err := tx.Create(&groups[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormRepository) UpsertStyle(ctx context.Context, style *WidgetStyle) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bundle_id"}},
			UpdateAll: true,
		}).
		Create(style).Error
}
