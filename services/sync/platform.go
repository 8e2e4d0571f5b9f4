package sync

import (
	"context"
	"time"

	"bundlesync/services/bundle"
)

// Fixed metafield slots the widget config is published to. One shop-wide
// slot and one per-product slot; both live under the same namespace.
const (
	MetafieldNamespace = "addon_bundles"
	ShopConfigKey      = "shop_config"
	ProductConfigKey   = "product_config"
)

// DiscountInput is everything the platform needs to materialize one
// discount resource. The embedded config is opaque JSON from the platform's
// perspective; its schema is owned here (bundle.DiscountConfig).
type DiscountInput struct {
	Title                string                `json:"title"`
	StartsAt             *time.Time            `json:"startsAt,omitempty"`
	EndsAt               *time.Time            `json:"endsAt,omitempty"`
	CombinesWithProduct  bool                  `json:"combinesWithProduct"`
	CombinesWithOrder    bool                  `json:"combinesWithOrder"`
	CombinesWithShipping bool                  `json:"combinesWithShipping"`
	Config               bundle.DiscountConfig `json:"config"`
}

// DiscountInputFromBundle derives the full resource payload from a loaded
// bundle snapshot.
func DiscountInputFromBundle(b *bundle.Bundle) DiscountInput {
	return DiscountInput{
		Title:                b.Title,
		StartsAt:             b.StartAt,
		EndsAt:               b.EndAt,
		CombinesWithProduct:  b.CombinesWithProduct,
		CombinesWithOrder:    b.CombinesWithOrder,
		CombinesWithShipping: b.CombinesWithShipping,
		Config:               bundle.BuildDiscountConfig(b, b.AddOnSets),
	}
}

// DiscountAPI manages the platform's native discount resource.
type DiscountAPI interface {
	Create(ctx context.Context, in DiscountInput) (string, error)
	Update(ctx context.Context, id string, in DiscountInput) error
	Delete(ctx context.Context, id string) error
}

// MetafieldAPI is the platform's namespaced key-value attachment API.
// ownerID is either the shop or a specific product.
type MetafieldAPI interface {
	Write(ctx context.Context, ownerID, namespace, key string, value any) error
	Delete(ctx context.Context, ownerID, namespace, key string) error
}

// HandleResolver looks up external product handles for display links.
// Failures degrade display richness only; they never abort a sync.
type HandleResolver interface {
	Handles(ctx context.Context, productIDs []string) (map[string]string, error)
}
