package bundle

import (
	"time"

	"gorm.io/datatypes"
)

type BundleStatus string
type SelectionMode string
type TargetingType string
type DiscountType string
type ResourceType string

const (
	StatusDraft    BundleStatus = "DRAFT"
	StatusActive   BundleStatus = "ACTIVE"
	StatusArchived BundleStatus = "ARCHIVED"

	SelectionSingle   SelectionMode = "SINGLE"
	SelectionMultiple SelectionMode = "MULTIPLE"

	TargetingAll      TargetingType = "ALL"
	TargetingSpecific TargetingType = "SPECIFIC"
	TargetingGrouped  TargetingType = "GROUPED"

	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountFixedPrice  DiscountType = "FIXED_PRICE"
	DiscountFreeGift    DiscountType = "FREE_GIFT"

	ResourceProduct    ResourceType = "PRODUCT"
	ResourceCollection ResourceType = "COLLECTION"
)

// Bundle is the source-of-truth record for one add-on offer. The external
// discount resource and the published widget configs are derived from it and
// rebuilt wholesale on every sync pass.
type Bundle struct {
	BundleID      string        `gorm:"column:bundle_id;primaryKey"`
	ShopID        string        `gorm:"column:shop_id;index;not null"`
	Title         string        `gorm:"column:title;type:varchar(255);not null"`
	Subtitle      string        `gorm:"column:subtitle;type:varchar(255)"`
	Handle        string        `gorm:"column:handle"`
	Status        BundleStatus  `gorm:"column:status;type:varchar(20);not null;default:'DRAFT'"`
	StartAt       *time.Time    `gorm:"column:start_at"`
	EndAt         *time.Time    `gorm:"column:end_at"`
	SelectionMode SelectionMode `gorm:"column:selection_mode;type:varchar(20);not null;default:'MULTIPLE'"`
	TargetingType TargetingType `gorm:"column:targeting_type;type:varchar(20);not null;default:'ALL'"`

	CombinesWithProduct  bool `gorm:"column:combines_with_product;default:false"`
	CombinesWithOrder    bool `gorm:"column:combines_with_order;default:false"`
	CombinesWithShipping bool `gorm:"column:combines_with_shipping;default:false"`

	// ExternalDiscountID is set iff the platform discount resource exists.
	ExternalDiscountID string `gorm:"column:external_discount_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations
	AddOnSets     []AddOnSet     `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	TargetedItems []TargetedItem `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	ProductGroups []ProductGroup `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	Style         *WidgetStyle   `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
}

// AddOnSet is a companion product offered at a discount inside a bundle.
type AddOnSet struct {
	AddOnID  string `gorm:"column:add_on_id;primaryKey"`
	BundleID string `gorm:"column:bundle_id;index;not null"`

	ProductID string `gorm:"column:product_id;not null"`
	Title     string `gorm:"column:title;type:varchar(255);not null"`
	ImageURL  string `gorm:"column:image_url"`

	DiscountType DiscountType `gorm:"column:discount_type;type:varchar(20);not null"`
	// DiscountValue is unused for FREE_GIFT.
	DiscountValue *float64 `gorm:"column:discount_value"`
	Label         string   `gorm:"column:label"`

	IsDefaultSelected    bool `gorm:"column:is_default_selected;default:false"`
	SubscriptionOnly     bool `gorm:"column:subscription_only;default:false"`
	ShowQuantitySelector bool `gorm:"column:show_quantity_selector;default:false"`
	MaxQuantity          int  `gorm:"column:max_quantity;default:1"`
	Position             int  `gorm:"column:position;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations
	Variants []Variant `gorm:"foreignKey:AddOnID;constraint:OnDelete:CASCADE"`
}

// Variant caches display data for one external product variant. Prices here
// are display hints; authoritative prices live on the platform.
type Variant struct {
	ID      string `gorm:"column:id;primaryKey"`
	AddOnID string `gorm:"column:add_on_id;index;not null"`

	ExternalID     string   `gorm:"column:external_id;index;not null"`
	Title          string   `gorm:"column:title"`
	Price          float64  `gorm:"column:price;default:0"`
	CompareAtPrice *float64 `gorm:"column:compare_at_price"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TargetedItem is one admin-picked resource; used only when the bundle's
// targeting type is SPECIFIC.
type TargetedItem struct {
	ID       string `gorm:"column:id;primaryKey"`
	BundleID string `gorm:"column:bundle_id;index;not null"`

	ResourceID   string       `gorm:"column:resource_id;not null"`
	ResourceType ResourceType `gorm:"column:resource_type;type:varchar(20);not null"`
}

// ProductGroup is a named bucket of products rendered as one widget tab;
// used only when the bundle's targeting type is GROUPED.
type ProductGroup struct {
	GroupID  string `gorm:"column:group_id;primaryKey"`
	BundleID string `gorm:"column:bundle_id;index;not null"`

	Title    string `gorm:"column:title;type:varchar(255);not null"`
	Position int    `gorm:"column:position;default:0"`

	// Relations
	Items []ProductGroupItem `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

type ProductGroupItem struct {
	ID      string `gorm:"column:id;primaryKey"`
	GroupID string `gorm:"column:group_id;index;not null"`

	ProductID string `gorm:"column:product_id;not null"`
}

// ProductIDs returns the group's member product ids in stored order.
func (g *ProductGroup) ProductIDs() []string {
	ids := make([]string, 0, len(g.Items))
	for _, it := range g.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// WidgetStyle is presentational only; it feeds the widget config and has no
// bearing on discount correctness. Created lazily on first style edit.
type WidgetStyle struct {
	BundleID string `gorm:"column:bundle_id;primaryKey"`

	AccentColor     string `gorm:"column:accent_color;default:'#000000'"`
	BackgroundColor string `gorm:"column:background_color;default:'#FFFFFF'"`
	TextColor       string `gorm:"column:text_color;default:'#1A1A1A'"`
	BorderRadius    int    `gorm:"column:border_radius;default:8"`
	FontFamily      string `gorm:"column:font_family"`
	Layout          string `gorm:"column:layout;default:'stacked'"`
	ShowImages      bool   `gorm:"column:show_images;default:true"`
	ShowPrices      bool   `gorm:"column:show_prices;default:true"`

	// Overrides holds free-form CSS overrides the preview editor emits.
	Overrides datatypes.JSON `gorm:"column:overrides;type:jsonb"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
