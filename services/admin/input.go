package admin

import (
	"encoding/json"
	"time"

	"bundlesync/pkg/errutil"
	"bundlesync/services/bundle"
)

type CreateBundleInput struct {
	Title                string               `json:"title" binding:"required"`
	Subtitle             string               `json:"subtitle"`
	SelectionMode        bundle.SelectionMode `json:"selection_mode"`
	TargetingType        bundle.TargetingType `json:"targeting_type"`
	StartAt              *time.Time           `json:"start_at"`
	EndAt                *time.Time           `json:"end_at"`
	CombinesWithProduct  bool                 `json:"combines_with_product"`
	CombinesWithOrder    bool                 `json:"combines_with_order"`
	CombinesWithShipping bool                 `json:"combines_with_shipping"`
}

// UpdateBundleInput uses pointers so absent fields leave the stored value
// untouched.
type UpdateBundleInput struct {
	Title                *string               `json:"title"`
	Subtitle             *string               `json:"subtitle"`
	Status               *bundle.BundleStatus  `json:"status"`
	SelectionMode        *bundle.SelectionMode `json:"selection_mode"`
	StartAt              *time.Time            `json:"start_at"`
	EndAt                *time.Time            `json:"end_at"`
	CombinesWithProduct  *bool                 `json:"combines_with_product"`
	CombinesWithOrder    *bool                 `json:"combines_with_order"`
	CombinesWithShipping *bool                 `json:"combines_with_shipping"`
}

type VariantInput struct {
	ExternalID     string   `json:"external_id" binding:"required"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price"`
}

type AddOnInput struct {
	ProductID            string              `json:"product_id" binding:"required"`
	Title                string              `json:"title" binding:"required"`
	ImageURL             string              `json:"image_url"`
	DiscountType         bundle.DiscountType `json:"discount_type" binding:"required"`
	DiscountValue        *float64            `json:"discount_value"`
	Label                string              `json:"label"`
	IsDefaultSelected    bool                `json:"is_default_selected"`
	SubscriptionOnly     bool                `json:"subscription_only"`
	ShowQuantitySelector bool                `json:"show_quantity_selector"`
	MaxQuantity          int                 `json:"max_quantity"`
	Variants             []VariantInput      `json:"variants"`
}

type TargetedItemInput struct {
	ResourceID   string              `json:"resource_id" binding:"required"`
	ResourceType bundle.ResourceType `json:"resource_type" binding:"required"`
}

type GroupInput struct {
	Title      string   `json:"title" binding:"required"`
	ProductIDs []string `json:"product_ids"`
}

type TargetingInput struct {
	TargetingType bundle.TargetingType `json:"targeting_type" binding:"required"`
	Items         []TargetedItemInput  `json:"items"`
	Groups        []GroupInput         `json:"groups"`
}

type StyleInput struct {
	AccentColor     string          `json:"accent_color"`
	BackgroundColor string          `json:"background_color"`
	TextColor       string          `json:"text_color"`
	BorderRadius    int             `json:"border_radius"`
	FontFamily      string          `json:"font_family"`
	Layout          string          `json:"layout"`
	ShowImages      bool            `json:"show_images"`
	ShowPrices      bool            `json:"show_prices"`
	Overrides       json.RawMessage `json:"overrides"`
}

func validStatus(s bundle.BundleStatus) bool {
	switch s {
	case bundle.StatusDraft, bundle.StatusActive, bundle.StatusArchived:
		return true
	}
	return false
}

func validTargetingType(t bundle.TargetingType) bool {
	switch t {
	case bundle.TargetingAll, bundle.TargetingSpecific, bundle.TargetingGrouped:
		return true
	}
	return false
}

// validateAddOns enforces discount-shape constraints and rejects a variant
// mapped to two add-ons, which would otherwise be resolved silently at
// evaluation time by last-writer-wins.
func validateAddOns(sets []AddOnInput) error {
	seen := make(map[string]bool)
	for _, in := range sets {
		switch in.DiscountType {
		case bundle.DiscountFreeGift:
			if in.DiscountValue != nil {
				return errutil.ValidationFailed("free gift add-ons must not carry a discount value",
					errutil.WithDetails(errutil.Detail{Field: "discount_value", Message: "must be absent for FREE_GIFT"}))
			}
		case bundle.DiscountPercentage:
			if in.DiscountValue == nil || *in.DiscountValue <= 0 || *in.DiscountValue > 100 {
				return errutil.ValidationFailed("percentage discount must be between 0 and 100",
					errutil.WithDetails(errutil.Detail{Field: "discount_value", Message: "must be in (0, 100]"}))
			}
		case bundle.DiscountFixedAmount, bundle.DiscountFixedPrice:
			if in.DiscountValue == nil || *in.DiscountValue <= 0 {
				return errutil.ValidationFailed("discount value must be positive",
					errutil.WithDetails(errutil.Detail{Field: "discount_value", Message: "must be greater than zero"}))
			}
		default:
			return errutil.ValidationFailed("unknown discount type",
				errutil.WithDetails(errutil.Detail{Field: "discount_type", Message: string(in.DiscountType)}))
		}

		for _, v := range in.Variants {
			if seen[v.ExternalID] {
				return errutil.ValidationFailed("variant is mapped to more than one add-on",
					errutil.WithDetails(errutil.Detail{Field: "variants", Message: v.ExternalID}))
			}
			seen[v.ExternalID] = true
		}
	}
	return nil
}

func validateTargeting(in TargetingInput) error {
	if !validTargetingType(in.TargetingType) {
		return errutil.ValidationFailed("unknown targeting type",
			errutil.WithDetails(errutil.Detail{Field: "targeting_type", Message: string(in.TargetingType)}))
	}
	if in.TargetingType == bundle.TargetingSpecific && len(in.Items) == 0 {
		return errutil.ValidationFailed("specific targeting requires at least one item")
	}
	if in.TargetingType == bundle.TargetingGrouped && len(in.Groups) == 0 {
		return errutil.ValidationFailed("grouped targeting requires at least one group")
	}
	return nil
}
