package bundle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WidgetConfig is the storefront display configuration published to metafield
// slots. It is derived, never persisted, and rebuilt wholesale on every sync.
type WidgetConfig struct {
	BundleID      string        `json:"bundleId"`
	Title         string        `json:"title"`
	Subtitle      string        `json:"subtitle,omitempty"`
	Handle        string        `json:"handle,omitempty"`
	SelectionMode SelectionMode `json:"selectionMode"`
	GroupID       string        `json:"groupId,omitempty"`
	GroupTitle    string        `json:"groupTitle,omitempty"`
	Style         *StyleConfig  `json:"style,omitempty"`
	AddOns        []WidgetAddOn `json:"addOns"`
}

type WidgetAddOn struct {
	AddOnID              string          `json:"addOnId"`
	ProductID            string          `json:"productId"`
	ProductHandle        string          `json:"productHandle,omitempty"`
	Title                string          `json:"title"`
	ImageURL             string          `json:"imageUrl,omitempty"`
	Badge                string          `json:"badge"`
	DefaultSelected      bool            `json:"defaultSelected,omitempty"`
	SubscriptionOnly     bool            `json:"subscriptionOnly,omitempty"`
	ShowQuantitySelector bool            `json:"showQuantitySelector,omitempty"`
	MaxQuantity          int             `json:"maxQuantity"`
	Variants             []WidgetVariant `json:"variants"`
}

type WidgetVariant struct {
	VariantID      string   `json:"variantId"`
	Title          string   `json:"title,omitempty"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compareAtPrice,omitempty"`
}

type StyleConfig struct {
	AccentColor     string `json:"accentColor"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	BorderRadius    int    `json:"borderRadius"`
	FontFamily      string `json:"fontFamily,omitempty"`
	Layout          string `json:"layout"`
	ShowImages      bool   `json:"showImages"`
	ShowPrices      bool   `json:"showPrices"`
	Overrides       string `json:"overrides,omitempty"`
}

// DiscountConfig is the payload embedded in the external discount resource
// and read back by the checkout-time evaluator. Schema changes must stay
// backward-readable by already-deployed evaluator code.
type DiscountConfig struct {
	BundleID      string          `json:"bundleId"`
	SelectionMode SelectionMode   `json:"selectionMode"`
	StartAt       *time.Time      `json:"startAt,omitempty"`
	EndAt         *time.Time      `json:"endAt,omitempty"`
	AddOns        []DiscountAddOn `json:"addOns"`
}

type DiscountAddOn struct {
	AddOnID          string       `json:"addOnId"`
	TargetVariantIDs []string     `json:"targetVariantIds"`
	DiscountType     DiscountType `json:"discountType"`
	DiscountValue    *float64     `json:"discountValue,omitempty"`
	Label            string       `json:"label,omitempty"`
	SubscriptionOnly bool         `json:"subscriptionOnly,omitempty"`
	MaxQuantity      int          `json:"maxQuantity"`
}

// BuildWidgetConfig derives the display configuration from a consistent
// snapshot of bundle state. It is total: missing optional inputs degrade the
// display, they never fail the build. productHandles enriches add-on links
// and may be nil.
func BuildWidgetConfig(b *Bundle, addOns []AddOnSet, style *WidgetStyle, productHandles map[string]string) WidgetConfig {
	cfg := WidgetConfig{
		BundleID:      b.BundleID,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Handle:        b.Handle,
		SelectionMode: b.SelectionMode,
		Style:         buildStyle(style),
		AddOns:        make([]WidgetAddOn, 0, len(addOns)),
	}

	sorted := sortedAddOns(addOns)
	for _, a := range sorted {
		entry := WidgetAddOn{
			AddOnID:              a.AddOnID,
			ProductID:            a.ProductID,
			Title:                a.Title,
			ImageURL:             a.ImageURL,
			Badge:                badgeText(a),
			DefaultSelected:      a.IsDefaultSelected,
			SubscriptionOnly:     a.SubscriptionOnly,
			ShowQuantitySelector: a.ShowQuantitySelector,
			MaxQuantity:          normalizeMaxQuantity(a.MaxQuantity),
			Variants:             make([]WidgetVariant, 0, len(a.Variants)),
		}
		if productHandles != nil {
			entry.ProductHandle = productHandles[a.ProductID]
		}
		for _, v := range a.Variants {
			entry.Variants = append(entry.Variants, WidgetVariant{
				VariantID:      v.ExternalID,
				Title:          v.Title,
				Price:          v.Price,
				CompareAtPrice: v.CompareAtPrice,
			})
		}
		cfg.AddOns = append(cfg.AddOns, entry)
	}

	return cfg
}

// BuildWidgetConfigForGroup derives the display variant for one product
// group tab: only add-ons whose product belongs to the group are shown.
func BuildWidgetConfigForGroup(b *Bundle, addOns []AddOnSet, style *WidgetStyle, productHandles map[string]string, group *ProductGroup) WidgetConfig {
	member := make(map[string]bool, len(group.Items))
	for _, it := range group.Items {
		member[it.ProductID] = true
	}

	filtered := make([]AddOnSet, 0, len(addOns))
	for _, a := range addOns {
		if member[a.ProductID] {
			filtered = append(filtered, a)
		}
	}

	cfg := BuildWidgetConfig(b, filtered, style, productHandles)
	cfg.GroupID = group.GroupID
	cfg.GroupTitle = group.Title
	return cfg
}

// BuildDiscountConfig derives the checkout rule input. Add-ons with zero
// variants are excluded: they cannot be matched against any cart line.
func BuildDiscountConfig(b *Bundle, addOns []AddOnSet) DiscountConfig {
	cfg := DiscountConfig{
		BundleID:      b.BundleID,
		SelectionMode: b.SelectionMode,
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
		AddOns:        make([]DiscountAddOn, 0, len(addOns)),
	}

	for _, a := range sortedAddOns(addOns) {
		if len(a.Variants) == 0 {
			continue
		}

		entry := DiscountAddOn{
			AddOnID:          a.AddOnID,
			TargetVariantIDs: make([]string, 0, len(a.Variants)),
			DiscountType:     a.DiscountType,
			Label:            a.Label,
			SubscriptionOnly: a.SubscriptionOnly,
			MaxQuantity:      normalizeMaxQuantity(a.MaxQuantity),
		}
		if a.DiscountType != DiscountFreeGift {
			entry.DiscountValue = a.DiscountValue
		}
		for _, v := range a.Variants {
			entry.TargetVariantIDs = append(entry.TargetVariantIDs, v.ExternalID)
		}
		cfg.AddOns = append(cfg.AddOns, entry)
	}

	return cfg
}

func buildStyle(style *WidgetStyle) *StyleConfig {
	if style == nil {
		return nil
	}
	return &StyleConfig{
		AccentColor:     style.AccentColor,
		BackgroundColor: style.BackgroundColor,
		TextColor:       style.TextColor,
		BorderRadius:    style.BorderRadius,
		FontFamily:      style.FontFamily,
		Layout:          style.Layout,
		ShowImages:      style.ShowImages,
		ShowPrices:      style.ShowPrices,
		Overrides:       string(style.Overrides),
	}
}

// badgeText returns the admin label, or a default synthesized from the
// discount type and value.
func badgeText(a AddOnSet) string {
	if a.Label != "" {
		return a.Label
	}

	switch a.DiscountType {
	case DiscountFreeGift:
		return "FREE"
	case DiscountPercentage:
		if a.DiscountValue == nil {
			return ""
		}
		return formatNumber(*a.DiscountValue) + "% OFF"
	case DiscountFixedAmount:
		if a.DiscountValue == nil {
			return ""
		}
		return fmt.Sprintf("$%.2f OFF", *a.DiscountValue)
	case DiscountFixedPrice:
		if a.DiscountValue == nil {
			return ""
		}
		return fmt.Sprintf("NOW $%.2f", *a.DiscountValue)
	default:
		return ""
	}
}

func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func normalizeMaxQuantity(max int) int {
	if max <= 0 {
		return 1
	}
	return max
}

func sortedAddOns(addOns []AddOnSet) []AddOnSet {
	sorted := make([]AddOnSet, len(addOns))
	copy(sorted, addOns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].AddOnID < sorted[j].AddOnID
	})
	return sorted
}
