package checkout

import (
	"bundlesync/services/bundle"
)

// Default candidate messages when the admin set no label.
const (
	defaultDiscountMessage = "Add-On Discount"
	freeGiftMessage        = "Free Gift"
)

// CartLine is one line of the cart as presented at the checkout pricing
// boundary.
type CartLine struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`

	Merchandise Merchandise `json:"merchandise"`

	// BundleRef is the bundle-membership marker: the line attribute naming
	// the bundle this line was added as part of. Lines without it are never
	// discounted, even when the variant matches a configured add-on.
	BundleRef string `json:"bundleRef,omitempty"`

	// HasSellingPlan is true when the line carries a recurring-purchase plan.
	HasSellingPlan bool `json:"hasSellingPlan,omitempty"`

	Cost LineCost `json:"cost"`
}

type Merchandise struct {
	VariantID string `json:"variantId"`
	// IsProductVariant is false for non-variant merchandise such as gift
	// cards, which are never discounted.
	IsProductVariant bool `json:"isProductVariant"`
}

type LineCost struct {
	AmountPerQuantity float64 `json:"amountPerQuantity"`
}

// Candidate is one proposed per-line price reduction.
type Candidate struct {
	Message  string `json:"message"`
	LineID   string `json:"targetLine"`
	Quantity int    `json:"discountedQuantity"`
	Value    Value  `json:"value"`
}

// Value carries either a percentage or a fixed amount off each discounted
// unit; exactly one field is set.
type Value struct {
	Percentage    *float64 `json:"percentage,omitempty"`
	AmountPerUnit *float64 `json:"amountPerUnit,omitempty"`
}

// Evaluate computes per-line discount candidates for a cart against one
// published discount config. It is pure and deterministic, runs inside the
// platform's constrained pricing step, and never errors: malformed entries
// produce no candidates rather than failing the whole cart. An empty result
// means "no discount", never an error.
func Evaluate(cfg bundle.DiscountConfig, lines []CartLine) []Candidate {
	if len(cfg.AddOns) == 0 || len(lines) == 0 {
		return nil
	}

	// Flatten variant targets. Last writer wins when a variant is mapped to
	// two add-ons; preventing that is an admin-input invariant, not
	// re-validated here.
	byVariant := make(map[string]*bundle.DiscountAddOn, len(cfg.AddOns))
	for i := range cfg.AddOns {
		entry := &cfg.AddOns[i]
		for _, vid := range entry.TargetVariantIDs {
			byVariant[vid] = entry
		}
	}

	var candidates []Candidate
	for _, line := range lines {
		if line.BundleRef == "" || line.BundleRef != cfg.BundleID {
			continue
		}
		if !line.Merchandise.IsProductVariant {
			continue
		}
		if line.Quantity <= 0 {
			continue
		}

		entry, ok := byVariant[line.Merchandise.VariantID]
		if !ok {
			continue
		}
		if entry.SubscriptionOnly && !line.HasSellingPlan {
			continue
		}

		value, ok := discountValue(entry, line.Cost.AmountPerQuantity)
		if !ok {
			continue
		}

		quantity := line.Quantity
		if entry.MaxQuantity > 0 && quantity > entry.MaxQuantity {
			quantity = entry.MaxQuantity
		}

		candidates = append(candidates, Candidate{
			Message:  message(entry),
			LineID:   line.ID,
			Quantity: quantity,
			Value:    value,
		})
	}

	return candidates
}

// discountValue computes the per-unit reduction for one matched line. Every
// type except FREE_GIFT requires a positive configured value; FIXED_PRICE
// additionally skips when it would not lower the unit price.
func discountValue(entry *bundle.DiscountAddOn, unitPrice float64) (Value, bool) {
	if entry.DiscountType == bundle.DiscountFreeGift {
		full := 100.0
		return Value{Percentage: &full}, true
	}

	if entry.DiscountValue == nil || *entry.DiscountValue <= 0 {
		return Value{}, false
	}
	v := *entry.DiscountValue

	switch entry.DiscountType {
	case bundle.DiscountPercentage:
		return Value{Percentage: &v}, true
	case bundle.DiscountFixedAmount:
		return Value{AmountPerUnit: &v}, true
	case bundle.DiscountFixedPrice:
		// Never increase a price: target at or above the unit price means
		// no candidate for this line at all.
		if v >= unitPrice {
			return Value{}, false
		}
		off := unitPrice - v
		return Value{AmountPerUnit: &off}, true
	default:
		return Value{}, false
	}
}

func message(entry *bundle.DiscountAddOn) string {
	if entry.Label != "" {
		return entry.Label
	}
	if entry.DiscountType == bundle.DiscountFreeGift {
		return freeGiftMessage
	}
	return defaultDiscountMessage
}
