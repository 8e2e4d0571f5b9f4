package sync

import (
	"bundlesync/services/bundle"
)

type PlanKind string

const (
	PlanGlobal     PlanKind = "GLOBAL"
	PlanPerProduct PlanKind = "PER_PRODUCT"
	PlanPerGroup   PlanKind = "PER_GROUP"
)

// GroupTarget maps one product group to the product slots its config
// variant is published to.
type GroupTarget struct {
	Group      *bundle.ProductGroup
	ProductIDs []string
}

// PublicationPlan is the routing decision for one sync pass: which slots
// hold the widget config, and whether they are written or cleared. A
// non-ACTIVE bundle clears the same slots its active plan would have
// covered, so stale data never outlives a deactivation.
type PublicationPlan struct {
	Kind  PlanKind
	Clear bool

	// ProductIDs is set for PER_PRODUCT plans: the targeted items with
	// resource type PRODUCT. Collections are an admin-side selection
	// convenience, not a publication target.
	ProductIDs []string

	// Groups is set for PER_GROUP plans: one config variant per group.
	Groups []GroupTarget
}

// Route decides the publication fan-out from the bundle's targeting type
// and status.
func Route(b *bundle.Bundle) PublicationPlan {
	plan := PublicationPlan{
		Clear: b.Status != bundle.StatusActive,
	}

	switch b.TargetingType {
	case bundle.TargetingSpecific:
		plan.Kind = PlanPerProduct
		for _, item := range b.TargetedItems {
			if item.ResourceType != bundle.ResourceProduct {
				continue
			}
			plan.ProductIDs = append(plan.ProductIDs, item.ResourceID)
		}
	case bundle.TargetingGrouped:
		plan.Kind = PlanPerGroup
		for i := range b.ProductGroups {
			g := &b.ProductGroups[i]
			plan.Groups = append(plan.Groups, GroupTarget{
				Group:      g,
				ProductIDs: g.ProductIDs(),
			})
		}
	default:
		plan.Kind = PlanGlobal
	}

	return plan
}
