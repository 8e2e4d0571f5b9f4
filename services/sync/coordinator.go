package sync

import (
	"context"
	"time"

	"bundlesync/pkg/config"
	"bundlesync/services/bundle"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator rebuilds and republishes all derived state for one bundle:
// widget configs into metafield slots and the discount config into the
// external discount resource. Each leg is independently fault-isolated; a
// pass always runs to completion and reports, never short-circuits.
type Coordinator struct {
	repo       bundle.Repository
	metafields MetafieldAPI
	discounts  DiscountAPI
	handles    HandleResolver

	shopID       string
	concurrency  int
	writeTimeout time.Duration

	log *zap.Logger
}

type CoordinatorParams struct {
	fx.In

	Repo       bundle.Repository
	Metafields MetafieldAPI
	Discounts  DiscountAPI
	Handles    HandleResolver `optional:"true"`
	Config     *config.Config
	Logger     *zap.Logger
}

func NewCoordinator(p CoordinatorParams) *Coordinator {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		repo:         p.Repo,
		metafields:   p.Metafields,
		discounts:    p.Discounts,
		handles:      p.Handles,
		shopID:       p.Config.Platform.ShopID,
		concurrency:  p.Config.Sync.SlotConcurrency,
		writeTimeout: p.Config.Sync.WriteTimeout,
		log:          log,
	}
}

// Sync reloads the bundle fresh from the source of truth and republishes all
// derived state. Re-running with no intervening mutation rewrites identical
// external state, so concurrent passes for the same bundle are safe.
func (c *Coordinator) Sync(ctx context.Context, bundleID string) (*SyncReport, error) {
	b, err := c.repo.GetWithAssociations(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	return c.syncLoaded(ctx, b), nil
}

// Clear removes whichever slots the bundle's targeting implies, regardless
// of its status. Used after the source-of-truth row is deleted, when no
// fresh reload is possible.
func (c *Coordinator) Clear(ctx context.Context, b *bundle.Bundle) *SyncReport {
	report := &SyncReport{BundleID: b.BundleID}
	plan := Route(b)
	plan.Clear = true
	report.Slots = c.applySlots(ctx, c.planOps(b, plan, nil))
	return report
}

func (c *Coordinator) syncLoaded(ctx context.Context, b *bundle.Bundle) *SyncReport {
	report := &SyncReport{BundleID: b.BundleID}
	plan := Route(b)

	if plan.Clear {
		report.Slots = c.applySlots(ctx, c.planOps(b, plan, nil))

		// A lingering resource here means a deactivation's delete failed;
		// remove it so an inactive bundle never keeps discounting.
		if b.ExternalDiscountID != "" {
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.discounts.Delete(wctx, b.ExternalDiscountID)
			cancel()
			if err != nil {
				report.DiscountError = err.Error()
				c.log.Error("discount resource delete failed",
					zap.String("bundle_id", b.BundleID),
					zap.String("discount_id", b.ExternalDiscountID),
					zap.Error(err),
				)
			} else if err := c.repo.ClearExternalDiscountID(ctx, b.BundleID); err != nil {
				report.DiscountError = err.Error()
			}
		}
		return report
	}

	handles := c.resolveHandles(ctx, b)
	report.Slots = c.applySlots(ctx, c.planOps(b, plan, handles))

	// Creation happens on activation transitions; here we only refresh an
	// already-live resource.
	if b.ExternalDiscountID != "" {
		wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
		err := c.discounts.Update(wctx, b.ExternalDiscountID, DiscountInputFromBundle(b))
		cancel()
		if err != nil {
			report.DiscountError = err.Error()
			c.log.Error("discount resource update failed",
				zap.String("bundle_id", b.BundleID),
				zap.String("discount_id", b.ExternalDiscountID),
				zap.Error(err),
			)
		}
	}

	return report
}

type slotOp struct {
	ownerID string
	key     string
	action  SlotAction
	value   any
}

// planOps expands a publication plan into concrete slot operations. All
// publish payloads for one pass come from the same loaded snapshot.
func (c *Coordinator) planOps(b *bundle.Bundle, plan PublicationPlan, handles map[string]string) []slotOp {
	action := ActionPublish
	if plan.Clear {
		action = ActionClear
	}

	var ops []slotOp
	switch plan.Kind {
	case PlanGlobal:
		op := slotOp{ownerID: c.shopID, key: ShopConfigKey, action: action}
		if !plan.Clear {
			op.value = bundle.BuildWidgetConfig(b, b.AddOnSets, b.Style, handles)
		}
		ops = append(ops, op)

	case PlanPerProduct:
		var cfg bundle.WidgetConfig
		if !plan.Clear {
			cfg = bundle.BuildWidgetConfig(b, b.AddOnSets, b.Style, handles)
		}
		for _, pid := range plan.ProductIDs {
			op := slotOp{ownerID: pid, key: ProductConfigKey, action: action}
			if !plan.Clear {
				op.value = cfg
			}
			ops = append(ops, op)
		}

	case PlanPerGroup:
		for _, gt := range plan.Groups {
			var cfg bundle.WidgetConfig
			if !plan.Clear {
				cfg = bundle.BuildWidgetConfigForGroup(b, b.AddOnSets, b.Style, handles, gt.Group)
			}
			for _, pid := range gt.ProductIDs {
				op := slotOp{ownerID: pid, key: ProductConfigKey, action: action}
				if !plan.Clear {
					op.value = cfg
				}
				ops = append(ops, op)
			}
		}
	}

	return ops
}

// applySlots issues slot writes concurrently. There is no ordering
// dependency between two slots, but a failure in one never aborts the
// others: every op records its own result.
func (c *Coordinator) applySlots(ctx context.Context, ops []slotOp) []SlotResult {
	results := make([]SlotResult, len(ops))

	wg := errgroup.Group{}
	wg.SetLimit(c.concurrency)
	for i, op := range ops {
		i, op := i, op
		wg.Go(func() error {
			res := SlotResult{OwnerID: op.ownerID, Key: op.key, Action: op.action}

			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			defer cancel()

			var err error
			if op.action == ActionClear {
				err = c.metafields.Delete(wctx, op.ownerID, MetafieldNamespace, op.key)
			} else {
				err = c.metafields.Write(wctx, op.ownerID, MetafieldNamespace, op.key, op.value)
			}
			if err != nil {
				res.Error = err.Error()
				c.log.Warn("metafield slot operation failed",
					zap.String("owner_id", op.ownerID),
					zap.String("key", op.key),
					zap.String("action", string(op.action)),
					zap.Error(err),
				)
			}

			results[i] = res
			return nil
		})
	}
	_ = wg.Wait()

	return results
}

func (c *Coordinator) resolveHandles(ctx context.Context, b *bundle.Bundle) map[string]string {
	if c.handles == nil || len(b.AddOnSets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(b.AddOnSets))
	seen := make(map[string]bool, len(b.AddOnSets))
	for _, a := range b.AddOnSets {
		if a.ProductID == "" || seen[a.ProductID] {
			continue
		}
		seen[a.ProductID] = true
		ids = append(ids, a.ProductID)
	}

	handles, err := c.handles.Handles(ctx, ids)
	if err != nil {
		c.log.Debug("product handle lookup failed, degrading display links",
			zap.String("bundle_id", b.BundleID), zap.Error(err))
		return nil
	}
	return handles
}
