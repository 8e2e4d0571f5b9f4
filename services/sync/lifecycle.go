package sync

import (
	"context"
	"time"

	"bundlesync/pkg/config"
	"bundlesync/pkg/errutil"
	"bundlesync/services/bundle"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// LifecycleManager owns the external discount resource's existence. It is
// keyed on the status transition, not the absolute status: "already active,
// still active" takes the update path, never the create path.
type LifecycleManager struct {
	repo      bundle.Repository
	discounts DiscountAPI

	timeout time.Duration
	log     *zap.Logger
}

type LifecycleParams struct {
	fx.In

	Repo      bundle.Repository
	Discounts DiscountAPI
	Config    *config.Config
	Logger    *zap.Logger
}

func NewLifecycleManager(p LifecycleParams) *LifecycleManager {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &LifecycleManager{
		repo:      p.Repo,
		discounts: p.Discounts,
		timeout:   p.Config.Sync.WriteTimeout,
		log:       log,
	}
}

// Transition applies the side effects of a status change. The bundle is
// reloaded fresh so the embedded config reflects the committed state, not a
// caller-supplied copy.
func (m *LifecycleManager) Transition(ctx context.Context, bundleID string, from, to bundle.BundleStatus) error {
	b, err := m.repo.GetWithAssociations(ctx, bundleID)
	if err != nil {
		return err
	}

	switch {
	case to == bundle.StatusActive:
		return m.ensureResource(ctx, b)
	case from == bundle.StatusActive && to != bundle.StatusActive:
		return m.removeResource(ctx, b)
	default:
		// DRAFT <-> ARCHIVED moves have no live resource to touch.
		return nil
	}
}

// OnDelete removes the external resource for a bundle that is about to be
// (or already has been) deleted from the source of truth.
func (m *LifecycleManager) OnDelete(ctx context.Context, b *bundle.Bundle) error {
	if b.ExternalDiscountID == "" {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.discounts.Delete(wctx, b.ExternalDiscountID); err != nil {
		m.log.Error("discount resource delete failed",
			zap.String("bundle_id", b.BundleID),
			zap.String("discount_id", b.ExternalDiscountID),
			zap.Error(err),
		)
		return errutil.BadGateway("failed to delete discount resource", errutil.WithErr(err))
	}

	b.ExternalDiscountID = ""
	return nil
}

// ensureResource creates the resource on first activation and updates it in
// place on every later activation, so a bundle never holds two live
// discount resources.
func (m *LifecycleManager) ensureResource(ctx context.Context, b *bundle.Bundle) error {
	in := DiscountInputFromBundle(b)

	wctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if b.ExternalDiscountID != "" {
		if err := m.discounts.Update(wctx, b.ExternalDiscountID, in); err != nil {
			m.log.Error("discount resource update failed",
				zap.String("bundle_id", b.BundleID),
				zap.String("discount_id", b.ExternalDiscountID),
				zap.Error(err),
			)
			return errutil.BadGateway("failed to update discount resource", errutil.WithErr(err))
		}
		return nil
	}

	id, err := m.discounts.Create(wctx, in)
	if err != nil {
		m.log.Error("discount resource create failed",
			zap.String("bundle_id", b.BundleID),
			zap.Error(err),
		)
		return errutil.BadGateway("failed to create discount resource", errutil.WithErr(err))
	}

	if err := m.repo.SetExternalDiscountID(ctx, b.BundleID, id); err != nil {
		return err
	}
	b.ExternalDiscountID = id

	m.log.Info("discount resource created",
		zap.String("bundle_id", b.BundleID),
		zap.String("discount_id", id),
	)
	return nil
}

func (m *LifecycleManager) removeResource(ctx context.Context, b *bundle.Bundle) error {
	if b.ExternalDiscountID == "" {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.discounts.Delete(wctx, b.ExternalDiscountID); err != nil {
		m.log.Error("discount resource delete failed",
			zap.String("bundle_id", b.BundleID),
			zap.String("discount_id", b.ExternalDiscountID),
			zap.Error(err),
		)
		return errutil.BadGateway("failed to delete discount resource", errutil.WithErr(err))
	}

	if err := m.repo.ClearExternalDiscountID(ctx, b.BundleID); err != nil {
		return err
	}
	b.ExternalDiscountID = ""

	return nil
}
