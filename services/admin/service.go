package admin

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	pkgasynq "bundlesync/pkg/asynq"
	"bundlesync/pkg/config"
	"bundlesync/pkg/errutil"
	"bundlesync/services/bundle"
	"bundlesync/services/sync"
)

type ServiceParams struct {
	fx.In

	Config      *config.Config
	Repo        bundle.Repository
	Coordinator *sync.Coordinator
	Lifecycle   *sync.LifecycleManager
	Node        *snowflake.Node
	Tasks       *asynq.Client `optional:"true"`
	Logger      *zap.Logger
}

// Service is the admin mutation boundary. Every operation that changes
// bundle, add-on, targeting or style state commits first, then runs a full
// sync pass and returns its report alongside the result.
type Service struct {
	repo        bundle.Repository
	coordinator *sync.Coordinator
	lifecycle   *sync.LifecycleManager
	node        *snowflake.Node
	tasks       *asynq.Client
	shopID      string
	resyncDelay time.Duration
	log         *zap.Logger
}

func NewService(p ServiceParams) *Service {
	return &Service{
		repo:        p.Repo,
		coordinator: p.Coordinator,
		lifecycle:   p.Lifecycle,
		node:        p.Node,
		tasks:       p.Tasks,
		shopID:      p.Config.Platform.ShopID,
		resyncDelay: p.Config.Sync.ResyncDelay,
		log:         p.Logger,
	}
}

func (s *Service) CreateBundle(ctx context.Context, in CreateBundleInput) (*bundle.Bundle, *sync.SyncReport, error) {
	b := &bundle.Bundle{
		BundleID:             s.node.Generate().String(),
		ShopID:               s.shopID,
		Title:                in.Title,
		Subtitle:             in.Subtitle,
		Handle:               slug.Make(in.Title),
		Status:               bundle.StatusDraft,
		StartAt:              in.StartAt,
		EndAt:                in.EndAt,
		SelectionMode:        in.SelectionMode,
		TargetingType:        in.TargetingType,
		CombinesWithProduct:  in.CombinesWithProduct,
		CombinesWithOrder:    in.CombinesWithOrder,
		CombinesWithShipping: in.CombinesWithShipping,
	}
	if b.SelectionMode == "" {
		b.SelectionMode = bundle.SelectionMultiple
	}
	if b.TargetingType == "" {
		b.TargetingType = bundle.TargetingAll
	}
	if !validTargetingType(b.TargetingType) {
		return nil, nil, errutil.ValidationFailed("unknown targeting type",
			errutil.WithDetails(errutil.Detail{Field: "targeting_type", Message: string(b.TargetingType)}))
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, nil, errutil.Internal("failed to create bundle", errutil.WithErr(err))
	}

	// A fresh bundle is DRAFT, so this pass only clears slots. Running it
	// anyway keeps the mutation boundary uniform.
	report := s.runSync(ctx, b.BundleID)
	return b, report, nil
}

func (s *Service) GetBundle(ctx context.Context, bundleID string) (*bundle.Bundle, error) {
	b, err := s.repo.GetWithAssociations(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("bundle not found")
		}
		return nil, errutil.Internal("failed to load bundle", errutil.WithErr(err))
	}
	if b.ShopID != s.shopID {
		return nil, errutil.NotFound("bundle not found")
	}
	return b, nil
}

func (s *Service) ListBundles(ctx context.Context, params bundle.ListParams) ([]bundle.Bundle, error) {
	bundles, err := s.repo.List(ctx, s.shopID, params)
	if err != nil {
		return nil, errutil.Internal("failed to list bundles", errutil.WithErr(err))
	}
	return bundles, nil
}

// UpdateBundle applies scalar edits and, when the status changed, walks the
// discount lifecycle before the sync pass. A lifecycle failure does not roll
// back the local write; it is surfaced on the report's discount leg.
func (s *Service) UpdateBundle(ctx context.Context, bundleID string, in UpdateBundleInput) (*bundle.Bundle, *sync.SyncReport, error) {
	b, err := s.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, nil, err
	}

	oldStatus := b.Status
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return nil, nil, errutil.ValidationFailed("unknown bundle status",
				errutil.WithDetails(errutil.Detail{Field: "status", Message: string(*in.Status)}))
		}
		b.Status = *in.Status
	}
	if in.Title != nil {
		b.Title = *in.Title
		b.Handle = slug.Make(*in.Title)
	}
	if in.Subtitle != nil {
		b.Subtitle = *in.Subtitle
	}
	if in.SelectionMode != nil {
		b.SelectionMode = *in.SelectionMode
	}
	if in.StartAt != nil {
		b.StartAt = in.StartAt
	}
	if in.EndAt != nil {
		b.EndAt = in.EndAt
	}
	if in.CombinesWithProduct != nil {
		b.CombinesWithProduct = *in.CombinesWithProduct
	}
	if in.CombinesWithOrder != nil {
		b.CombinesWithOrder = *in.CombinesWithOrder
	}
	if in.CombinesWithShipping != nil {
		b.CombinesWithShipping = *in.CombinesWithShipping
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, nil, errutil.Internal("failed to update bundle", errutil.WithErr(err))
	}

	var discountErr string
	if b.Status != oldStatus {
		if err := s.lifecycle.Transition(ctx, bundleID, oldStatus, b.Status); err != nil {
			discountErr = err.Error()
			s.log.Warn("discount lifecycle transition failed",
				zap.String("bundle_id", bundleID),
				zap.String("from", string(oldStatus)),
				zap.String("to", string(b.Status)),
				zap.Error(err))
		}
	}

	report := s.runSync(ctx, bundleID)
	if discountErr != "" && report.DiscountError == "" {
		report.DiscountError = discountErr
	}

	fresh, err := s.repo.GetWithAssociations(ctx, bundleID)
	if err != nil {
		return b, report, nil
	}
	return fresh, report, nil
}

// DeleteBundle removes the external discount and published configs before
// dropping the local row. Remote failures are reported, not fatal; the row is
// deleted regardless so the merchant is never stuck with an undeletable
// bundle.
func (s *Service) DeleteBundle(ctx context.Context, bundleID string) (*sync.SyncReport, error) {
	b, err := s.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	report := s.coordinator.Clear(ctx, b)
	if err := s.lifecycle.OnDelete(ctx, b); err != nil {
		report.DiscountError = err.Error()
		s.log.Warn("failed to delete external discount",
			zap.String("bundle_id", bundleID), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, s.shopID, bundleID); err != nil {
		return report, errutil.Internal("failed to delete bundle", errutil.WithErr(err))
	}
	return report, nil
}

// ReplaceAddOns swaps the bundle's add-on sets wholesale and republishes.
func (s *Service) ReplaceAddOns(ctx context.Context, bundleID string, in []AddOnInput) (*bundle.Bundle, *sync.SyncReport, error) {
	if _, err := s.GetBundle(ctx, bundleID); err != nil {
		return nil, nil, err
	}
	if err := validateAddOns(in); err != nil {
		return nil, nil, err
	}

	sets := make([]bundle.AddOnSet, 0, len(in))
	for i, a := range in {
		set := bundle.AddOnSet{
			AddOnID:              s.node.Generate().String(),
			BundleID:             bundleID,
			ProductID:            a.ProductID,
			Title:                a.Title,
			ImageURL:             a.ImageURL,
			DiscountType:         a.DiscountType,
			DiscountValue:        a.DiscountValue,
			Label:                a.Label,
			IsDefaultSelected:    a.IsDefaultSelected,
			SubscriptionOnly:     a.SubscriptionOnly,
			ShowQuantitySelector: a.ShowQuantitySelector,
			MaxQuantity:          a.MaxQuantity,
			Position:             i,
		}
		for _, v := range a.Variants {
			set.Variants = append(set.Variants, bundle.Variant{
				ID:             s.node.Generate().String(),
				AddOnID:        set.AddOnID,
				ExternalID:     v.ExternalID,
				Title:          v.Title,
				Price:          v.Price,
				CompareAtPrice: v.CompareAtPrice,
			})
		}
		sets = append(sets, set)
	}

	if err := s.repo.ReplaceAddOnSets(ctx, bundleID, sets); err != nil {
		return nil, nil, errutil.Internal("failed to replace add-ons", errutil.WithErr(err))
	}

	report := s.runSync(ctx, bundleID)
	fresh, _ := s.repo.GetWithAssociations(ctx, bundleID)
	return fresh, report, nil
}

// ReplaceTargeting swaps targeting wholesale. Slots published under the old
// targeting are cleared first so products dropped from the audience do not
// keep a stale config.
func (s *Service) ReplaceTargeting(ctx context.Context, bundleID string, in TargetingInput) (*bundle.Bundle, *sync.SyncReport, error) {
	old, err := s.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, nil, err
	}
	if err := validateTargeting(in); err != nil {
		return nil, nil, err
	}

	items := make([]bundle.TargetedItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, bundle.TargetedItem{
			ID:           s.node.Generate().String(),
			BundleID:     bundleID,
			ResourceID:   it.ResourceID,
			ResourceType: it.ResourceType,
		})
	}
	groups := make([]bundle.ProductGroup, 0, len(in.Groups))
	for i, g := range in.Groups {
		group := bundle.ProductGroup{
			GroupID:  s.node.Generate().String(),
			BundleID: bundleID,
			Title:    g.Title,
			Position: i,
		}
		for _, pid := range g.ProductIDs {
			group.Items = append(group.Items, bundle.ProductGroupItem{
				ID:        s.node.Generate().String(),
				GroupID:   group.GroupID,
				ProductID: pid,
			})
		}
		groups = append(groups, group)
	}

	if err := s.repo.ReplaceTargeting(ctx, bundleID, in.TargetingType, items, groups); err != nil {
		return nil, nil, errutil.Internal("failed to replace targeting", errutil.WithErr(err))
	}

	var cleared *sync.SyncReport
	if old.Status == bundle.StatusActive {
		cleared = s.coordinator.Clear(ctx, old)
	}

	report := s.runSync(ctx, bundleID)
	if cleared != nil {
		report.Slots = append(cleared.Slots, report.Slots...)
	}

	fresh, _ := s.repo.GetWithAssociations(ctx, bundleID)
	return fresh, report, nil
}

func (s *Service) UpsertStyle(ctx context.Context, bundleID string, in StyleInput) (*bundle.WidgetStyle, *sync.SyncReport, error) {
	if _, err := s.GetBundle(ctx, bundleID); err != nil {
		return nil, nil, err
	}

	style := &bundle.WidgetStyle{
		BundleID:        bundleID,
		AccentColor:     in.AccentColor,
		BackgroundColor: in.BackgroundColor,
		TextColor:       in.TextColor,
		BorderRadius:    in.BorderRadius,
		FontFamily:      in.FontFamily,
		Layout:          in.Layout,
		ShowImages:      in.ShowImages,
		ShowPrices:      in.ShowPrices,
	}
	if len(in.Overrides) > 0 {
		style.Overrides = datatypes.JSON(in.Overrides)
	}

	if err := s.repo.UpsertStyle(ctx, style); err != nil {
		return nil, nil, errutil.Internal("failed to save style", errutil.WithErr(err))
	}

	report := s.runSync(ctx, bundleID)
	return style, report, nil
}

// Resync re-runs a full sync pass without mutating anything. Exposed so
// support can heal a bundle whose last pass partially failed.
func (s *Service) Resync(ctx context.Context, bundleID string) (*sync.SyncReport, error) {
	if _, err := s.GetBundle(ctx, bundleID); err != nil {
		return nil, err
	}
	report, err := s.coordinator.Sync(ctx, bundleID)
	if err != nil {
		return nil, errutil.Internal("sync pass failed", errutil.WithErr(err))
	}
	return report, nil
}

// runSync executes one sync pass and, when any leg failed, schedules a
// delayed retry on the low queue. Failures never fail the admin operation.
func (s *Service) runSync(ctx context.Context, bundleID string) *sync.SyncReport {
	report, err := s.coordinator.Sync(ctx, bundleID)
	if err != nil {
		s.log.Error("sync pass failed", zap.String("bundle_id", bundleID), zap.Error(err))
		report = &sync.SyncReport{BundleID: bundleID, DiscountError: err.Error()}
	}
	if report.HasFailures() {
		s.enqueueResync(bundleID)
	}
	return report
}

func (s *Service) enqueueResync(bundleID string) {
	if s.tasks == nil {
		return
	}

	payload, err := json.Marshal(pkgasynq.ResyncBundlePayload{BundleID: bundleID})
	if err != nil {
		return
	}

	task := asynq.NewTask(pkgasynq.ResyncBundleTask, payload)
	info, err := s.tasks.Enqueue(task,
		asynq.Queue("low"),
		asynq.ProcessIn(s.resyncDelay),
		asynq.MaxRetry(5),
	)
	if err != nil {
		s.log.Warn("failed to enqueue resync task",
			zap.String("bundle_id", bundleID), zap.Error(err))
		return
	}
	s.log.Info("scheduled resync",
		zap.String("bundle_id", bundleID),
		zap.String("task_id", info.ID))
}
