package admin

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bundlesync/pkg/config"
	"bundlesync/services/bundle"
	syncsvc "bundlesync/services/sync"
	"bundlesync/services/testutil"
)

type fakePlatform struct {
	mu sync.Mutex

	writes  map[string]int
	values  map[string]any
	deletes map[string]int

	discounts      map[string]syncsvc.DiscountInput
	nextDiscountID int
	failDiscounts  error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		writes:    make(map[string]int),
		values:    make(map[string]any),
		deletes:   make(map[string]int),
		discounts: make(map[string]syncsvc.DiscountInput),
	}
}

func (f *fakePlatform) Write(_ context.Context, ownerID, _, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot := ownerID + "/" + key
	f.writes[slot]++
	f.values[slot] = value
	return nil
}

func (f *fakePlatform) Delete(_ context.Context, ownerID, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[ownerID+"/"+key]++
	return nil
}

type fakeDiscountAPI struct{ p *fakePlatform }

func (f fakeDiscountAPI) Create(_ context.Context, in syncsvc.DiscountInput) (string, error) {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	if f.p.failDiscounts != nil {
		return "", f.p.failDiscounts
	}
	f.p.nextDiscountID++
	id := "disc-" + strconv.Itoa(f.p.nextDiscountID)
	f.p.discounts[id] = in
	return id, nil
}

func (f fakeDiscountAPI) Update(_ context.Context, id string, in syncsvc.DiscountInput) error {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	if f.p.failDiscounts != nil {
		return f.p.failDiscounts
	}
	f.p.discounts[id] = in
	return nil
}

func (f fakeDiscountAPI) Delete(_ context.Context, id string) error {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	if f.p.failDiscounts != nil {
		return f.p.failDiscounts
	}
	delete(f.p.discounts, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakePlatform) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Platform.ShopID = "shop-1"
	cfg.Sync.SlotConcurrency = 2
	cfg.Sync.WriteTimeout = time.Second
	cfg.Sync.ResyncDelay = time.Minute

	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	platform := newFakePlatform()
	discounts := fakeDiscountAPI{p: platform}

	coordinator := syncsvc.NewCoordinator(syncsvc.CoordinatorParams{
		Repo:       repo,
		Metafields: platform,
		Discounts:  discounts,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	lifecycle := syncsvc.NewLifecycleManager(syncsvc.LifecycleParams{
		Repo:      repo,
		Discounts: discounts,
		Config:    cfg,
		Logger:    zap.NewNop(),
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		Config:      cfg,
		Repo:        repo,
		Coordinator: coordinator,
		Lifecycle:   lifecycle,
		Node:        node,
		Logger:      zap.NewNop(),
	})
	return svc, platform
}

func createWithAddOns(t *testing.T, svc *Service) *bundle.Bundle {
	t.Helper()
	ctx := context.Background()

	b, _, err := svc.CreateBundle(ctx, CreateBundleInput{Title: "Complete the Look"})
	require.NoError(t, err)

	v := 20.0
	_, _, err = svc.ReplaceAddOns(ctx, b.BundleID, []AddOnInput{
		{
			ProductID:     "p-addon",
			Title:         "Laces",
			DiscountType:  bundle.DiscountPercentage,
			DiscountValue: &v,
			MaxQuantity:   3,
			Variants:      []VariantInput{{ExternalID: "v1", Price: 10}},
		},
	})
	require.NoError(t, err)
	return b
}

func TestCreateBundleDefaults(t *testing.T) {
	svc, platform := newTestService(t)

	b, report, err := svc.CreateBundle(context.Background(), CreateBundleInput{Title: "Complete the Look"})
	require.NoError(t, err)

	require.NotEmpty(t, b.BundleID)
	require.Equal(t, bundle.StatusDraft, b.Status)
	require.Equal(t, "complete-the-look", b.Handle)
	require.Equal(t, bundle.SelectionMultiple, b.SelectionMode)
	require.Equal(t, bundle.TargetingAll, b.TargetingType)

	require.False(t, report.HasFailures())
	require.Empty(t, platform.writes, "a draft publishes nothing")
	require.Empty(t, platform.discounts)
}

func TestActivationEndToEnd(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	updated, report, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	require.Equal(t, bundle.StatusActive, updated.Status)
	require.NotEmpty(t, updated.ExternalDiscountID, "activation materializes the discount resource")
	require.Contains(t, platform.discounts, updated.ExternalDiscountID)

	cfg := platform.discounts[updated.ExternalDiscountID].Config
	require.Equal(t, b.BundleID, cfg.BundleID)
	require.Equal(t, []string{"v1"}, cfg.AddOns[0].TargetVariantIDs)

	require.Equal(t, 1, platform.writes["shop-1/"+syncsvc.ShopConfigKey])
}

func TestDeactivationRemovesDerivedState(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	_, _, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)

	archived := bundle.StatusArchived
	updated, report, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &archived})
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	require.Empty(t, updated.ExternalDiscountID)
	require.Empty(t, platform.discounts, "deactivation deletes the live resource")
	require.NotZero(t, platform.deletes["shop-1/"+syncsvc.ShopConfigKey])
}

func TestUpdateWhileActiveRefreshesResource(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	updated, _, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)
	discountID := updated.ExternalDiscountID

	title := "Complete the Outfit"
	updated, report, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Title: &title})
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	require.Equal(t, discountID, updated.ExternalDiscountID, "in-place edits keep the same resource")
	require.Equal(t, "Complete the Outfit", platform.discounts[discountID].Title)
	require.Equal(t, "complete-the-outfit", updated.Handle)
}

func TestLifecycleFailureSurfacedNotFatal(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)
	platform.failDiscounts = errors.New("rule service down")

	active := bundle.StatusActive
	updated, report, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err, "the local write sticks even when the platform is down")

	require.Equal(t, bundle.StatusActive, updated.Status)
	require.Empty(t, updated.ExternalDiscountID)
	require.True(t, report.HasDiscountFailure())
}

func TestReplaceAddOnsRejectsDuplicateVariant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	v := 10.0
	_, _, err := svc.ReplaceAddOns(ctx, b.BundleID, []AddOnInput{
		{ProductID: "p1", Title: "One", DiscountType: bundle.DiscountPercentage, DiscountValue: &v,
			Variants: []VariantInput{{ExternalID: "v1"}}},
		{ProductID: "p2", Title: "Two", DiscountType: bundle.DiscountPercentage, DiscountValue: &v,
			Variants: []VariantInput{{ExternalID: "v1"}}},
	})
	require.Error(t, err)
}

func TestReplaceAddOnsValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	over := 150.0
	_, _, err := svc.ReplaceAddOns(ctx, b.BundleID, []AddOnInput{
		{ProductID: "p1", Title: "One", DiscountType: bundle.DiscountPercentage, DiscountValue: &over},
	})
	require.Error(t, err, "percentage above 100 rejected")

	gift := 5.0
	_, _, err = svc.ReplaceAddOns(ctx, b.BundleID, []AddOnInput{
		{ProductID: "p1", Title: "One", DiscountType: bundle.DiscountFreeGift, DiscountValue: &gift},
	})
	require.Error(t, err, "free gift must not carry a value")
}

func TestReplaceTargetingClearsOldSlots(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	_, _, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)
	require.Equal(t, 1, platform.writes["shop-1/"+syncsvc.ShopConfigKey])

	_, report, err := svc.ReplaceTargeting(ctx, b.BundleID, TargetingInput{
		TargetingType: bundle.TargetingSpecific,
		Items:         []TargetedItemInput{{ResourceID: "p-main", ResourceType: bundle.ResourceProduct}},
	})
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	require.NotZero(t, platform.deletes["shop-1/"+syncsvc.ShopConfigKey],
		"the old global slot is cleared when targeting narrows")
	require.Equal(t, 1, platform.writes["p-main/"+syncsvc.ProductConfigKey])
}

func TestDeleteBundleRemovesEverything(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	_, _, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)

	report, err := svc.DeleteBundle(ctx, b.BundleID)
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	require.Empty(t, platform.discounts)
	require.NotZero(t, platform.deletes["shop-1/"+syncsvc.ShopConfigKey])

	_, err = svc.GetBundle(ctx, b.BundleID)
	require.Error(t, err)
}

func TestResyncHealsAfterOutage(t *testing.T) {
	svc, platform := newTestService(t)
	ctx := context.Background()
	b := createWithAddOns(t, svc)

	active := bundle.StatusActive
	updated, _, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Status: &active})
	require.NoError(t, err)

	platform.failDiscounts = errors.New("rule service down")
	title := "New Title"
	_, report, err := svc.UpdateBundle(ctx, b.BundleID, UpdateBundleInput{Title: &title})
	require.NoError(t, err)
	require.True(t, report.HasDiscountFailure())
	require.NotEqual(t, "New Title", platform.discounts[updated.ExternalDiscountID].Title)

	platform.failDiscounts = nil
	report, err = svc.Resync(ctx, b.BundleID)
	require.NoError(t, err)
	require.False(t, report.HasFailures())
	require.Equal(t, "New Title", platform.discounts[updated.ExternalDiscountID].Title)
}

func TestGetBundleScopedToShop(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetBundle(context.Background(), "missing")
	require.Error(t, err)
}

func TestListBundles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateBundle(ctx, CreateBundleInput{Title: "First"})
	require.NoError(t, err)
	_, _, err = svc.CreateBundle(ctx, CreateBundleInput{Title: "Second"})
	require.NoError(t, err)

	bundles, err := svc.ListBundles(ctx, bundle.ListParams{})
	require.NoError(t, err)
	require.Len(t, bundles, 2)
}
