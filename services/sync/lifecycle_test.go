package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bundlesync/services/bundle"
	"bundlesync/services/testutil"
)

func newTestLifecycle(t *testing.T, repo bundle.Repository, discounts DiscountAPI) *LifecycleManager {
	t.Helper()
	return NewLifecycleManager(LifecycleParams{
		Repo:      repo,
		Discounts: discounts,
		Config:    testConfig(),
		Logger:    zap.NewNop(),
	})
}

func TestTransitionActivationCreatesResource(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{nextID: "disc-new"}
	mgr := newTestLifecycle(t, repo, discounts)

	b := activeBundle(bundle.TargetingAll)
	b.ExternalDiscountID = ""
	seedBundle(t, repo, b)

	err := mgr.Transition(context.Background(), "b1", bundle.StatusDraft, bundle.StatusActive)
	require.NoError(t, err)
	require.Equal(t, 1, discounts.creates)

	stored, err := repo.GetByID(context.Background(), "shop-1", "b1")
	require.NoError(t, err)
	require.Equal(t, "disc-new", stored.ExternalDiscountID)
}

func TestTransitionReactivationUpdatesInPlace(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{}
	mgr := newTestLifecycle(t, repo, discounts)

	seedBundle(t, repo, activeBundle(bundle.TargetingAll))

	err := mgr.Transition(context.Background(), "b1", bundle.StatusArchived, bundle.StatusActive)
	require.NoError(t, err)

	require.Zero(t, discounts.creates, "a bundle never holds two live resources")
	require.Len(t, discounts.updates, 1)
}

func TestTransitionDeactivationDeletesResource(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{}
	mgr := newTestLifecycle(t, repo, discounts)

	seedBundle(t, repo, activeBundle(bundle.TargetingAll))

	err := mgr.Transition(context.Background(), "b1", bundle.StatusActive, bundle.StatusArchived)
	require.NoError(t, err)
	require.Equal(t, []string{"disc-1"}, discounts.deletes)

	stored, err := repo.GetByID(context.Background(), "shop-1", "b1")
	require.NoError(t, err)
	require.Empty(t, stored.ExternalDiscountID)
}

func TestTransitionBetweenInactiveStatesIsNoop(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{}
	mgr := newTestLifecycle(t, repo, discounts)

	b := activeBundle(bundle.TargetingAll)
	b.Status = bundle.StatusDraft
	b.ExternalDiscountID = ""
	seedBundle(t, repo, b)

	for _, tc := range []struct{ from, to bundle.BundleStatus }{
		{bundle.StatusDraft, bundle.StatusArchived},
		{bundle.StatusArchived, bundle.StatusDraft},
	} {
		err := mgr.Transition(context.Background(), "b1", tc.from, tc.to)
		require.NoError(t, err)
	}

	require.Zero(t, discounts.creates)
	require.Empty(t, discounts.updates)
	require.Empty(t, discounts.deletes)
}

func TestTransitionDeactivationWithoutResourceIsNoop(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{}
	mgr := newTestLifecycle(t, repo, discounts)

	b := activeBundle(bundle.TargetingAll)
	b.ExternalDiscountID = ""
	seedBundle(t, repo, b)

	err := mgr.Transition(context.Background(), "b1", bundle.StatusActive, bundle.StatusDraft)
	require.NoError(t, err)
	require.Empty(t, discounts.deletes)
}

func TestTransitionCreateFailureLeavesIDUnset(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{failCreate: errors.New("rule service down")}
	mgr := newTestLifecycle(t, repo, discounts)

	b := activeBundle(bundle.TargetingAll)
	b.ExternalDiscountID = ""
	seedBundle(t, repo, b)

	err := mgr.Transition(context.Background(), "b1", bundle.StatusDraft, bundle.StatusActive)
	require.Error(t, err)

	stored, err := repo.GetByID(context.Background(), "shop-1", "b1")
	require.NoError(t, err)
	require.Empty(t, stored.ExternalDiscountID)
}

func TestOnDelete(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	discounts := &fakeDiscounts{}
	mgr := newTestLifecycle(t, repo, discounts)

	b := activeBundle(bundle.TargetingAll)
	require.NoError(t, mgr.OnDelete(context.Background(), b))
	require.Equal(t, []string{"disc-1"}, discounts.deletes)

	// No resource, nothing to do.
	discounts.deletes = nil
	b.ExternalDiscountID = ""
	require.NoError(t, mgr.OnDelete(context.Background(), b))
	require.Empty(t, discounts.deletes)
}
