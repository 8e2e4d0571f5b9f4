package bundle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bundlesync/services/bundle"
	"bundlesync/services/testutil"
)

func seed(t *testing.T, repo bundle.Repository) *bundle.Bundle {
	t.Helper()

	v := 20.0
	b := &bundle.Bundle{
		BundleID:      "b1",
		ShopID:        "shop-1",
		Title:         "Complete the Look",
		Status:        bundle.StatusDraft,
		SelectionMode: bundle.SelectionMultiple,
		TargetingType: bundle.TargetingAll,
		AddOnSets: []bundle.AddOnSet{
			{
				AddOnID:       "a1",
				BundleID:      "b1",
				ProductID:     "p1",
				Title:         "Laces",
				DiscountType:  bundle.DiscountPercentage,
				DiscountValue: &v,
				Variants:      []bundle.Variant{{ID: "r1", AddOnID: "a1", ExternalID: "v1", Price: 10}},
			},
		},
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestRepositoryGetWithAssociations(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	seed(t, repo)

	got, err := repo.GetWithAssociations(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, got.AddOnSets, 1)
	require.Len(t, got.AddOnSets[0].Variants, 1)
	require.Equal(t, "v1", got.AddOnSets[0].Variants[0].ExternalID)
	require.Nil(t, got.Style)
}

func TestRepositoryGetByIDScopesShop(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	seed(t, repo)

	_, err := repo.GetByID(context.Background(), "other-shop", "b1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryReplaceAddOnSets(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	seed(t, repo)
	ctx := context.Background()

	v := 5.0
	err := repo.ReplaceAddOnSets(ctx, "b1", []bundle.AddOnSet{
		{
			AddOnID:       "a2",
			BundleID:      "b1",
			ProductID:     "p2",
			Title:         "Cleaner",
			DiscountType:  bundle.DiscountFixedAmount,
			DiscountValue: &v,
			Variants:      []bundle.Variant{{ID: "r2", AddOnID: "a2", ExternalID: "v2", Price: 8}},
		},
	})
	require.NoError(t, err)

	got, err := repo.GetWithAssociations(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got.AddOnSets, 1, "replacement is wholesale, not additive")
	require.Equal(t, "a2", got.AddOnSets[0].AddOnID)
	require.Equal(t, "v2", got.AddOnSets[0].Variants[0].ExternalID)
}

func TestRepositoryReplaceTargeting(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	seed(t, repo)
	ctx := context.Background()

	err := repo.ReplaceTargeting(ctx, "b1", bundle.TargetingGrouped, nil, []bundle.ProductGroup{
		{
			GroupID:  "g1",
			BundleID: "b1",
			Title:    "Shoes",
			Items:    []bundle.ProductGroupItem{{ID: "i1", GroupID: "g1", ProductID: "p1"}},
		},
	})
	require.NoError(t, err)

	got, err := repo.GetWithAssociations(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, bundle.TargetingGrouped, got.TargetingType)
	require.Len(t, got.ProductGroups, 1)
	require.Equal(t, []string{"p1"}, got.ProductGroups[0].ProductIDs())

	// Switching back drops the groups.
	require.NoError(t, repo.ReplaceTargeting(ctx, "b1", bundle.TargetingAll, nil, nil))
	got, err = repo.GetWithAssociations(ctx, "b1")
	require.NoError(t, err)
	require.Empty(t, got.ProductGroups)
}

func TestRepositoryUpsertStyle(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpsertStyle(ctx, &bundle.WidgetStyle{BundleID: "b1", AccentColor: "#FF0000"}))
	require.NoError(t, repo.UpsertStyle(ctx, &bundle.WidgetStyle{BundleID: "b1", AccentColor: "#00FF00"}))

	got, err := repo.GetWithAssociations(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got.Style)
	require.Equal(t, "#00FF00", got.Style.AccentColor)
}

func TestRepositoryDeleteCascades(t *testing.T) {
	db := testutil.NewBundleDB(t)
	repo := bundle.NewRepository(db)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceTargeting(ctx, "b1", bundle.TargetingGrouped, nil, []bundle.ProductGroup{
		{
			GroupID:  "g1",
			BundleID: "b1",
			Title:    "Shoes",
			Items:    []bundle.ProductGroupItem{{ID: "i1", GroupID: "g1", ProductID: "p1"}},
		},
	}))
	require.NoError(t, repo.UpsertStyle(ctx, &bundle.WidgetStyle{BundleID: "b1", AccentColor: "#FF0000"}))

	require.NoError(t, repo.Delete(ctx, "shop-1", "b1"))

	_, err := repo.GetWithAssociations(ctx, "b1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The test database enforces no foreign keys, so orphans in the child
	// tables would survive a bundle-row-only delete. Every owned row must go.
	for _, model := range []any{
		&bundle.AddOnSet{}, &bundle.Variant{},
		&bundle.ProductGroup{}, &bundle.ProductGroupItem{},
		&bundle.TargetedItem{}, &bundle.WidgetStyle{},
	} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		require.Zero(t, n, "no %T rows may outlive the bundle", model)
	}

	require.ErrorIs(t, repo.Delete(ctx, "shop-1", "b1"), gorm.ErrRecordNotFound)
}

func TestRepositoryListExcludesArchivedByDefault(t *testing.T) {
	repo := bundle.NewRepository(testutil.NewBundleDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &bundle.Bundle{BundleID: "b1", ShopID: "shop-1", Title: "One", Status: bundle.StatusDraft}))
	require.NoError(t, repo.Create(ctx, &bundle.Bundle{BundleID: "b2", ShopID: "shop-1", Title: "Two", Status: bundle.StatusArchived}))

	got, err := repo.List(ctx, "shop-1", bundle.ListParams{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = repo.List(ctx, "shop-1", bundle.ListParams{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = repo.List(ctx, "shop-1", bundle.ListParams{Status: bundle.StatusArchived})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b2", got[0].BundleID)
}
