package platform

import (
	"context"

	"bundlesync/pkg/config"
	"bundlesync/services/sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("platform.module",
	fx.Provide(
		NewClient,
		provideDiscountAPI,
		provideMetafieldAPI,
		provideHandleResolver,
	),
)

type discountAPI struct{ c *Client }

func (a discountAPI) Create(ctx context.Context, in sync.DiscountInput) (string, error) {
	return a.c.CreateDiscount(ctx, in)
}

func (a discountAPI) Update(ctx context.Context, id string, in sync.DiscountInput) error {
	return a.c.UpdateDiscount(ctx, id, in)
}

func (a discountAPI) Delete(ctx context.Context, id string) error {
	return a.c.DeleteDiscount(ctx, id)
}

type metafieldAPI struct{ c *Client }

func (a metafieldAPI) Write(ctx context.Context, ownerID, namespace, key string, value any) error {
	return a.c.WriteMetafield(ctx, ownerID, namespace, key, value)
}

func (a metafieldAPI) Delete(ctx context.Context, ownerID, namespace, key string) error {
	return a.c.DeleteMetafield(ctx, ownerID, namespace, key)
}

func provideDiscountAPI(c *Client) sync.DiscountAPI {
	return discountAPI{c: c}
}

func provideMetafieldAPI(c *Client) sync.MetafieldAPI {
	return metafieldAPI{c: c}
}

type handleResolverParams struct {
	fx.In

	Client *Client
	Redis  *redis.Client `optional:"true"`
	Config *config.Config
	Logger *zap.Logger
}

func provideHandleResolver(p handleResolverParams) sync.HandleResolver {
	return NewHandleCache(p.Client, p.Redis, p.Config.Sync.HandleCacheTTL, p.Logger)
}
