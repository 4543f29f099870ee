package avalara

import (
	"context"

	"github.com/smallbiznis/taxbridge/internal/avalara/cache"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/avalara/gateway"
	"github.com/smallbiznis/taxbridge/internal/avalara/payload"
	"github.com/smallbiznis/taxbridge/internal/avalara/repository"
	"github.com/smallbiznis/taxbridge/internal/avalara/service"
	"go.uber.org/fx"
)

var Module = fx.Module("avalara",
	fx.Provide(repository.Provide),
	fx.Provide(payload.NewBuilder),
	fx.Provide(fx.Annotate(gateway.NewClient, fx.As(new(avalaradomain.Gateway)))),
	fx.Provide(cache.New),
	fx.Provide(provideQuoteCache),
	fx.Provide(service.NewService),
	fx.Provide(service.NewAuditService),
	fx.Invoke(registerCacheLifecycle),
)

// provideQuoteCache hands the service a nil interface when caching is off.
func provideQuoteCache(c *cache.QuoteCache) avalaradomain.QuoteCache {
	if !c.Enabled() {
		return nil
	}
	return c
}

func registerCacheLifecycle(lc fx.Lifecycle, c *cache.QuoteCache) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
}
