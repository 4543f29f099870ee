package avalara

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taxbridge/internal/avalara/cache"
	"github.com/smallbiznis/taxbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideQuoteCacheDisabledIsNilInterface(t *testing.T) {
	disabled, err := cache.New(config.Config{})
	require.NoError(t, err)

	assert.True(t, provideQuoteCache(disabled) == nil)
}

func TestProvideQuoteCacheEnabled(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	enabled := cache.NewWithClient(client, 0)
	provided := provideQuoteCache(enabled)
	require.NotNil(t, provided)
	assert.Same(t, enabled, provided)
}
