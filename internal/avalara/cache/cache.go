// Package cache stores tax quotes in Redis so an unchanged basket is not
// quoted twice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/config"
)

const keyPrefix = "avalara-"

// QuoteCache is nil when caching is disabled; every method tolerates that.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg config.Config) (*QuoteCache, error) {
	cacheCfg := cfg.Cache
	if !cacheCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cacheCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("cache redis addr is required")
	}
	if cacheCfg.TTLSeconds < 0 {
		return nil, errors.New("cache ttl cannot be negative")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cacheCfg.RedisPassword),
		DB:       cacheCfg.RedisDB,
	})
	return NewWithClient(client, time.Duration(cacheCfg.TTLSeconds)*time.Second), nil
}

// NewWithClient wraps an existing client. A zero ttl keeps entries forever.
func NewWithClient(client *redis.Client, ttl time.Duration) *QuoteCache {
	if client == nil {
		return nil
	}
	return &QuoteCache{client: client, ttl: ttl}
}

func (c *QuoteCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *QuoteCache) Get(ctx context.Context, payload *avalaradomain.TaxQuoteRequest) (*avalaradomain.TaxQuoteResponse, bool, error) {
	if !c.Enabled() || payload == nil {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, Key(payload)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var resp avalaradomain.TaxQuoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached quote: %w", err)
	}
	resp.Raw = raw
	return &resp, true, nil
}

// Set stores the raw response body, so a hit decodes exactly what the
// service sent.
func (c *QuoteCache) Set(ctx context.Context, payload *avalaradomain.TaxQuoteRequest, resp *avalaradomain.TaxQuoteResponse) error {
	if !c.Enabled() || payload == nil || resp == nil {
		return nil
	}

	value := []byte(resp.Raw)
	if len(value) == 0 {
		encoded, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		value = encoded
	}
	return c.client.Set(ctx, Key(payload), value, c.ttl).Err()
}

func (c *QuoteCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Key changes whenever anything that can move the tax changes: the customer,
// the document date, the destination, or any line's amount, item, tax code,
// quantity, number or origin. The document code is left out so that repeated
// quotes for one basket share an entry.
func Key(payload *avalaradomain.TaxQuoteRequest) string {
	parts := make([]string, 0, 3+8*len(payload.Lines))
	parts = append(parts, payload.CustomerCode, payload.Date)
	if shipTo, ok := payload.Addresses[avalaradomain.AddressRoleShipTo]; ok {
		parts = append(parts, shipTo.Code())
	}
	for _, line := range payload.Lines {
		parts = append(parts,
			line.Amount.String(),
			line.ItemCode,
			line.TaxCode,
			strconv.Itoa(line.Quantity),
			line.Number,
			line.OriginCode,
		)
		if shipFrom, ok := line.Addresses[avalaradomain.AddressRoleShipFrom]; ok {
			parts = append(parts, shipFrom.Code())
		}
	}
	return keyPrefix + strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte(strings.Join(parts, "-")))), 10)
}
