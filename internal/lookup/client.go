package lookup

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/gateway"
)

const (
	opItemDetails = "item_details"
	opItemOrders  = "item_orders"
)

// Client performs secondary market lookups through the shared gateway
// with cache-aside reads. It carries no pricing logic; callers interpret
// the raw payloads.
type Client struct {
	gateway gateway.Client
	cache   *FileCache
	baseURL string
	logger  *zap.Logger
}

func NewClient(gw gateway.Client, cache *FileCache, baseURL string, logger *zap.Logger) *Client {
	return &Client{
		gateway: gw,
		cache:   cache,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// ItemDetails fetches an item's detail payload, serving from cache when
// fresh.
func (c *Client) ItemDetails(ctx context.Context, slug string) ([]byte, error) {
	if cached := c.cache.Get(opItemDetails, slug); cached != nil {
		c.logger.Debug("item details cache hit", zap.String("slug", slug))
		return cached, nil
	}

	url := fmt.Sprintf("%s/items/%s", c.baseURL, slug)
	payload, err := c.gateway.GetJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching item details: %w", err)
	}

	c.cache.Set(opItemDetails, payload, slug)
	return payload, nil
}

// ItemOrders fetches an item's top orders, optionally narrowed to a mod
// rank. Rank participates in the cache key.
func (c *Client) ItemOrders(ctx context.Context, slug string, rank int) ([]byte, error) {
	rankArg := fmt.Sprintf("rank=%d", rank)
	if cached := c.cache.Get(opItemOrders, slug, rankArg); cached != nil {
		c.logger.Debug("item orders cache hit", zap.String("slug", slug), zap.Int("rank", rank))
		return cached, nil
	}

	url := fmt.Sprintf("%s/orders/item/%s/top", c.baseURL, slug)
	if rank >= 0 {
		url += fmt.Sprintf("?rank=%d", rank)
	}
	payload, err := c.gateway.GetJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching item orders: %w", err)
	}

	c.cache.Set(opItemOrders, payload, slug, rankArg)
	return payload, nil
}
