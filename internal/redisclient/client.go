package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	catalogKey     = "catalog:products"
	catalogTTL     = 5 * time.Minute
	orderStatusTTL = 24 * time.Hour
)

// Client is the derived read model: a cache of catalog and order
// status snapshots kept in sync by the read-model worker. It is never
// consulted for invariant checks; those always re-read the store
// transactionally.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetProducts returns the cached catalog, or (nil, nil) on a miss
func (c *Client) GetProducts(ctx context.Context) ([]models.Product, error) {
	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("corrupt catalog cache: %w", err)
	}
	return products, nil
}

// SetProducts stores the catalog snapshot
func (c *Client) SetProducts(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, catalogKey, data, catalogTTL).Err()
}

// Invalidate drops the catalog snapshot
func (c *Client) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, catalogKey).Err()
}

// SetOrderStatus caches the latest known status of an order
func (c *Client) SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	return c.rdb.Set(ctx, orderStatusKey(orderID), string(status), orderStatusTTL).Err()
}

// GetOrderStatus returns the cached status of an order, or "" on a miss
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	s, err := c.rdb.Get(ctx, orderStatusKey(orderID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return models.OrderStatus(s), nil
}

func orderStatusKey(orderID string) string {
	return fmt.Sprintf("order:status:%s", orderID)
}
