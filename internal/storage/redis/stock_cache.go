package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/inventory"
)

const (
	availableKeyPrefix = "stock:available:"
	opTimeout          = 2 * time.Second
)

// Атомарная проверка и списание доступного остатка одним шагом.
// -1 означает, что ключ не прогрет и решение за основным хранилищем.
var tryReserveScript = goredis.NewScript(`
local available = redis.call('GET', KEYS[1])
if not available then
	return -1
end

available = tonumber(available)
local qty = tonumber(ARGV[1])
if available >= qty then
	redis.call('DECRBY', KEYS[1], qty)
	return 1
end

return 0
`)

type stockCache struct {
	client *goredis.Client
}

// NewStockCache создаёт Redis-реализацию быстрого счётчика доступности.
// Счётчик — кэш поверх инвентаря, а не источник истины: после каждой
// мутации хранилища его выравнивает Sync.
func NewStockCache(client *goredis.Client) inventory.AvailabilityGuard {
	return &stockCache{client: client}
}

func (c *stockCache) TryReserve(productID string, qty int64) (inventory.GuardDecision, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	result, err := tryReserveScript.Run(ctx, c.client, []string{availableKey(productID)}, qty).Int()
	if err != nil {
		return inventory.GuardUnknown, fmt.Errorf("guard try reserve %s: %w", productID, err)
	}

	switch result {
	case 1:
		return inventory.GuardAllow, nil
	case 0:
		return inventory.GuardDeny, nil
	default:
		return inventory.GuardUnknown, nil
	}
}

func (c *stockCache) Restore(productID string, qty int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Вызывается только после успешного TryReserve, ключ уже существует.
	if err := c.client.IncrBy(ctx, availableKey(productID), qty).Err(); err != nil {
		return fmt.Errorf("guard restore %s: %w", productID, err)
	}
	return nil
}

func (c *stockCache) Sync(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, availableKey(record.ProductID), record.Available(), 0).Err(); err != nil {
		return fmt.Errorf("guard sync %s: %w", record.ProductID, err)
	}
	return nil
}

func availableKey(productID string) string {
	return availableKeyPrefix + productID
}

var _ inventory.AvailabilityGuard = (*stockCache)(nil)
