// internal/service/inventory/redis_store.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// 库存数据布局：
//
//	stock:{productId}                 hash  available / reserved / total
//	reservation:{orderId}:{productId} string 预占数量
//
// 预占和释放各是一个 Lua 脚本，检查和扣减在 redis 内原子完成。
const (
	fieldAvailable = "available"
	fieldReserved  = "reserved"
	fieldTotal     = "total"
)

// reserveScript 返回 1 成功，0 库存不足，-1 商品不存在，2 已按相同数量预占过，3 已有数量不同的预占
var reserveScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[2])
if existing then
  if tonumber(existing) == tonumber(ARGV[1]) then
    return 2
  end
  return 3
end
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local qty = tonumber(ARGV[1])
local available = tonumber(redis.call("HGET", KEYS[1], "available") or "0")
if available < qty then
  return 0
end
redis.call("HINCRBY", KEYS[1], "available", -qty)
redis.call("HINCRBY", KEYS[1], "reserved", qty)
redis.call("SET", KEYS[2], qty)
return 1
`)

// releaseScript 返回归还的数量，没有预占记录时返回 0
var releaseScript = redis.NewScript(`
local qty = tonumber(redis.call("GET", KEYS[2]) or "0")
if qty == 0 then
  return 0
end
redis.call("HINCRBY", KEYS[1], "available", qty)
redis.call("HINCRBY", KEYS[1], "reserved", -qty)
redis.call("DEL", KEYS[2])
return qty
`)

// adjustScript 返回调整后的 available / reserved / total，调整后可用库存为负时返回错误
var adjustScript = redis.NewScript(`
local delta = tonumber(ARGV[1])
local available = tonumber(redis.call("HGET", KEYS[1], "available") or "0")
if available + delta < 0 then
  return redis.error_reply("NEGATIVE_STOCK")
end
redis.call("HINCRBY", KEYS[1], "available", delta)
redis.call("HINCRBY", KEYS[1], "total", delta)
redis.call("HSETNX", KEYS[1], "reserved", 0)
return redis.call("HMGET", KEYS[1], "available", "reserved", "total")
`)

// RedisStore 是基于 redis 的库存账本
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func stockKey(productID string) string {
	return fmt.Sprintf("stock:{%s}", productID)
}

// 预占记录和库存放在同一个 hash slot，集群模式下脚本才能同时访问两个 key
func reservationKey(orderID, productID string) string {
	return fmt.Sprintf("reservation:%s:{%s}", orderID, productID)
}

func (s *RedisStore) Reserve(ctx context.Context, orderID, productID string, quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	code, err := reserveScript.Run(ctx, s.client,
		[]string{stockKey(productID), reservationKey(orderID, productID)}, quantity).Int64()
	if err != nil {
		return fmt.Errorf("reserve script failed: %w", err)
	}

	switch code {
	case 1, 2:
		return nil
	case 0, -1:
		// 商品不存在和库存不足对调用方是同一种业务拒绝
		return ErrInsufficientStock
	case 3:
		return ErrReservationConflict
	default:
		return fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

func (s *RedisStore) Release(ctx context.Context, orderID, productID string) (int64, error) {
	qty, err := releaseScript.Run(ctx, s.client,
		[]string{stockKey(productID), reservationKey(orderID, productID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("release script failed: %w", err)
	}
	return qty, nil
}

func (s *RedisStore) Adjust(ctx context.Context, productID string, delta int64) (Stock, error) {
	vals, err := adjustScript.Run(ctx, s.client, []string{stockKey(productID)}, delta).Slice()
	if err != nil {
		if err.Error() == "NEGATIVE_STOCK" {
			return Stock{}, ErrInvalidQuantity
		}
		return Stock{}, fmt.Errorf("adjust script failed: %w", err)
	}
	nums, err := toInt64s(vals)
	if err != nil {
		return Stock{}, err
	}
	return Stock{ProductID: productID, Available: nums[0], Reserved: nums[1], Total: nums[2]}, nil
}

func (s *RedisStore) Get(ctx context.Context, productID string) (Stock, error) {
	fields, err := s.client.HGetAll(ctx, stockKey(productID)).Result()
	if err != nil {
		return Stock{}, fmt.Errorf("failed to read stock: %w", err)
	}
	if len(fields) == 0 {
		return Stock{}, ErrNotFound
	}

	stock := Stock{ProductID: productID}
	for field, dst := range map[string]*int64{
		fieldAvailable: &stock.Available,
		fieldReserved:  &stock.Reserved,
		fieldTotal:     &stock.Total,
	} {
		if raw, ok := fields[field]; ok {
			if *dst, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return Stock{}, fmt.Errorf("corrupt %s field for %s: %w", field, productID, err)
			}
		}
	}
	return stock, nil
}

func toInt64s(vals []interface{}) ([]int64, error) {
	if len(vals) != 3 {
		return nil, errors.New("unexpected reply length from adjust script")
	}
	out := make([]int64, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected reply type from adjust script: %T", v)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
