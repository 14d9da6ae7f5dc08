package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type redisStoreSuite struct {
	suite.Suite

	container *tcredis.RedisContainer
	client    *redis.Client
	store     *RedisStore
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	suite.Run(t, new(redisStoreSuite))
}

func (s *redisStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.store = NewRedisStore(s.client)
}

func (s *redisStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *redisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(context.Background()).Err())
}

func (s *redisStoreSuite) TestReserveRelease() {
	ctx := context.Background()

	stock, err := s.store.Adjust(ctx, "p-1", 10)
	s.Require().NoError(err)
	s.Equal(Stock{ProductID: "p-1", Available: 10, Reserved: 0, Total: 10}, stock)

	s.Require().NoError(s.store.Reserve(ctx, "o-1", "p-1", 4))
	s.Require().NoError(s.store.Reserve(ctx, "o-1", "p-1", 4), "reserve is idempotent per order")
	s.ErrorIs(s.store.Reserve(ctx, "o-2", "p-1", 7), ErrInsufficientStock)
	s.ErrorIs(s.store.Reserve(ctx, "o-2", "missing", 1), ErrInsufficientStock)

	stock, err = s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(Stock{ProductID: "p-1", Available: 6, Reserved: 4, Total: 10}, stock)

	released, err := s.store.Release(ctx, "o-1", "p-1")
	s.Require().NoError(err)
	s.EqualValues(4, released)

	released, err = s.store.Release(ctx, "o-1", "p-1")
	s.Require().NoError(err)
	s.Zero(released)

	stock, err = s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(Stock{ProductID: "p-1", Available: 10, Reserved: 0, Total: 10}, stock)
}

// 同一订单的两行同一商品：第二行数量不同时拒绝，而不是当作重试少扣库存
func (s *redisStoreSuite) TestReserveSameProductTwiceInOneOrder() {
	ctx := context.Background()
	_, err := s.store.Adjust(ctx, "p-1", 10)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reserve(ctx, "o-1", "p-1", 2))
	s.ErrorIs(s.store.Reserve(ctx, "o-1", "p-1", 3), ErrReservationConflict)

	stock, err := s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(Stock{ProductID: "p-1", Available: 8, Reserved: 2, Total: 10}, stock)

	// 合并后的订单行一次预占全部数量
	s.Require().NoError(s.store.Reserve(ctx, "o-2", "p-1", 5))
	stock, err = s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(Stock{ProductID: "p-1", Available: 3, Reserved: 7, Total: 10}, stock)

	released, err := s.store.Release(ctx, "o-2", "p-1")
	s.Require().NoError(err)
	s.EqualValues(5, released)
}

func (s *redisStoreSuite) TestAdjustRejectsNegativeStock() {
	ctx := context.Background()
	_, err := s.store.Adjust(ctx, "p-1", 2)
	s.Require().NoError(err)

	_, err = s.store.Adjust(ctx, "p-1", -3)
	s.ErrorIs(err, ErrInvalidQuantity)

	_, err = s.store.Get(ctx, "nope")
	s.ErrorIs(err, ErrNotFound)
}

// 并发预占不会超卖
func (s *redisStoreSuite) TestConcurrentReserveNeverOversells() {
	ctx := context.Background()
	_, err := s.store.Adjust(ctx, "hot", 5)
	s.Require().NoError(err)

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Reserve(ctx, "order-"+string(rune('a'+i)), "hot", 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(5, ok.Load())
	stock, err := s.store.Get(ctx, "hot")
	s.Require().NoError(err)
	s.Zero(stock.Available)
	s.EqualValues(5, stock.Reserved)
}
