//go:build integration

package redis_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bulwark/internal/counter"
	redisstore "bulwark/internal/counter/redis"
	"bulwark/pkg/testutil/containers"

	goredis "github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis Counter Store Integration Suite
// =============================================================================
// Justification: The memory store only imitates Redis. These tests pin the
// adapter to a real server: TTL sentinel mapping, the Lua increment script and
// SCAN-based key listing.

type RedisStoreSuite struct {
	suite.Suite
	client *goredis.Client
	store  *redisstore.Store
	ctx    context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	rc := containers.GetManager().GetRedis(s.T())
	s.client = rc.NewClient(s.T())
	s.store = redisstore.New(s.client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(s.ctx).Err())
}

func (s *RedisStoreSuite) TestIncrAndTTL() {
	n, err := s.store.Incr(s.ctx, "notif:minute:user_a")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	ttl, err := s.store.TTL(s.ctx, "notif:minute:user_a")
	s.Require().NoError(err)
	s.Equal(counter.NoExpiry, ttl)

	ok, err := s.store.Expire(s.ctx, "notif:minute:user_a", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ttl, err = s.store.TTL(s.ctx, "notif:minute:user_a")
	s.Require().NoError(err)
	s.InDelta(time.Minute, ttl, float64(time.Second))

	ttl, err = s.store.TTL(s.ctx, "absent")
	s.Require().NoError(err)
	s.Equal(counter.Missing, ttl)
}

func (s *RedisStoreSuite) TestIncrWithExpiryArmsOnce() {
	_, err := s.store.IncrWithExpiry(s.ctx, "w", 10*time.Second)
	s.Require().NoError(err)
	s.Require().NoError(s.client.PExpire(s.ctx, "w", 3*time.Second).Err())

	n, err := s.store.IncrWithExpiry(s.ctx, "w", 10*time.Second)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	ttl, err := s.store.TTL(s.ctx, "w")
	s.Require().NoError(err)
	s.LessOrEqual(ttl, 3*time.Second)
}

func (s *RedisStoreSuite) TestGetSetNXDel() {
	_, found, err := s.store.Get(s.ctx, "blocked:203.0.113.9")
	s.Require().NoError(err)
	s.False(found)

	created, err := s.store.SetNX(s.ctx, "blocked:203.0.113.9", "{}", time.Hour)
	s.Require().NoError(err)
	s.True(created)
	created, err = s.store.SetNX(s.ctx, "blocked:203.0.113.9", "{}", time.Hour)
	s.Require().NoError(err)
	s.False(created)

	n, err := s.store.Del(s.ctx, "blocked:203.0.113.9", "absent")
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *RedisStoreSuite) TestKeysScansAllPages() {
	for i := 0; i < 1200; i++ {
		s.Require().NoError(s.client.Set(s.ctx, "sql_injection:10.0."+itoa(i/256)+"."+itoa(i%256), 1, time.Hour).Err())
	}
	s.Require().NoError(s.client.Set(s.ctx, "xss:10.0.0.1", 1, time.Hour).Err())

	keys, err := s.store.Keys(s.ctx, "sql_injection:*")
	s.Require().NoError(err)
	s.Len(keys, 1200)
}

func (s *RedisStoreSuite) TestSets() {
	n, err := s.store.SAdd(s.ctx, "blocked:index", "198.51.100.1", "198.51.100.2")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	_, err = s.store.SRem(s.ctx, "blocked:index", "198.51.100.1")
	s.Require().NoError(err)

	members, err := s.store.SMembers(s.ctx, "blocked:index")
	s.Require().NoError(err)
	s.Equal([]string{"198.51.100.2"}, members)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
