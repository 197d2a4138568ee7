package middleware

import (
	"net/http"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimitMiddleware_SharedWindow(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	// two replicas behind one Redis count the same hour-long window: 3 + 1 burst
	replicaA := articleRouter(RedisRateLimitMiddleware(client, 0.001, 1, time.Hour), "kc-author")
	replicaB := articleRouter(RedisRateLimitMiddleware(client, 0.001, 1, time.Hour), "kc-author")

	for i := 0; i < 4; i++ {
		r := replicaA
		if i%2 == 1 {
			r = replicaB
		}
		require.Equal(t, http.StatusCreated, hit(r, http.MethodPost, "/api/articles", "192.0.2.1:1000").Code, "hit %d", i)
	}
	w := hit(replicaB, http.MethodPost, "/api/articles", "192.0.2.1:1000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	// reads are counted apart from writes
	require.Equal(t, http.StatusOK, hit(replicaA, http.MethodGet, "/api/articles", "192.0.2.1:1000").Code)

	var counted bool
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, "rl:sub:kc-author:write:") {
			counted = true
			assert.True(t, m.TTL(k) > 0)
		}
	}
	assert.True(t, counted)
}

func TestRedisRateLimitMiddleware_WindowExpires(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	r := articleRouter(RedisRateLimitMiddleware(client, 1, 0, time.Second), "")

	require.Equal(t, http.StatusCreated, hit(r, http.MethodPost, "/api/articles", "192.0.2.2:1000").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, http.MethodPost, "/api/articles", "192.0.2.2:1000").Code)

	m.FastForward(2 * time.Second)
	require.Equal(t, http.StatusCreated, hit(r, http.MethodPost, "/api/articles", "192.0.2.2:1000").Code)
}

func TestRedisRateLimitMiddleware_RedisDown(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	r := articleRouter(RedisRateLimitMiddleware(client, 1, 1, time.Second), "")
	m.Close()

	w := hit(r, http.MethodGet, "/api/articles", "192.0.2.3:1000")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
