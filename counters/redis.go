package counters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/m-lab/counters/metrics"
	"github.com/m-lab/counters/static"
)

// maxKeysPerCommand bounds the size of a single PFADD command. Larger adds
// are split and pipelined.
const maxKeysPerCommand = 1000

var errNoHost = errors.New("redis backend requires a host")

// Redis implements Counters using Redis HyperLogLog keys. Every collection
// is stored under KeyPrefix+collection; PFADD and PFCOUNT are atomic on the
// server, so no client-side locking is needed.
type Redis struct {
	pool   *redis.Pool
	prefix string
}

// NewRedis creates a Redis backend connecting to cfg.Host.
func NewRedis(cfg Config) (*Redis, error) {
	if cfg.Host == "" {
		return nil, errNoHost
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = static.BackendTimeout
	}
	pool := &redis.Pool{
		MaxIdle:     static.RedisMaxIdle,
		IdleTimeout: static.RedisIdleTimeout,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Host,
				redis.DialConnectTimeout(timeout),
				redis.DialReadTimeout(timeout),
				redis.DialWriteTimeout(timeout))
		},
	}
	return NewRedisWithPool(pool, cfg.KeyPrefix), nil
}

// NewRedisWithPool creates a Redis backend using the given connection pool.
// An empty prefix selects static.RedisKeyPrefix.
func NewRedisWithPool(pool *redis.Pool, prefix string) *Redis {
	if prefix == "" {
		prefix = static.RedisKeyPrefix
	}
	return &Redis{pool: pool, prefix: prefix}
}

// Close releases the connections held by the pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}

func (r *Redis) key(collection string) string {
	return r.prefix + collection
}

// Add merges keys into the collection's HyperLogLog using PFADD.
func (r *Redis) Add(ctx context.Context, collection string, keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return unavailable(BackendRedis, "add", err)
	}
	t := time.Now()
	conn := r.pool.Get()
	defer conn.Close()

	// Send all commands in pipeline.
	n := 0
	for start := 0; start < len(keys); start += maxKeysPerCommand {
		end := start + maxKeysPerCommand
		if end > len(keys) {
			end = len(keys)
		}
		args := make(redis.Args, 0, end-start+1)
		args = append(args, r.key(collection))
		for _, k := range keys[start:end] {
			args = append(args, k)
		}
		if err := conn.Send("PFADD", args...); err != nil {
			observe("PFADD", "send error", t)
			return unavailable(BackendRedis, "add", err)
		}
		n++
	}

	if err := conn.Flush(); err != nil {
		observe("PFADD", "flush error", t)
		return unavailable(BackendRedis, "add", err)
	}

	for i := 0; i < n; i++ {
		if _, err := conn.Receive(); err != nil {
			observe("PFADD", "PFADD error", t)
			return unavailable(BackendRedis, "add", err)
		}
	}
	observe("PFADD", "OK", t)
	return nil
}

// GetCount returns the PFCOUNT estimate of the collection. A missing key
// counts as zero.
func (r *Redis) GetCount(ctx context.Context, collection string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(BackendRedis, "get_count", err)
	}
	t := time.Now()
	conn := r.pool.Get()
	defer conn.Close()

	n, err := redis.Int64(conn.Do("PFCOUNT", r.key(collection)))
	if err != nil {
		observe("PFCOUNT", "PFCOUNT error", t)
		return 0, unavailable(BackendRedis, "get_count", err)
	}
	observe("PFCOUNT", "OK", t)
	return n, nil
}

// GetCounters uses the SCAN command to list every key under the prefix and
// returns the matching collection names.
func (r *Redis) GetCounters(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(BackendRedis, "get_counters", err)
	}
	t := time.Now()
	conn := r.pool.Get()
	defer conn.Close()

	pattern := escapePattern(r.prefix) + "*"
	names := []string{}
	iter := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", iter, "MATCH", pattern, "COUNT", 1000))
		if err != nil {
			observe("SCAN", "SCAN error", t)
			return nil, unavailable(BackendRedis, "get_counters", err)
		}

		var keys []string
		if _, err = redis.Scan(values, &iter, &keys); err != nil {
			observe("SCAN", "SCAN copy error", t)
			return nil, unavailable(BackendRedis, "get_counters", err)
		}
		for _, k := range keys {
			names = append(names, strings.TrimPrefix(k, r.prefix))
		}

		if iter == 0 {
			observe("SCAN", "OK", t)
			return names, nil
		}
	}
}

// Check sends a PING to the server.
func (r *Redis) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(BackendRedis, "check", err)
	}
	t := time.Now()
	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		observe("PING", "PING error", t)
		return unavailable(BackendRedis, "check", err)
	}
	observe("PING", "OK", t)
	return nil
}

func observe(op, status string, t time.Time) {
	metrics.BackendRequestDuration.WithLabelValues(BackendRedis, op, status).Observe(time.Since(t).Seconds())
}

// escapePattern escapes the glob characters understood by SCAN MATCH.
func escapePattern(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
