package counters

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/go-test/deep"
	"github.com/gomodule/redigo/redis"
	"github.com/rafaeljusto/redigomock"
)

func setUpMockRedis() (*redigomock.Conn, *Redis) {
	conn := redigomock.NewConn()
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return conn, nil
		},
	}
	return conn, NewRedisWithPool(pool, "")
}

func TestRedis_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	pool, mr := setupTestRedis(t)
	r := NewRedisWithPool(pool, "ns:")

	// Keys outside of the namespace are not counters.
	mr.Set("unrelated", "value")
	if err := r.Add(ctx, "person", [][]byte{[]byte("author 1")}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	keys := mr.Keys()
	sort.Strings(keys)
	if diff := deep.Equal(keys, []string{"ns:person", "unrelated"}); diff != nil {
		t.Errorf("stored keys returned diff: %v", diff)
	}

	names, err := r.GetCounters(ctx)
	if err != nil {
		t.Fatalf("GetCounters() error = %v", err)
	}
	if diff := deep.Equal(names, []string{"person"}); diff != nil {
		t.Errorf("GetCounters() returned diff: %v", diff)
	}
}

func TestRedis_DefaultPrefix(t *testing.T) {
	_, r := setUpMockRedis()
	if r.key("person") != "counters:person" {
		t.Errorf("key() = %q, want counters:person", r.key("person"))
	}
}

func TestRedis_AddManyKeys(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupTestRedis(t)
	r := NewRedisWithPool(pool, "test:")

	// More than maxKeysPerCommand keys are pipelined in several PFADDs.
	if err := r.Add(ctx, "big", keys("k", 2*maxKeysPerCommand+500)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	n, err := r.GetCount(ctx, "big")
	if err != nil {
		t.Fatalf("GetCount() error = %v", err)
	}
	if !within(n, 2*maxKeysPerCommand+500) {
		t.Errorf("GetCount() = %d, want about %d", n, 2*maxKeysPerCommand+500)
	}
}

func TestRedis_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("pfadd", func(t *testing.T) {
		conn, r := setUpMockRedis()
		conn.GenericCommand("PFADD").ExpectError(errors.New("PFADD error"))
		err := r.Add(ctx, "person", [][]byte{[]byte("a")})
		if !IsUnavailable(err) {
			t.Errorf("Add() error = %v, want UnavailableError", err)
		}
	})

	t.Run("pfcount", func(t *testing.T) {
		conn, r := setUpMockRedis()
		conn.GenericCommand("PFCOUNT").ExpectError(errors.New("PFCOUNT error"))
		n, err := r.GetCount(ctx, "person")
		if !IsUnavailable(err) {
			t.Errorf("GetCount() error = %v, want UnavailableError", err)
		}
		if n != 0 {
			t.Errorf("GetCount() = %d, want 0 on error", n)
		}
	})

	t.Run("scan", func(t *testing.T) {
		conn, r := setUpMockRedis()
		conn.GenericCommand("SCAN").ExpectError(errors.New("SCAN error"))
		if _, err := r.GetCounters(ctx); !IsUnavailable(err) {
			t.Errorf("GetCounters() error = %v, want UnavailableError", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		conn, r := setUpMockRedis()
		cmd := conn.Command("PING").ExpectError(errors.New("PING error"))
		if err := r.Check(ctx); !IsUnavailable(err) {
			t.Errorf("Check() error = %v, want UnavailableError", err)
		}
		if conn.Stats(cmd) != 1 {
			t.Error("Check() failure, PING command should have been called")
		}
	})

	t.Run("pfcount-mocked", func(t *testing.T) {
		conn, r := setUpMockRedis()
		conn.Command("PFCOUNT", "counters:person").Expect(int64(42))
		n, err := r.GetCount(ctx, "person")
		if err != nil {
			t.Fatalf("GetCount() error = %v", err)
		}
		if n != 42 {
			t.Errorf("GetCount() = %d, want 42", n)
		}
	})

	t.Run("canceled-context", func(t *testing.T) {
		conn, r := setUpMockRedis()
		pfcount := conn.GenericCommand("PFCOUNT").Expect(int64(1))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := r.GetCount(cctx, "person"); !IsUnavailable(err) {
			t.Errorf("GetCount() error = %v, want UnavailableError", err)
		}
		if conn.Stats(pfcount) != 0 {
			t.Error("GetCount() with canceled context should not call PFCOUNT")
		}
	})
}

func TestRedis_ClosedPool(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupTestRedis(t)
	r := NewRedisWithPool(pool, "test:")

	// Force a connection failure by closing the pool.
	r.Close()

	if err := r.Add(ctx, "person", [][]byte{[]byte("a")}); !IsUnavailable(err) {
		t.Errorf("Add() error = %v, want UnavailableError", err)
	}
	if _, err := r.GetCount(ctx, "person"); !IsUnavailable(err) {
		t.Errorf("GetCount() error = %v, want UnavailableError", err)
	}
	if _, err := r.GetCounters(ctx); !IsUnavailable(err) {
		t.Errorf("GetCounters() error = %v, want UnavailableError", err)
	}
	if err := r.Check(ctx); !IsUnavailable(err) {
		t.Errorf("Check() error = %v, want UnavailableError", err)
	}
}

func TestRedis_Unreachable(t *testing.T) {
	_, mr := setupTestRedis(t)
	addr := mr.Addr()
	mr.Close()

	r, err := NewRedis(Config{Host: addr})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()
	if err := r.Check(context.Background()); !IsUnavailable(err) {
		t.Errorf("Check() error = %v, want UnavailableError", err)
	}
	n, err := r.GetCount(context.Background(), "person")
	if !IsUnavailable(err) || n != 0 {
		t.Errorf("GetCount() = %d, %v, want 0 and UnavailableError", n, err)
	}
}

func TestEscapePattern(t *testing.T) {
	if got := escapePattern(`a*b?[c]\`); got != `a\*b\?\[c\]\\` {
		t.Errorf("escapePattern() = %q", got)
	}
}
