// Package counters provides distinct-value counters with interchangeable
// backends. Every backend implements the Counters interface so that an exact
// implementation can stand in for an approximate one in tests.
package counters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counters maintains, for every named collection, an estimate of the number
// of distinct keys merged into it.
type Counters interface {
	// Add merges keys into the collection. Adding no keys is a no-op and
	// does not create the collection.
	Add(ctx context.Context, collection string, keys [][]byte) error

	// GetCount returns the distinct count estimate for the collection. An
	// unknown collection has a count of zero.
	GetCount(ctx context.Context, collection string) (int64, error)

	// GetCounters returns the names of all collections that received keys,
	// in no particular order.
	GetCounters(ctx context.Context) ([]string, error)

	// Check verifies that the backend's dependency is reachable.
	Check(ctx context.Context) error
}

// Config holds the constructor arguments of all backends. Each backend reads
// only the fields it needs.
type Config struct {
	// Host is the address of the Redis server used by the redis backend.
	Host string
	// KeyPrefix namespaces the Redis keys. Defaults to static.RedisKeyPrefix.
	KeyPrefix string
	// URL is the base URL of the counters server used by the remote backend.
	URL string
	// Timeout bounds every network call of the redis and remote backends.
	Timeout time.Duration
}

// ErrUnavailable is matched by every UnavailableError using errors.Is.
var ErrUnavailable = errors.New("counters backend unavailable")

// UnknownBackendError is returned by Get when the backend name is not
// registered.
type UnknownBackendError struct {
	Name      string
	Supported []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown counters backend %q, supported: %s",
		e.Name, strings.Join(e.Supported, ", "))
}

// UnavailableError reports that the storage or the remote peer of a backend
// could not serve an operation.
type UnavailableError struct {
	Backend string
	Op      string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports ErrUnavailable as a match.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsUnavailable returns true if err, or an error it wraps, is an
// UnavailableError.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func unavailable(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Backend: backend, Op: op, Err: err}
}

// batchCounter is implemented by backends that can read several counts in
// one round-trip.
type batchCounter interface {
	GetCounts(ctx context.Context, collections []string) (map[string]int64, error)
}

// GetCounts returns the count of each of the given collections.
func GetCounts(ctx context.Context, c Counters, collections []string) (map[string]int64, error) {
	if bc, ok := c.(batchCounter); ok {
		return bc.GetCounts(ctx, collections)
	}
	counts := make(map[string]int64, len(collections))
	for _, coll := range collections {
		n, err := c.GetCount(ctx, coll)
		if err != nil {
			return nil, err
		}
		counts[coll] = n
	}
	return counts, nil
}

// Snapshot returns the count of every collection known to the backend.
func Snapshot(ctx context.Context, c Counters) (map[string]int64, error) {
	colls, err := c.GetCounters(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(colls)
	return GetCounts(ctx, c, colls)
}
