package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the read-through cache contract used by the resolvers and the
// risk handler. Values are JSON encoded; Get decodes into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ChainKey builds "<kind>:<chainID>:<address>" with the address lowercased,
// so checksummed and plain spellings share one entry.
func ChainKey(kind string, chainID int64, address string) string {
	var b strings.Builder
	b.Grow(len(kind) + len(address) + 24)
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(chainID, 10))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(address))
	return b.String()
}
