package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns the blob descriptor cache. An empty address
// disables it.
func NewMemcached(server string) *memcache.Client {
	if server == "" {
		return nil
	}
	mc := memcache.New(server)
	mc.Timeout = 500 * time.Millisecond
	mc.MaxIdleConns = 8
	return mc
}
