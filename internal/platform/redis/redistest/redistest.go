// Package redistest runs an in-memory Redis server for tests.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// New starts a miniredis server that lives for the duration of t and returns
// a client connected to it together with the server for inspection.
func New(t testing.TB) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// NewClient is New for tests that never look inside the server.
func NewClient(t testing.TB) *goredis.Client {
	t.Helper()
	client, _ := New(t)
	return client
}
