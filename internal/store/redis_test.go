package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// TestRedisStore runs the store contract against a live Redis.
// Requires PRIMER_TEST_REDIS_URL, e.g. redis://localhost:6379/15.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("PRIMER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PRIMER_TEST_REDIS_URL not set - skipping redis integration test")
	}

	ctx := context.Background()
	prefix := "primer-test:" + uuid.New().String() + ":"
	s, err := OpenRedis(ctx, url, prefix)
	if err != nil {
		t.Fatalf("OpenRedis() error = %v", err)
	}
	defer func() {
		keys, _ := s.rdb.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			s.rdb.Del(ctx, keys...)
		}
		s.Close()
	}()

	runStoreContract(t, s)
}
