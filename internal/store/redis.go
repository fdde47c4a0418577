package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/types"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "primer:"

// maxRecordedCalls caps the call log list.
const maxRecordedCalls = 10000

// RedisStore implements Store on Redis.
//
// Layout: <prefix>state holds the cursor JSON, <prefix>chunk:<id> each chunk
// JSON, <prefix>chunks a sorted set of ids scored by start line, and
// <prefix>calls a capped list of call JSON, newest first.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

// OpenRedis connects to url (redis://host:port/db) and verifies the
// connection with PING.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("missing redis url")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += p
	}
	return k
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) GetState(ctx context.Context) (*types.ProcessingState, error) {
	raw, err := s.rdb.Get(ctx, s.key("state")).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	var st types.ProcessingState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) SaveState(ctx context.Context, state *types.ProcessingState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key("state"), raw, 0).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *RedisStore) GetChunk(ctx context.Context, id string) (*types.ProcessedChunk, error) {
	raw, err := s.rdb.Get(ctx, s.key("chunk:", id)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return decodeChunk(raw)
}

func (s *RedisStore) PutChunk(ctx context.Context, chunk *types.ProcessedChunk) error {
	raw, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key("chunk:", chunk.ID), raw, 0)
		pipe.ZAdd(ctx, s.key("chunks"), goredis.Z{Score: float64(chunk.StartLine), Member: chunk.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *RedisStore) chunkIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, s.key("chunks"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) ListChunks(ctx context.Context) ([]*types.ProcessedChunk, error) {
	ids, err := s.chunkIDs(ctx)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("chunk:", id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	out := make([]*types.ProcessedChunk, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without a document
		}
		chunk, err := decodeChunk(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	// Equal scores sort by member, which is already id order.
	return out, nil
}

func (s *RedisStore) DeleteChunks(ctx context.Context) (int, error) {
	ids, err := s.chunkIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key("chunk:", id))
	}
	keys = append(keys, s.key("chunks"))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return len(ids), nil
}

func (s *RedisStore) RecordCall(ctx context.Context, call *llmcall.Call) error {
	raw, err := json.Marshal(call)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, s.key("calls"), raw)
		pipe.LTrim(ctx, s.key("calls"), 0, maxRecordedCalls-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

func (s *RedisStore) ListCalls(ctx context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error) {
	vals, err := s.rdb.LRange(ctx, s.key("calls"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	calls := make([]llmcall.Call, 0, len(vals))
	for _, v := range vals {
		var call llmcall.Call
		if err := json.Unmarshal([]byte(v), &call); err != nil {
			return nil, fmt.Errorf("decode call: %w", err)
		}
		calls = append(calls, call)
	}
	return filter.Apply(calls), nil
}

var _ Store = (*RedisStore)(nil)
