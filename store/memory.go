package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试与单机训练演示。
// checkpoint、指标 hash、验证误差 zset 分别落在独立的结构上，语义与
// RedisStore 对齐；进程重启后数据丢失，生产训练请使用 RedisStore 或 FileStore。
//
// 过期采用惰性清理：Set 携带 TTL 的键在读取时判定是否过期，无后台协程。
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string]blobEntry
	hashes map[string]map[string][]byte
	zsets  map[string]map[string]float64
}

type blobEntry struct {
	value    []byte
	expireAt time.Time // 零值表示不过期
}

func (e blobEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string]blobEntry),
		hashes: make(map[string]map[string][]byte),
		zsets:  make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.blobs[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = blobEntry{value: value, expireAt: expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := time.Now()
	for _, k := range keys {
		if e, ok := m.blobs[k]; ok && !e.expired(now) {
			result[k] = e.value
		}
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expire := expireAt(ttl)
	for k, v := range kvs {
		m.blobs[k] = blobEntry{value: v, expireAt: expire}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

var _ KeyValueStore = (*MemoryStore)(nil)

// ZAdd 记录单调轮次的验证误差时间序列（member 为轮次号，score 为误差）。
func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

// ZRange 按 score 降序返回 [start, stop] 闭区间内的成员；stop 为负表示取到末尾。
func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok || len(zset) == 0 {
		return nil, nil
	}

	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(zset))
	for member, s := range zset {
		pairs = append(pairs, pair{member: member, score: s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}

	result := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, pairs[i].member)
	}
	return result, nil
}

func (m *MemoryStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.hashes[key][field]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.hashes[key]
	result := make(map[string][]byte, len(h))
	for field, v := range h {
		result[field] = v
	}
	return result, nil
}
