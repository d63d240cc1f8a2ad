package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Key TTLs per §4.1.
const (
	TTLDepthImbalancePrice = 10 * time.Second
	TTLTradeFlow           = 60 * time.Second
	TTLKline15m            = 900 * time.Second
	TTLFeatureTuple        = 10 * time.Second
)

// SnapshotCache is the process-wide keyed store described in §4.1: a
// single writer per key (the ingestion pipeline), readers treat absence as
// "skip this tick". It degrades to an in-process fallback map when the
// external Redis backing is unavailable; the fallback is not shared across
// processes, exactly as the spec requires.
type SnapshotCache struct {
	redis *RedisClient

	mu       sync.RWMutex
	fallback map[string]fallbackEntry
}

type fallbackEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewSnapshotCache wraps a (possibly nil) RedisClient with an in-process
// fallback layer.
func NewSnapshotCache(redis *RedisClient) *SnapshotCache {
	return &SnapshotCache{
		redis:    redis,
		fallback: make(map[string]fallbackEntry),
	}
}

// Set stores value under key with the given TTL, writing through to Redis
// when available and always updating the in-process fallback so reads
// stay consistent even if Redis later becomes unreachable mid-run.
func (s *SnapshotCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("snapshot cache marshal %s: %w", key, err)
	}

	s.mu.Lock()
	s.fallback[key] = fallbackEntry{value: data, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("snapshot cache redis set %s: %w", key, err)
		}
	}
	return nil
}

// Get reads key into dest. It returns (false, nil) when the key is absent
// or expired — readers (Fast Tracker, entry gate) must treat this as
// "skip this tick", never as an error.
func (s *SnapshotCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.redis != nil {
		err := s.redis.Get(ctx, key, dest)
		if err == nil {
			return true, nil
		}
		// Redis miss or unreachable: fall through to the in-process layer.
	}

	s.mu.RLock()
	entry, ok := s.fallback[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.fallback, key)
		s.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dest); err != nil {
		return false, fmt.Errorf("snapshot cache fallback unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a key from both layers.
func (s *SnapshotCache) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.fallback, key)
	s.mu.Unlock()
	if s.redis != nil {
		_ = s.redis.Delete(ctx, key)
	}
}

// Key helpers — the required per-instrument keys from §4.1.

func OrderbookKey(instrument string) string  { return "orderbook:" + instrument }
func ImbalanceKey(instrument string) string  { return "imbalance:" + instrument }
func PriceKey(instrument string) string      { return "price:" + instrument }
func TradeFlowKey(instrument string) string  { return "trade_flow:" + instrument }
func Kline15mKey(instrument string) string   { return "kline_15m:" + instrument }

// ImbalanceValue is the wire shape stored under ImbalanceKey.
type ImbalanceValue struct {
	Imbalance float64 `json:"imbalance"`
}

// PriceValue is the wire shape stored under PriceKey.
type PriceValue struct {
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Mid       float64 `json:"mid"`
	Timestamp int64   `json:"timestamp"`
}
