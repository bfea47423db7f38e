package oddscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "odds:"

// Snapshot é o espelho de odds de uma partida, como visto na última aposta
// aceita. Consumido pelo proxy de usuário como passthrough de leitura.
type Snapshot struct {
	MatchID   string `json:"match_id"`
	OddsA     int64  `json:"odds_a"`
	OddsB     int64  `json:"odds_b"`
	UpdatedMs int64  `json:"updated_ms"`
}

// Cache grava e lê snapshots de odds no Redis, chave odds:{match_id}.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: 24 * time.Hour}
}

func (c *Cache) WriteOdds(ctx context.Context, matchID string, oddsA, oddsB int64) error {
	raw, err := json.Marshal(Snapshot{
		MatchID:   matchID,
		OddsA:     oddsA,
		OddsB:     oddsB,
		UpdatedMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, keyPrefix+matchID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set odds snapshot: %w", err)
	}
	return nil
}

// ReadOdds devolve (nil, nil) quando não há snapshot para a partida.
func (c *Cache) ReadOdds(ctx context.Context, matchID string) (*Snapshot, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+matchID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get odds snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode odds snapshot: %w", err)
	}
	return &s, nil
}
