package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/scoring"
	"github.com/okian/vigil/pkg/metrics"
)

const scoreKeyPrefix = "vigil:score:"

// DefaultScoreTTL bounds how long a snapshot survives without updates.
const DefaultScoreTTL = 6 * time.Hour

// ScoreSnapshot is the cached view of a session score.
type ScoreSnapshot struct {
	SessionID         string       `json:"session_id"`
	AuthenticityScore int          `json:"authenticity_score"`
	Tier              scoring.Tier `json:"tier"`
	TotalEvents       int          `json:"total_events"`
	Ended             bool         `json:"ended"`
}

// ScoreCache stores ScoreSnapshots by session id.
type ScoreCache struct {
	store Store
	ttl   time.Duration
}

// NewScoreCache wraps store. ttl <= 0 uses DefaultScoreTTL.
func NewScoreCache(store Store, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = DefaultScoreTTL
	}
	return &ScoreCache{store: store, ttl: ttl}
}

// Put writes the snapshot for its session.
func (c *ScoreCache) Put(ctx context.Context, snap ScoreSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	return c.store.Set(ctx, scoreKeyPrefix+snap.SessionID, b, c.ttl)
}

// Get returns the cached snapshot for sessionID.
func (c *ScoreCache) Get(ctx context.Context, sessionID string) (ScoreSnapshot, bool, error) {
	b, found, err := c.store.Get(ctx, scoreKeyPrefix+sessionID)
	if err != nil {
		metrics.RecordCacheLookup("error")
		return ScoreSnapshot{}, false, err
	}
	if !found {
		metrics.RecordCacheLookup("miss")
		return ScoreSnapshot{}, false, nil
	}
	var snap ScoreSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		metrics.RecordCacheLookup("error")
		return ScoreSnapshot{}, false, fmt.Errorf("decode score: %w", err)
	}
	metrics.RecordCacheLookup("hit")
	return snap, true, nil
}

// Invalidate drops the snapshot for sessionID.
func (c *ScoreCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, scoreKeyPrefix+sessionID)
}
