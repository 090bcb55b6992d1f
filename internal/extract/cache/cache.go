// Package cache memoizes extraction results in Redis, keyed on the pair of
// image URLs, so a resubmitted card does not reach the model twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

const keyPrefix = "cardscan:extract:"

type Extractor struct {
	next   extract.Extractor
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func New(next extract.Extractor, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// Extract returns the cached record for the image pair or delegates and
// stores the result. Redis failures are logged and never fail extraction.
func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	key := Key(front.URL, back.URL)

	data, err := e.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec domain.ExtractedRecord
		if jerr := json.Unmarshal(data, &rec); jerr == nil {
			e.logger.Debug("extraction cache hit", "key", key)
			return &rec, nil
		}
		e.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		e.logger.Warn("extraction cache read failed", "error", err)
	}

	rec, err := e.next.Extract(ctx, front, back)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := e.rdb.Set(ctx, key, data, e.ttl).Err(); err != nil {
			e.logger.Warn("extraction cache write failed", "error", err)
		}
	}
	return rec, nil
}

// Key derives the cache key for a front and back image URL.
func Key(frontURL, backURL string) string {
	sum := sha256.Sum256([]byte(frontURL + "\n" + backURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}
