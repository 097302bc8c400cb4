package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// DefaultResponseTTL is used by SetResponse when the caller passes a
// non-positive TTL.
const DefaultResponseTTL = 24 * time.Hour

// GetResponse returns a cached upstream response body. A missing key and an
// expired entry are indistinguishable to the caller; both return ErrNotFound.
// Expired rows are left for PurgeExpiredResponses to collect.
func (s *Store) GetResponse(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_response", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	var expiresAt int64

	scanErr := s.db.QueryRowContext(ctx,
		"SELECT response_data, expires_at FROM api_cache WHERE cache_key = ?", key,
	).Scan(&data, &expiresAt)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			metrics.ResponseCacheMisses.Inc()
			return nil, ErrNotFound
		}
		err = fmt.Errorf("failed to get cached response: %w", scanErr)
		return nil, err
	}

	if expiresAt <= time.Now().UnixNano() {
		metrics.ResponseCacheMisses.Inc()
		return nil, ErrNotFound
	}

	metrics.ResponseCacheHits.Inc()
	return data, nil
}

// SetResponse caches an upstream response body under key for ttl. A ttl of
// zero or less falls back to DefaultResponseTTL. Re-setting a key replaces
// the body and restarts the clock.
func (s *Store) SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_response", start, err) }()

	if key == "" {
		err = fmt.Errorf("cache key must not be empty")
		return err
	}
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	expiresAt := time.Now().Add(ttl).UnixNano()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_cache (cache_key, response_data, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			response_data = excluded.response_data,
			created_at = strftime('%s', 'now'),
			expires_at = excluded.expires_at
	`, key, data, expiresAt)
	if err != nil {
		err = fmt.Errorf("failed to cache response: %w", err)
		return err
	}
	return nil
}

// PurgeExpiredResponses deletes all cache rows whose TTL has lapsed and
// returns how many were removed.
func (s *Store) PurgeExpiredResponses(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("purge_responses", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM api_cache WHERE expires_at <= ?", time.Now().UnixNano())
	if err != nil {
		err = fmt.Errorf("failed to purge expired responses: %w", err)
		return 0, err
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		metrics.ResponseCachePurged.Add(float64(purged))
	}
	return purged, nil
}

// ClearResponses empties the response cache regardless of expiry.
func (s *Store) ClearResponses(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_responses", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM api_cache")
	if err != nil {
		err = fmt.Errorf("failed to clear response cache: %w", err)
		return 0, err
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return cleared, nil
}
