// Package storage provides Redis-based session storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

// Key layout. Session and token keys carry a TTL mirroring the session
// expiry; the per-user set is pruned lazily since set members cannot
// expire individually.
//
//	cg:sess:{id}            -> session JSON
//	cg:tok:{hash}           -> sessionID
//	cg:user:{id}:sessions   -> set of sessionIDs
const (
	redisSessionKeyPrefix = "cg:sess:"
	redisTokenKeyPrefix   = "cg:tok:"
	redisUserKeyPrefix    = "cg:user:"
)

// RedisEngine keeps sessions in an external Redis.
type RedisEngine struct {
	client *redis.Client
	logger *slog.Logger

	maxSessionsPerUser int
}

// NewRedisEngine connects to Redis and verifies the connection.
func NewRedisEngine(ctx context.Context, cfg Config) (*RedisEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxPerUser := cfg.MaxSessionsPerUser
	if maxPerUser <= 0 {
		maxPerUser = domain.MaxSessionsPerUser
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	logger.Info("redis engine started",
		"addr", cfg.Redis.Addr,
		"db", cfg.Redis.DB)

	return &RedisEngine{
		client:             client,
		logger:             logger,
		maxSessionsPerUser: maxPerUser,
	}, nil
}

func redisSessionKey(id string) string {
	return redisSessionKeyPrefix + id
}

func redisTokenKey(hash string) string {
	return redisTokenKeyPrefix + hash
}

func redisUserSetKey(userID string) string {
	return redisUserKeyPrefix + userID + ":sessions"
}

// sessionRedisTTL converts the session expiry to a Redis TTL. Zero means
// no expiration.
func sessionRedisTTL(session *domain.Session) time.Duration {
	ttl, ok := sessionEntryTTL(session)
	if !ok {
		return 0
	}
	return ttl
}

// ============================================================================
// SessionRepository implementation
// ============================================================================

// Create stores a new session.
func (e *RedisEngine) Create(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	// Check quota against live sessions only
	liveIDs, err := e.liveUserSessionIDs(ctx, session.UserID)
	if err != nil {
		return err
	}
	if len(liveIDs) >= e.maxSessionsPerUser {
		return domain.ErrSessionQuotaExceeded
	}

	// Check for ID conflict
	exists, err := e.client.Exists(ctx, redisSessionKey(session.ID)).Result()
	if err != nil {
		return fmt.Errorf("redis: exists: %w", err)
	}
	if exists > 0 {
		return domain.ErrSessionConflict
	}

	// Check for token hash conflict
	if session.TokenHash != "" {
		exists, err := e.client.Exists(ctx, redisTokenKey(session.TokenHash)).Result()
		if err != nil {
			return fmt.Errorf("redis: exists: %w", err)
		}
		if exists > 0 {
			return domain.ErrTokenHashConflict
		}
	}

	return e.writeSession(ctx, session)
}

// writeSession writes the session record, token pointer, and user set
// membership in one transaction.
func (e *RedisEngine) writeSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: marshal session: %w", err)
	}

	ttl := sessionRedisTTL(session)

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionKey(session.ID), data, ttl)
		if session.TokenHash != "" {
			pipe.Set(ctx, redisTokenKey(session.TokenHash), session.ID, ttl)
		}
		pipe.SAdd(ctx, redisUserSetKey(session.UserID), session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: write session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (e *RedisEngine) Get(ctx context.Context, id string) (*domain.Session, error) {
	session, err := e.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (e *RedisEngine) loadSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := e.client.Get(ctx, redisSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis: get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("redis: unmarshal session: %w", err)
	}
	return &session, nil
}

// Update updates an existing session with optimistic locking.
//
// The session key is WATCHed so a concurrent write between the version
// check and the commit aborts the transaction.
func (e *RedisEngine) Update(ctx context.Context, session *domain.Session, expectedVersion uint64) error {
	if err := session.Validate(); err != nil {
		return err
	}

	key := redisSessionKey(session.ID)

	err := e.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			return fmt.Errorf("redis: get session: %w", err)
		}

		var existing domain.Session
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("redis: unmarshal session: %w", err)
		}

		// Optimistic locking: check version
		if existing.Version != expectedVersion {
			return domain.ErrSessionVersionConflict
		}

		// Handle token hash change
		if session.TokenHash != "" && existing.TokenHash != session.TokenHash {
			exists, err := tx.Exists(ctx, redisTokenKey(session.TokenHash)).Result()
			if err != nil {
				return fmt.Errorf("redis: exists: %w", err)
			}
			if exists > 0 {
				return domain.ErrTokenHashConflict
			}
		}

		clone := session.Clone()
		clone.IncrVersion()

		newData, err := json.Marshal(clone)
		if err != nil {
			return fmt.Errorf("redis: marshal session: %w", err)
		}
		ttl := sessionRedisTTL(clone)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, ttl)
			if existing.TokenHash != clone.TokenHash && existing.TokenHash != "" {
				pipe.Del(ctx, redisTokenKey(existing.TokenHash))
			}
			if clone.TokenHash != "" {
				pipe.Set(ctx, redisTokenKey(clone.TokenHash), clone.ID, ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Update version in the caller's session too
		session.Version = clone.Version
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrSessionVersionConflict
	}
	return err
}

// UpdateSession updates a session without version checking.
func (e *RedisEngine) UpdateSession(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	existing, err := e.loadSession(ctx, session.ID)
	if err != nil {
		return err
	}

	if existing.TokenHash != session.TokenHash && existing.TokenHash != "" {
		if err := e.client.Del(ctx, redisTokenKey(existing.TokenHash)).Err(); err != nil {
			return fmt.Errorf("redis: del token: %w", err)
		}
	}

	return e.writeSession(ctx, session)
}

// Delete removes a session and its index entries.
func (e *RedisEngine) Delete(ctx context.Context, id string) error {
	session, err := e.loadSession(ctx, id)
	if err != nil {
		return err
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionKey(id))
		if session.TokenHash != "" {
			pipe.Del(ctx, redisTokenKey(session.TokenHash))
		}
		pipe.SRem(ctx, redisUserSetKey(session.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

// List retrieves sessions matching the given filter with pagination.
func (e *RedisEngine) List(ctx context.Context, filter *service.SessionFilter) ([]*domain.Session, int, error) {
	if filter == nil {
		filter = &service.SessionFilter{}
	}

	var candidates []*domain.Session

	if filter.UserID != "" {
		ids, err := e.liveUserSessionIDs(ctx, filter.UserID)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range ids {
			session, err := e.loadSession(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					continue
				}
				return nil, 0, err
			}
			candidates = append(candidates, session)
		}
	} else {
		err := e.scanAll(ctx, func(session *domain.Session) bool {
			candidates = append(candidates, session)
			return true
		})
		if err != nil {
			return nil, 0, err
		}
	}

	results, total := filterSessions(candidates, filter)
	return results, total, nil
}

// CountByUserID returns the number of live sessions for a user.
func (e *RedisEngine) CountByUserID(ctx context.Context, userID string) (int, error) {
	ids, err := e.liveUserSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListByUserID returns all live sessions for a user.
func (e *RedisEngine) ListByUserID(ctx context.Context, userID string) ([]*domain.Session, error) {
	ids, err := e.liveUserSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var sessions []*domain.Session
	for _, id := range ids {
		session, err := e.loadSession(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		if session.IsExpired() {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// DeleteByUserID removes all sessions for a user.
func (e *RedisEngine) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	setKey := redisUserSetKey(userID)

	ids, err := e.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: smembers: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		session, err := e.loadSession(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			return deleted, err
		}

		_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisSessionKey(id))
			if session.TokenHash != "" {
				pipe.Del(ctx, redisTokenKey(session.TokenHash))
			}
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("redis: delete session: %w", err)
		}
		deleted++
	}

	if err := e.client.Del(ctx, setKey).Err(); err != nil {
		return deleted, fmt.Errorf("redis: del user set: %w", err)
	}
	return deleted, nil
}

// DeleteExpired deletes all expired sessions and returns the count.
//
// Redis TTLs remove most expired keys on their own; this sweeps
// sessions whose expiry was shortened after the last write and prunes
// stale user-set members.
func (e *RedisEngine) DeleteExpired(ctx context.Context) (int, error) {
	var expired []*domain.Session
	err := e.scanAll(ctx, func(session *domain.Session) bool {
		if session.IsExpired() {
			expired = append(expired, session)
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range expired {
		if err := e.Delete(ctx, session.ID); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// ============================================================================
// TokenRepository implementation
// ============================================================================

// GetSessionByTokenHash retrieves a session by its token hash.
func (e *RedisEngine) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	sessionID, err := e.client.Get(ctx, redisTokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("redis: get token: %w", err)
	}

	session, err := e.loadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Stale pointer, clean it up
			_ = e.client.Del(ctx, redisTokenKey(tokenHash)).Err()
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}

	if session.IsExpired() {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// GetSession retrieves a session by ID for credential validation.
func (e *RedisEngine) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.Get(ctx, sessionID)
}

// ============================================================================
// Engine lifecycle
// ============================================================================

// Count returns the total number of stored sessions.
func (e *RedisEngine) Count(ctx context.Context) int {
	count := 0
	_ = e.scanAll(ctx, func(*domain.Session) bool {
		count++
		return true
	})
	return count
}

// Scan iterates over all sessions.
func (e *RedisEngine) Scan(fn func(*domain.Session) bool) {
	_ = e.scanAll(context.Background(), fn)
}

// Close releases the Redis client.
func (e *RedisEngine) Close() error {
	return e.client.Close()
}

// ============================================================================
// Internal helpers
// ============================================================================

// liveUserSessionIDs returns session IDs from the user set whose session
// records still exist, pruning stale members as a side effect.
func (e *RedisEngine) liveUserSessionIDs(ctx context.Context, userID string) ([]string, error) {
	setKey := redisUserSetKey(userID)

	ids, err := e.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err = e.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Exists(ctx, redisSessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: exists pipeline: %w", err)
	}

	var live []string
	var stale []interface{}
	for i, id := range ids {
		if cmds[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		_ = e.client.SRem(ctx, setKey, stale...).Err()
	}
	return live, nil
}

// scanAll iterates all session records via SCAN.
func (e *RedisEngine) scanAll(ctx context.Context, fn func(*domain.Session) bool) error {
	iter := e.client.Scan(ctx, 0, redisSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := e.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("redis: get session: %w", err)
		}

		var session domain.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("redis: unmarshal session: %w", err)
		}
		if !fn(&session) {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan: %w", err)
	}
	return nil
}
