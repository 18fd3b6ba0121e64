package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

func openTestRedis(t *testing.T, opts ...func(*Config)) (*RedisEngine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	cfg := Config{
		Backend: BackendRedis,
		Redis:   RedisConfig{Addr: mr.Addr()},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine, err := NewRedisEngine(context.Background(), cfg)
	if err != nil {
		mr.Close()
		t.Fatalf("NewRedisEngine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})
	return engine, mr
}

func newRedisTestSession(t *testing.T, userID, tokenHash string) *domain.Session {
	t.Helper()
	s, err := domain.NewSession(userID, "user-"+userID)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.TokenHash = tokenHash
	s.SetExpiration(time.Hour)
	return s
}

func TestRedisEngine_CreateAndGet(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_1")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := engine.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != s.ID || got.UserID != "u1" || got.TokenHash != s.TokenHash {
		t.Fatalf("Get = %+v, want fields of %+v", got, s)
	}

	byToken, err := engine.GetSessionByTokenHash(ctx, s.TokenHash)
	if err != nil {
		t.Fatalf("GetSessionByTokenHash: %v", err)
	}
	if byToken.ID != s.ID {
		t.Fatalf("GetSessionByTokenHash ID = %q, want %q", byToken.ID, s.ID)
	}

	if _, err := engine.Get(ctx, "nonexistent"); err != domain.ErrSessionNotFound {
		t.Fatalf("Get(nonexistent) err = %v, want %v", err, domain.ErrSessionNotFound)
	}
	if _, err := engine.GetSessionByTokenHash(ctx, "nonexistent"); err != domain.ErrTokenInvalid {
		t.Fatalf("GetSessionByTokenHash(nonexistent) err = %v, want %v", err, domain.ErrTokenInvalid)
	}
}

func TestRedisEngine_CreateConflicts(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_conflict")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := engine.Create(ctx, s); err != domain.ErrSessionConflict {
		t.Fatalf("Create dup err = %v, want %v", err, domain.ErrSessionConflict)
	}

	other := newRedisTestSession(t, "u2", "cgth_redis_conflict")
	if err := engine.Create(ctx, other); err != domain.ErrTokenHashConflict {
		t.Fatalf("Create same hash err = %v, want %v", err, domain.ErrTokenHashConflict)
	}
}

func TestRedisEngine_Quota(t *testing.T) {
	engine, _ := openTestRedis(t, func(cfg *Config) {
		cfg.MaxSessionsPerUser = 1
	})
	ctx := context.Background()

	s1 := newRedisTestSession(t, "u1", "cgth_redis_q1")
	if err := engine.Create(ctx, s1); err != nil {
		t.Fatalf("Create 1: %v", err)
	}

	s2 := newRedisTestSession(t, "u1", "cgth_redis_q2")
	if err := engine.Create(ctx, s2); err != domain.ErrSessionQuotaExceeded {
		t.Fatalf("Create 2 err = %v, want %v", err, domain.ErrSessionQuotaExceeded)
	}
}

func TestRedisEngine_UpdateVersioning(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_v1")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.Data["k"] = "v"
	if err := engine.Update(ctx, s, 999); err != domain.ErrSessionVersionConflict {
		t.Fatalf("Update stale err = %v, want %v", err, domain.ErrSessionVersionConflict)
	}

	before := s.Version
	if err := engine.Update(ctx, s, s.Version); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Version != before+1 {
		t.Fatalf("Version = %d, want %d", s.Version, before+1)
	}

	got, err := engine.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Data["k"] != "v" {
		t.Fatalf("Data[k] = %q, want %q", got.Data["k"], "v")
	}
}

func TestRedisEngine_UpdateChangesTokenPointer(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_old")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	expectedVersion := s.Version
	s.TokenHash = "cgth_redis_new"
	if err := engine.Update(ctx, s, expectedVersion); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := engine.GetSessionByTokenHash(ctx, "cgth_redis_old"); err != domain.ErrTokenInvalid {
		t.Fatalf("old hash err = %v, want %v", err, domain.ErrTokenInvalid)
	}
	got, err := engine.GetSessionByTokenHash(ctx, "cgth_redis_new")
	if err != nil {
		t.Fatalf("GetSessionByTokenHash(new): %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("new hash ID = %q, want %q", got.ID, s.ID)
	}
}

func TestRedisEngine_DeleteCleansKeys(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_del")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := engine.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := engine.Get(ctx, s.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("Get err = %v, want %v", err, domain.ErrSessionNotFound)
	}
	if _, err := engine.GetSessionByTokenHash(ctx, s.TokenHash); err != domain.ErrTokenInvalid {
		t.Fatalf("GetSessionByTokenHash err = %v, want %v", err, domain.ErrTokenInvalid)
	}
	count, err := engine.CountByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("CountByUserID: %v", err)
	}
	if count != 0 {
		t.Fatalf("CountByUserID = %d, want 0", count)
	}

	if err := engine.Delete(ctx, "nonexistent"); err != domain.ErrSessionNotFound {
		t.Fatalf("Delete(nonexistent) err = %v, want %v", err, domain.ErrSessionNotFound)
	}
}

func TestRedisEngine_DeleteByUserID(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := newRedisTestSession(t, "u1", "cgth_redis_bulk_"+string(rune('a'+i)))
		if err := engine.Create(ctx, s); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	keep := newRedisTestSession(t, "u2", "cgth_redis_keep")
	if err := engine.Create(ctx, keep); err != nil {
		t.Fatalf("Create keep: %v", err)
	}

	deleted, err := engine.DeleteByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteByUserID: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	if engine.Count(ctx) != 1 {
		t.Fatalf("Count = %d, want 1", engine.Count(ctx))
	}
	if _, err := engine.Get(ctx, keep.ID); err != nil {
		t.Fatalf("Get keep: %v", err)
	}
}

func TestRedisEngine_TTLEviction(t *testing.T) {
	engine, mr := openTestRedis(t)
	ctx := context.Background()

	s, err := domain.NewSession("u1", "user-u1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.TokenHash = "cgth_redis_ttl"
	s.SetExpiration(time.Minute)
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Redis drops the keys once the TTL passes
	mr.FastForward(2 * time.Minute)

	if _, err := engine.Get(ctx, s.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("Get err = %v, want %v", err, domain.ErrSessionNotFound)
	}
	if _, err := engine.GetSessionByTokenHash(ctx, s.TokenHash); err != domain.ErrTokenInvalid {
		t.Fatalf("GetSessionByTokenHash err = %v, want %v", err, domain.ErrTokenInvalid)
	}

	// The user set member is pruned lazily on the next read
	count, err := engine.CountByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("CountByUserID: %v", err)
	}
	if count != 0 {
		t.Fatalf("CountByUserID = %d, want 0", count)
	}
}

func TestRedisEngine_DeleteExpiredSweep(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	live := newRedisTestSession(t, "u1", "cgth_redis_live")
	if err := engine.Create(ctx, live); err != nil {
		t.Fatalf("Create live: %v", err)
	}

	// Expired by wall clock but still present as a key: its expiry was
	// shortened after the write, so no Redis TTL removed it.
	stale := newRedisTestSession(t, "u1", "cgth_redis_stale")
	if err := engine.Create(ctx, stale); err != nil {
		t.Fatalf("Create stale: %v", err)
	}
	stale.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	if err := engine.UpdateSession(ctx, stale); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	deleted, err := engine.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if engine.Count(ctx) != 1 {
		t.Fatalf("Count = %d, want 1", engine.Count(ctx))
	}
}

func TestRedisEngine_ListWithFilterAndPaging(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s := newRedisTestSession(t, "u1", "cgth_redis_list_"+string(rune('a'+i)))
		if err := engine.Create(ctx, s); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	other := newRedisTestSession(t, "u2", "cgth_redis_list_other")
	if err := engine.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	filter := &service.SessionFilter{
		UserID:   "u1",
		Page:     1,
		PageSize: 2,
	}
	sessions, total, err := engine.List(ctx, filter)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}

	all, total, err := engine.List(ctx, nil)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if total != 6 {
		t.Fatalf("total all = %d, want 6", total)
	}
	if len(all) != 6 {
		t.Fatalf("len(all) = %d, want 6", len(all))
	}
}

func TestRedisEngine_UpdateSessionKeepsVersion(t *testing.T) {
	engine, _ := openTestRedis(t)
	ctx := context.Background()

	s := newRedisTestSession(t, "u1", "cgth_redis_us")
	if err := engine.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.LastAccessIP = "9.9.9.9"
	if err := engine.UpdateSession(ctx, s); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, err := engine.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastAccessIP != "9.9.9.9" {
		t.Fatalf("LastAccessIP = %q, want %q", got.LastAccessIP, "9.9.9.9")
	}
	if got.Version != s.Version {
		t.Fatalf("Version = %d, want %d", got.Version, s.Version)
	}
}
