package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

func TestActiveTokenRepositoryLifecycle(t *testing.T) {
	repo := NewActiveTokenRepository(newTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()

	for _, tok := range []string{"t1", "t2"} {
		if err := repo.Create(ctx, &domain.ActiveAccessToken{UserID: "u1", AccessToken: tok, ExpiresAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("create %s: %v", tok, err)
		}
	}
	if err := repo.Create(ctx, &domain.ActiveAccessToken{UserID: "u1", AccessToken: "t1", ExpiresAt: now.Add(time.Minute)}); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate token to fail, got %v", err)
	}

	list, err := repo.ListByUserID(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d, %v", len(list), err)
	}

	ok, err := repo.DeleteByToken(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("delete t1: %v %v", ok, err)
	}
	ok, err = repo.DeleteByToken(ctx, "t1")
	if err != nil || ok {
		t.Fatalf("second delete must report absence: %v %v", ok, err)
	}

	n, err := repo.DeleteByUserID(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("delete by user: %d %v", n, err)
	}
	n, err = repo.DeleteByUserID(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("delete by user again: %d %v", n, err)
	}

	if err := repo.Create(ctx, &domain.ActiveAccessToken{UserID: "u2", AccessToken: "stale", ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("create stale: %v", err)
	}
	n, err = repo.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("sweep: %d %v", n, err)
	}
}

func TestBlacklistRepositoryAddIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlacklistRepository(db)
	ctx := t.Context()
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		if err := repo.Add(ctx, "tok", now); err != nil {
			t.Fatalf("add #%d: %v", i, err)
		}
	}
	var count int64
	if err := db.Model(&domain.BlacklistedToken{}).Where("token = ?", "tok").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
	ok, err := repo.Exists(ctx, "tok")
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}
	ok, err = repo.Exists(ctx, "other")
	if err != nil || ok {
		t.Fatalf("unknown token reported present: %v %v", ok, err)
	}
}

func TestBlacklistRepositoryConcurrentAdds(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlacklistRepository(db)
	ctx := t.Context()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Add(ctx, "race", time.Now())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent add failed: %v", err)
		}
	}
	var count int64
	db.Model(&domain.BlacklistedToken{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected rows to converge to 1, got %d", count)
	}
}

func TestBlacklistRepositoryDeleteBefore(t *testing.T) {
	repo := NewBlacklistRepository(newTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()
	_ = repo.Add(ctx, "old", now.Add(-time.Hour))
	_ = repo.Add(ctx, "new", now)

	n, err := repo.DeleteBefore(ctx, now.Add(-30*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("delete before: %d %v", n, err)
	}
	if ok, _ := repo.Exists(ctx, "new"); !ok {
		t.Fatal("recent entry must survive the sweep")
	}
}

func TestTokenUsageRepositoryWindow(t *testing.T) {
	repo := NewTokenUsageRepository(newTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()

	_ = repo.Record(ctx, "tok", now.Add(-20*time.Second))
	_ = repo.Record(ctx, "tok", now.Add(-5*time.Second))
	_ = repo.Record(ctx, "tok", now)
	_ = repo.Record(ctx, "other", now)

	n, err := repo.CountSince(ctx, "tok", now.Add(-10*time.Second))
	if err != nil || n != 2 {
		t.Fatalf("count since: %d %v", n, err)
	}
	deleted, err := repo.DeleteBefore(ctx, now.Add(-time.Minute/6))
	if err != nil || deleted != 1 {
		t.Fatalf("delete before: %d %v", deleted, err)
	}
}
