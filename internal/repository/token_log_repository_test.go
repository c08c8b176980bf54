package repository

import (
	"testing"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

func TestTokenLogRepositoryLastByUserAction(t *testing.T) {
	repo := NewTokenLogRepository(newTestDB(t))
	ctx := t.Context()
	now := time.Now().UTC()

	last, err := repo.LastByUserAction(ctx, "u1", "login")
	if err != nil || last != nil {
		t.Fatalf("expected no row, got %+v %v", last, err)
	}

	rows := []*domain.TokenLog{
		{UserID: strPtr("u1"), Action: "login", IPAddress: "1.1.1.1", Timestamp: now.Add(-time.Hour)},
		{UserID: strPtr("u1"), Action: "login", IPAddress: "2.2.2.2", Timestamp: now.Add(-time.Minute)},
		{UserID: strPtr("u1"), Action: "refresh", IPAddress: "3.3.3.3", Timestamp: now},
		{UserID: strPtr("u2"), Action: "login", IPAddress: "4.4.4.4", Timestamp: now},
		{Username: strPtr("ghost"), Action: "login failed", IPAddress: "5.5.5.5", Timestamp: now},
	}
	for _, r := range rows {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	last, err = repo.LastByUserAction(ctx, "u1", "login")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || last.IPAddress != "2.2.2.2" {
		t.Fatalf("expected most recent login row, got %+v", last)
	}

	page, err := repo.ListPaged(ctx, TokenLogQuery{UserID: "u1"})
	if err != nil || page.Total != 3 {
		t.Fatalf("list: %+v %v", page, err)
	}
	if page.Items[0].Action != "refresh" {
		t.Fatalf("expected newest first, got %s", page.Items[0].Action)
	}

	n, err := repo.DeleteBefore(ctx, now.Add(-30*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("delete before: %d %v", n, err)
	}
}
