package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/sandeepkv93/secure-content-auth-service/internal/config"
	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	if _, err := Dialector("oracle", "dsn"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	for _, driver := range []string{"sqlite", "postgres", "mysql"} {
		if _, err := Dialector(driver, "dsn"); err != nil {
			t.Fatalf("driver %s: %v", driver, err)
		}
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		AppEnv:         config.EnvDevelopment,
		DatabaseDriver: "sqlite",
		DatabaseURL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}
	db, err := Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if err := Migrate(t.Context(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, m := range domain.Models() {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("expected table for %T", m)
		}
	}

	first := &domain.User{Username: "alice", Email: "a@example.com", PasswordHash: "x", IsActive: true}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := &domain.User{Username: "alice", Email: "b@example.com", PasswordHash: "x", IsActive: true}
	if err := db.Create(dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected translated duplicate key error, got %v", err)
	}
}
