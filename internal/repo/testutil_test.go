package repo

import (
	"database/sql"
	"os"
	"testing"

	"github.com/mtrtrdev/localQA/internal/config"
)

func openTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "localqa",
		Password: "localqa_pass",
		DBName:   "localqa_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
