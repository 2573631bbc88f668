package storage

import (
	"context"
	"os"
	"testing"
)

func getMySQLAdapter(t *testing.T) *MySQLAdapter {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/shop"
	}

	db, err := OpenMySQL(context.Background(), MySQLConfig{DSN: dsn, MaxOpenConns: 20})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := NewMySQLAdapter(db)
	if err := adapter.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("migrate failed: %v", err)
	}
	return adapter
}

func TestMySQLAdapter(t *testing.T) {
	adapter := getMySQLAdapter(t)
	defer adapter.Close()

	runStoreContract(t, adapter)
}

func TestOpenMySQL_InvalidDSN(t *testing.T) {
	if _, err := OpenMySQL(context.Background(), MySQLConfig{DSN: "not a dsn"}); err == nil {
		t.Error("expected error for malformed DSN")
	}
}
