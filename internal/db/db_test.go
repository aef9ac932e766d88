package db

import (
	"strings"
	"testing"

	"github.com/wadesk/wadesk/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	got := DSN(config.DBConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "wadesk"})
	want := "root@tcp(127.0.0.1:3306)/wadesk?charset=utf8mb4&parseTime=true"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestDSN_WithPassword(t *testing.T) {
	got := DSN(config.DBConfig{Host: "db", Port: 3307, User: "wadesk", Password: "s3cret", Database: "tickets"})
	if !strings.HasPrefix(got, "wadesk:s3cret@tcp(db:3307)/tickets") {
		t.Errorf("DSN = %q", got)
	}
}

func TestAllModels_Count(t *testing.T) {
	if n := len(AllModels()); n != 5 {
		t.Errorf("AllModels returned %d models, want 5", n)
	}
}

func TestAutoMigrate(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	for _, table := range []string{"tickets", "queues", "channel_queues", "contacts", "channels"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("missing table %q", table)
		}
	}
}
