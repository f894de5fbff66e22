package migrate

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestAutoMigrateModelsCreatesTables(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrateModels(conn); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	for _, table := range []string{"products", "users", "sales", "sale_items", "outbox_events", "outbox_dlq"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}
