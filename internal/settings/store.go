package settings

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/edgegate/edgegate/internal/models"
	"gorm.io/gorm"
)

// snapshot holds the latest settings values keyed by setting key.
var snapshot atomic.Value // map[string]json.RawMessage

func init() {
	snapshot.Store(map[string]json.RawMessage{})
}

// DBConfigValue returns the raw JSON value for a settings key from the
// current snapshot. The snapshot is refreshed by Reload; readers never
// touch the database.
func DBConfigValue(key string) (json.RawMessage, bool) {
	values, _ := snapshot.Load().(map[string]json.RawMessage)
	raw, ok := values[key]
	return raw, ok
}

// Reload replaces the settings snapshot with the current database contents.
func Reload(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("settings: nil connection")
	}
	var rows []models.Setting
	if errFind := conn.Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}
	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		values[row.Key] = json.RawMessage(row.Value)
	}
	snapshot.Store(values)
	return nil
}

// Replace swaps the snapshot wholesale. Intended for tests.
func Replace(values map[string]json.RawMessage) {
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	snapshot.Store(values)
}
