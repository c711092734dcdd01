package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edgegate/edgegate/internal/models"
	internalsettings "github.com/edgegate/edgegate/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.BlockEntry{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureRateLimitSettings(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureDetectorSettings(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

func ensureRateLimitSettings(conn *gorm.DB) error {
	if errSeed := ensureBoolSetting(conn, internalsettings.RateLimitRedisEnabledKey, false); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.RateLimitRedisAddrKey, ""); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix); errSeed != nil {
		return errSeed
	}
	return ensureIntSetting(conn, internalsettings.RateLimitRedisDBKey, 0)
}

func ensureDetectorSettings(conn *gorm.DB) error {
	if errSeed := ensureIntSetting(conn, internalsettings.DDoSBurstLimitKey, internalsettings.DefaultDDoSBurstLimit); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.DDoSBurstWindowSecondsKey, internalsettings.DefaultDDoSBurstWindowSeconds); errSeed != nil {
		return errSeed
	}
	return ensureIntSetting(conn, internalsettings.BlockDurationSecondsKey, internalsettings.DefaultBlockDurationSeconds)
}

func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, payload)
}

func ensureBoolSetting(conn *gorm.DB, key string, value bool) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, payload)
}

func ensureStringSetting(conn *gorm.DB, key, value string) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, payload)
}

func ensureRawSetting(conn *gorm.DB, key string, payload []byte) error {
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(rawValue),
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
