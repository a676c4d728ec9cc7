// Package db opens connections to the external beads store and exposes the
// cheap change counter the stream pollers watch.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/beadboard/beadboard/internal/config"
	"github.com/beadboard/beadboard/internal/models"
)

// DSN builds a MySQL-compatible DSN for connecting to a beads Dolt server.
func DSN(host string, port int, database string) string {
	return fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=false", host, port, database)
}

// Open connects to the store described by cfg. The bd CLI owns the store
// and may not have created it yet when the dashboard starts, so the open is
// retried with exponential backoff for a short window.
func Open(cfg config.StoreConfig) (*gorm.DB, error) {
	var handle *gorm.DB

	op := func() error {
		var err error
		handle, err = open(cfg)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("db: open %s store: %w", cfg.Driver, err)
	}
	return handle, nil
}

func open(cfg config.StoreConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch cfg.Driver {
	case "mysql":
		return gorm.Open(mysql.Open(DSN(cfg.Host, cfg.Port, cfg.Database)), gcfg)
	default:
		handle, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			return nil, err
		}
		// PRAGMA data_version is scoped to the connection that runs it. A
		// pool of one keeps every read on the same connection, so the value
		// is stable across concurrent callers and an external commit always
		// advances it. SQLite serializes writers regardless of pool size.
		sqlDB, err := handle.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		return handle, nil
	}
}

// DataVersion reads the store's monotonic change counter. On SQLite this is
// PRAGMA data_version plus the metadata counter: the pragma advances
// whenever another connection commits, which covers the bd CLI writing from
// outside the process, and the metadata counter covers the dashboard's own
// writes, which the pragma does not report back to the writing connection.
// Open pins the sqlite pool to a single connection, so the pragma read never
// lands on a fresh connection with a different baseline. Backends without
// the pragma use the metadata counter alone.
func DataVersion(handle *gorm.DB) (int64, error) {
	meta, err := metadataVersion(handle)
	if err != nil {
		return 0, err
	}
	if handle.Dialector.Name() != "sqlite" {
		return meta, nil
	}
	var v int64
	if err := handle.Raw("PRAGMA data_version").Scan(&v).Error; err != nil {
		return 0, fmt.Errorf("db: read data_version: %w", err)
	}
	return v + meta, nil
}

func metadataVersion(handle *gorm.DB) (int64, error) {
	var meta models.Metadata
	err := metadataRow(handle, &meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("db: read metadata %s: %w", models.MetaDataVersion, err)
	}
	var v int64
	if _, err := fmt.Sscanf(meta.Value, "%d", &v); err != nil {
		return 0, fmt.Errorf("db: metadata %s holds %q, not a counter", models.MetaDataVersion, meta.Value)
	}
	return v, nil
}

// metadataRow looks up the counter row with a struct condition so gorm
// quotes the column: "key" is reserved on MySQL.
func metadataRow(handle *gorm.DB, meta *models.Metadata) *gorm.DB {
	return handle.Where(&models.Metadata{Key: models.MetaDataVersion}).First(meta)
}

// BumpMetadataVersion advances the metadata change counter. Write paths
// call this inside their transaction so every dashboard-side mutation moves
// the counter the pollers watch.
func BumpMetadataVersion(handle *gorm.DB) error {
	if err := bumpVersion(handle).Error; err != nil {
		return fmt.Errorf("db: bump %s: %w", models.MetaDataVersion, err)
	}
	return nil
}

// bumpVersion is the dialect-aware upsert behind BumpMetadataVersion: sqlite
// renders ON CONFLICT, MySQL renders ON DUPLICATE KEY UPDATE, and both quote
// the key column, which is reserved on MySQL. The arithmetic relies on both
// backends coercing the stored string to a number.
func bumpVersion(handle *gorm.DB) *gorm.DB {
	row := models.Metadata{Key: models.MetaDataVersion, Value: "1"}
	return handle.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": gorm.Expr("value + 1")}),
	}).Create(&row)
}
