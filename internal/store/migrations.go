package store

import (
	"database/sql"
	"fmt"
	"time"

	"schedforge/internal/logging"
)

// Schema versions:
// v1: certificates table (ids, status, hashes, payloads)
// v2: item_count, followup_count and gate_failed columns for listing without
// decoding payloads
const CurrentSchemaVersion = 2

// Migration adds one column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations upgrades databases created before a column existed.
var pendingMigrations = []Migration{
	{"certificates", "item_count", "INTEGER NOT NULL DEFAULT 0"},
	{"certificates", "followup_count", "INTEGER NOT NULL DEFAULT 0"},
	{"certificates", "gate_failed", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies pending column migrations and records the schema
// version.
func RunMigrations(db *sql.DB) error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("table missing, skipping migration: %s.%s", m.Table, m.Column)
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Store("migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	if GetSchemaVersion(db) < CurrentSchemaVersion {
		if _, err := db.Exec("INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)", CurrentSchemaVersion, time.Now().UTC()); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	logging.StoreDebug("schema migrations complete: applied=%d", applied)
	return nil
}

// GetSchemaVersion returns the recorded schema version, 0 when none is.
func GetSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "schema_versions") {
		return 0
	}
	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil || !version.Valid {
		return 0
	}
	return int(version.Int64)
}

// columnExists checks a column with PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}
