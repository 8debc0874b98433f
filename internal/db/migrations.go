package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// {{TIMESTAMP}} is replaced per dialect; everything else is portable between
// postgres and sqlite.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS fault_status_log (
		id VARCHAR(36) PRIMARY KEY,
		fault_id VARCHAR(36) NOT NULL,
		station_name TEXT NOT NULL,
		description TEXT NOT NULL,
		action VARCHAR(32) NOT NULL,
		old_status VARCHAR(32),
		new_status VARCHAR(32) NOT NULL,
		technician TEXT,
		note TEXT,
		changed_by VARCHAR(36),
		created_at {{TIMESTAMP}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fault_status_log_fault_id ON fault_status_log (fault_id);`,
	`CREATE INDEX IF NOT EXISTS idx_fault_status_log_station ON fault_status_log (station_name);`,
	`CREATE INDEX IF NOT EXISTS idx_fault_status_log_created_at ON fault_status_log (created_at);`,
}

func runMigrations(db *gorm.DB) error {
	timestampType := "DATETIME"
	if db.Dialector.Name() == "postgres" {
		timestampType = "TIMESTAMPTZ"
	}

	for i, stmt := range migrationStatements {
		stmt = strings.ReplaceAll(stmt, "{{TIMESTAMP}}", timestampType)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
