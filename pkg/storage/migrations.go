package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS spend_records (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		workflow_id TEXT NOT NULL,
		agent_id    TEXT NOT NULL,
		model_name  TEXT NOT NULL DEFAULT '',
		cost        TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		step_count  INTEGER NOT NULL DEFAULT 1,
		occurred_at DATETIME NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_spend_customer_time ON spend_records(customer_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_spend_workflow ON spend_records(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_spend_agent ON spend_records(agent_id);

	CREATE TABLE IF NOT EXISTS budget_policies (
		policy_id             TEXT PRIMARY KEY,
		customer_id           TEXT NOT NULL,
		daily_budget_limit    TEXT NOT NULL,
		workflow_budget_limit TEXT NOT NULL,
		step_limit_per_agent  INTEGER NOT NULL,
		created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_policy_customer ON budget_policies(customer_id, created_at);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
