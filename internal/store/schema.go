package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Timestamps are unix milliseconds so one schema serves sqlite and postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		icon TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		organization_id TEXT,
		color TEXT,
		icon TEXT,
		type TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_organization ON projects (organization_id)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		project_id TEXT,
		organization_id TEXT,
		assigned_agent_id TEXT,
		parent_id TEXT,
		status TEXT NOT NULL DEFAULT 'todo',
		priority TEXT,
		due_date BIGINT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_agent_status ON tasks (assigned_agent_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_organization ON tasks (organization_id)`,
	`CREATE TABLE IF NOT EXISTS task_comments (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		content TEXT NOT NULL,
		attachments TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_comments_task_created ON task_comments (task_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS activity_feed (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		agent_id TEXT,
		task_id TEXT,
		message TEXT NOT NULL,
		metadata TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_feed_created ON activity_feed (created_at)`,
	`CREATE TABLE IF NOT EXISTS queue_items (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		session_key TEXT,
		started_at BIGINT,
		completed_at BIGINT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_items_created ON queue_items (created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		from_agent_id TEXT,
		task_id TEXT,
		content TEXT NOT NULL,
		delivered BOOLEAN NOT NULL DEFAULT FALSE,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_agent_created ON notifications (agent_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS inbox_items (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		type TEXT NOT NULL,
		url TEXT,
		metadata TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inbox_items_type_created ON inbox_items (type, created_at)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		report_date TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idea_gauntlet_runs (
		id TEXT PRIMARY KEY,
		idea TEXT NOT NULL,
		result TEXT NOT NULL,
		verdict TEXT,
		confidence INTEGER,
		created_at BIGINT NOT NULL
	)`,
}

// addedColumns were introduced after the first release; databases created
// earlier get them through ALTER TABLE.
var addedColumns = []struct {
	table, column, decl string
}{
	{"tasks", "parent_id", "TEXT"},
}

var lateIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks (parent_id)`,
}

func initSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	for _, c := range addedColumns {
		if _, err := db.ExecContext(ctx, "SELECT "+c.column+" FROM "+c.table+" WHERE 1 = 0"); err == nil {
			continue
		}
		stmt := "ALTER TABLE " + c.table + " ADD COLUMN " + c.column + " " + c.decl
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	for _, stmt := range lateIndexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}
