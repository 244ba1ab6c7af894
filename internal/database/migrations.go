package database

import (
	"context"
	"fmt"
)

// Schema statements, one per Exec: pgx's extended protocol rejects
// multi-statement strings. All statements are idempotent so the server can
// run them on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255),
		role VARCHAR(20) NOT NULL DEFAULT 'technician',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		sender_id INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER REFERENCES users(id),
		project_id INTEGER REFERENCES projects(id),
		message TEXT NOT NULL,
		message_type VARCHAR(20) NOT NULL DEFAULT 'direct' CHECK (message_type IN ('direct', 'broadcast', 'project')),
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_id ON messages(receiver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sender_id ON messages(sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_project_id ON messages(project_id)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(50) NOT NULL DEFAULT 'info',
		related_id INTEGER,
		related_type VARCHAR(50),
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id)`,

	`CREATE TABLE IF NOT EXISTS inventory_items (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(100) NOT NULL,
		unit VARCHAR(50) NOT NULL,
		current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS inventory_usage (
		id SERIAL PRIMARY KEY,
		task_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL REFERENCES inventory_items(id),
		quantity_used INTEGER NOT NULL CHECK (quantity_used > 0),
		used_by INTEGER NOT NULL REFERENCES users(id),
		usage_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_usage_item_id ON inventory_usage(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_usage_task_id ON inventory_usage(task_id)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *DB) error {
	ctx := context.Background()

	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	return nil
}
