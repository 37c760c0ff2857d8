package db

import (
	"database/sql"
	"log"
	"os"

	"github.com/deemkeen/inkwell/util"
)

const DatabaseFileName = "database.db"

// ResolveDatabasePath returns the sqlite file path. INKWELL_DB
// overrides it outright, otherwise local dir first, then the user
// config directory.
func ResolveDatabasePath() string {
	if path := os.Getenv("INKWELL_DB"); path != "" {
		return path
	}
	return util.ResolveFilePath(DatabaseFileName)
}

const (
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT DEFAULT '',
		summary TEXT DEFAULT '',
		web_public_key TEXT DEFAULT '',
		web_private_key TEXT DEFAULT '',
		auth_token TEXT UNIQUE,
		federation_enabled INTEGER DEFAULT 0,
		visibility TEXT DEFAULT 'public',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateEntriesTable = `CREATE TABLE IF NOT EXISTS entries(
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		visibility TEXT DEFAULT 'public',
		activity_uri TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`

	sqlCreateEntriesIndices = `
		CREATE INDEX IF NOT EXISTS idx_entries_user_id ON entries(user_id);
		CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at DESC);
	`

	sqlCreateFollowersTable = `CREATE TABLE IF NOT EXISTS followers(
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT DEFAULT '',
		accepted INTEGER DEFAULT 0,
		follow_uri TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, actor_uri)
	)`

	sqlCreateFollowersIndices = `
		CREATE INDEX IF NOT EXISTS idx_followers_user_id ON followers(user_id);
		CREATE INDEX IF NOT EXISTS idx_followers_actor_uri ON followers(actor_uri);
	`

	sqlCreateFollowingTable = `CREATE TABLE IF NOT EXISTS following(
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		target_actor_uri TEXT NOT NULL,
		pending INTEGER DEFAULT 1,
		follow_uri TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, target_actor_uri)
	)`

	sqlCreateFollowingIndices = `
		CREATE INDEX IF NOT EXISTS idx_following_user_id ON following(user_id);
		CREATE INDEX IF NOT EXISTS idx_following_target ON following(target_actor_uri);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if err := db.createTableIfNotExists(tx, sqlCreateAccountsTable, "accounts"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateEntriesTable, "entries"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateFollowersTable, "followers"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateFollowingTable, "following"); err != nil {
			return err
		}

		if _, err := tx.Exec(sqlCreateEntriesIndices); err != nil {
			log.Printf("Warning: Failed to create entries indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateFollowersIndices); err != nil {
			log.Printf("Warning: Failed to create followers indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateFollowingIndices); err != nil {
			log.Printf("Warning: Failed to create following indices: %v", err)
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
