package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them. Immediate
	// transactions take the write lock up front, which serializes concurrent
	// turns on the same session.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			user_context TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS user_usage_stats (
			user_id TEXT PRIMARY KEY,
			total_sessions INTEGER NOT NULL DEFAULT 0,
			total_messages INTEGER NOT NULL DEFAULT 0,
			last_active_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_question_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			sample TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (user_id, sample)
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question TEXT NOT NULL UNIQUE,
			answer TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'en',
			priority INTEGER NOT NULL DEFAULT 0,
			keywords TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_keywords (
			entry_id INTEGER NOT NULL,
			keyword TEXT NOT NULL,
			PRIMARY KEY (entry_id, keyword),
			FOREIGN KEY (entry_id) REFERENCES knowledge_entries(id) ON DELETE CASCADE
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
			question, answer, keywords,
			content='knowledge_entries', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_ai AFTER INSERT ON knowledge_entries BEGIN
			INSERT INTO knowledge_fts(rowid, question, answer, keywords)
			VALUES (new.id, new.question, new.answer, new.keywords);
		END`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_ad AFTER DELETE ON knowledge_entries BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, keywords)
			VALUES ('delete', old.id, old.question, old.answer, old.keywords);
		END`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_au AFTER UPDATE ON knowledge_entries BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, keywords)
			VALUES ('delete', old.id, old.question, old.answer, old.keywords);
			INSERT INTO knowledge_fts(rowid, question, answer, keywords)
			VALUES (new.id, new.question, new.answer, new.keywords);
		END`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}
