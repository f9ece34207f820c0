package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		module_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		UNIQUE (module_id, position),
		FOREIGN KEY (module_id) REFERENCES modules(id)
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stage_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		question_count INTEGER NOT NULL CHECK (question_count > 0),
		alternative INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (stage_id) REFERENCES stages(id)
	);
	CREATE INDEX IF NOT EXISTS idx_activities_pool ON activities (stage_id, alternative);

	CREATE TABLE IF NOT EXISTS learners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		learner_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (learner_id) REFERENCES learners(id)
	);

	CREATE TABLE IF NOT EXISTS progress (
		learner_id INTEGER PRIMARY KEY,
		module_id INTEGER NOT NULL,
		stage_id INTEGER NOT NULL,
		box TEXT,
		version INTEGER NOT NULL,
		FOREIGN KEY (learner_id) REFERENCES learners(id),
		FOREIGN KEY (module_id) REFERENCES modules(id),
		FOREIGN KEY (stage_id) REFERENCES stages(id)
	);

	CREATE TABLE IF NOT EXISTS history (
		learner_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		stage_id INTEGER NOT NULL,
		attempt INTEGER NOT NULL,
		box TEXT NOT NULL,
		grade REAL NOT NULL,
		outcome TEXT NOT NULL,
		evaluated_at DATETIME NOT NULL,
		PRIMARY KEY (learner_id, seq),
		FOREIGN KEY (learner_id) REFERENCES learners(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
