package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wfunc/memoryserver/models"
)

// SQLite is an embedded leaderboard store. Dates are kept as unix milliseconds.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			score INTEGER NOT NULL,
			date INTEGER NOT NULL,
			player_username TEXT NOT NULL,
			game_type TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_type ON scores(game_type)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveScore(record models.ScoreRecord) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO scores (id, score, date, player_username, game_type) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.Score, record.Date.UnixMilli(), record.PlayerUsername, record.GameType)
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	return nil
}

func (s *SQLite) LoadScores(gameType string) ([]models.ScoreRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, score, date, player_username, game_type FROM scores
		WHERE ? = '' OR game_type = ?
		ORDER BY score DESC, date ASC`, gameType, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()

	var records []models.ScoreRecord
	for rows.Next() {
		var r models.ScoreRecord
		var millis int64
		if err := rows.Scan(&r.ID, &r.Score, &millis, &r.PlayerUsername, &r.GameType); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		r.Date = time.UnixMilli(millis).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) DeleteScores() error {
	if _, err := s.db.Exec(`DELETE FROM scores`); err != nil {
		return fmt.Errorf("failed to delete scores: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
