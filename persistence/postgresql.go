// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/memoryserver/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS scores (
            id VARCHAR(64) PRIMARY KEY,
            score INTEGER NOT NULL,
            date TIMESTAMPTZ NOT NULL,
            player_username VARCHAR(255) NOT NULL,
            game_type VARCHAR(100) NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_scores_game_type ON scores(game_type);
        CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
    `)
	return err
}

// SaveScore 保存分数
func (p *PostgreSQL) SaveScore(record models.ScoreRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO scores (id, score, date, player_username, game_type)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING
    `

	_, err := p.db.ExecContext(ctx, query,
		record.ID, record.Score, record.Date.UTC(), record.PlayerUsername, record.GameType)
	return err
}

// LoadScores 加载分数
func (p *PostgreSQL) LoadScores(gameType string) ([]models.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT id, score, date, player_username, game_type FROM scores
        WHERE $1 = '' OR game_type = $1
        ORDER BY score DESC, date ASC
    `
	rows, err := p.db.QueryContext(ctx, query, gameType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ScoreRecord
	for rows.Next() {
		var r models.ScoreRecord
		if err := rows.Scan(&r.ID, &r.Score, &r.Date, &r.PlayerUsername, &r.GameType); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteScores 清空排行榜
func (p *PostgreSQL) DeleteScores() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM scores`)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
