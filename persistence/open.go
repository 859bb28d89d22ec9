package persistence

import (
	"fmt"

	"github.com/wfunc/memoryserver/config"
)

// Open connects the leaderboard store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "postgres":
		db, err := NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return db, nil
	case "gorm":
		db, err := NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, fmt.Errorf("gorm: %w", err)
		}
		return db, nil
	case "sqlite", "":
		db, err := NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return db, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
