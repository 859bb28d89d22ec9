// persistence/interface.go
package persistence

import (
	"github.com/wfunc/memoryserver/models"
)

// Database 排行榜存储接口
type Database interface {
	// SaveScore stores a record. Saving an id that already exists is a no-op.
	SaveScore(record models.ScoreRecord) error
	// LoadScores returns the records of gameType, or every record when it is empty,
	// best score first.
	LoadScores(gameType string) ([]models.ScoreRecord, error)
	DeleteScores() error
	Close() error
}
