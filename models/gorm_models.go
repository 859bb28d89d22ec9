// models/gorm_models.go
package models

import (
	"time"
)

// GormScore 排行榜分数表
type GormScore struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Score          int       `gorm:"not null;index"`
	Date           time.Time `gorm:"not null;index"`
	PlayerUsername string    `gorm:"not null"`
	GameType       string    `gorm:"not null;index"`
	CreatedAt      time.Time
}

func (GormScore) TableName() string {
	return "scores"
}

// ToRecord converts the row back into a domain record.
func (s GormScore) ToRecord() ScoreRecord {
	return ScoreRecord{
		ID:             s.ID,
		Score:          s.Score,
		Date:           s.Date,
		PlayerUsername: s.PlayerUsername,
		GameType:       s.GameType,
	}
}

// NewGormScore builds a row from a domain record.
func NewGormScore(r ScoreRecord) GormScore {
	return GormScore{
		ID:             r.ID,
		Score:          r.Score,
		Date:           r.Date,
		PlayerUsername: r.PlayerUsername,
		GameType:       r.GameType,
	}
}
