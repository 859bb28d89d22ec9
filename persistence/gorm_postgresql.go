// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/memoryserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	return newGorm(postgres.Open(dsn))
}

func newGorm(dialector gorm.Dialector) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormScore{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveScore 保存分数
func (p *GormPostgreSQL) SaveScore(record models.ScoreRecord) error {
	row := models.NewGormScore(record)
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// LoadScores 加载分数
func (p *GormPostgreSQL) LoadScores(gameType string) ([]models.ScoreRecord, error) {
	var rows []models.GormScore
	query := p.db.Order("score DESC").Order("date ASC")
	if gameType != "" {
		query = query.Where("game_type = ?", gameType)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToRecord())
	}
	return records, nil
}

// DeleteScores 清空排行榜
func (p *GormPostgreSQL) DeleteScores() error {
	return p.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GormScore{}).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
