// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yagpdc/words-game/models"
)

// GormPostgreSQL is the GORM-backed Store implementation.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// GameRecordModel is one finished round.
type GameRecordModel struct {
	ID             uint   `gorm:"primaryKey"`
	RoomID         string `gorm:"index;not null"`
	Players        []byte `gorm:"type:jsonb;not null"`
	FinalScore     int    `gorm:"not null"`
	WordsCompleted int    `gorm:"not null"`
	Reason         string `gorm:"not null"`
	Duration       int    `gorm:"default:0"`
	CreatedAt      time.Time
}

// PlayerStatsModel is a per-player aggregate updated in the same
// transaction that inserts the round record.
type PlayerStatsModel struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
	Losses     int    `gorm:"default:0"`
	BestScore  int    `gorm:"default:0"`
	TotalScore int    `gorm:"default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GameRecordModel{},
		&PlayerStatsModel{},
	)
}

// SaveGameRecord inserts the round and updates both players' aggregates
// atomically.
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		row := GameRecordModel{
			RoomID:         record.RoomID,
			Players:        playersJSON,
			FinalScore:     record.FinalScore,
			WordsCompleted: record.WordsCompleted,
			Reason:         string(record.Reason),
			Duration:       record.Duration,
			CreatedAt:      record.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		won := record.Reason == models.ReasonCompleted
		for _, player := range record.Players {
			if err := upsertStats(tx, player.UserID, player.Name, record.FinalScore, won); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertStats(tx *gorm.DB, userID, name string, score int, won bool) error {
	var stats PlayerStatsModel
	err := tx.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = PlayerStatsModel{UserID: userID, Name: name}
		if err := tx.Create(&stats).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	stats.Name = name
	stats.TotalGames++
	if won {
		stats.Wins++
	} else {
		stats.Losses++
	}
	if score > stats.BestScore {
		stats.BestScore = score
	}
	stats.TotalScore += score
	return tx.Save(&stats).Error
}

// ListRoomRecords returns every round recorded for a room, oldest first.
func (p *GormPostgreSQL) ListRoomRecords(roomID string) ([]models.GameRecord, error) {
	var rows []GameRecordModel
	if err := p.db.Where("room_id = ?", roomID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		var players []models.Player
		if err := json.Unmarshal(row.Players, &players); err != nil {
			return nil, err
		}
		records = append(records, models.GameRecord{
			RoomID:         row.RoomID,
			Players:        players,
			FinalScore:     row.FinalScore,
			WordsCompleted: row.WordsCompleted,
			Reason:         models.EndReason(row.Reason),
			Duration:       row.Duration,
			CreatedAt:      row.CreatedAt,
		})
	}
	return records, nil
}

// GetPlayerStats loads a player's aggregate row.
func (p *GormPostgreSQL) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var stats PlayerStatsModel
	if err := p.db.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.PlayerStats{
		TotalGames: stats.TotalGames,
		Wins:       stats.Wins,
		Losses:     stats.Losses,
		BestScore:  stats.BestScore,
		TotalScore: stats.TotalScore,
	}, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
