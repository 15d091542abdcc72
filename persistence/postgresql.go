// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/yagpdc/words-game/models"
)

// PostgreSQL is the raw database/sql Store implementation, for
// deployments that prefer plain SQL over GORM.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_record_models (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(16) NOT NULL,
            players JSONB NOT NULL,
            final_score INT NOT NULL,
            words_completed INT NOT NULL,
            reason VARCHAR(32) NOT NULL,
            duration INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats_models (
            id SERIAL PRIMARY KEY,
            user_id VARCHAR(64) UNIQUE NOT NULL,
            name VARCHAR(255) NOT NULL,
            total_games INT DEFAULT 0,
            wins INT DEFAULT 0,
            losses INT DEFAULT 0,
            best_score INT DEFAULT 0,
            total_score INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_record_models_room_id
        ON game_record_models(room_id)
    `)
	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO game_record_models
            (room_id, players, final_score, words_completed, reason, duration, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.RoomID, playersJSON, record.FinalScore, record.WordsCompleted,
		string(record.Reason), record.Duration, record.CreatedAt,
	)
	if err != nil {
		return err
	}

	won := record.Reason == models.ReasonCompleted
	winInc, lossInc := 0, 1
	if won {
		winInc, lossInc = 1, 0
	}

	for _, player := range record.Players {
		_, err = tx.Exec(`
            INSERT INTO player_stats_models
                (user_id, name, total_games, wins, losses, best_score, total_score)
            VALUES ($1, $2, 1, $3, $4, $5, $5)
            ON CONFLICT (user_id) DO UPDATE SET
                name = EXCLUDED.name,
                total_games = player_stats_models.total_games + 1,
                wins = player_stats_models.wins + $3,
                losses = player_stats_models.losses + $4,
                best_score = GREATEST(player_stats_models.best_score, $5),
                total_score = player_stats_models.total_score + $5,
                updated_at = CURRENT_TIMESTAMP`,
			player.UserID, player.Name, winInc, lossInc, record.FinalScore,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (p *PostgreSQL) ListRoomRecords(roomID string) ([]models.GameRecord, error) {
	rows, err := p.db.Query(`
        SELECT room_id, players, final_score, words_completed, reason, duration, created_at
        FROM game_record_models
        WHERE room_id = $1
        ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var rec models.GameRecord
		var playersJSON []byte
		var reason string
		if err := rows.Scan(&rec.RoomID, &playersJSON, &rec.FinalScore,
			&rec.WordsCompleted, &reason, &rec.Duration, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(playersJSON, &rec.Players); err != nil {
			return nil, err
		}
		rec.Reason = models.EndReason(reason)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := p.db.QueryRow(`
        SELECT total_games, wins, losses, best_score, total_score
        FROM player_stats_models
        WHERE user_id = $1`, userID,
	).Scan(&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.BestScore, &stats.TotalScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
