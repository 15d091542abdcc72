// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/yagpdc/words-game/models"
)

// Store persists finished rounds and per-player aggregates. Room state
// itself is transient; only outcomes survive a restart.
type Store interface {
	SaveGameRecord(record *models.GameRecord) error
	ListRoomRecords(roomID string) ([]models.GameRecord, error)
	GetPlayerStats(userID string) (*models.PlayerStats, error)
	Close() error
}

var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
