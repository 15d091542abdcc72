// services/stats_service.go
package services

import (
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/persistence"
)

// StatsService records finished rounds and answers stats queries. A nil
// store turns every method into a no-op so the server can run without a
// database (e.g. in tests or local play).
type StatsService struct {
	store persistence.Store
}

func NewStatsService(store persistence.Store) *StatsService {
	return &StatsService{store: store}
}

// RecordRound persists one finished round. Errors are logged, not
// propagated: losing a record must never disturb a live room.
func (s *StatsService) RecordRound(record models.GameRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveGameRecord(&record); err != nil {
		logger.Log.Errorf("failed to save game record for room %s: %v", record.RoomID, err)
	}
}

// PlayerStats returns a player's aggregate results.
func (s *StatsService) PlayerStats(userID string) (*models.PlayerStats, error) {
	if s.store == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.store.GetPlayerStats(userID)
}

// RoomHistory returns the recorded rounds for a room id.
func (s *StatsService) RoomHistory(roomID string) ([]models.GameRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRoomRecords(roomID)
}
