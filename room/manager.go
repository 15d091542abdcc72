// room/manager.go
package room

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
)

var (
	// ErrRoomNotFound means the room id matches no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull means both seats are taken.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyInRoom means the user already belongs to a non-finished room.
	ErrAlreadyInRoom = errors.New("user already in a room")
	// ErrNotInRoom means the user holds no seat in the room.
	ErrNotInRoom = errors.New("user is not in the room")
)

// roomCodeAlphabet avoids ambiguous characters since codes are shared
// between players by hand.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// finishedRoomTTL is how long a finished room stays around for rematch
// negotiation before the sweep may take it.
const finishedRoomTTL = 10 * time.Minute

// Manager is the authoritative registry of rooms. It owns the room
// lifecycle and the store-wide invariant that a user belongs to at
// most one non-finished room at a time.
type Manager struct {
	rooms  map[string]*Room
	byUser map[string]string // userID -> roomID while seated

	broadcaster Broadcaster
	newRun      RunFactory
	onFinished  FinishFunc

	finishedTTL time.Duration
	onSweep     func(roomID string)

	// mutex guards the registry maps only. Per-room state is guarded
	// by each room's command loop, never by this lock.
	mutex sync.Mutex
}

func NewManager(b Broadcaster, f RunFactory, fin FinishFunc) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		byUser:      make(map[string]string),
		broadcaster: b,
		newRun:      f,
		onFinished:  fin,
		finishedTTL: finishedRoomTTL,
	}
}

// SetSweepHook registers a callback invoked with the id of every swept
// room, so pending rematch offers over it can be dropped. Call before
// the manager starts serving.
func (m *Manager) SetSweepHook(fn func(roomID string)) {
	m.onSweep = fn
}

// CreateRoom allocates a fresh room with the creator seated. Fails if
// the creator already belongs to a non-finished room; a seat in a
// finished room is released implicitly.
func (m *Manager) CreateRoom(creator models.Player) (*Room, error) {
	m.mutex.Lock()
	if err := m.releaseOrRejectLocked(creator.UserID); err != nil {
		m.mutex.Unlock()
		return nil, err
	}

	id := m.newRoomIDLocked()
	r := newRoom(id, creator, m.broadcaster, m.newRun, m.onFinished)
	m.rooms[id] = r
	m.byUser[creator.UserID] = id
	m.mutex.Unlock()

	logger.Log.Infof("room %s created by %s", id, creator.UserID)
	return r, nil
}

// JoinRoom seats the player. A re-join of the user's own room is
// idempotent and reports Started=false, Already=true.
func (m *Manager) JoinRoom(roomID string, p models.Player) (*Room, JoinResult, error) {
	m.mutex.Lock()
	r, exists := m.rooms[roomID]
	if !exists {
		m.mutex.Unlock()
		return nil, JoinResult{}, ErrRoomNotFound
	}

	rejoin := m.byUser[p.UserID] == roomID
	if !rejoin {
		if err := m.releaseOrRejectLocked(p.UserID); err != nil {
			m.mutex.Unlock()
			return nil, JoinResult{}, err
		}
		m.byUser[p.UserID] = roomID
	}
	m.mutex.Unlock()

	res, err := r.join(p)
	if err != nil {
		m.mutex.Lock()
		if !rejoin && m.byUser[p.UserID] == roomID {
			delete(m.byUser, p.UserID)
		}
		m.mutex.Unlock()
		return nil, JoinResult{}, err
	}

	if res.Started {
		logger.Log.Infof("room %s started: %s vs %s", roomID, r.creatorID, p.UserID)
	}
	return r, res, nil
}

// LeaveRoom removes the player from the room, routing through the
// abandonment path if a run is live. Empty rooms are deleted.
func (m *Manager) LeaveRoom(roomID, userID string) (LeaveResult, error) {
	m.mutex.Lock()
	r, exists := m.rooms[roomID]
	m.mutex.Unlock()
	if !exists {
		return LeaveResult{}, ErrRoomNotFound
	}

	res, err := r.leave(userID)
	if err != nil {
		return res, err
	}

	m.mutex.Lock()
	if m.byUser[userID] == roomID {
		delete(m.byUser, userID)
	}
	if res.Empty {
		m.removeLocked(roomID)
	}
	m.mutex.Unlock()
	return res, nil
}

// ForceLeave removes the user from whatever room they are in. A no-op
// for users without a seat.
func (m *Manager) ForceLeave(userID string) (LeaveResult, error) {
	m.mutex.Lock()
	roomID, seated := m.byUser[userID]
	m.mutex.Unlock()
	if !seated {
		return LeaveResult{}, nil
	}
	return m.LeaveRoom(roomID, userID)
}

// GetRoom looks up a room by id.
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	r, exists := m.rooms[roomID]
	return r, exists
}

// FindRoomForUser returns the user's current non-finished room. Used
// by clients to resume their active room after a reconnect.
func (m *Manager) FindRoomForUser(userID string) (*Room, bool) {
	m.mutex.Lock()
	roomID, seated := m.byUser[userID]
	r := m.rooms[roomID]
	m.mutex.Unlock()

	if !seated || r == nil {
		return nil, false
	}
	if r.Status() == models.RoomFinished {
		return nil, false
	}
	return r, true
}

// CreateRematch spins up a fresh room seeded with the two players of a
// finished room and starts its run immediately. The requester becomes
// the creator and takes the first turn. Fails with ErrAlreadyInRoom if
// either player has since joined another live room.
func (m *Manager) CreateRematch(old *Room, requesterID string) (*Room, error) {
	players := old.Players()
	if len(players) != maxSeats {
		return nil, ErrNotInRoom
	}

	var creator, other models.Player
	for _, p := range players {
		if p.UserID == requesterID {
			creator = p
		} else {
			other = p
		}
	}
	if creator.UserID == "" || other.UserID == "" {
		return nil, ErrNotInRoom
	}
	creator.IsCreator = true
	other.IsCreator = false

	m.mutex.Lock()
	// Release both seats in the old room's index so the new room can
	// claim them. A player who already joined some other live room in
	// the meantime keeps that seat and the rematch fails instead.
	for _, userID := range []string{creator.UserID, other.UserID} {
		if err := m.releaseOrRejectLocked(userID); err != nil {
			m.mutex.Unlock()
			return nil, err
		}
	}

	id := m.newRoomIDLocked()
	r := newRoom(id, creator, m.broadcaster, m.newRun, m.onFinished)
	r.gamesPlayed = old.gamesPlayed + 1
	m.rooms[id] = r
	m.byUser[creator.UserID] = id
	m.byUser[other.UserID] = id
	m.mutex.Unlock()

	if _, err := r.join(other); err != nil {
		m.mutex.Lock()
		delete(m.byUser, other.UserID)
		m.mutex.Unlock()
		return nil, err
	}

	logger.Log.Infof("rematch room %s created from %s", id, old.ID())
	return r, nil
}

// Sweep garbage-collects rooms with no players left, plus finished
// rooms once their rematch grace period has passed. Returns the number
// of live rooms after the sweep.
func (m *Manager) Sweep() int {
	// Eligibility goes through each room's command loop, so collect
	// candidates without holding the registry lock.
	now := time.Now()
	var stale []string
	for _, r := range m.list() {
		if r.sweepEligible(now, m.finishedTTL) {
			stale = append(stale, r.ID())
		}
	}

	var swept []string
	m.mutex.Lock()
	for _, id := range stale {
		if r, exists := m.rooms[id]; exists {
			r.Close()
			delete(m.rooms, id)
			swept = append(swept, id)
			logger.Log.Infof("room %s swept", id)
		}
	}
	// Seats indexed to a swept room are released with it.
	for userID, roomID := range m.byUser {
		if _, exists := m.rooms[roomID]; !exists {
			delete(m.byUser, userID)
		}
	}
	n := len(m.rooms)
	m.mutex.Unlock()

	if m.onSweep != nil {
		for _, id := range swept {
			m.onSweep(id)
		}
	}
	return n
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.rooms)
}

func (m *Manager) list() []*Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// releaseOrRejectLocked enforces the one-non-finished-room invariant.
// Caller holds the registry lock.
func (m *Manager) releaseOrRejectLocked(userID string) error {
	roomID, seated := m.byUser[userID]
	if !seated {
		return nil
	}
	r, exists := m.rooms[roomID]
	if !exists {
		delete(m.byUser, userID)
		return nil
	}
	if r.Status() != models.RoomFinished {
		return ErrAlreadyInRoom
	}
	delete(m.byUser, userID)
	return nil
}

func (m *Manager) removeLocked(roomID string) {
	if r, exists := m.rooms[roomID]; exists {
		r.Close()
		delete(m.rooms, roomID)
	}
}

// newRoomIDLocked allocates an unused short shareable code. Caller
// holds the registry lock.
func (m *Manager) newRoomIDLocked() string {
	for {
		id := randomRoomCode()
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}

func randomRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("room: crypto/rand unavailable: " + err.Error())
	}
	for i := range buf {
		buf[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(buf)
}
