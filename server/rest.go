// server/rest.go
//
// The request/response surface. Mutations delegate to the same room
// manager the event channel uses, so REST and socket views of a room
// can never diverge beyond event delivery lag.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yagpdc/words-game/game"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/persistence"
	"github.com/yagpdc/words-game/rematch"
	"github.com/yagpdc/words-game/room"
)

// Router builds the full HTTP surface: the /coop REST endpoints plus
// the websocket upgrade path.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/coop", func(r chi.Router) {
		r.Post("/create-room", s.handleCreateRoom)
		r.Post("/join-room/{roomId}", s.handleJoinRoom)
		r.Get("/room/{roomId}", s.handleRoomStatus)
		r.Get("/my-room", s.handleMyRoom)
		r.Post("/guess", s.handleGuess)
		r.Post("/abandon", s.handleAbandon)
		r.Post("/leave-room", s.handleLeaveRoom)
		r.Post("/force-leave", s.handleForceLeave)
		r.Get("/stats/{userId}", s.handlePlayerStats)
		r.Get("/history/{roomId}", s.handleRoomHistory)
	})

	return r
}

// identityFromRequest extracts the opaque identity established by the
// upstream auth layer. How it gets here is out of scope.
func identityFromRequest(r *http.Request) models.Player {
	p := models.Player{
		UserID: r.Header.Get("X-User-Id"),
		Name:   r.Header.Get("X-User-Name"),
	}
	if avatar := r.Header.Get("X-User-Avatar"); avatar != "" {
		p.Avatar = json.RawMessage(avatar)
	}
	if p.UserID == "" {
		// Websocket clients pass identity in the query string.
		p.UserID = r.URL.Query().Get("userId")
		p.Name = r.URL.Query().Get("name")
		if avatar := r.URL.Query().Get("avatar"); avatar != "" {
			p.Avatar = json.RawMessage(avatar)
		}
	}
	return p
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	created, err := s.roomManager.CreateRoom(identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.mon.SetActiveRooms(s.roomManager.Count())

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"room": created.Snapshot(),
	})
}

func (s *GameServer) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	roomID := chi.URLParam(r, "roomId")
	joined, _, err := s.roomManager.JoinRoom(roomID, identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{
		"room": joined.Snapshot(),
	}
	if run, ok := joined.RunSnapshot(); ok {
		resp["run"] = run
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *GameServer) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	found, exists := s.roomManager.GetRoom(roomID)
	if !exists {
		writeDomainError(w, room.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room": found.Snapshot(),
	})
}

// handleMyRoom supports "resume my active room" after a reconnect.
func (s *GameServer) handleMyRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	found, ok := s.roomManager.FindRoomForUser(identity.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "no_active_room", "user has no active room")
		return
	}

	resp := map[string]interface{}{
		"room": found.Snapshot(),
	}
	if run, ok := found.RunSnapshot(); ok {
		resp["run"] = run
		resp["currentTurnPlayerId"] = run.CurrentTurnPlayerID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *GameServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var payload struct {
		RoomID    string `json:"roomId"`
		GuessWord string `json:"guessWord"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	found, exists := s.roomManager.GetRoom(payload.RoomID)
	if !exists {
		writeDomainError(w, room.ErrRoomNotFound)
		return
	}

	state, err := found.SubmitGuess(identity.UserID, payload.GuessWord)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.mon.IncGuesses()
	writeJSON(w, http.StatusOK, state)
}

func (s *GameServer) handleAbandon(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	found, exists := s.roomManager.GetRoom(payload.RoomID)
	if !exists {
		writeDomainError(w, room.ErrRoomNotFound)
		return
	}

	if err := found.Abandon(identity.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *GameServer) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	s.negotiator.Cancel(payload.RoomID)
	if _, err := s.roomManager.LeaveRoom(payload.RoomID, identity.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.mon.SetActiveRooms(s.roomManager.Count())
	w.WriteHeader(http.StatusNoContent)
}

func (s *GameServer) handleForceLeave(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	if found, ok := s.roomManager.FindRoomForUser(identity.UserID); ok {
		s.negotiator.Cancel(found.ID())
	}
	if _, err := s.roomManager.ForceLeave(identity.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.mon.SetActiveRooms(s.roomManager.Count())
	w.WriteHeader(http.StatusNoContent)
}

func (s *GameServer) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	stats, err := s.stats.PlayerStats(userID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "stats_not_found", "no stats for user")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (s *GameServer) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	records, err := s.stats.RoomHistory(roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// errorCode maps domain errors to stable identifiers shared by the
// REST surface and the event channel.
func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrAlreadyInRoom):
		return "already_in_room"
	case errors.Is(err, room.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrRoomNotActive):
		return "room_not_active"
	case errors.Is(err, game.ErrInvalidWordLength):
		return "invalid_word_length"
	case errors.Is(err, game.ErrWordNotAllowed):
		return "word_not_allowed"
	case errors.Is(err, game.ErrNotInRun):
		return "not_in_run"
	case errors.Is(err, rematch.ErrNoOffer):
		return "no_rematch_offer"
	case errors.Is(err, rematch.ErrRoomNotFinished):
		return "room_not_finished"
	case errors.Is(err, rematch.ErrOwnOffer):
		return "own_rematch_offer"
	default:
		return "internal"
	}
}

// writeDomainError translates typed errors into HTTP statuses.
// Validation errors are 400s the client can fix locally; turn/state
// errors are 409s that should trigger a state re-fetch; membership
// errors surface directly.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyInRoom),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrRoomNotActive),
		errors.Is(err, rematch.ErrRoomNotFinished),
		errors.Is(err, rematch.ErrNoOffer),
		errors.Is(err, rematch.ErrOwnOffer):
		status = http.StatusConflict
	case errors.Is(err, room.ErrNotInRoom), errors.Is(err, game.ErrNotInRun):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrInvalidWordLength), errors.Is(err, game.ErrWordNotAllowed):
		status = http.StatusBadRequest
	}
	writeError(w, status, errorCode(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("failed to encode response: %v", err)
	}
}
