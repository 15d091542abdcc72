// server/server.go
package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yagpdc/words-game/broadcast"
	"github.com/yagpdc/words-game/config"
	"github.com/yagpdc/words-game/game"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/monitor"
	"github.com/yagpdc/words-game/network"
	"github.com/yagpdc/words-game/persistence"
	"github.com/yagpdc/words-game/rematch"
	"github.com/yagpdc/words-game/room"
	gameserverrpc "github.com/yagpdc/words-game/rpc"
	"github.com/yagpdc/words-game/services"
	"github.com/yagpdc/words-game/session"
	"github.com/yagpdc/words-game/timer"
	"github.com/yagpdc/words-game/words"
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	negotiator     *rematch.Negotiator
	broadcaster    broadcast.Broadcaster
	stats          *services.StatsService
	mon            *monitor.Monitor
	rpcServer      *gameserverrpc.Server
	timers         *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store, list *words.List) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		stats:          services.NewStatsService(store),
		mon:            monitor.NewMonitor("words_coop"),
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.broadcaster = broadcast.NewSessionBroadcaster(s.sessionManager)

	newRun := func(players [2]string) (*game.Run, error) {
		return game.NewRun(players, cfg.Game.MaxAttempts, list, list.NewSupplier())
	}
	s.roomManager = room.NewManager(s.broadcaster, newRun, func(record models.GameRecord) {
		s.stats.RecordRound(record)
	})
	s.negotiator = rematch.NewNegotiator(s.roomManager, s.broadcaster)
	s.roomManager.SetSweepHook(s.negotiator.Cancel)

	rpcServer, err := gameserverrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(gameserverrpc.NewStatsRPC(s.stats))

	sweep := time.Duration(cfg.Game.SweepInterval) * time.Second
	s.timers.Schedule(sweep, sweep, func() {
		s.mon.SetActiveRooms(s.roomManager.Sweep())
	})

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.mon.StartServer(s.cfg.Server.MetricsAddress)

	router := s.Router()
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, router)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

// handleWebSocket upgrades the connection and binds it to the caller's
// identity, passed at connect time.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	if identity.UserID == "" {
		http.Error(w, "missing user identity", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, identity)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, identity models.Player) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.UserID = identity.UserID
	sess.Name = identity.Name
	sess.Avatar = identity.Avatar
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, user %s, session %s",
		wsConn.RemoteAddr(), sess.UserID, sess.GetID())

	// A dropped connection removes the session but not the room
	// membership: only an explicit leave or force-leave abandons a
	// room, so a brief network blip costs the player nothing.
	defer func() {
		logger.Log.Infof("Connection closed, user %s, session %s", sess.UserID, sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			start := time.Now()
			s.handlePacket(sess, packet)
			s.mon.ObserveCommandLatency(time.Since(start))
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeJoinRoom:
		s.handleJoinCommand(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveCommand(sess, packet)
	case network.MsgTypeGuess:
		s.handleGuessCommand(sess, packet)
	case network.MsgTypeRematchRequest:
		s.handleRematchRequest(sess, packet)
	case network.MsgTypeRematchResponse:
		s.handleRematchResponse(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type roomCommand struct {
	RoomID string `json:"roomId"`
}

type guessCommand struct {
	RoomID    string `json:"roomId"`
	GuessWord string `json:"guessWord"`
}

type rematchResponseCommand struct {
	RoomID   string `json:"roomId"`
	Accepted bool   `json:"accepted"`
}

// handleJoinCommand seats the user if needed and scopes the session to
// the room. Re-issuing join after a reconnect only rebinds the session.
func (s *GameServer) handleJoinCommand(sess *session.Session, packet *network.Packet) {
	var cmd roomCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendError(sess, "", err)
		return
	}

	// Bind before joining so the game-started broadcast, fired when
	// this join fills the room, reaches this session too.
	sess.SetRoom(cmd.RoomID)

	player := models.Player{UserID: sess.UserID, Name: sess.Name, Avatar: sess.Avatar}
	if _, _, err := s.roomManager.JoinRoom(cmd.RoomID, player); err != nil {
		sess.SetRoom("")
		s.sendError(sess, cmd.RoomID, err)
		return
	}
}

func (s *GameServer) handleLeaveCommand(sess *session.Session, packet *network.Packet) {
	var cmd roomCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendError(sess, "", err)
		return
	}

	s.negotiator.Cancel(cmd.RoomID)
	if _, err := s.roomManager.LeaveRoom(cmd.RoomID, sess.UserID); err != nil {
		s.sendError(sess, cmd.RoomID, err)
		return
	}
	sess.SetRoom("")
}

func (s *GameServer) handleGuessCommand(sess *session.Session, packet *network.Packet) {
	var cmd guessCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendError(sess, "", err)
		return
	}

	r, exists := s.roomManager.GetRoom(cmd.RoomID)
	if !exists {
		s.sendError(sess, cmd.RoomID, room.ErrRoomNotFound)
		return
	}

	if _, err := r.SubmitGuess(sess.UserID, cmd.GuessWord); err != nil {
		s.sendError(sess, cmd.RoomID, err)
		return
	}
	s.mon.IncGuesses()
}

func (s *GameServer) handleRematchRequest(sess *session.Session, packet *network.Packet) {
	var cmd roomCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendError(sess, "", err)
		return
	}
	if err := s.negotiator.Request(cmd.RoomID, sess.UserID); err != nil {
		s.sendError(sess, cmd.RoomID, err)
	}
}

func (s *GameServer) handleRematchResponse(sess *session.Session, packet *network.Packet) {
	var cmd rematchResponseCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendError(sess, "", err)
		return
	}
	if err := s.negotiator.Respond(cmd.RoomID, sess.UserID, cmd.Accepted); err != nil {
		s.sendError(sess, cmd.RoomID, err)
	}
}

// sendError reports a rejected command back to its sender only.
func (s *GameServer) sendError(sess *session.Session, roomID string, err error) {
	sess.SendJSON(network.MsgTypeError, models.ErrorEvent{
		RoomID:  roomID,
		Code:    errorCode(err),
		Message: err.Error(),
	})
}
