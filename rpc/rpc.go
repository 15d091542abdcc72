package rpc

import (
	"net"
	"net/rpc"

	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/models"
	"github.com/yagpdc/words-game/services"
)

// Server manages the RPC listener used by ops tooling.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatsRPC exposes stats queries over net/rpc.
type StatsRPC struct {
	stats *services.StatsService
}

func NewStatsRPC(stats *services.StatsService) *StatsRPC {
	return &StatsRPC{stats: stats}
}

type PlayerStatsArgs struct {
	UserID string
}

type PlayerStatsReply struct {
	Stats models.PlayerStats
}

func (r *StatsRPC) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := r.stats.PlayerStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type RoomHistoryArgs struct {
	RoomID string
}

type RoomHistoryReply struct {
	Records []models.GameRecord
}

func (r *StatsRPC) GetRoomHistory(args *RoomHistoryArgs, reply *RoomHistoryReply) error {
	records, err := r.stats.RoomHistory(args.RoomID)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
