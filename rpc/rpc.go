package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/services"
	"github.com/wfunc/memoryserver/settings"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register publishes the exported methods of rcvr.
func (s *Server) Register(rcvr interface{}) error {
	return s.rpc.Register(rcvr)
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// MemoryService exposes the leaderboard and the competitive defaults to
// other backend services.
type MemoryService struct {
	leaderboard *services.LeaderboardService
	defaults    *settings.Defaults
}

func NewMemoryService(lb *services.LeaderboardService, defaults *settings.Defaults) *MemoryService {
	return &MemoryService{leaderboard: lb, defaults: defaults}
}

// GetScores is an RPC method to read the leaderboard.
// It must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
type GetScoresArgs struct {
	GameType string
	// Username sees their own username even when it is hidden.
	Username string
}

type GetScoresReply struct {
	Scores []models.ScoreView
}

func (ms *MemoryService) GetScores(args *GetScoresArgs, reply *GetScoresReply) error {
	gameType := args.GameType
	if gameType == "" {
		gameType = models.MemoryGameType
	}
	scores, err := ms.leaderboard.GetScores(gameType, args.Username)
	if err != nil {
		return err
	}
	reply.Scores = scores
	return nil
}

type GetSettingsArgs struct{}

func (ms *MemoryService) GetMemoryGameSettings(args *GetSettingsArgs, reply *models.Settings) error {
	*reply = ms.defaults.Snapshot()
	return nil
}
