package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/memoryserver/board"
	"github.com/wfunc/memoryserver/broadcast"
	"github.com/wfunc/memoryserver/config"
	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/monitor"
	"github.com/wfunc/memoryserver/network"
	"github.com/wfunc/memoryserver/room"
	"github.com/wfunc/memoryserver/services"
	"github.com/wfunc/memoryserver/session"
	"github.com/wfunc/memoryserver/settings"
	"github.com/wfunc/memoryserver/timer"
)

// LeaderboardAreaID addresses leaderboard commands.
const LeaderboardAreaID = "leaderboard"

var ErrAreaNotFound = errors.New("area not found")

// Dependencies are the long-lived services the server routes into.
type Dependencies struct {
	Leaderboard *services.LeaderboardService
	Defaults    *settings.Defaults
	Monitor     *monitor.Monitor
	Timers      *timer.TimerManager
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
	NewRNG   func() board.RNG
}

type GameServer struct {
	cfg            config.ServerConfig
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	leaderboard    *services.LeaderboardService
	defaults       *settings.Defaults
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	gatherer       prometheus.Gatherer
	auth           *Authenticator
	router         chi.Router

	mutex        sync.Mutex
	httpServer   *http.Server
	sweepID      int64
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewGameServer hosts one memory game area per id in areas.
func NewGameServer(cfg config.ServerConfig, areas []string, deps Dependencies) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewManager(),
		sessionManager: session.NewManager(),
		leaderboard:    deps.Leaderboard,
		defaults:       deps.Defaults,
		monitor:        deps.Monitor,
		timers:         deps.Timers,
		gatherer:       deps.Gatherer,
		auth:           NewAuthenticator(cfg.JWTSecret, cfg.AdminPasswordHash, time.Duration(cfg.AdminTokenHours)*time.Hour),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	var observer room.Observer
	if s.monitor != nil {
		observer = s.monitor
	}
	for _, id := range areas {
		s.roomManager.CreateArea(id, room.Dependencies{
			Settings:    s.defaults,
			Transmitter: s,
			Scheduler:   s.timers,
			Broadcaster: s.broadcaster,
			Observer:    observer,
			NewRNG:      deps.NewRNG,
		})
	}

	s.leaderboard.OnChange(s.pushLeaderboard)
	s.router = s.routes()
	return s
}

// Handler exposes the router (useful for tests).
func (s *GameServer) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	s.mutex.Lock()
	select {
	case <-s.shutdownChan:
		s.mutex.Unlock()
		return nil
	default:
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mutex.Unlock()

	s.startIdleSweep()
	logger.Log.Infof("Memory game server listening on %s", s.cfg.HTTPAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and ends any
// running game.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.mutex.Lock()
		if s.sweepID != 0 {
			s.timers.RemoveTimer(s.sweepID)
		}
		srv := s.httpServer
		s.mutex.Unlock()

		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		for _, area := range s.roomManager.Areas() {
			s.roomManager.RemoveArea(area.ID)
		}
	})
	return err
}

// AddScore records a competitive game's final score.
func (s *GameServer) AddScore(record models.ScoreRecord) {
	s.leaderboard.AddScore(record)
	if s.monitor != nil {
		s.monitor.ScoreSubmitted()
	}
}

func (s *GameServer) startIdleSweep() {
	idle := time.Duration(s.cfg.IdleTimeoutSeconds) * time.Second
	if idle <= 0 || s.timers == nil {
		return
	}
	interval := idle / 2
	s.mutex.Lock()
	s.sweepID = s.timers.AddTimer(interval, interval, func() {
		s.sweepIdle(time.Now().Add(-idle))
	})
	s.mutex.Unlock()
}

// sweepIdle closes sessions with no inbound traffic since cutoff. Their read
// loops then clean up.
func (s *GameServer) sweepIdle(cutoff time.Time) {
	for _, sess := range s.sessionManager.IdleBefore(cutoff) {
		logger.Log.Infow("Closing idle session", "session", sess.ID, "player", sess.Player.Username)
		sess.Close()
	}
}

// --- WebSocket ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}
	player := models.Player{ID: uuid.NewString(), Username: username}
	if token := r.URL.Query().Get("token"); token != "" {
		if _, err := s.auth.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		player.IsAdmin = true
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, player, r.URL.Query().Get("area"))
}

func (s *GameServer) handleConnection(conn *websocket.Conn, player models.Player, areaID string) {
	wsConn := network.NewWSConnection(conn)
	if s.cfg.HeartbeatSeconds > 0 {
		wsConn.SetHeartbeat(time.Duration(s.cfg.HeartbeatSeconds) * time.Second)
	}
	sess := session.NewSession(uuid.NewString(), wsConn, player)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infow("New connection", "remote", wsConn.RemoteAddr(), "session", sess.GetID(), "player", player.Username, "admin", player.IsAdmin)

	defer func() {
		logger.Log.Infow("Connection closed", "remote", wsConn.RemoteAddr(), "session", sess.GetID())
		if area, ok := s.roomManager.GetArea(sess.GetAreaID()); ok {
			area.RemoveOccupant(sess.GetID())
		}
		s.sessionManager.Remove(sess.GetID())
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		wsConn.Close()
		s.pushLeaderboard()
	}()

	if areaID != "" {
		if area, ok := s.roomManager.GetArea(areaID); ok {
			area.AddOccupant(sess)
		} else {
			logger.Log.Warnw("Unknown area requested", "session", sess.GetID(), "area", areaID)
		}
	}
	s.pushLeaderboard()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			sess.Touch()
			s.handlePacket(sess, packet)
		}
	}
}

var areaCommands = map[uint16]models.CommandType{
	network.MsgTypeJoinGame:  models.CommandJoinGame,
	network.MsgTypeLeaveGame: models.CommandLeaveGame,
	network.MsgTypeStartGame: models.CommandStartGame,
	network.MsgTypeGameMove:  models.CommandGameMove,
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeJoinGame, network.MsgTypeLeaveGame, network.MsgTypeStartGame, network.MsgTypeGameMove:
		s.handleAreaCommand(sess, packet)
	case network.MsgTypeLeaderboardSettings, network.MsgTypeLeaderboardVisibility:
		s.handleLeaderboardCommand(sess, packet)
	case network.MsgTypeMemoryGameSettings:
		s.handleMemoryGameSettings(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleAreaCommand(sess *session.Session, packet *network.Packet) {
	var env models.CommandEnvelope
	if err := json.Unmarshal(packet.Data, &env); err != nil {
		s.respond(sess, env, nil, room.ErrInvalidCommand)
		return
	}
	want := areaCommands[packet.MsgID]
	if env.Command.Type == "" {
		env.Command.Type = want
	}
	if env.Command.Type != want {
		s.respond(sess, env, nil, room.ErrInvalidCommand)
		return
	}
	if env.InteractableID == "" {
		env.InteractableID = sess.GetAreaID()
	}

	area, ok := s.roomManager.GetArea(env.InteractableID)
	if !ok {
		s.respond(sess, env, nil, ErrAreaNotFound)
		return
	}
	if sess.GetAreaID() != area.ID {
		if err := s.moveSession(sess, area); err != nil {
			s.respond(sess, env, nil, err)
			return
		}
	}

	payload, err := area.HandleCommand(sess.Player, env.Command)
	s.respond(sess, env, payload, err)
}

// moveSession makes sess an occupant of area, leaving its previous area.
func (s *GameServer) moveSession(sess *session.Session, area *room.Area) error {
	if prev, ok := s.roomManager.GetArea(sess.GetAreaID()); ok {
		prev.RemoveOccupant(sess.GetID())
	}
	if !area.AddOccupant(sess) {
		return room.ErrAreaFull
	}
	return nil
}

func (s *GameServer) handleLeaderboardCommand(sess *session.Session, packet *network.Packet) {
	var env models.CommandEnvelope
	if err := json.Unmarshal(packet.Data, &env); err != nil {
		s.respond(sess, env, nil, room.ErrInvalidCommand)
		return
	}
	if env.InteractableID == "" {
		env.InteractableID = LeaderboardAreaID
	}

	var err error
	switch {
	case packet.MsgID == network.MsgTypeLeaderboardSettings && env.Command.Settings != nil:
		err = s.leaderboard.ApplySettings(sess.Player, *env.Command.Settings)
	case packet.MsgID == network.MsgTypeLeaderboardVisibility && env.Command.SetLeaderboardVisible != nil:
		s.leaderboard.SetVisibility(sess.Player.ID, *env.Command.SetLeaderboardVisible)
	default:
		err = room.ErrInvalidCommand
	}
	s.respond(sess, env, nil, err)
}

func (s *GameServer) handleMemoryGameSettings(sess *session.Session, packet *network.Packet) {
	var cmd models.MemoryGameSettingsCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		s.sendSettingsResponse(sess, cmd.CommandID, room.ErrInvalidCommand)
		return
	}
	if !sess.Player.IsAdmin {
		s.sendSettingsResponse(sess, cmd.CommandID, services.ErrNotAdministrator)
		return
	}
	err := s.updateDefaults(sess.Player, cmd.Settings)
	s.sendSettingsResponse(sess, cmd.CommandID, err)
}

// updateDefaults replaces the competitive defaults and tells every client.
func (s *GameServer) updateDefaults(admin models.Player, update models.Settings) error {
	if err := s.defaults.Update(update); err != nil {
		return err
	}
	logger.Log.Infow("Memory game defaults updated", "admin", admin.Username, "playable", update.IsPlayable)
	data, err := json.Marshal(s.defaults.Snapshot())
	if err != nil {
		return err
	}
	return s.broadcaster.BroadcastToAll(network.MsgTypeSettingsUpdate, data)
}

func (s *GameServer) sendSettingsResponse(sess *session.Session, commandID string, err error) {
	resp := models.MemoryGameSettingsResponse{CommandID: commandID, Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeSettingsResponse, data)
}

func (s *GameServer) respond(sess *session.Session, env models.CommandEnvelope, payload any, err error) {
	resp := models.CommandResponse{CommandID: env.CommandID, InteractableID: env.InteractableID}
	if err != nil {
		resp.Error = err.Error()
	} else if payload != nil {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			resp.Error = mErr.Error()
		} else {
			resp.Payload = raw
		}
	}
	data, _ := json.Marshal(resp)
	if sErr := sess.Send(network.MsgTypeCommandResponse, data); sErr != nil {
		logger.Log.Debugw("Failed to send command response", "session", sess.ID, "error", sErr)
	}
}

// onlinePlayers lists the connected player ids, sorted.
func (s *GameServer) onlinePlayers() []string {
	sessions := s.sessionManager.All()
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.Player.ID)
	}
	sort.Strings(ids)
	return ids
}

// pushLeaderboard sends each connected player the leaderboard as they may
// see it.
func (s *GameServer) pushLeaderboard() {
	byUsername := make(map[string][]string)
	for _, sess := range s.sessionManager.All() {
		byUsername[sess.Player.Username] = append(byUsername[sess.Player.Username], sess.Player.ID)
	}
	occupants := s.onlinePlayers()
	for username, playerIDs := range byUsername {
		model, err := s.leaderboard.Model(LeaderboardAreaID, occupants, username)
		if err != nil {
			logger.Log.Errorw("Failed to build leaderboard", "error", err)
			return
		}
		data, err := json.Marshal(model)
		if err != nil {
			logger.Log.Errorw("Failed to encode leaderboard", "error", err)
			return
		}
		s.broadcaster.BroadcastToPlayers(playerIDs, network.MsgTypeLeaderboardUpdate, data)
	}
}
