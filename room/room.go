// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/memoryserver/board"
	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/memory"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/network"
	"github.com/wfunc/memoryserver/session"
	"github.com/wfunc/memoryserver/timer"
)

var (
	ErrGameDisabledByAdmin = errors.New("Game is disabled by an administrator")
	ErrGameIDMismatch      = errors.New("Game ID mismatch")
	ErrInvalidCommand      = errors.New("Invalid command")
	ErrAreaFull            = errors.New("area is full")
)

// Dependencies are the collaborators shared by the games of an area.
type Dependencies struct {
	Settings    SettingsSource
	Transmitter memory.ScoreTransmitter
	Scheduler   timer.Scheduler
	Broadcaster Broadcaster
	Observer    Observer
	// NewRNG supplies the board RNG of each new game. Nil means a random source.
	NewRNG func() board.RNG
	// MaxOccupants caps the area's occupants; 0 is unlimited.
	MaxOccupants int
}

// Area 记忆游戏区域. It routes player commands to its current game and
// announces every change to its occupants.
type Area struct {
	ID        string
	CreatedAt time.Time

	deps Dependencies

	mu         sync.Mutex
	game       *memory.Game
	lastStatus models.GameStatus

	Players     map[string]*session.Session // sessionID -> session
	playerMutex sync.RWMutex
}

// NewArea 创建一个新区域
func NewArea(id string, deps Dependencies) *Area {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Area{
		ID:        id,
		CreatedAt: time.Now(),
		deps:      deps,
		Players:   make(map[string]*session.Session),
	}
}

// HandleCommand runs one command for player. The returned payload, if any,
// is sent back in the command response.
func (a *Area) HandleCommand(player models.Player, cmd models.Command) (any, error) {
	start := time.Now()
	defer func() { a.deps.Observer.ObserveCommand(time.Since(start)) }()

	payload, err := a.dispatch(player, cmd)
	if err != nil {
		logger.Log.Debugw("Command rejected", "area", a.ID, "player", player.ID, "type", cmd.Type, "error", err)
		return nil, err
	}
	a.emitChanged()
	return payload, nil
}

func (a *Area) dispatch(player models.Player, cmd models.Command) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch cmd.Type {
	case models.CommandJoinGame:
		if !a.deps.Settings.IsPlayable() {
			return nil, ErrGameDisabledByAdmin
		}
		if a.game == nil || a.game.Status() == models.StatusOver {
			a.newGame()
		}
		if err := a.game.Join(player); err != nil {
			return nil, err
		}
		return models.JoinGameResult{GameID: a.game.ID()}, nil

	case models.CommandStartGame:
		if err := a.checkGame(cmd.GameID); err != nil {
			return nil, err
		}
		if a.game.Status() == models.StatusOver {
			a.newGame()
			if err := a.game.Join(player); err != nil {
				return nil, err
			}
		}
		if err := a.game.StartGame(cmd.CompetitiveMode, cmd.CustomizedSettings, a.emitChanged); err != nil {
			return nil, err
		}
		a.deps.Observer.GameStarted(cmd.CompetitiveMode)
		a.observeStatusLocked()
		return nil, nil

	case models.CommandGameMove:
		if err := a.checkGame(cmd.GameID); err != nil {
			return nil, err
		}
		if cmd.Move == nil {
			return nil, ErrInvalidCommand
		}
		err := a.game.ApplyMove(models.GameMove{GameID: cmd.GameID, PlayerID: player.ID, Move: *cmd.Move})
		a.deps.Observer.MoveApplied(err == nil)
		a.observeStatusLocked()
		return nil, err

	case models.CommandLeaveGame:
		if err := a.checkGame(cmd.GameID); err != nil {
			return nil, err
		}
		err := a.game.Leave(player.ID)
		a.observeStatusLocked()
		return nil, err
	}
	return nil, ErrInvalidCommand
}

func (a *Area) checkGame(gameID string) error {
	if a.game == nil {
		return memory.ErrGameNotInProgress
	}
	if a.game.ID() != gameID {
		return ErrGameIDMismatch
	}
	return nil
}

func (a *Area) newGame() {
	a.observeStatusLocked()
	var rng board.RNG
	if a.deps.NewRNG != nil {
		rng = a.deps.NewRNG()
	}
	a.game = memory.NewGame(memory.Config{
		Defaults:    a.deps.Settings,
		Transmitter: a.deps.Transmitter,
		Scheduler:   a.deps.Scheduler,
		RNG:         rng,
	})
	a.lastStatus = models.StatusWaitingForPlayers
	logger.Log.Infow("New memory game", "area", a.ID, "game", a.game.ID())
}

func active(s models.GameStatus) bool {
	return s == models.StatusWaitingToStart || s == models.StatusInProgress
}

// observeStatusLocked reports status transitions of the current game.
func (a *Area) observeStatusLocked() {
	if a.game == nil {
		return
	}
	status := a.game.Status()
	was := a.lastStatus
	a.lastStatus = status
	switch {
	case !active(was) && active(status):
		a.deps.Observer.IncActiveGames()
	case active(was) && !active(status):
		a.deps.Observer.DecActiveGames()
		if status == models.StatusOver {
			a.deps.Observer.GameOver()
		}
	}
}

// Game returns the current game, or nil.
func (a *Area) Game() *memory.Game {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.game
}

// Model snapshots the area for clients.
func (a *Area) Model() models.AreaModel {
	a.mu.Lock()
	game := a.game
	a.mu.Unlock()

	m := models.AreaModel{
		ID:        a.ID,
		Type:      models.MemoryGameType,
		Occupants: a.Occupants(),
	}
	if game != nil {
		m.Game = &models.GameInstance{ID: game.ID(), State: game.State()}
	}
	return m
}

// emitChanged sends the area model to every occupant. It also runs after
// deadline-driven transitions.
func (a *Area) emitChanged() {
	a.mu.Lock()
	a.observeStatusLocked()
	a.mu.Unlock()

	if a.deps.Broadcaster == nil {
		return
	}
	data, err := json.Marshal(a.Model())
	if err != nil {
		logger.Log.Errorw("Failed to encode area", "area", a.ID, "error", err)
		return
	}
	if err := a.deps.Broadcaster.BroadcastToRoom(a.ID, network.MsgTypeAreaUpdate, data); err != nil {
		logger.Log.Warnw("Failed to broadcast area update", "area", a.ID, "error", err)
	}
}

// --- 占用者 ---

// AddOccupant 添加一个会话到区域
func (a *Area) AddOccupant(s *session.Session) bool {
	a.playerMutex.Lock()
	if a.deps.MaxOccupants > 0 && len(a.Players) >= a.deps.MaxOccupants {
		a.playerMutex.Unlock()
		return false
	}
	a.Players[s.ID] = s
	a.playerMutex.Unlock()

	s.SetAreaID(a.ID)
	a.emitChanged()
	return true
}

// RemoveOccupant removes a session. A player who walks away from the area
// leaves its game; other occupants leave the game untouched.
func (a *Area) RemoveOccupant(sessionID string) {
	a.playerMutex.Lock()
	s, exists := a.Players[sessionID]
	if exists {
		delete(a.Players, sessionID)
	}
	a.playerMutex.Unlock()
	if !exists {
		return
	}
	s.SetAreaID("")

	a.mu.Lock()
	if a.game != nil && a.game.PlayerID() == s.Player.ID {
		_ = a.game.Leave(s.Player.ID)
	}
	a.mu.Unlock()
	a.emitChanged()
}

// Occupants lists the player ids in the area, sorted.
func (a *Area) Occupants() []string {
	a.playerMutex.RLock()
	defer a.playerMutex.RUnlock()

	seen := make(map[string]bool, len(a.Players))
	ids := make([]string, 0, len(a.Players))
	for _, s := range a.Players {
		if !seen[s.Player.ID] {
			seen[s.Player.ID] = true
			ids = append(ids, s.Player.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// GetSessions returns a slice of all sessions in the area (thread-safe).
func (a *Area) GetSessions() []*session.Session {
	a.playerMutex.RLock()
	defer a.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(a.Players))
	for _, s := range a.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// Close ends any running game so no deadline outlives the area.
func (a *Area) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.game != nil {
		if player := a.game.PlayerID(); player != "" {
			_ = a.game.Leave(player)
		}
		a.observeStatusLocked()
	}
}

// --- 区域管理器 ---

// Manager 管理所有区域
type Manager struct {
	areas map[string]*Area
	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		areas: make(map[string]*Area),
	}
}

// CreateArea 创建一个新区域并添加到管理器
func (m *Manager) CreateArea(id string, deps Dependencies) *Area {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	area := NewArea(id, deps)
	m.areas[id] = area
	return area
}

// RemoveArea 从管理器中移除并关闭一个区域
func (m *Manager) RemoveArea(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if area, exists := m.areas[id]; exists {
		area.Close()
		delete(m.areas, id)
	}
}

func (m *Manager) GetArea(id string) (*Area, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	area, exists := m.areas[id]
	return area, exists
}

// Areas lists every area sorted by id.
func (m *Manager) Areas() []*Area {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	areas := make([]*Area, 0, len(m.areas))
	for _, a := range m.areas {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas
}
