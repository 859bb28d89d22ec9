package room

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/memoryserver/board"
	"github.com/wfunc/memoryserver/memory"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/network"
	"github.com/wfunc/memoryserver/session"
	"github.com/wfunc/memoryserver/settings"
	"github.com/wfunc/memoryserver/timer"
)

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	mu     sync.Mutex
	models []models.AreaModel
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	if msgID != network.MsgTypeAreaUpdate {
		return errors.New("unexpected message id")
	}
	var model models.AreaModel
	if err := json.Unmarshal(data, &model); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = append(m.models, model)
	return nil
}

func (m *MockBroadcaster) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.models)
}

func (m *MockBroadcaster) Last() models.AreaModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.models[len(m.models)-1]
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

// MockObserver counts lifecycle events.
type MockObserver struct {
	mu       sync.Mutex
	started  int
	over     int
	active   int
	moves    int
	commands int
}

func (m *MockObserver) GameStarted(bool)             { m.mu.Lock(); m.started++; m.mu.Unlock() }
func (m *MockObserver) GameOver()                    { m.mu.Lock(); m.over++; m.mu.Unlock() }
func (m *MockObserver) MoveApplied(bool)             { m.mu.Lock(); m.moves++; m.mu.Unlock() }
func (m *MockObserver) IncActiveGames()              { m.mu.Lock(); m.active++; m.mu.Unlock() }
func (m *MockObserver) DecActiveGames()              { m.mu.Lock(); m.active--; m.mu.Unlock() }
func (m *MockObserver) ObserveCommand(time.Duration) { m.mu.Lock(); m.commands++; m.mu.Unlock() }

var (
	alice = models.Player{ID: "p1", Username: "alice"}
	bob   = models.Player{ID: "p2", Username: "bob"}
)

// newTestSession creates a dummy session for testing purposes.
func newTestSession(id string, player models.Player) *session.Session {
	return session.NewSession(id, &MockConnection{}, player)
}

type fixture struct {
	area        *Area
	clock       *timer.ManualClock
	defaults    *settings.Defaults
	broadcaster *MockBroadcaster
	observer    *MockObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	defaults, err := settings.NewDefaults(settings.Standard())
	if err != nil {
		t.Fatalf("NewDefaults: %v", err)
	}
	f := &fixture{
		clock:       timer.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		defaults:    defaults,
		broadcaster: &MockBroadcaster{},
		observer:    &MockObserver{},
	}
	f.area = NewArea("memory-1", Dependencies{
		Settings:    f.defaults,
		Scheduler:   f.clock,
		Broadcaster: f.broadcaster,
		Observer:    f.observer,
		NewRNG:      func() board.RNG { return board.NewSeeded("room-test") },
	})
	return f
}

func (f *fixture) join(t *testing.T, p models.Player) string {
	t.Helper()
	payload, err := f.area.HandleCommand(p, models.Command{Type: models.CommandJoinGame})
	if err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	return payload.(models.JoinGameResult).GameID
}

func TestManager_CreateAndGetArea(t *testing.T) {
	manager := NewManager()

	area := manager.CreateArea("memory-1", Dependencies{Settings: &settings.Defaults{}})
	if area == nil {
		t.Fatal("CreateArea should not return nil")
	}
	if area.ID != "memory-1" {
		t.Errorf("Expected area ID memory-1, got %s", area.ID)
	}

	retrieved, exists := manager.GetArea("memory-1")
	if !exists {
		t.Fatal("GetArea should find the created area")
	}
	if retrieved != area {
		t.Error("GetArea should return the same area instance")
	}

	manager.CreateArea("memory-0", Dependencies{Settings: &settings.Defaults{}})
	areas := manager.Areas()
	if len(areas) != 2 || areas[0].ID != "memory-0" {
		t.Errorf("Areas should list both areas sorted by id, got %d", len(areas))
	}

	manager.RemoveArea("memory-1")
	if _, exists := manager.GetArea("memory-1"); exists {
		t.Error("RemoveArea should drop the area")
	}
}

func TestArea_AddOccupant_Full(t *testing.T) {
	area := NewArea("memory-1", Dependencies{Settings: &settings.Defaults{}, MaxOccupants: 1})

	s1 := newTestSession("s1", alice)
	if !area.AddOccupant(s1) {
		t.Fatal("Failed to add the first occupant")
	}
	if s1.GetAreaID() != "memory-1" {
		t.Errorf("Occupant should record its area, got %q", s1.GetAreaID())
	}
	if area.AddOccupant(newTestSession("s2", bob)) {
		t.Fatal("Should not be able to add an occupant to a full area")
	}
	if got := area.Occupants(); len(got) != 1 || got[0] != alice.ID {
		t.Errorf("Expected occupants [p1], got %v", got)
	}
}

func TestArea_JoinDisabledByAdmin(t *testing.T) {
	f := newFixture(t)
	f.defaults.SetPlayable(false)

	_, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandJoinGame})
	if !errors.Is(err, ErrGameDisabledByAdmin) {
		t.Fatalf("Expected ErrGameDisabledByAdmin, got %v", err)
	}
	if f.area.Game() != nil {
		t.Error("A rejected join should not create a game")
	}
}

func TestArea_JoinSecondPlayer(t *testing.T) {
	f := newFixture(t)
	gameID := f.join(t, alice)
	if gameID == "" {
		t.Fatal("JoinGame should return the game id")
	}

	_, err := f.area.HandleCommand(bob, models.Command{Type: models.CommandJoinGame})
	if !errors.Is(err, memory.ErrGameFull) {
		t.Errorf("Expected ErrGameFull, got %v", err)
	}
	if f.broadcaster.Count() != 1 {
		t.Errorf("Only the successful join should broadcast, got %d", f.broadcaster.Count())
	}
}

func TestArea_CommandErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandStartGame, GameID: "x", CompetitiveMode: true})
	if !errors.Is(err, memory.ErrGameNotInProgress) {
		t.Errorf("Start without a game: expected ErrGameNotInProgress, got %v", err)
	}

	f.join(t, alice)
	tests := []struct {
		name string
		cmd  models.Command
		want error
	}{
		{"wrong game id", models.Command{Type: models.CommandStartGame, GameID: "other", CompetitiveMode: true}, ErrGameIDMismatch},
		{"unknown type", models.Command{Type: "Dance"}, ErrInvalidCommand},
		{"leaderboard command", models.Command{Type: models.CommandLeaderboardSettings}, ErrInvalidCommand},
		{"move without body", models.Command{Type: models.CommandGameMove, GameID: f.area.Game().ID()}, ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.area.HandleCommand(alice, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestArea_DeadlinesBroadcast(t *testing.T) {
	f := newFixture(t)
	gameID := f.join(t, alice)

	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandStartGame, GameID: gameID, CompetitiveMode: true}); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if got := f.broadcaster.Last().Game.State.Status; got != models.StatusWaitingToStart {
		t.Fatalf("Expected WAITING_TO_START after start, got %s", got)
	}
	before := f.broadcaster.Count()

	f.clock.Advance(5 * time.Second)
	if f.broadcaster.Count() != before+1 {
		t.Fatalf("Memorization deadline should broadcast once, got %d", f.broadcaster.Count()-before)
	}
	if got := f.broadcaster.Last().Game.State.Status; got != models.StatusInProgress {
		t.Errorf("Expected IN_PROGRESS after memorization, got %s", got)
	}

	f.clock.Advance(15 * time.Second)
	last := f.broadcaster.Last().Game.State
	if last.Status != models.StatusWaitingToStart || last.Lives != 2 {
		t.Errorf("Guessing deadline should cost a life, got %s with %d lives", last.Status, last.Lives)
	}

	f.observer.mu.Lock()
	defer f.observer.mu.Unlock()
	if f.observer.started != 1 || f.observer.active != 1 {
		t.Errorf("Expected one started and one active game, got %d and %d", f.observer.started, f.observer.active)
	}
	if f.observer.commands != 2 {
		t.Errorf("Expected 2 observed commands, got %d", f.observer.commands)
	}
}

func TestArea_MoveAndLeave(t *testing.T) {
	f := newFixture(t)
	gameID := f.join(t, alice)
	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandStartGame, GameID: gameID, CompetitiveMode: true}); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	move := &models.Move{Row: 0, Column: 0}
	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandGameMove, GameID: gameID, Move: move}); err != nil {
		t.Fatalf("GameMove: %v", err)
	}
	if _, err := f.area.HandleCommand(bob, models.Command{Type: models.CommandGameMove, GameID: gameID, Move: &models.Move{Row: 1, Column: 1}}); !errors.Is(err, memory.ErrPlayerNotInGame) {
		t.Errorf("Expected ErrPlayerNotInGame for a stranger's move, got %v", err)
	}

	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandLeaveGame, GameID: gameID}); err != nil {
		t.Fatalf("LeaveGame: %v", err)
	}
	if got := f.broadcaster.Last().Game.State.Status; got != models.StatusOver {
		t.Errorf("Expected OVER after leaving, got %s", got)
	}

	f.observer.mu.Lock()
	defer f.observer.mu.Unlock()
	if f.observer.moves != 2 || f.observer.over != 1 || f.observer.active != 0 {
		t.Errorf("Unexpected observer counts: moves=%d over=%d active=%d", f.observer.moves, f.observer.over, f.observer.active)
	}
}

func TestArea_StartAfterGameOverCreatesNewGame(t *testing.T) {
	f := newFixture(t)
	gameID := f.join(t, alice)
	start := models.Command{Type: models.CommandStartGame, GameID: gameID, CompetitiveMode: true}
	if _, err := f.area.HandleCommand(alice, start); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandLeaveGame, GameID: gameID}); err != nil {
		t.Fatalf("LeaveGame: %v", err)
	}

	if _, err := f.area.HandleCommand(alice, start); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	game := f.area.Game()
	if game.ID() == gameID {
		t.Error("Restarting a finished game should create a new instance")
	}
	if st := game.State(); st.Status != models.StatusWaitingToStart || st.Player != alice.ID {
		t.Errorf("Expected alice in a started game, got %s / %q", st.Status, st.Player)
	}
}

func TestArea_RemoveOccupantLeavesGame(t *testing.T) {
	f := newFixture(t)
	s := newTestSession("s1", alice)
	f.area.AddOccupant(s)
	gameID := f.join(t, alice)
	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandStartGame, GameID: gameID, CompetitiveMode: true}); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	f.area.RemoveOccupant(s.ID)

	if s.GetAreaID() != "" {
		t.Error("Removed occupant should no longer record the area")
	}
	model := f.broadcaster.Last()
	if len(model.Occupants) != 0 {
		t.Errorf("Expected no occupants, got %v", model.Occupants)
	}
	if model.Game.State.Status != models.StatusOver {
		t.Errorf("Walking away should end the game, got %s", model.Game.State.Status)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("No deadline should remain armed, got %d", f.clock.Pending())
	}
}

func TestArea_RemoveBystanderKeepsDeadline(t *testing.T) {
	f := newFixture(t)
	player := newTestSession("s1", alice)
	bystander := newTestSession("s2", bob)
	f.area.AddOccupant(player)
	f.area.AddOccupant(bystander)
	gameID := f.join(t, alice)
	if _, err := f.area.HandleCommand(alice, models.Command{Type: models.CommandStartGame, GameID: gameID, CompetitiveMode: true}); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if f.clock.Pending() != 1 {
		t.Fatalf("Expected the memorization deadline to be armed, %d pending", f.clock.Pending())
	}

	f.area.RemoveOccupant(bystander.ID)
	if f.clock.Pending() != 1 {
		t.Fatalf("Removing a bystander should keep the deadline, %d pending", f.clock.Pending())
	}
	if occ := f.broadcaster.Last().Occupants; len(occ) != 1 || occ[0] != alice.ID {
		t.Errorf("Expected only alice to remain, got %v", occ)
	}

	f.clock.Advance(5 * time.Second)
	st := f.area.Game().State()
	if st.Status != models.StatusInProgress || st.Player != alice.ID {
		t.Errorf("Memorization deadline should have fired for alice, got %s player %q", st.Status, st.Player)
	}
}
