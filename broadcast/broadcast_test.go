package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/network"
	"github.com/wfunc/memoryserver/room"
	"github.com/wfunc/memoryserver/session"
	"github.com/wfunc/memoryserver/settings"
)

// MockConnection records the message ids it was asked to send.
type MockConnection struct {
	mu   sync.Mutex
	sent []uint16
	fail bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("closed")
	}
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) count(msgID uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.sent {
		if id == msgID {
			n++
		}
	}
	return n
}

func TestRoomBroadcaster(t *testing.T) {
	rooms := room.NewManager()
	sessions := session.NewManager()
	b := NewRoomBroadcaster(rooms, sessions)
	area := rooms.CreateArea("memory-1", room.Dependencies{Settings: &settings.Defaults{}})

	inArea := &MockConnection{}
	outside := &MockConnection{}
	broken := &MockConnection{fail: true}
	s1 := session.NewSession("s1", inArea, models.Player{ID: "p1"})
	s2 := session.NewSession("s2", outside, models.Player{ID: "p2"})
	s3 := session.NewSession("s3", broken, models.Player{ID: "p3"})
	for _, s := range []*session.Session{s1, s2, s3} {
		sessions.Add(s)
	}
	area.AddOccupant(s1)
	area.AddOccupant(s3)

	if err := b.BroadcastToRoom("memory-1", network.MsgTypeAreaUpdate, []byte("{}")); err != nil {
		t.Fatalf("BroadcastToRoom: %v", err)
	}
	if inArea.count(network.MsgTypeAreaUpdate) != 1 || outside.count(network.MsgTypeAreaUpdate) != 0 {
		t.Errorf("Area broadcast reached the wrong sessions: in=%d out=%d",
			inArea.count(network.MsgTypeAreaUpdate), outside.count(network.MsgTypeAreaUpdate))
	}

	if err := b.BroadcastToRoom("missing", network.MsgTypeAreaUpdate, nil); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}

	b.BroadcastToAll(network.MsgTypeLeaderboardUpdate, []byte("{}"))
	if inArea.count(network.MsgTypeLeaderboardUpdate) != 1 || outside.count(network.MsgTypeLeaderboardUpdate) != 1 {
		t.Error("BroadcastToAll should reach every session")
	}

	b.BroadcastToPlayers([]string{"p2"}, network.MsgTypeSettingsResponse, []byte("{}"))
	if outside.count(network.MsgTypeSettingsResponse) != 1 || inArea.count(network.MsgTypeSettingsResponse) != 0 {
		t.Error("BroadcastToPlayers should only reach the named players")
	}
}
