// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/room"
	"github.com/wfunc/memoryserver/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToPlayers(playerIDs []string, msgID uint16, data []byte) error
}

// 基于区域的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	area, exists := b.roomManager.GetArea(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the sessions
	send(area.GetSessions(), msgID, data)
	return nil
}

// BroadcastToAll sends to every connected session, in an area or not.
func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	send(b.sessionManager.All(), msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToPlayers(playerIDs []string, msgID uint16, data []byte) error {
	for _, playerID := range playerIDs {
		send(b.sessionManager.GetByPlayerID(playerID), msgID, data)
	}
	return nil
}

func send(sessions []*session.Session, msgID uint16, data []byte) {
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接由读循环负责清理
			logger.Log.Debugw("Broadcast send failed", "session", s.ID, "msg", msgID, "error", err)
			continue
		}
	}
}
