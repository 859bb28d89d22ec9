package room

import (
	"time"

	"github.com/wfunc/memoryserver/models"
)

// Broadcaster defines the interface for broadcasting messages to an area.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// SettingsSource is the administrator-owned defaults record.
type SettingsSource interface {
	Snapshot() models.Settings
	IsPlayable() bool
}

// Observer receives game lifecycle events, typically for metrics.
type Observer interface {
	GameStarted(competitive bool)
	GameOver()
	MoveApplied(ok bool)
	IncActiveGames()
	DecActiveGames()
	ObserveCommand(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) GameStarted(bool)             {}
func (nopObserver) GameOver()                    {}
func (nopObserver) MoveApplied(bool)             {}
func (nopObserver) IncActiveGames()              {}
func (nopObserver) DecActiveGames()              {}
func (nopObserver) ObserveCommand(time.Duration) {}
