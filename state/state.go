// state/state.go
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/wfunc/memoryserver/models"
)

// Events driving a game's status.
const (
	EventStart         = "start"
	EventBeginGuessing = "beginGuessing"
	EventNextLevel     = "nextLevel"
	EventEnd           = "end"
)

// ErrTransitionNotAllowed is returned when an event does not apply to the current status.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

func transitions() fsm.Events {
	return fsm.Events{
		{Name: EventStart, Src: []string{string(models.StatusWaitingForPlayers), string(models.StatusOver)}, Dst: string(models.StatusWaitingToStart)},
		{Name: EventBeginGuessing, Src: []string{string(models.StatusWaitingToStart)}, Dst: string(models.StatusInProgress)},
		{Name: EventNextLevel, Src: []string{string(models.StatusInProgress)}, Dst: string(models.StatusWaitingToStart)},
		{Name: EventEnd, Src: []string{string(models.StatusWaitingToStart), string(models.StatusInProgress)}, Dst: string(models.StatusOver)},
	}
}

// Machine is the status table of one game. It is not safe for concurrent
// use; the owning game serializes access.
type Machine struct {
	fsm *fsm.FSM
}

func NewMachine() *Machine {
	return &Machine{
		fsm: fsm.NewFSM(string(models.StatusWaitingForPlayers), transitions(), fsm.Callbacks{}),
	}
}

func (m *Machine) Status() models.GameStatus {
	return models.GameStatus(m.fsm.Current())
}

// Can reports whether event applies to the current status.
func (m *Machine) Can(event string) bool {
	return m.fsm.Can(event)
}

// Fire applies event. Re-entering the current status counts as success.
func (m *Machine) Fire(event string) error {
	err := m.fsm.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, event, m.Status())
}

// MustFire applies an event the caller knows is valid. A failure means the
// transition table is wrong, so it panics.
func (m *Machine) MustFire(event string) {
	if err := m.Fire(event); err != nil {
		panic(err)
	}
}
