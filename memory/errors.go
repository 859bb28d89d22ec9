package memory

import (
	"errors"

	"github.com/wfunc/memoryserver/settings"
)

// Errors returned by Game operations. Messages are shown to players as-is.
var (
	ErrPlayerAlreadyInGame            = errors.New("Player is already in this game")
	ErrGameFull                       = errors.New("Game is full")
	ErrPlayerNotInGame                = errors.New("Player is not in this game")
	ErrGameNotStartable               = errors.New("Game is not startable")
	ErrCompetitiveModeNotCustomizable = errors.New("Player cannot customize settings in Competitive mode")
	ErrSettingsMissing                = errors.New("Game settings are missing but expected")
	ErrInvalidSettings                = settings.ErrInvalidSettings
	ErrGameNotInProgress              = errors.New("Game is not in progress")
	ErrBoardPositionNotValid          = errors.New("Board position is not valid")
)
