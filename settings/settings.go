// Package settings validates memory game settings and holds the
// administrator-owned competitive defaults.
package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/memoryserver/models"
)

var ErrInvalidSettings = errors.New("The provided game settings are invalid")

const (
	DefaultUnknownTileColor = "white"
	DefaultTileShape        = "square"
)

// Standard returns the out-of-the-box competitive settings.
func Standard() models.Settings {
	return models.Settings{
		StartingLives:           3,
		StartingBoardSize:       models.BoardSize{Rows: 4, Columns: 4},
		MemorizationTimeSeconds: 5,
		GuessingTimeSeconds:     15,
		IncreasingDifficulty:    true,
		TargetTilesPercentage:   0.25,
		IsPlayable:              true,
		UnknownTileColor:        DefaultUnknownTileColor,
		TileShape:               DefaultTileShape,
	}
}

// Validate rejects settings that cannot initialize a level. IsPlayable is not
// checked here.
func Validate(s models.Settings) error {
	// Written as !(in range) so NaN is rejected too.
	if !(s.TargetTilesPercentage >= 0 && s.TargetTilesPercentage <= 1) {
		return fmt.Errorf("%w: targetTilesPercentage %v is outside [0, 1]", ErrInvalidSettings, s.TargetTilesPercentage)
	}
	if s.StartingBoardSize.Rows < 1 || s.StartingBoardSize.Columns < 1 {
		return fmt.Errorf("%w: startingBoardSize %dx%d must be positive",
			ErrInvalidSettings, s.StartingBoardSize.Rows, s.StartingBoardSize.Columns)
	}
	if s.StartingLives < 1 {
		return fmt.Errorf("%w: startingLives %d must be positive", ErrInvalidSettings, s.StartingLives)
	}
	if !(s.MemorizationTimeSeconds > 0) {
		return fmt.Errorf("%w: memorizationTimeSeconds %v must be positive", ErrInvalidSettings, s.MemorizationTimeSeconds)
	}
	if !(s.GuessingTimeSeconds > 0) {
		return fmt.Errorf("%w: guessingTimeSeconds %v must be positive", ErrInvalidSettings, s.GuessingTimeSeconds)
	}
	return nil
}

// Defaults is the process-wide competitive settings record. Readers take a
// copy with Snapshot; only administrators call Update.
type Defaults struct {
	mu       sync.RWMutex
	settings models.Settings
}

func NewDefaults(s models.Settings) (*Defaults, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	return &Defaults{settings: fillPresentation(s)}, nil
}

// Snapshot returns a copy of the current defaults.
func (d *Defaults) Snapshot() models.Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// Update replaces the defaults after validating them.
func (d *Defaults) Update(s models.Settings) error {
	if err := Validate(s); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = fillPresentation(s)
	return nil
}

func (d *Defaults) IsPlayable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings.IsPlayable
}

func (d *Defaults) SetPlayable(playable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.IsPlayable = playable
}

func fillPresentation(s models.Settings) models.Settings {
	if s.UnknownTileColor == "" {
		s.UnknownTileColor = DefaultUnknownTileColor
	}
	if s.TileShape == "" {
		s.TileShape = DefaultTileShape
	}
	return s
}
