// Package memory implements the single-player memory game: the player
// memorizes a board, then reproduces it from memory against a deadline.
package memory

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/memoryserver/board"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/settings"
	"github.com/wfunc/memoryserver/state"
	"github.com/wfunc/memoryserver/timer"
)

// MistakesPerLevel is the number of wrong guesses that fail a level.
const MistakesPerLevel = 3

// DefaultsSource provides the competitive settings. Snapshot must return a copy.
type DefaultsSource interface {
	Snapshot() models.Settings
}

// ScoreTransmitter receives the final score of a competitive game.
type ScoreTransmitter interface {
	AddScore(record models.ScoreRecord)
}

// Config wires a Game to its collaborators. Scheduler is required.
type Config struct {
	ID          string
	Defaults    DefaultsSource
	Transmitter ScoreTransmitter
	Scheduler   timer.Scheduler
	RNG         board.RNG
	Now         func() time.Time
}

// Game is one memory game instance. All methods are safe for concurrent use;
// moves and deadline callbacks are serialized by mu.
type Game struct {
	id          string
	defaults    DefaultsSource
	transmitter ScoreTransmitter
	generator   *board.Generator
	now         func() time.Time

	mu       sync.Mutex
	machine  *state.Machine
	deadline *timer.Controller
	onChange func()

	playerID       string
	playerUsername string
	competitive    bool
	score          int
	lives          int
	size           models.BoardSize
	solution       [][]bool
	guesses        [][]models.Cell
	transmitScore  bool
	memorization   float64
	guessing       float64
	increasing     bool
	density        float64
	tileColor      string
	tileShape      string
	levelTarget    int
	remaining      int
	mistakesLeft   int
	pendingRecord  *models.ScoreRecord
}

func NewGame(cfg Config) *Game {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Game{
		id:          cfg.ID,
		defaults:    cfg.Defaults,
		transmitter: cfg.Transmitter,
		generator:   board.NewGenerator(cfg.RNG),
		now:         cfg.Now,
		machine:     state.NewMachine(),
	}
	g.deadline = timer.NewController(cfg.Scheduler, &g.mu)
	g.deadline.AfterFire = g.afterDeadline
	return g
}

func (g *Game) ID() string {
	return g.id
}

// PlayerID returns the seated player, or "" when the seat is empty.
func (g *Game) PlayerID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerID
}

// Status returns the current status without copying the boards.
func (g *Game) Status() models.GameStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.machine.Status()
}

// State returns a deep copy of the game state.
func (g *Game) State() models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := models.GameState{
		Status:                  g.machine.Status(),
		Player:                  g.playerID,
		Score:                   g.score,
		Lives:                   g.lives,
		BoardSize:               g.size,
		TransmitScore:           g.transmitScore,
		MemorizationTimeSeconds: g.memorization,
		GuessingTimeSeconds:     g.guessing,
		UnknownTileColor:        g.tileColor,
		TileShape:               g.tileShape,
	}
	if g.solution != nil {
		st.SolutionBoard = make([][]bool, len(g.solution))
		for i, row := range g.solution {
			st.SolutionBoard[i] = append([]bool(nil), row...)
		}
	}
	if g.guesses != nil {
		st.GuessesBoard = make([][]models.Cell, len(g.guesses))
		for i, row := range g.guesses {
			st.GuessesBoard[i] = append([]models.Cell(nil), row...)
		}
	}
	return st
}

// Join seats player. It never changes the status or the deadline.
func (g *Game) Join(player models.Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.playerID == player.ID {
		return ErrPlayerAlreadyInGame
	}
	if g.playerID != "" {
		return ErrGameFull
	}
	g.playerID = player.ID
	g.playerUsername = player.Username
	return nil
}

// Leave removes playerID. Leaving a running game ends it without submitting
// a score; the player stays recorded on the finished game.
func (g *Game) Leave(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deadline.Disarm()
	status := g.machine.Status()
	if g.playerID == "" || g.playerID != playerID || status == models.StatusOver {
		return ErrPlayerNotInGame
	}
	if status == models.StatusWaitingForPlayers {
		g.playerID = ""
		g.playerUsername = ""
		return nil
	}
	g.machine.MustFire(state.EventEnd)
	return nil
}

// StartGame begins a competitive game on the administrator defaults, or a
// casual game on custom. onChange is called after every deadline-driven
// transition.
func (g *Game) StartGame(competitive bool, custom *models.Settings, onChange func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deadline.Disarm()
	if competitive && custom != nil {
		return ErrCompetitiveModeNotCustomizable
	}
	if !competitive && custom == nil {
		return ErrSettingsMissing
	}
	if g.playerID == "" || !g.machine.Can(state.EventStart) {
		return ErrGameNotStartable
	}

	var s models.Settings
	if competitive {
		s = g.competitiveSettings()
	} else {
		s = *custom
	}
	if err := settings.Validate(s); err != nil {
		return err
	}

	g.competitive = competitive
	g.onChange = onChange
	g.score = 0
	g.lives = s.StartingLives
	g.size = board.Clamp(s.StartingBoardSize)
	g.memorization = s.MemorizationTimeSeconds
	g.guessing = s.GuessingTimeSeconds
	g.increasing = s.IncreasingDifficulty
	g.density = s.TargetTilesPercentage
	g.tileColor, g.tileShape = g.presentation(s)
	g.transmitScore = false
	g.pendingRecord = nil

	g.machine.MustFire(state.EventStart)
	g.newLevel()
	return nil
}

// ApplyMove evaluates one guess. Invalid moves fail before anything changes.
func (g *Game) ApplyMove(move models.GameMove) error {
	g.mu.Lock()
	err := g.applyMove(move)
	record := g.takePendingRecord()
	g.mu.Unlock()

	g.submit(record)
	return err
}

func (g *Game) applyMove(move models.GameMove) error {
	status := g.machine.Status()
	if status != models.StatusWaitingToStart && status != models.StatusInProgress {
		g.deadline.Disarm()
		return ErrGameNotInProgress
	}
	if move.PlayerID != g.playerID {
		g.deadline.Disarm()
		return ErrPlayerNotInGame
	}
	row, column := move.Move.Row, move.Move.Column
	if row < 0 || row >= g.size.Rows || column < 0 || column >= g.size.Columns ||
		g.guesses[row][column] != models.CellUnknown {
		g.deadline.Disarm()
		return ErrBoardPositionNotValid
	}

	if status == models.StatusWaitingToStart {
		g.beginGuessing()
	}
	g.transmitScore = move.Move.TransmitScore

	if g.solution[row][column] {
		g.guesses[row][column] = models.CellCorrect
		g.score += g.levelTarget
		g.remaining--
		if g.remaining == 0 {
			if g.increasing {
				g.size = board.Grow(g.size)
			}
			g.machine.MustFire(state.EventNextLevel)
			g.newLevel()
		}
		return nil
	}

	g.guesses[row][column] = models.CellIncorrect
	g.mistakesLeft--
	if g.mistakesLeft == 0 {
		g.levelFailed()
	}
	return nil
}

func (g *Game) competitiveSettings() models.Settings {
	if g.defaults == nil {
		return settings.Standard()
	}
	return g.defaults.Snapshot()
}

func (g *Game) presentation(s models.Settings) (color, shape string) {
	color, shape = s.UnknownTileColor, s.TileShape
	var fallback models.Settings
	if g.defaults != nil {
		fallback = g.defaults.Snapshot()
	}
	if color == "" {
		color = fallback.UnknownTileColor
	}
	if color == "" {
		color = settings.DefaultUnknownTileColor
	}
	if shape == "" {
		shape = fallback.TileShape
	}
	if shape == "" {
		shape = settings.DefaultTileShape
	}
	return color, shape
}

// newLevel generates a board for the current size and starts memorization.
func (g *Game) newLevel() {
	level := g.generator.Generate(g.size, g.density)
	g.solution = level.Solution
	g.guesses = level.Guesses
	g.levelTarget = level.Target
	g.startMemorization()
}

// startMemorization resets the per-level counters on the current solution.
func (g *Game) startMemorization() {
	g.remaining = g.levelTarget
	g.mistakesLeft = MistakesPerLevel
	g.deadline.Arm(seconds(g.memorization), g.memorizationExpired)
}

func (g *Game) memorizationExpired() {
	if g.machine.Status() == models.StatusWaitingToStart {
		g.beginGuessing()
	}
}

func (g *Game) beginGuessing() {
	g.deadline.Disarm()
	g.machine.MustFire(state.EventBeginGuessing)
	g.deadline.Arm(seconds(g.guessing), g.guessingExpired)
}

func (g *Game) guessingExpired() {
	if g.machine.Status() == models.StatusInProgress {
		g.levelFailed()
	}
}

// levelFailed costs a life and either replays the same board or ends the game.
func (g *Game) levelFailed() {
	g.lives--
	if g.lives <= 0 {
		g.lives = 0
		g.endGame()
		return
	}
	g.guesses = board.NewGuesses(g.size)
	g.machine.MustFire(state.EventNextLevel)
	g.startMemorization()
}

func (g *Game) endGame() {
	g.deadline.Disarm()
	g.machine.MustFire(state.EventEnd)
	username := g.playerUsername
	g.playerID = ""
	g.playerUsername = ""

	if g.transmitScore && g.competitive {
		g.pendingRecord = &models.ScoreRecord{
			ID:             uuid.NewString(),
			Score:          g.score,
			Date:           g.now(),
			PlayerUsername: username,
			GameType:       models.MemoryGameType,
		}
	}
}

func (g *Game) takePendingRecord() *models.ScoreRecord {
	record := g.pendingRecord
	g.pendingRecord = nil
	return record
}

func (g *Game) submit(record *models.ScoreRecord) {
	if record != nil && g.transmitter != nil {
		g.transmitter.AddScore(*record)
	}
}

// afterDeadline takes the outcome of a deadline callback while mu is still
// held and returns the submission and notification to run once it is released.
func (g *Game) afterDeadline() func() {
	record := g.takePendingRecord()
	onChange := g.onChange
	return func() {
		g.submit(record)
		if onChange != nil {
			onChange()
		}
	}
}

// seconds converts a duration in seconds, saturating instead of overflowing.
func seconds(s float64) time.Duration {
	ns := s * float64(time.Second)
	if ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	if ns <= 0 {
		return 0
	}
	return time.Duration(ns)
}
