// models/models.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// GameStatus 游戏实例的状态
type GameStatus string

const (
	StatusWaitingForPlayers GameStatus = "WAITING_FOR_PLAYERS"
	StatusWaitingToStart    GameStatus = "WAITING_TO_START"
	StatusInProgress        GameStatus = "IN_PROGRESS"
	StatusOver              GameStatus = "OVER"
)

// MemoryGameType is the game type recorded on leaderboard entries.
const MemoryGameType = "MemoryGameArea"

// Player is a town occupant as seen by the game layer.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"userName"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

// BoardSize 棋盘尺寸
type BoardSize struct {
	Rows    int `json:"rows" mapstructure:"rows"`
	Columns int `json:"columns" mapstructure:"columns"`
}

// Cell is a tri-state guess cell.
type Cell int8

const (
	CellUnknown Cell = iota
	CellCorrect
	CellIncorrect
)

// MarshalJSON encodes unknown as null, correct as true and incorrect as false.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c {
	case CellCorrect:
		return []byte("true"), nil
	case CellIncorrect:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "null":
		*c = CellUnknown
	case "true":
		*c = CellCorrect
	case "false":
		*c = CellIncorrect
	default:
		return fmt.Errorf("invalid cell value %q", data)
	}
	return nil
}

// Settings 记忆游戏设置
type Settings struct {
	StartingLives           int       `json:"startingLives" mapstructure:"starting_lives"`
	StartingBoardSize       BoardSize `json:"startingBoardSize" mapstructure:"starting_board_size"`
	MemorizationTimeSeconds float64   `json:"memorizationTimeSeconds" mapstructure:"memorization_time_seconds"`
	GuessingTimeSeconds     float64   `json:"guessingTimeSeconds" mapstructure:"guessing_time_seconds"`
	IncreasingDifficulty    bool      `json:"increasingDifficulty" mapstructure:"increasing_difficulty"`
	TargetTilesPercentage   float64   `json:"targetTilesPercentage" mapstructure:"target_tiles_percentage"`
	IsPlayable              bool      `json:"isPlayable" mapstructure:"is_playable"`
	UnknownTileColor        string    `json:"unknownTileColor,omitempty" mapstructure:"unknown_tile_color"`
	TileShape               string    `json:"tileShape,omitempty" mapstructure:"tile_shape"`
}

// Move is a single guess.
type Move struct {
	Row           int  `json:"row"`
	Column        int  `json:"column"`
	TransmitScore bool `json:"transmitScore"`
}

// GameMove is a move attributed to a player and a game instance.
type GameMove struct {
	GameID   string `json:"gameID"`
	PlayerID string `json:"playerID"`
	Move     Move   `json:"move"`
}

// GameState 游戏状态快照
type GameState struct {
	Status                  GameStatus `json:"status"`
	Player                  string     `json:"player,omitempty"`
	Score                   int        `json:"score"`
	Lives                   int        `json:"lives"`
	BoardSize               BoardSize  `json:"boardSize"`
	SolutionBoard           [][]bool   `json:"solutionBoard"`
	GuessesBoard            [][]Cell   `json:"guessesBoard"`
	TransmitScore           bool       `json:"transmitScore"`
	MemorizationTimeSeconds float64    `json:"memorizationTimeSeconds"`
	GuessingTimeSeconds     float64    `json:"guessingTimeSeconds"`
	UnknownTileColor        string     `json:"unknownTileColor,omitempty"`
	TileShape               string     `json:"tileShape,omitempty"`
}

// GameInstance pairs a game id with its state.
type GameInstance struct {
	ID    string    `json:"id"`
	State GameState `json:"state"`
}

// AreaModel is what clients receive whenever a game area changes.
type AreaModel struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Occupants []string      `json:"occupants"`
	Game      *GameInstance `json:"game,omitempty"`
}

// ScoreRecord 排行榜记录
type ScoreRecord struct {
	ID             string    `json:"_id"`
	Score          int       `json:"score"`
	Date           time.Time `json:"date"`
	PlayerUsername string    `json:"playerUsername"`
	GameType       string    `json:"gameType"`
}

// LeaderboardField names a column of a score record.
type LeaderboardField string

const (
	FieldScore          LeaderboardField = "score"
	FieldDate           LeaderboardField = "date"
	FieldPlayerUsername LeaderboardField = "playerUsername"
	FieldGameType       LeaderboardField = "gameType"
)

// AllLeaderboardFields lists every field in display order.
var AllLeaderboardFields = []LeaderboardField{FieldScore, FieldDate, FieldPlayerUsername, FieldGameType}

// ScoreView is a score record with hidden fields left nil.
type ScoreView struct {
	ID             string     `json:"_id"`
	Score          *int       `json:"score,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	PlayerUsername *string    `json:"playerUsername,omitempty"`
	GameType       *string    `json:"gameType,omitempty"`
}

// LeaderboardSettings 排行榜设置
type LeaderboardSettings struct {
	DefaultDisplayCount int                `json:"defaultDisplayCount" mapstructure:"default_display_count"`
	DefaultSortType     LeaderboardField   `json:"defaultSortType" mapstructure:"default_sort_type"`
	VisibleFields       []LeaderboardField `json:"visibleFields" mapstructure:"visible_fields"`
	Reset               bool               `json:"reset" mapstructure:"-"`
}

// CommandResponse answers a client command.
type CommandResponse struct {
	CommandID      string          `json:"commandID"`
	InteractableID string          `json:"interactableID"`
	Error          string          `json:"error,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// LeaderboardAreaModel is what clients receive whenever the leaderboard changes.
type LeaderboardAreaModel struct {
	ID            string              `json:"id"`
	Type          string              `json:"type"`
	Occupants     []string            `json:"occupants"`
	Settings      LeaderboardSettings `json:"settings"`
	Scores        []ScoreView         `json:"scores"`
	HiddenTownees []string            `json:"hiddenTownees"`
}

// CommandType names an interactable command.
type CommandType string

const (
	CommandJoinGame              CommandType = "JoinGame"
	CommandStartGame             CommandType = "MemoryGameStartGame"
	CommandGameMove              CommandType = "GameMove"
	CommandLeaveGame             CommandType = "LeaveGame"
	CommandLeaderboardSettings   CommandType = "LeaderboardSettings"
	CommandLeaderboardVisibility CommandType = "LeaderboardVisibility"
)

// Command is a client request addressed to an interactable area.
type Command struct {
	Type                  CommandType          `json:"type"`
	GameID                string               `json:"gameID,omitempty"`
	CompetitiveMode       bool                 `json:"competitiveMode,omitempty"`
	CustomizedSettings    *Settings            `json:"customizedSettings,omitempty"`
	Move                  *Move                `json:"move,omitempty"`
	Settings              *LeaderboardSettings `json:"settings,omitempty"`
	SetLeaderboardVisible *bool                `json:"setLeaderboardVisible,omitempty"`
}

// CommandEnvelope carries a command over the wire.
type CommandEnvelope struct {
	CommandID      string  `json:"commandID"`
	InteractableID string  `json:"interactableID"`
	Command        Command `json:"command"`
}

// JoinGameResult is the payload answering a JoinGame command.
type JoinGameResult struct {
	GameID string `json:"gameID"`
}

// MemoryGameSettingsCommand replaces the competitive defaults (administrators only).
type MemoryGameSettingsCommand struct {
	CommandID string   `json:"commandID"`
	Settings  Settings `json:"settings"`
}

type MemoryGameSettingsResponse struct {
	CommandID string `json:"commandID"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
