// services/leaderboard_service.go
package services

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/persistence"
)

var (
	ErrNotAdministrator     = errors.New("Player is not an administrator")
	ErrNegativeDisplayCount = errors.New("Negative numbers are not allowed")
	ErrUnknownField         = errors.New("unknown leaderboard field")
)

// LeaderboardService 排行榜服务. It is the score sink of competitive games.
type LeaderboardService struct {
	db persistence.Database

	mu        sync.RWMutex
	settings  models.LeaderboardSettings
	hidden    []string
	listeners []func()
}

func NewLeaderboardService(db persistence.Database, settings models.LeaderboardSettings) *LeaderboardService {
	settings.Reset = false
	if settings.DefaultSortType == "" {
		settings.DefaultSortType = models.FieldScore
	}
	if settings.VisibleFields == nil {
		settings.VisibleFields = slices.Clone(models.AllLeaderboardFields)
	}
	return &LeaderboardService{db: db, settings: settings}
}

// OnChange registers fn to run after scores, settings or visibility change.
func (s *LeaderboardService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *LeaderboardService) notify() {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// AddScore persists a finished game's score.
func (s *LeaderboardService) AddScore(record models.ScoreRecord) {
	if err := s.db.SaveScore(record); err != nil {
		logger.Log.Errorw("Failed to save score", "id", record.ID, "player", record.PlayerUsername, "error", err)
		return
	}
	logger.Log.Infow("Score recorded", "id", record.ID, "player", record.PlayerUsername, "score", record.Score)
	s.notify()
}

// GetScores returns the scores of gameType sorted by the default sort field,
// with fields hidden by the settings left out. The requesting player's own
// username is always shown.
func (s *LeaderboardService) GetScores(gameType, playerUsername string) ([]models.ScoreView, error) {
	records, err := s.db.LoadScores(gameType)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	settings := s.Settings()
	sortRecords(records, settings.DefaultSortType)

	visible := make(map[models.LeaderboardField]bool, len(settings.VisibleFields))
	for _, f := range settings.VisibleFields {
		visible[f] = true
	}

	views := make([]models.ScoreView, 0, len(records))
	for _, r := range records {
		v := models.ScoreView{ID: r.ID}
		if visible[models.FieldScore] {
			score := r.Score
			v.Score = &score
		}
		if visible[models.FieldDate] {
			date := r.Date
			v.Date = &date
		}
		if visible[models.FieldPlayerUsername] || r.PlayerUsername == playerUsername {
			name := r.PlayerUsername
			v.PlayerUsername = &name
		}
		if visible[models.FieldGameType] {
			gt := r.GameType
			v.GameType = &gt
		}
		views = append(views, v)
	}
	return views, nil
}

func sortRecords(records []models.ScoreRecord, field models.LeaderboardField) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch field {
		case models.FieldDate:
			return a.Date.After(b.Date)
		case models.FieldPlayerUsername:
			return a.PlayerUsername < b.PlayerUsername
		case models.FieldGameType:
			return a.GameType < b.GameType
		default:
			return a.Score > b.Score
		}
	})
}

// Settings returns a copy of the current settings.
func (s *LeaderboardService) Settings() models.LeaderboardSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.VisibleFields = slices.Clone(s.settings.VisibleFields)
	return out
}

// Reset erases every score.
func (s *LeaderboardService) Reset(player models.Player) error {
	if !player.IsAdmin {
		return ErrNotAdministrator
	}
	if err := s.db.DeleteScores(); err != nil {
		return fmt.Errorf("reset leaderboard: %w", err)
	}
	logger.Log.Infow("Leaderboard reset", "admin", player.Username)
	s.notify()
	return nil
}

// ApplySettings updates the non-zero fields of update; update.Reset also
// erases every score.
func (s *LeaderboardService) ApplySettings(player models.Player, update models.LeaderboardSettings) error {
	if !player.IsAdmin {
		return ErrNotAdministrator
	}
	if update.DefaultDisplayCount < 0 {
		return ErrNegativeDisplayCount
	}
	if update.DefaultSortType != "" && !knownField(update.DefaultSortType) {
		return fmt.Errorf("%w: %s", ErrUnknownField, update.DefaultSortType)
	}
	for _, f := range update.VisibleFields {
		if !knownField(f) {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
	}

	if update.Reset {
		if err := s.db.DeleteScores(); err != nil {
			return fmt.Errorf("reset leaderboard: %w", err)
		}
	}

	s.mu.Lock()
	if update.DefaultDisplayCount > 0 {
		s.settings.DefaultDisplayCount = update.DefaultDisplayCount
	}
	if update.DefaultSortType != "" {
		s.settings.DefaultSortType = update.DefaultSortType
	}
	if update.VisibleFields != nil {
		s.settings.VisibleFields = slices.Clone(update.VisibleFields)
	}
	s.mu.Unlock()

	logger.Log.Infow("Leaderboard settings updated", "admin", player.Username, "reset", update.Reset)
	s.notify()
	return nil
}

func knownField(f models.LeaderboardField) bool {
	return slices.Contains(models.AllLeaderboardFields, f)
}

// SetVisibility hides or shows the leaderboard for playerID.
func (s *LeaderboardService) SetVisibility(playerID string, visible bool) {
	s.mu.Lock()
	s.hidden = slices.DeleteFunc(s.hidden, func(id string) bool { return id == playerID })
	if !visible {
		s.hidden = append(s.hidden, playerID)
	}
	s.mu.Unlock()
	s.notify()
}

// HiddenPlayers lists the players who hid the leaderboard.
func (s *LeaderboardService) HiddenPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.hidden)
}

// Model builds the leaderboard snapshot sent to playerUsername.
func (s *LeaderboardService) Model(id string, occupants []string, playerUsername string) (models.LeaderboardAreaModel, error) {
	scores, err := s.GetScores(models.MemoryGameType, playerUsername)
	if err != nil {
		return models.LeaderboardAreaModel{}, err
	}
	hidden := s.HiddenPlayers()
	if hidden == nil {
		hidden = []string{}
	}
	return models.LeaderboardAreaModel{
		ID:            id,
		Type:          "LeaderboardArea",
		Occupants:     occupants,
		Settings:      s.Settings(),
		Scores:        scores,
		HiddenTownees: hidden,
	}, nil
}
