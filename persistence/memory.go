package persistence

import (
	"sort"
	"sync"

	"github.com/wfunc/memoryserver/models"
)

// Memory keeps scores in process memory. Contents are lost on restart.
type Memory struct {
	mu     sync.RWMutex
	scores map[string]models.ScoreRecord
}

func NewMemory() *Memory {
	return &Memory{scores: make(map[string]models.ScoreRecord)}
}

func (m *Memory) SaveScore(record models.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scores[record.ID]; !exists {
		m.scores[record.ID] = record
	}
	return nil
}

func (m *Memory) LoadScores(gameType string) ([]models.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.ScoreRecord, 0, len(m.scores))
	for _, r := range m.scores {
		if gameType == "" || r.GameType == gameType {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

func (m *Memory) DeleteScores() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = make(map[string]models.ScoreRecord)
	return nil
}

func (m *Memory) Close() error { return nil }
