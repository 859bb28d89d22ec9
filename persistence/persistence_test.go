package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wfunc/memoryserver/config"
	"github.com/wfunc/memoryserver/models"
)

func sampleScores() []models.ScoreRecord {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.ScoreRecord{
		{ID: "a", Score: 40, Date: base, PlayerUsername: "alice", GameType: models.MemoryGameType},
		{ID: "b", Score: 90, Date: base.Add(time.Minute), PlayerUsername: "bob", GameType: models.MemoryGameType},
		{ID: "c", Score: 40, Date: base.Add(-time.Minute), PlayerUsername: "carol", GameType: models.MemoryGameType},
		{ID: "d", Score: 10, Date: base, PlayerUsername: "dave", GameType: "TicTacToe"},
	}
}

// exerciseDatabase runs the behaviour every Database must share.
func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	for _, r := range sampleScores() {
		if err := db.SaveScore(r); err != nil {
			t.Fatalf("SaveScore(%s) returned error: %v", r.ID, err)
		}
	}

	// Same id again is ignored.
	dup := sampleScores()[0]
	dup.Score = 1000
	if err := db.SaveScore(dup); err != nil {
		t.Fatalf("Duplicate SaveScore returned error: %v", err)
	}

	got, err := db.LoadScores(models.MemoryGameType)
	if err != nil {
		t.Fatalf("LoadScores returned error: %v", err)
	}
	wantOrder := []string{"b", "c", "a"}
	if len(got) != len(wantOrder) {
		t.Fatalf("Expected %d records, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if got[2].Score != 40 {
		t.Errorf("Duplicate save overwrote the record: score %d", got[2].Score)
	}
	if !got[0].Date.Equal(sampleScores()[1].Date) {
		t.Errorf("Date did not round-trip: %v", got[0].Date)
	}
	if got[0].PlayerUsername != "bob" {
		t.Errorf("Expected bob, got %s", got[0].PlayerUsername)
	}

	all, err := db.LoadScores("")
	if err != nil {
		t.Fatalf("LoadScores(\"\") returned error: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 records across game types, got %d", len(all))
	}

	if err := db.DeleteScores(); err != nil {
		t.Fatalf("DeleteScores returned error: %v", err)
	}
	empty, err := db.LoadScores("")
	if err != nil {
		t.Fatalf("LoadScores after delete returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no records after delete, got %d", len(empty))
	}
}

func TestMemory(t *testing.T) {
	exerciseDatabase(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	db, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "scores.db"))
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer db.Close()

	exerciseDatabase(t, db)
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")

	db, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	if err := db.SaveScore(sampleScores()[0]); err != nil {
		t.Fatalf("SaveScore returned error: %v", err)
	}
	db.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadScores("")
	if err != nil {
		t.Fatalf("LoadScores returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Scores did not survive a reopen: %+v", got)
	}
}

func TestOpen(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) returned error: %v", err)
	}
	if _, ok := db.(*Memory); !ok {
		t.Errorf("Expected *Memory, got %T", db)
	}

	db, err = Open(config.DatabaseConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")}})
	if err != nil {
		t.Fatalf("Open(sqlite) returned error: %v", err)
	}
	db.Close()

	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Error("Expected an error for an unknown driver")
	}
}
