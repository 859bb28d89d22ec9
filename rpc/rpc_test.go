package rpc

import (
	"net/rpc"
	"testing"
	"time"

	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/persistence"
	"github.com/wfunc/memoryserver/services"
	"github.com/wfunc/memoryserver/settings"
)

func TestMemoryService(t *testing.T) {
	db := persistence.NewMemory()
	for _, r := range []models.ScoreRecord{
		{ID: "a", Score: 12, Date: time.Now(), PlayerUsername: "alice", GameType: models.MemoryGameType},
		{ID: "b", Score: 40, Date: time.Now(), PlayerUsername: "bob", GameType: models.MemoryGameType},
	} {
		if err := db.SaveScore(r); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}
	}
	lb := services.NewLeaderboardService(db, models.LeaderboardSettings{DefaultDisplayCount: 10})
	defaults, err := settings.NewDefaults(settings.Standard())
	if err != nil {
		t.Fatalf("NewDefaults: %v", err)
	}

	srv, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Register(NewMemoryService(lb, defaults)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	go srv.Start()
	defer srv.Stop()

	client, err := rpc.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var scores GetScoresReply
	if err := client.Call("MemoryService.GetScores", &GetScoresArgs{}, &scores); err != nil {
		t.Fatalf("GetScores: %v", err)
	}
	if len(scores.Scores) != 2 || scores.Scores[0].ID != "b" {
		t.Errorf("Expected bob's score first, got %+v", scores.Scores)
	}

	var s models.Settings
	if err := client.Call("MemoryService.GetMemoryGameSettings", &GetSettingsArgs{}, &s); err != nil {
		t.Fatalf("GetMemoryGameSettings: %v", err)
	}
	if s.StartingLives != 3 {
		t.Errorf("Expected 3 starting lives, got %d", s.StartingLives)
	}
}
