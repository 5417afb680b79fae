package db

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/ndhoang/mafia-agents/internal/game"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot() game.Snapshot {
	return game.Snapshot{
		DayCount: 2,
		Phase:    game.PhaseEnd,
		SubPhase: game.SubPhaseNone,
		Winner:   game.WinnerVillage,
		Agents: []game.AgentSnapshot{
			{ID: 1, Role: game.RoleMafia, Status: game.StatusDead},
			{ID: 2, Role: game.RoleVillager, Status: game.StatusAlive},
			{ID: 3, Role: game.RoleVillager, Status: game.StatusDead},
			{ID: 4, Role: game.RoleVillager, Status: game.StatusAlive},
		},
		EventLog: []game.Event{
			{Day: 1, Phase: string(game.PhaseDay), Kind: game.EventAnnouncement, Message: "A new game begins with 4 players. Roles have been assigned in secret."},
			{Day: 1, Phase: string(game.PhaseDay), Kind: game.EventNarrative, Message: `Player 2: "I suspect Player 1."`},
			{Day: 1, Phase: string(game.PhaseNight), Kind: game.EventAnnouncement, Message: "A body has been discovered: Player 3 (was a Villager) was killed during the night."},
			{Day: 2, Phase: string(game.PhaseDay), Kind: game.EventAnnouncement, Message: "Vote result: Player 1 (Mafia) has been eliminated."},
			{Day: 2, Phase: string(game.PhaseDay), Kind: game.EventAnnouncement, Message: "Game over! The Village has eliminated the Mafia and won."},
		},
	}
}

func TestSaveLoadTranscriptRoundTrip(t *testing.T) {
	db := newTestDB(t)
	snap := sampleSnapshot()

	if err := db.SaveTranscript("game-1", snap); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	loaded, err := db.LoadTranscript("game-1")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}

	if loaded.DayCount != snap.DayCount || loaded.Phase != snap.Phase || loaded.Winner != snap.Winner {
		t.Errorf("header mismatch: got day=%d phase=%s winner=%s",
			loaded.DayCount, loaded.Phase, loaded.Winner)
	}
	if !reflect.DeepEqual(loaded.Agents, snap.Agents) {
		t.Errorf("agents mismatch:\ngot  %+v\nwant %+v", loaded.Agents, snap.Agents)
	}
	if !reflect.DeepEqual(loaded.EventLog, snap.EventLog) {
		t.Errorf("event log order not preserved:\ngot  %+v\nwant %+v", loaded.EventLog, snap.EventLog)
	}
}

func TestSaveTranscriptReplacesPrevious(t *testing.T) {
	db := newTestDB(t)
	snap := sampleSnapshot()

	early := snap
	early.Phase = game.PhaseNight
	early.Winner = game.WinnerNone
	early.EventLog = snap.EventLog[:2]
	if err := db.SaveTranscript("game-1", early); err != nil {
		t.Fatalf("first SaveTranscript: %v", err)
	}
	if err := db.SaveTranscript("game-1", snap); err != nil {
		t.Fatalf("second SaveTranscript: %v", err)
	}

	loaded, err := db.LoadTranscript("game-1")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(loaded.EventLog) != len(snap.EventLog) {
		t.Fatalf("re-save kept %d events, want %d", len(loaded.EventLog), len(snap.EventLog))
	}
	if loaded.Winner != game.WinnerVillage {
		t.Errorf("re-save kept winner %q, want village", loaded.Winner)
	}

	ids, err := db.ListGames()
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("re-save duplicated the game row: %v", ids)
	}
}

func TestLoadTranscriptUnknownGame(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.LoadTranscript("no-such-game"); err == nil {
		t.Error("LoadTranscript returned a transcript for an unknown game")
	}
}

func TestListGames(t *testing.T) {
	db := newTestDB(t)
	snap := sampleSnapshot()

	for i := 1; i <= 3; i++ {
		if err := db.SaveTranscript(fmt.Sprintf("game-%d", i), snap); err != nil {
			t.Fatalf("SaveTranscript game-%d: %v", i, err)
		}
	}

	ids, err := db.ListGames()
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ListGames returned %d ids, want 3", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	for i := 1; i <= 3; i++ {
		if !seen[fmt.Sprintf("game-%d", i)] {
			t.Errorf("ListGames missing game-%d: %v", i, ids)
		}
	}
}
