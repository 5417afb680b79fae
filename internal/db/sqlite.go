package db

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ndhoang/mafia-agents/internal/game"
)

// DB persists finished (or in-flight) game transcripts: the ordered event log
// plus the final roster with roles, keyed by game session id. Writing then
// reading reproduces the same ordered event sequence.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewDB opens the sqlite database at dbPath and runs migrations.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		num_agents INTEGER NOT NULL,
		day_count INTEGER NOT NULL,
		phase TEXT NOT NULL,
		winner TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS game_agents (
		game_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (game_id, agent_id),
		FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS game_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		day INTEGER NOT NULL,
		phase TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_game_agents_game_id ON game_agents(game_id);
	CREATE INDEX IF NOT EXISTS idx_game_events_game_id ON game_events(game_id, seq);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveTranscript writes the snapshot's roster and full event log in one
// transaction. Re-saving the same game replaces its previous transcript, so
// incremental saves are safe.
func (db *DB) SaveTranscript(gameID string, snap game.Snapshot) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO games (id, num_agents, day_count, phase, winner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			day_count = excluded.day_count,
			phase = excluded.phase,
			winner = excluded.winner,
			updated_at = CURRENT_TIMESTAMP
	`, gameID, len(snap.Agents), snap.DayCount, string(snap.Phase), string(snap.Winner))
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM game_agents WHERE game_id = ?`, gameID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM game_events WHERE game_id = ?`, gameID); err != nil {
		return err
	}

	for _, a := range snap.Agents {
		_, err := tx.Exec(`
			INSERT INTO game_agents (game_id, agent_id, role, status)
			VALUES (?, ?, ?, ?)
		`, gameID, a.ID, string(a.Role), string(a.Status))
		if err != nil {
			return err
		}
	}

	for seq, ev := range snap.EventLog {
		_, err := tx.Exec(`
			INSERT INTO game_events (game_id, seq, day, phase, kind, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gameID, seq, ev.Day, ev.Phase, string(ev.Kind), ev.Message)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadTranscript reads a stored transcript back into snapshot form, with the
// event log in its original order.
func (db *DB) LoadTranscript(gameID string) (*game.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := &game.Snapshot{SubPhase: game.SubPhaseNone}

	var phase, winner string
	err := db.conn.QueryRow(`
		SELECT day_count, phase, winner FROM games WHERE id = ?
	`, gameID).Scan(&snap.DayCount, &phase, &winner)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transcript not found for game %s", gameID)
	}
	if err != nil {
		return nil, err
	}
	snap.Phase = game.Phase(phase)
	snap.Winner = game.Winner(winner)

	rows, err := db.conn.Query(`
		SELECT agent_id, role, status FROM game_agents WHERE game_id = ? ORDER BY agent_id
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a game.AgentSnapshot
		var role, status string
		if err := rows.Scan(&a.ID, &role, &status); err != nil {
			return nil, err
		}
		a.Role = game.Role(role)
		a.Status = game.Status(status)
		snap.Agents = append(snap.Agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	eventRows, err := db.conn.Query(`
		SELECT day, phase, kind, message FROM game_events WHERE game_id = ? ORDER BY seq
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer eventRows.Close()
	for eventRows.Next() {
		var ev game.Event
		var kind string
		if err := eventRows.Scan(&ev.Day, &ev.Phase, &kind, &ev.Message); err != nil {
			return nil, err
		}
		ev.Kind = game.EventKind(kind)
		snap.EventLog = append(snap.EventLog, ev)
	}
	if err := eventRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// ListGames returns stored game ids, most recently updated first.
func (db *DB) ListGames() ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`SELECT id FROM games ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
