/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS room (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    theme TEXT,
    background_url TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS player (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id INTEGER NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    is_host BOOLEAN NOT NULL DEFAULT 0,
    hardcore BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (room_id, name)
);

CREATE INDEX IF NOT EXISTS idx_player_room_id ON player(room_id);

CREATE TABLE IF NOT EXISTS song (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id INTEGER NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    submitter TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_song_room_id ON song(room_id);
`

// SQLite implements Store on an embedded database file.
//
// The pool is limited to one connection, so writes are serialized and an
// in-memory database (":memory:") is shared by every caller.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func isSQLiteUnique(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) roomID(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, code string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM room WHERE code = ?`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("store: get room %s: %w", code, err)
	}
	return id, nil
}

func (s *SQLite) CreateRoom(ctx context.Context, theme, backgroundURL *string) (*Room, error) {
	for range maxCodeAttempts {
		code, err := newCode()
		if err != nil {
			return nil, fmt.Errorf("store: generate code: %w", err)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO room (code, theme, background_url)
			VALUES (?, ?, ?)
		`, code, theme, backgroundURL)
		if isSQLiteUnique(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: create room: %w", err)
		}

		return s.GetRoom(ctx, code)
	}

	return nil, fmt.Errorf("store: create room: %w", ErrConflict)
}

func (s *SQLite) GetRoom(ctx context.Context, code string) (*Room, error) {
	var (
		r     Room
		theme sql.NullString
		bg    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, theme, background_url, created_at
		FROM room
		WHERE code = ?
	`, code).Scan(&r.ID, &r.Code, &theme, &bg, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room %s: %w", code, err)
	}
	if theme.Valid {
		r.Theme = &theme.String
	}
	if bg.Valid {
		r.BackgroundURL = &bg.String
	}

	r.Players, err = s.players(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	r.Songs, err = s.songs(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *SQLite) players(ctx context.Context, roomID int64) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_host, hardcore
		FROM player
		WHERE room_id = ?
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: list players: %w", err)
	}
	defer rows.Close()

	players := []Player{}
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.Name, &p.IsHost, &p.Hardcore); err != nil {
			return nil, fmt.Errorf("store: scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *SQLite) songs(ctx context.Context, roomID int64) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, submitter
		FROM song
		WHERE room_id = ?
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: list songs: %w", err)
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.ID, &song.URL, &song.Title, &song.Submitter); err != nil {
			return nil, fmt.Errorf("store: scan song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (s *SQLite) RoomCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM room ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// DeleteRoom removes children explicitly so the cascade does not depend on
// the foreign_keys pragma of the connection.
func (s *SQLite) DeleteRoom(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	id, err := s.roomID(ctx, tx, code)
	if err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM player WHERE room_id = ?`,
		`DELETE FROM song WHERE room_id = ?`,
		`DELETE FROM room WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("store: delete room %s: %w", code, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) UpdateTheme(ctx context.Context, code, theme string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE room SET theme = ? WHERE code = ?`, theme, code)
	if err != nil {
		return fmt.Errorf("store: update theme %s: %w", code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	return nil
}

func (s *SQLite) FindOrCreatePlayer(ctx context.Context, code, name string, hardcore bool) (Player, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	roomID, err := s.roomID(ctx, tx, code)
	if err != nil {
		return Player{}, false, err
	}

	var p Player
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, is_host, hardcore
		FROM player
		WHERE room_id = ? AND name = ?
	`, roomID, name).Scan(&p.ID, &p.Name, &p.IsHost, &p.Hardcore)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Player{}, false, fmt.Errorf("store: get player %s/%s: %w", code, name, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM player WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return Player{}, false, fmt.Errorf("store: count players %s: %w", code, err)
	}

	p = Player{Name: name, IsHost: count == 0, Hardcore: hardcore}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO player (room_id, name, is_host, hardcore)
		VALUES (?, ?, ?, ?)
	`, roomID, name, p.IsHost, hardcore)
	if err != nil {
		return Player{}, false, fmt.Errorf("store: create player %s/%s: %w", code, name, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Player{}, false, fmt.Errorf("store: create player %s/%s: %w", code, name, err)
	}

	if err := tx.Commit(); err != nil {
		return Player{}, false, fmt.Errorf("store: commit: %w", err)
	}

	return p, true, nil
}

func (s *SQLite) AddSong(ctx context.Context, code, url, title, submitter string) (Song, error) {
	roomID, err := s.roomID(ctx, s.db, code)
	if err != nil {
		return Song{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO song (room_id, url, title, submitter)
		VALUES (?, ?, ?, ?)
	`, roomID, url, title, submitter)
	if err != nil {
		return Song{}, fmt.Errorf("store: add song to %s: %w", code, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Song{}, fmt.Errorf("store: add song to %s: %w", code, err)
	}

	return Song{ID: id, URL: url, Title: title, Submitter: submitter}, nil
}

func (s *SQLite) RemoveSong(ctx context.Context, code string, songID int64) error {
	roomID, err := s.roomID(ctx, s.db, code)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM song WHERE id = ? AND room_id = ?`, songID, roomID)
	if err != nil {
		return fmt.Errorf("store: remove song %d from %s: %w", songID, code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: song %d in %s: %w", songID, code, ErrNotFound)
	}
	return nil
}
