/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS room (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    theme TEXT,
    background_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS player (
    id BIGSERIAL PRIMARY KEY,
    room_id BIGINT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    is_host BOOLEAN NOT NULL DEFAULT FALSE,
    hardcore BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (room_id, name)
);

CREATE INDEX IF NOT EXISTS idx_player_room_id ON player(room_id);

CREATE TABLE IF NOT EXISTS song (
    id BIGSERIAL PRIMARY KEY,
    room_id BIGINT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    submitter TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_song_room_id ON song(room_id);
`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) CreateRoom(ctx context.Context, theme, backgroundURL *string) (*Room, error) {
	const q = `
		INSERT INTO room (code, theme, background_url)
		VALUES ($1, $2, $3)
		RETURNING id, code, theme, background_url, created_at
	`

	for range maxCodeAttempts {
		code, err := newCode()
		if err != nil {
			return nil, fmt.Errorf("store: generate code: %w", err)
		}

		var r Room
		err = p.pool.QueryRow(ctx, q, code, theme, backgroundURL).
			Scan(&r.ID, &r.Code, &r.Theme, &r.BackgroundURL, &r.CreatedAt)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: create room: %w", err)
		}

		r.Players = []Player{}
		r.Songs = []Song{}
		return &r, nil
	}

	return nil, fmt.Errorf("store: create room: %w", ErrConflict)
}

func (p *Postgres) GetRoom(ctx context.Context, code string) (*Room, error) {
	var r Room
	err := p.pool.QueryRow(ctx, `
		SELECT id, code, theme, background_url, created_at
		FROM room
		WHERE code = $1
	`, code).Scan(&r.ID, &r.Code, &r.Theme, &r.BackgroundURL, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room %s: %w", code, err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, name, is_host, hardcore
		FROM player
		WHERE room_id = $1
		ORDER BY id
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("store: list players: %w", err)
	}
	r.Players, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Player, error) {
		var pl Player
		err := row.Scan(&pl.ID, &pl.Name, &pl.IsHost, &pl.Hardcore)
		return pl, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan players: %w", err)
	}

	rows, err = p.pool.Query(ctx, `
		SELECT id, url, title, submitter
		FROM song
		WHERE room_id = $1
		ORDER BY id
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("store: list songs: %w", err)
	}
	r.Songs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Song, error) {
		var s Song
		err := row.Scan(&s.ID, &s.URL, &s.Title, &s.Submitter)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan songs: %w", err)
	}

	return &r, nil
}

func (p *Postgres) RoomCodes(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT code FROM room ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("store: scan rooms: %w", err)
	}
	return codes, nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, code string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM room WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("store: delete room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	return nil
}

func (p *Postgres) UpdateTheme(ctx context.Context, code, theme string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE room SET theme = $2 WHERE code = $1`, code, theme)
	if err != nil {
		return fmt.Errorf("store: update theme %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	return nil
}

func (p *Postgres) FindOrCreatePlayer(ctx context.Context, code, name string, hardcore bool) (Player, bool, error) {
	var (
		pl      Player
		created bool
	)

	// The room row is locked so that concurrent first joins agree on the host.
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var roomID int64
		err := tx.QueryRow(ctx, `SELECT id FROM room WHERE code = $1 FOR UPDATE`, code).Scan(&roomID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: room %s: %w", code, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get room %s: %w", code, err)
		}

		err = tx.QueryRow(ctx, `
			SELECT id, name, is_host, hardcore
			FROM player
			WHERE room_id = $1 AND name = $2
		`, roomID, name).Scan(&pl.ID, &pl.Name, &pl.IsHost, &pl.Hardcore)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: get player %s/%s: %w", code, name, err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO player (room_id, name, is_host, hardcore)
			VALUES ($1, $2, NOT EXISTS (SELECT 1 FROM player WHERE room_id = $1), $3)
			RETURNING id, name, is_host, hardcore
		`, roomID, name, hardcore).Scan(&pl.ID, &pl.Name, &pl.IsHost, &pl.Hardcore)
		if err != nil {
			return fmt.Errorf("store: create player %s/%s: %w", code, name, err)
		}
		created = true

		return nil
	})
	if err != nil {
		return Player{}, false, err
	}

	return pl, created, nil
}

func (p *Postgres) AddSong(ctx context.Context, code, url, title, submitter string) (Song, error) {
	s := Song{URL: url, Title: title, Submitter: submitter}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO song (room_id, url, title, submitter)
		SELECT id, $2, $3, $4 FROM room WHERE code = $1
		RETURNING id
	`, code, url, title, submitter).Scan(&s.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Song{}, fmt.Errorf("store: room %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return Song{}, fmt.Errorf("store: add song to %s: %w", code, err)
	}

	return s, nil
}

func (p *Postgres) RemoveSong(ctx context.Context, code string, songID int64) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM song
		USING room
		WHERE song.room_id = room.id AND room.code = $1 AND song.id = $2
	`, code, songID)
	if err != nil {
		return fmt.Errorf("store: remove song %d from %s: %w", songID, code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: song %d in %s: %w", songID, code, ErrNotFound)
	}
	return nil
}
