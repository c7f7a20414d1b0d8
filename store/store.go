/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package store persists rooms, players and songs.
//
// Two backends are provided: PostgreSQL through pgx, and an embedded SQLite
// database for single-node deployments and tests. Both satisfy Store.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a room, player or song does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("store: conflict")
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 5

	// maxCodeAttempts bounds the retries when a generated code collides.
	maxCodeAttempts = 8
)

type Room struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Theme         *string   `json:"theme"`
	BackgroundURL *string   `json:"backgroundUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	Players       []Player  `json:"players"`
	Songs         []Song    `json:"songs"`
}

type Player struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	Hardcore bool   `json:"hardcore"`
}

type Song struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Submitter string `json:"submitter"`
}

// Store is the durable side of a room. Songs are always returned in
// creation order, which is also playback order.
type Store interface {
	CreateRoom(ctx context.Context, theme, backgroundURL *string) (*Room, error)
	GetRoom(ctx context.Context, code string) (*Room, error)
	RoomCodes(ctx context.Context) ([]string, error)
	DeleteRoom(ctx context.Context, code string) error
	UpdateTheme(ctx context.Context, code, theme string) error

	// FindOrCreatePlayer returns the player named name in the room, creating
	// it if needed. The first player of a room becomes its host.
	FindOrCreatePlayer(ctx context.Context, code, name string, hardcore bool) (Player, bool, error)

	AddSong(ctx context.Context, code, url, title, submitter string) (Song, error)
	RemoveSong(ctx context.Context, code string, songID int64) error

	Ping(ctx context.Context) error
	Close()
}

// Open connects to the named backend and makes sure the schema exists.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

// HardcoreNames returns the names of the room's hardcore players.
func (r *Room) HardcoreNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Hardcore {
			names = append(names, p.Name)
		}
	}
	return names
}

// Submitters returns each distinct submitter once, in playlist order.
func (r *Room) Submitters() []string {
	seen := make(map[string]bool, len(r.Songs))
	out := make([]string, 0, len(r.Songs))
	for _, s := range r.Songs {
		if seen[s.Submitter] {
			continue
		}
		seen[s.Submitter] = true
		out = append(out, s.Submitter)
	}
	return out
}

// Song looks up a song of the room by id.
func (r *Room) Song(id int64) (Song, bool) {
	for _, s := range r.Songs {
		if s.ID == id {
			return s, true
		}
	}
	return Song{}, false
}

// newCode generates a crypto-random room code that is easy to type.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out), nil
}
