/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package rounds tracks the submitter-guessing game for every room.
//
// Each song of a room gets a Round once the game starts. Players store an
// ordered list of submitter names per song; the first entry is their pick.
// State is keyed by player name, which is the session identity of a room.
package rounds

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownRound is returned for a room or song that was never registered
// with StartRound. Callers treat it as a defect, not a user error.
var ErrUnknownRound = errors.New("rounds: unknown round")

// Round is the guessing state of one song.
type Round struct {
	CorrectAnswer string
	Pool          []string

	orders    map[string][]string
	locked    map[string]struct{}
	finalized bool
}

// Finalization summarizes the lock state of a song the host moved past.
type Finalization struct {
	SongID      int64    `json:"songId"`
	Locked      int      `json:"locked"`
	Total       int      `json:"total"`
	LockedNames []string `json:"lockedNames"`
}

// LockCount is the number of locked players out of everyone enrolled.
type LockCount struct {
	Locked int `json:"locked"`
	Total  int `json:"total"`
}

type room struct {
	rounds map[int64]*Round
	roster map[string]struct{}
	final  map[string]int
}

// Engine holds the rounds of every room. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func New() *Engine {
	return &Engine{rooms: make(map[string]*room)}
}

func (e *Engine) roomLocked(code string) *room {
	r, ok := e.rooms[code]
	if !ok {
		r = &room{
			rounds: make(map[int64]*Round),
			roster: make(map[string]struct{}),
		}
		e.rooms[code] = r
	}
	return r
}

func (e *Engine) roundLocked(code string, songID int64) (*Round, error) {
	r, ok := e.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", ErrUnknownRound, code)
	}
	round, ok := r.rounds[songID]
	if !ok {
		return nil, fmt.Errorf("%w: room %s song %d", ErrUnknownRound, code, songID)
	}
	return round, nil
}

// Enroll adds name to the room's roster, the denominator of lock counts.
func (e *Engine) Enroll(code, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roomLocked(code).roster[name] = struct{}{}
}

// StartRound registers a fresh round for the song, discarding any guesses
// previously stored for that song only.
func (e *Engine) StartRound(code string, songID int64, correctAnswer string, pool []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roomLocked(code).rounds[songID] = &Round{
		CorrectAnswer: correctAnswer,
		Pool:          slices.Clone(pool),
		orders:        make(map[string][]string),
		locked:        make(map[string]struct{}),
	}
}

// HasRound reports whether the song was registered.
func (e *Engine) HasRound(code string, songID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.roundLocked(code, songID)
	return err == nil
}

// Registered returns the registered song ids of a room in ascending order.
func (e *Engine) Registered(code string) []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[code]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(r.rounds))
}

// StoreOrder records or overwrites a player's guess order for a song.
func (e *Engine) StoreOrder(code string, songID int64, player string, order []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return err
	}
	round.orders[player] = slices.Clone(order)
	return nil
}

// Order returns the stored order of a player for a song.
func (e *Engine) Order(code string, songID int64, player string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return nil, false
	}
	order, ok := round.orders[player]
	return slices.Clone(order), ok
}

// ManualLock locks a player's guess. It returns false if the player was
// already locked.
func (e *Engine) ManualLock(code string, songID int64, player string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return false, err
	}
	if _, ok := round.locked[player]; ok {
		return false, nil
	}
	round.locked[player] = struct{}{}
	return true, nil
}

// UndoManualLock releases a lock. It returns false if the player was not
// locked or the song has been finalized.
func (e *Engine) UndoManualLock(code string, songID int64, player string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return false, err
	}
	if round.finalized {
		return false, nil
	}
	if _, ok := round.locked[player]; !ok {
		return false, nil
	}
	delete(round.locked, player)
	return true, nil
}

// IsLocked reports whether the player has locked the song.
func (e *Engine) IsLocked(code string, songID int64, player string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return false
	}
	_, ok := round.locked[player]
	return ok
}

// FinalizeSongForPlayers auto-locks every hardcore player and marks the song
// finalized. Calling it again only adds newly listed hardcore players.
func (e *Engine) FinalizeSongForPlayers(code string, songID int64, hardcore []string) (Finalization, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return Finalization{}, err
	}

	for _, name := range hardcore {
		round.locked[name] = struct{}{}
	}
	round.finalized = true

	r := e.rooms[code]
	names := slices.Sorted(maps.Keys(round.locked))

	return Finalization{
		SongID:      songID,
		Locked:      len(names),
		Total:       max(len(r.roster), len(names)),
		LockedNames: names,
	}, nil
}

// LockCounts returns how many players locked the song.
func (e *Engine) LockCounts(code string, songID int64) (LockCount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return LockCount{}, err
	}
	r := e.rooms[code]

	return LockCount{
		Locked: len(round.locked),
		Total:  max(len(r.roster), len(round.locked)),
	}, nil
}

// LockedPlayers returns the sorted names of players who locked the song.
func (e *Engine) LockedPlayers(code string, songID int64) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.roundLocked(code, songID)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(round.locked)), nil
}

// ComputeScores awards one point to every player whose first pick equals
// correct. Comparison is case-sensitive.
func ComputeScores(orders map[string][]string, correct string) map[string]int {
	scores := make(map[string]int, len(orders))
	for player, order := range orders {
		if len(order) > 0 && order[0] == correct {
			scores[player] = 1
		} else {
			scores[player] = 0
		}
	}
	return scores
}

// ShowResults sums ComputeScores over every round of the room, caches the
// totals and marks the game over. Enrolled players without guesses score 0.
func (e *Engine) ShowResults(code string) (map[string]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[code]
	if !ok || len(r.rounds) == 0 {
		return nil, fmt.Errorf("%w: room %s has no rounds", ErrUnknownRound, code)
	}

	totals := make(map[string]int, len(r.roster))
	for name := range r.roster {
		totals[name] = 0
	}
	for _, round := range r.rounds {
		for player, points := range ComputeScores(round.orders, round.CorrectAnswer) {
			totals[player] += points
		}
	}

	r.final = totals
	return maps.Clone(totals), nil
}

// FinalScores returns the cached totals, if the game is over.
func (e *Engine) FinalScores(code string) (map[string]int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[code]
	if !ok || r.final == nil {
		return nil, false
	}
	return maps.Clone(r.final), true
}

// Over reports whether results have been shown for the room.
func (e *Engine) Over(code string) bool {
	_, ok := e.FinalScores(code)
	return ok
}

// Forget drops everything known about a room.
func (e *Engine) Forget(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.rooms, code)
}
