/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package theme runs the "guess the theme" side game of a room.
//
// Every player gets one guess per round. A correct guess solves the theme
// for that player permanently, until the host edits the theme text.
package theme

import (
	"maps"
	"slices"
	"sync"
)

// Guess rejection reasons.
const (
	ReasonNoTheme       = "noTheme"
	ReasonRevealed      = "revealed"
	ReasonAlreadySolved = "alreadySolved"
	ReasonRoundLocked   = "roundLocked"
)

// GuessResult is the outcome of one guess.
type GuessResult struct {
	Correct       bool   `json:"correct"`
	AlreadySolved bool   `json:"alreadySolved,omitempty"`
	Reason        string `json:"reason,omitempty"`

	// Consumed is true when the guess used up the player's attempt for
	// this round.
	Consumed bool `json:"-"`

	// Points is the player's theme score after the guess.
	Points int `json:"points"`
}

type state struct {
	solved   map[string]struct{}
	locked   map[string]struct{}
	revealed bool
	hint     string
	points   map[string]int
}

func newState() *state {
	return &state{
		solved: make(map[string]struct{}),
		locked: make(map[string]struct{}),
		points: make(map[string]int),
	}
}

// Engine holds theme state per room. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	rooms map[string]*state
}

func New() *Engine {
	return &Engine{rooms: make(map[string]*state)}
}

func (e *Engine) stateLocked(code string) *state {
	s, ok := e.rooms[code]
	if !ok {
		s = newState()
		e.rooms[code] = s
	}
	return s
}

// ResetForNewTheme clears solves, round locks, the reveal latch and the hint.
// Points already earned are kept.
func (e *Engine) ResetForNewTheme(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	points := e.stateLocked(code).points
	s := newState()
	s.points = points
	e.rooms[code] = s
}

func (e *Engine) LockPlayerThisRound(code, player string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stateLocked(code).locked[player] = struct{}{}
}

func (e *Engine) HasLockedThisRound(code, player string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.stateLocked(code).locked[player]
	return ok
}

// ClearRoundLocks gives every player a new attempt. Called on song change.
func (e *Engine) ClearRoundLocks(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.stateLocked(code).locked)
}

func (e *Engine) MarkSolved(code, player string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stateLocked(code).solved[player] = struct{}{}
}

func (e *Engine) AlreadySolved(code, player string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.stateLocked(code).solved[player]
	return ok
}

// SolvedList returns the sorted names of players who solved the theme.
func (e *Engine) SolvedList(code string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Sorted(maps.Keys(e.stateLocked(code).solved))
}

// SetRevealed latches the reveal flag. There is no way back.
func (e *Engine) SetRevealed(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stateLocked(code).revealed = true
}

func (e *Engine) IsRevealed(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stateLocked(code).revealed
}

func (e *Engine) SetHint(code, hint string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stateLocked(code).hint = hint
}

func (e *Engine) Hint(code string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stateLocked(code).hint
}

// Points returns a copy of the room's theme score ledger.
func (e *Engine) Points(code string) map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return maps.Clone(e.stateLocked(code).points)
}

// Forget drops the room's theme state.
func (e *Engine) Forget(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.rooms, code)
}

// Guess applies one guess against themeText. Checks run in order: missing
// theme, reveal, permanent solve, round lock. Otherwise the attempt is
// consumed and the normalized texts are compared.
func (e *Engine) Guess(code, player, guess, themeText string) GuessResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stateLocked(code)

	if Normalize(themeText) == "" {
		return GuessResult{Reason: ReasonNoTheme, Points: s.points[player]}
	}
	if s.revealed {
		return GuessResult{Reason: ReasonRevealed, Points: s.points[player]}
	}
	if _, ok := s.solved[player]; ok {
		return GuessResult{Correct: true, AlreadySolved: true, Reason: ReasonAlreadySolved, Points: s.points[player]}
	}
	if _, ok := s.locked[player]; ok {
		return GuessResult{Reason: ReasonRoundLocked, Points: s.points[player]}
	}

	s.locked[player] = struct{}{}

	if Normalize(guess) != Normalize(themeText) {
		return GuessResult{Consumed: true, Points: s.points[player]}
	}

	s.solved[player] = struct{}{}
	s.points[player]++

	return GuessResult{Correct: true, Consumed: true, Points: s.points[player]}
}
