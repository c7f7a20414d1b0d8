/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"slices"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
	"github.com/Seednode/songsleuth/theme"
)

// preconditionError is an expected rejection of a command. Its message is
// shown to the player.
type preconditionError struct {
	msg string
}

func (e *preconditionError) Error() string {
	return e.msg
}

var (
	errBadRequest     = &preconditionError{"invalid request"}
	errNotStarted     = &preconditionError{"game has not started"}
	errAlreadyStarted = &preconditionError{"game already started"}
	errGameOver       = &preconditionError{"game is over"}
	errNoMoreSongs    = &preconditionError{"no more songs"}
	errNotActive      = &preconditionError{"song is not active"}
	errAlreadyLocked  = &preconditionError{"answer already locked"}
	errActiveSong     = &preconditionError{"cannot remove the active song"}
	errUnknownSong    = &preconditionError{"unknown song"}
	errRoomClosed     = &preconditionError{"room closed"}
)

type phase int

const (
	phaseLobby phase = iota
	phaseInRound
	phaseBetweenRounds
	phaseFinished
)

func (p phase) String() string {
	switch p {
	case phaseLobby:
		return "lobby"
	case phaseInRound:
		return "in-round"
	case phaseBetweenRounds:
		return "between-rounds"
	case phaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// session is the in-memory game state of one room. It is owned by the
// room's hub and never touched from another goroutine. Every transition
// updates the active song, the round engine and the theme engine together.
type session struct {
	code   string
	rounds *rounds.Engine
	themes *theme.Engine

	phase phase

	// active is the song being guessed. It is nil outside phaseInRound.
	active *int64

	// cursor is the id of the last song that became active. Songs are
	// played in id order, so the next song is the first with a larger id.
	cursor int64

	revealed []int64
	hintSent bool
}

func newSession(code string, r *rounds.Engine, t *theme.Engine) *session {
	return &session{
		code:   code,
		rounds: r,
		themes: t,
		phase:  phaseLobby,
	}
}

func (s *session) started() bool {
	return s.phase != phaseLobby
}

// activeSong returns the song being guessed, if any.
func (s *session) activeSong() (int64, bool) {
	if s.active == nil {
		return 0, false
	}
	return *s.active, true
}

func (s *session) isActive(songID int64) bool {
	id, ok := s.activeSong()
	return ok && id == songID
}

func (s *session) enroll(name string) {
	s.rounds.Enroll(s.code, name)
}

// start registers a round for every song of the room and leaves the lobby.
func (s *session) start(room *store.Room) error {
	if s.started() {
		return errAlreadyStarted
	}

	pool := room.Submitters()
	for _, song := range room.Songs {
		s.rounds.StartRound(s.code, song.ID, song.Submitter, pool)
	}
	for _, p := range room.Players {
		s.enroll(p.Name)
	}

	s.phase = phaseBetweenRounds

	return nil
}

// register adds a round for a song that was added after the game started.
func (s *session) register(room *store.Room, song store.Song) {
	if !s.started() {
		return
	}
	s.rounds.StartRound(s.code, song.ID, song.Submitter, room.Submitters())
}

// transition is everything nextSong has to tell the room.
type transition struct {
	finalized *rounds.Finalization
	next      *int64
	hint      string
	hintReady bool
}

// advance finalizes the active song and moves to the next one in playlist
// order, or to no song once the playlist is exhausted.
func (s *session) advance(room *store.Room) (transition, error) {
	var t transition

	switch s.phase {
	case phaseLobby:
		return t, errNotStarted
	case phaseFinished:
		return t, errGameOver
	}

	if id, ok := s.activeSong(); ok {
		fin, err := s.rounds.FinalizeSongForPlayers(s.code, id, room.HardcoreNames())
		if err != nil {
			return t, err
		}
		t.finalized = &fin
	}

	idx := slices.IndexFunc(room.Songs, func(song store.Song) bool {
		return song.ID > s.cursor
	})

	if idx < 0 {
		if t.finalized == nil {
			return t, errNoMoreSongs
		}
		s.active = nil
		s.phase = phaseBetweenRounds
		s.themes.ClearRoundLocks(s.code)
		return t, nil
	}

	song := room.Songs[idx]
	if !s.rounds.HasRound(s.code, song.ID) {
		return t, fmt.Errorf("%w: room %s song %d", rounds.ErrUnknownRound, s.code, song.ID)
	}

	id := song.ID
	s.active = &id
	s.cursor = id
	s.phase = phaseInRound
	t.next = &id

	s.themes.ClearRoundLocks(s.code)

	if idx == len(room.Songs)-1 && !s.hintSent {
		var text string
		if room.Theme != nil {
			text = *room.Theme
		}
		t.hint = theme.Obfuscate(text)
		t.hintReady = true
		s.hintSent = true
		s.themes.SetHint(s.code, t.hint)
	}

	return t, nil
}

// finish computes the final scores and ends the game.
func (s *session) finish() (map[string]int, error) {
	if !s.started() {
		return nil, errNotStarted
	}

	scores, err := s.rounds.ShowResults(s.code)
	if err != nil {
		return nil, err
	}

	s.active = nil
	s.phase = phaseFinished

	return scores, nil
}

// reveal records that a song was played to the room.
func (s *session) reveal(songID int64) []int64 {
	if !slices.Contains(s.revealed, songID) {
		s.revealed = append(s.revealed, songID)
	}
	return slices.Clone(s.revealed)
}

func (s *session) revealedSongs() []int64 {
	out := slices.Clone(s.revealed)
	if out == nil {
		out = []int64{}
	}
	return out
}

// resetTheme clears theme progress after the host edits the theme text.
func (s *session) resetTheme() {
	s.themes.ResetForNewTheme(s.code)
}
