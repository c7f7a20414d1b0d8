/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"slices"
	"testing"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
	"github.com/Seednode/songsleuth/theme"
)

func testRoom(themeText string) *store.Room {
	return &store.Room{
		Code:  "ABCDE",
		Theme: &themeText,
		Players: []store.Player{
			{ID: 1, Name: "Alice", IsHost: true},
			{ID: 2, Name: "Bo", Hardcore: true},
		},
		Songs: []store.Song{
			{ID: 1, URL: "https://example.com/a", Submitter: "Sam"},
			{ID: 2, URL: "https://example.com/b", Submitter: "Kim"},
		},
	}
}

func newTestSession() (*session, *rounds.Engine, *theme.Engine) {
	r, t := rounds.New(), theme.New()
	return newSession("ABCDE", r, t), r, t
}

func TestSessionPhases(t *testing.T) {
	s, _, _ := newTestSession()
	room := testRoom("Disney Movies")

	if _, err := s.advance(room); !errors.Is(err, errNotStarted) {
		t.Fatalf("advance in lobby = %v, want errNotStarted", err)
	}
	if _, err := s.finish(); !errors.Is(err, errNotStarted) {
		t.Fatalf("finish in lobby = %v, want errNotStarted", err)
	}

	if err := s.start(room); err != nil {
		t.Fatal(err)
	}
	if err := s.start(room); !errors.Is(err, errAlreadyStarted) {
		t.Fatalf("second start = %v, want errAlreadyStarted", err)
	}
	if s.phase != phaseBetweenRounds {
		t.Fatalf("phase = %s, want between-rounds", s.phase)
	}

	want := []*int64{ptr(int64(1)), ptr(int64(2)), nil}
	for i, w := range want {
		tr, err := s.advance(room)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}

		got, ok := s.activeSong()
		switch {
		case w == nil && (ok || tr.next != nil):
			t.Errorf("advance %d: active = %d, want none", i, got)
		case w != nil && (!ok || got != *w || tr.next == nil || *tr.next != *w):
			t.Errorf("advance %d: active = %d, want %d", i, got, *w)
		}

		if i > 0 && tr.finalized == nil {
			t.Errorf("advance %d: previous song not finalized", i)
		}
	}

	if s.phase != phaseBetweenRounds {
		t.Errorf("phase after last song = %s, want between-rounds", s.phase)
	}
	if _, err := s.advance(room); !errors.Is(err, errNoMoreSongs) {
		t.Errorf("advance past the end = %v, want errNoMoreSongs", err)
	}

	if _, err := s.finish(); err != nil {
		t.Fatal(err)
	}
	if s.phase != phaseFinished {
		t.Errorf("phase = %s, want finished", s.phase)
	}
	if _, err := s.advance(room); !errors.Is(err, errGameOver) {
		t.Errorf("advance after finish = %v, want errGameOver", err)
	}
}

func TestSessionHintOnLastSong(t *testing.T) {
	s, _, themes := newTestSession()
	room := testRoom("Disney Movies")

	if err := s.start(room); err != nil {
		t.Fatal(err)
	}

	tr, err := s.advance(room)
	if err != nil {
		t.Fatal(err)
	}
	if tr.hintReady {
		t.Error("hint sent before the last song")
	}

	tr, err = s.advance(room)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.hintReady || tr.hint != "D••••• M•••••" {
		t.Errorf("hint = %q (ready %v), want D••••• M•••••", tr.hint, tr.hintReady)
	}
	if got := themes.Hint("ABCDE"); got != tr.hint {
		t.Errorf("stored hint = %q", got)
	}

	// A song added late makes a new last song, but the hint is not repeated.
	room.Songs = append(room.Songs, store.Song{ID: 3, Submitter: "Sam"})
	s.register(room, room.Songs[2])

	tr, err = s.advance(room)
	if err != nil {
		t.Fatal(err)
	}
	if tr.next == nil || *tr.next != 3 {
		t.Fatalf("next = %v, want 3", tr.next)
	}
	if tr.hintReady {
		t.Error("hint sent twice")
	}
}

func TestSessionFinalizesHardcore(t *testing.T) {
	s, r, _ := newTestSession()
	room := testRoom("")

	if err := s.start(room); err != nil {
		t.Fatal(err)
	}
	if _, err := s.advance(room); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(r.Registered("ABCDE"), []int64{1, 2}) {
		t.Fatalf("registered = %v", r.Registered("ABCDE"))
	}
	if r.IsLocked("ABCDE", 1, "Bo") {
		t.Fatal("Bo locked before finalization")
	}

	tr, err := s.advance(room)
	if err != nil {
		t.Fatal(err)
	}
	if tr.finalized == nil || tr.finalized.SongID != 1 {
		t.Fatalf("finalized = %+v, want song 1", tr.finalized)
	}
	if !slices.Equal(tr.finalized.LockedNames, []string{"Bo"}) {
		t.Errorf("locked names = %v, want [Bo]", tr.finalized.LockedNames)
	}
	if tr.finalized.Total != 2 {
		t.Errorf("total = %d, want 2", tr.finalized.Total)
	}
}

func TestSessionClearsThemeLocks(t *testing.T) {
	s, _, themes := newTestSession()
	room := testRoom("Disney Movies")

	if err := s.start(room); err != nil {
		t.Fatal(err)
	}

	if res := themes.Guess("ABCDE", "Alice", "pixar", "Disney Movies"); !res.Consumed {
		t.Fatalf("guess = %+v, want consumed", res)
	}
	if res := themes.Guess("ABCDE", "Alice", "disney movies", "Disney Movies"); res.Reason != theme.ReasonRoundLocked {
		t.Fatalf("second guess reason = %q, want roundLocked", res.Reason)
	}

	if _, err := s.advance(room); err != nil {
		t.Fatal(err)
	}

	if themes.HasLockedThisRound("ABCDE", "Alice") {
		t.Error("round lock survived a song change")
	}
	if res := themes.Guess("ABCDE", "Alice", "disney movies", "Disney Movies"); !res.Correct {
		t.Errorf("guess in new round = %+v, want correct", res)
	}
}

func TestSessionRegisterInLobby(t *testing.T) {
	s, r, _ := newTestSession()
	room := testRoom("")

	s.register(room, room.Songs[0])
	if r.HasRound("ABCDE", 1) {
		t.Error("register before start should do nothing")
	}
}

func TestSessionReveal(t *testing.T) {
	s, _, _ := newTestSession()

	if got := s.revealedSongs(); got == nil || len(got) != 0 {
		t.Errorf("revealed = %v, want empty non-nil", got)
	}

	s.reveal(2)
	s.reveal(1)
	if got := s.reveal(2); !slices.Equal(got, []int64{2, 1}) {
		t.Errorf("revealed = %v, want [2 1]", got)
	}
}

func ptr[T any](v T) *T {
	return &v
}
