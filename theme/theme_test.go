/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package theme

import (
	"slices"
	"testing"
)

func TestObfuscate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Disney Movies", "D••••• M•••••"},
		{"", ""},
		{"   ", ""},
		{"a", "a"},
		{"  Songs   about  rain ", "S•••• a•••• r•••"},
		{"Días", "D•••"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Obfuscate(tc.in); got != tc.want {
				t.Errorf("Obfuscate(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Café, Días!", "cafe dias"},
		{"  DISNEY   movies ", "disney movies"},
		{"Rock'n'Roll", "rocknroll"},
		{"80s hits", "80s hits"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGuessProtocol(t *testing.T) {
	const theme = "Disney Movies"
	e := New()

	res := e.Guess("R", "Alice", "pixar", theme)
	if res.Correct || !res.Consumed || res.Reason != "" {
		t.Fatalf("wrong guess = %+v", res)
	}

	res = e.Guess("R", "Alice", "disney movies", theme)
	if res.Reason != ReasonRoundLocked || res.Consumed {
		t.Fatalf("second guess in round = %+v, want roundLocked", res)
	}

	e.ClearRoundLocks("R")

	res = e.Guess("R", "Alice", "  disney, MOVIES!", theme)
	if !res.Correct || !res.Consumed || res.Points != 1 {
		t.Fatalf("correct guess = %+v", res)
	}
	if !e.AlreadySolved("R", "Alice") {
		t.Error("Alice should be solved")
	}

	// Solved players keep getting confirmed, locked or not.
	for range 3 {
		res = e.Guess("R", "Alice", "anything", theme)
		if !res.Correct || !res.AlreadySolved || res.Reason != ReasonAlreadySolved {
			t.Fatalf("guess after solve = %+v", res)
		}
	}
	if got := e.Points("R")["Alice"]; got != 1 {
		t.Errorf("points = %d, want 1", got)
	}

	e.SetRevealed("R")
	res = e.Guess("R", "Bo", theme, theme)
	if res.Correct || res.Reason != ReasonRevealed {
		t.Errorf("guess after reveal = %+v", res)
	}
	res = e.Guess("R", "Alice", theme, theme)
	if res.Reason != ReasonRevealed {
		t.Errorf("reveal should take priority over solved, got %+v", res)
	}
}

func TestGuessNoTheme(t *testing.T) {
	e := New()

	res := e.Guess("R", "Alice", "anything", "")
	if res.Reason != ReasonNoTheme || res.Consumed {
		t.Fatalf("guess without theme = %+v", res)
	}
	if e.HasLockedThisRound("R", "Alice") {
		t.Error("attempt should not be consumed without a theme")
	}
}

func TestOneGuessPerRound(t *testing.T) {
	e := New()
	players := []string{"Alice", "Bo", "Cy"}

	for round := range 3 {
		for _, p := range players {
			if res := e.Guess("R", p, "nope", "Theme"); !res.Consumed {
				t.Fatalf("round %d: first guess of %s not consumed", round, p)
			}
			if res := e.Guess("R", p, "nope", "Theme"); res.Reason != ReasonRoundLocked {
				t.Fatalf("round %d: second guess of %s = %+v", round, p, res)
			}
		}
		e.ClearRoundLocks("R")
	}
}

func TestResetForNewTheme(t *testing.T) {
	e := New()

	e.Guess("R", "Alice", "old", "Old")
	e.LockPlayerThisRound("R", "Bo")
	e.SetRevealed("R")
	e.SetHint("R", "O••")

	e.ResetForNewTheme("R")

	if e.AlreadySolved("R", "Alice") || e.HasLockedThisRound("R", "Bo") {
		t.Error("solves and locks should be cleared")
	}
	if e.IsRevealed("R") || e.Hint("R") != "" {
		t.Error("reveal and hint should be cleared")
	}
	if got := e.Points("R")["Alice"]; got != 1 {
		t.Errorf("points = %d, want 1 kept across themes", got)
	}

	res := e.Guess("R", "Alice", "new", "New")
	if !res.Correct || res.Points != 2 {
		t.Errorf("guess on new theme = %+v", res)
	}
}

func TestSolvedList(t *testing.T) {
	e := New()
	e.MarkSolved("R", "Cy")
	e.MarkSolved("R", "Alice")
	e.MarkSolved("R", "Alice")
	e.MarkSolved("OTHER", "Bo")

	if got := e.SolvedList("R"); !slices.Equal(got, []string{"Alice", "Cy"}) {
		t.Errorf("SolvedList = %v", got)
	}

	e.Forget("R")
	if got := e.SolvedList("R"); len(got) != 0 {
		t.Errorf("SolvedList after Forget = %v", got)
	}
}
