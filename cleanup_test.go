/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Seednode/songsleuth/store"
)

func TestSweepDeletesEmptyRooms(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	idle, err := s.m.store.CreateRoom(ctx, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.m.rounds.StartRound(idle.Code, 1, "Sam", []string{"Sam"})
	s.m.themes.SetRevealed(idle.Code)

	c := s.dial()
	busy := c.createRoom("")
	c.join(busy, "Alice", false)

	cl := newCleaner(s.m, time.Minute)

	deleted, err := cl.sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Fatalf("first sweep deleted %d rooms, want 0", deleted)
	}
	if _, err := s.m.store.GetRoom(ctx, idle.Code); err != nil {
		t.Fatalf("idle room gone after one sweep: %v", err)
	}

	deleted, err = cl.sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("second sweep deleted %d rooms, want 1", deleted)
	}

	if _, err := s.m.store.GetRoom(ctx, idle.Code); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetRoom after sweep = %v, want ErrNotFound", err)
	}
	if s.m.rounds.HasRound(idle.Code, 1) {
		t.Error("rounds of deleted room still known")
	}
	if s.m.themes.IsRevealed(idle.Code) {
		t.Error("theme state of deleted room still known")
	}

	if _, err := s.m.store.GetRoom(ctx, busy); err != nil {
		t.Errorf("connected room was deleted: %v", err)
	}
}

func TestSweepNeedsConsecutiveEmptyPasses(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	c := s.dial()
	code := c.createRoom("")

	cl := newCleaner(s.m, time.Minute)

	// Empty once.
	if _, err := cl.sweep(ctx); err != nil {
		t.Fatal(err)
	}

	// Occupied in between.
	c.join(code, "Alice", false)
	if _, err := cl.sweep(ctx); err != nil {
		t.Fatal(err)
	}

	// Empty again, but only once since it was last occupied.
	s.m.retire(code)
	deleted, err := cl.sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Fatalf("deleted %d, want 0", deleted)
	}

	deleted, err = cl.sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d, want 1", deleted)
	}
}

func TestSweepRetiresOrphanHubs(t *testing.T) {
	m := newTestManager(t)

	m.hub("NOPE2")
	if !slices.Contains(m.codes(), "NOPE2") {
		t.Fatal("hub not started")
	}

	if _, err := newCleaner(m, time.Minute).sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	if slices.Contains(m.codes(), "NOPE2") {
		t.Error("orphan hub survived the sweep")
	}
}
