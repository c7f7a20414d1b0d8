/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Seednode/songsleuth/store"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errNotActive, "song is not active"},
		{fmt.Errorf("wrapped: %w", errGameOver), "game is over"},
		{fmt.Errorf("get room: %w", store.ErrNotFound), "not found"},
		{errors.New("disk on fire"), "internal error"},
	}

	for _, tt := range tests {
		if got := userMessage(tt.err); got != tt.want {
			t.Errorf("userMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFailureAck(t *testing.T) {
	if got, ok := failureAck(cmdAddSong, errBadRequest).(result); !ok || got.Success || got.Error != "invalid request" {
		t.Errorf("addSong failure = %#v", got)
	}
	if got, ok := failureAck(cmdCreateRoom, errBadRequest).(errorPayload); !ok || got.Message != "invalid request" {
		t.Errorf("createRoom failure = %#v", got)
	}
	if got := failureAck(cmdLockAnswer, errNotActive); got != false {
		t.Errorf("lockAnswer failure = %#v, want false", got)
	}
}
