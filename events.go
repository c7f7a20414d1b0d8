/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
)

// Commands sent by clients.
const (
	cmdCreateRoom      = "createRoom"
	cmdJoinRoom        = "joinRoom"
	cmdAddSong         = "addSong"
	cmdRemoveSong      = "removeSong"
	cmdStartGame       = "startGame"
	cmdNextSong        = "nextSong"
	cmdPlaySong        = "playSong"
	cmdSelectOrder     = "selectOrder"
	cmdSubmitAllOrders = "submitAllOrders"
	cmdLockAnswer      = "lockAnswer"
	cmdUndoLock        = "undoLock"
	cmdShowResults     = "showResults"
	cmdThemeEdit       = "THEME_EDIT"
	cmdThemeGuess      = "THEME_GUESS"
	cmdThemeReveal     = "THEME_REVEAL"
)

// Events sent by the server.
const (
	evAck                   = "ack"
	evError                 = "error"
	evRoomData              = "roomData"
	evPlayerJoined          = "playerJoined"
	evSongAdded             = "songAdded"
	evSongRemoved           = "songRemoved"
	evGameStarted           = "gameStarted"
	evSongFinalized         = "songFinalized"
	evSongChanged           = "songChanged"
	evThemeRoundReset       = "THEME_ROUND_RESET"
	evThemeHintReady        = "THEME_HINT_READY"
	evPlaySong              = "playSong"
	evRevealedSongs         = "revealedSongs"
	evPlayerSubmitted       = "playerSubmitted"
	evPlayerGuessLocked     = "playerGuessLocked"
	evPlayerGuessUndo       = "playerGuessUndo"
	evGameOver              = "gameOver"
	evLockSnapshot          = "lockSnapshot"
	evThemeState            = "THEME_STATE"
	evThemeUpdated          = "THEME_UPDATED"
	evThemeGuessResult      = "THEME_GUESS_RESULT"
	evThemeGuessedThisRound = "THEME_GUESSED_THIS_ROUND"
	evThemeSolved           = "THEME_SOLVED"
	evThemeRevealed         = "THEME_REVEALED"
	evScoreUpdated          = "scoreUpdated"
)

// inbound is a frame received from a client.
type inbound struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// outbound is a frame sent to a client.
type outbound struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data"`
}

// Request payloads.

type roomRef struct {
	Code string `json:"code"`
}

type createRoomRequest struct {
	Theme         *string `json:"theme"`
	BackgroundURL *string `json:"backgroundUrl"`
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Hardcore bool   `json:"hardcore"`
}

type addSongRequest struct {
	Code      string `json:"code"`
	URL       string `json:"url"`
	Submitter string `json:"submitter"`
	Title     string `json:"title"`
}

type songRequest struct {
	Code       string `json:"code"`
	SongID     int64  `json:"songId"`
	PlayerName string `json:"playerName"`
}

type selectOrderRequest struct {
	Code       string   `json:"code"`
	SongID     int64    `json:"songId"`
	PlayerName string   `json:"playerName"`
	Order      []string `json:"order"`
}

type submitAllOrdersRequest struct {
	Code       string             `json:"code"`
	PlayerName string             `json:"playerName"`
	Guesses    map[int64][]string `json:"guesses"`
}

type themeEditRequest struct {
	Code  string `json:"code"`
	Theme string `json:"theme"`
}

type themeGuessRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
	Guess      string `json:"guess"`
}

// Response payloads.

type result struct {
	Success bool        `json:"success"`
	Song    *store.Song `json:"song,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type createRoomResult struct {
	Code          string  `json:"code"`
	Theme         *string `json:"theme"`
	BackgroundURL *string `json:"backgroundUrl,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomPayload struct {
	*store.Room
	Online []string `json:"online"`
}

type songRemovedPayload struct {
	SongID int64 `json:"songId"`
}

type songChangedPayload struct {
	SongID *int64 `json:"songId"`
}

type hintPayload struct {
	Hint string `json:"hint"`
}

type playSongPayload struct {
	SongID int64  `json:"songId"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

type revealedSongsPayload struct {
	SongIDs []int64 `json:"songIds"`
}

type playerPayload struct {
	PlayerName string `json:"playerName"`
}

type lockPayload struct {
	SongID     int64  `json:"songId"`
	PlayerName string `json:"playerName"`
	rounds.LockCount
}

type lockSnapshotPayload struct {
	SongID      int64    `json:"songId"`
	LockedNames []string `json:"lockedNames"`
	rounds.LockCount
}

type gameOverPayload struct {
	Scores      map[string]int `json:"scores"`
	ThemeScores map[string]int `json:"themeScores"`
}

type themePayload struct {
	Theme string `json:"theme"`
}

type themeStatePayload struct {
	Solved   []string `json:"solved"`
	Revealed bool     `json:"revealed"`
	Hint     string   `json:"hint"`
}

type themeSolvedPayload struct {
	PlayerName string   `json:"playerName"`
	Solved     []string `json:"solved"`
}

type scoreUpdatedPayload struct {
	ThemeScores map[string]int `json:"themeScores"`
}
