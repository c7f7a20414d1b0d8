/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Seednode/songsleuth/store"
)

// command is one client request routed to a room.
type command struct {
	client *Client
	event  string
	ack    *int64
	data   json.RawMessage
}

func knownCommand(event string) bool {
	switch event {
	case cmdJoinRoom, cmdAddSong, cmdRemoveSong, cmdStartGame, cmdNextSong,
		cmdPlaySong, cmdSelectOrder, cmdSubmitAllOrders, cmdLockAnswer,
		cmdUndoLock, cmdShowResults, cmdThemeEdit, cmdThemeGuess, cmdThemeReveal:
		return true
	}
	return false
}

// failureAck is the negative acknowledgement for event. Commands that
// answer with an object carry the message; the rest answer false.
func failureAck(event string, err error) any {
	switch event {
	case cmdAddSong, cmdRemoveSong, cmdPlaySong:
		return result{Success: false, Error: userMessage(err)}
	case cmdCreateRoom:
		return errorPayload{Message: userMessage(err)}
	default:
		return false
	}
}

// Hub owns one room. A single goroutine runs every command of the room in
// arrival order, so the session needs no locking of its own.
type Hub struct {
	code    string
	m       *RoomManager
	log     *zap.Logger
	session *session

	clients map[*Client]string

	// online is a copy of the connected player names, readable from any
	// goroutine.
	online atomic.Pointer[[]string]

	commands chan command
	leave    chan *Client
	quit     chan struct{}
	stopOnce sync.Once
}

func newHub(code string, m *RoomManager) *Hub {
	h := &Hub{
		code:     code,
		m:        m,
		log:      m.log.With(zap.String("room_code", code)),
		session:  newSession(code, m.rounds, m.themes),
		clients:  make(map[*Client]string),
		commands: make(chan command),
		leave:    make(chan *Client),
		quit:     make(chan struct{}),
	}
	h.online.Store(&[]string{})

	return h
}

func (h *Hub) run() {
	for {
		select {
		case cmd := <-h.commands:
			h.handle(cmd)

		case c := <-h.leave:
			h.handleLeave(c)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// submit hands a command to the hub, or refuses it if the hub is gone.
func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.quit:
		cmd.client.ack(cmd.ack, failureAck(cmd.event, errRoomClosed))
	}
}

// release removes a client from the room.
func (h *Hub) release(c *Client) {
	select {
	case h.leave <- c:
	case <-h.quit:
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

// connections returns the number of live connections joined to the room.
func (h *Hub) connections() int {
	return len(*h.online.Load())
}

func (h *Hub) onlineNames() []string {
	return slices.Clone(*h.online.Load())
}

func (h *Hub) updatePresence() {
	seen := make(map[string]struct{}, len(h.clients))
	for _, name := range h.clients {
		seen[name] = struct{}{}
	}
	names := slices.Sorted(maps.Keys(seen))
	h.online.Store(&names)
}

// closeAll disconnects every client of the hub.
func (h *Hub) closeAll() {
	for c := range h.clients {
		c.unbind(h)
		c.close()
		delete(h.clients, c)
	}
	h.updatePresence()
}

func (h *Hub) broadcast(event string, data any) {
	msg := outbound{Event: event, Data: data}
	for c := range h.clients {
		c.deliver(msg)
	}
}

func (h *Hub) roomPayload(room *store.Room) roomPayload {
	return roomPayload{Room: room, Online: h.onlineNames()}
}

func (h *Hub) handle(cmd command) {
	ctx, cancel := context.WithTimeout(context.Background(), h.m.cfg.storeTimeout)
	defer cancel()

	var (
		res any
		err error
	)

	switch cmd.event {
	case cmdJoinRoom:
		res, err = h.joinRoom(ctx, cmd)
	case cmdAddSong:
		res, err = h.addSong(ctx, cmd)
	case cmdRemoveSong:
		res, err = h.removeSong(ctx, cmd)
	case cmdStartGame:
		res, err = h.startGame(ctx, cmd)
	case cmdNextSong:
		res, err = h.nextSong(ctx, cmd)
	case cmdPlaySong:
		res, err = h.playSong(ctx, cmd)
	case cmdSelectOrder:
		res, err = h.selectOrder(cmd)
	case cmdSubmitAllOrders:
		res, err = h.submitAllOrders(cmd)
	case cmdLockAnswer:
		res, err = h.lockAnswer(cmd)
	case cmdUndoLock:
		res, err = h.undoLock(cmd)
	case cmdShowResults:
		res, err = h.showResults()
	case cmdThemeEdit:
		res, err = h.themeEdit(ctx, cmd)
	case cmdThemeGuess:
		res, err = h.themeGuess(ctx, cmd)
	case cmdThemeReveal:
		res, err = h.themeReveal(ctx)
	default:
		err = errBadRequest
	}

	if err != nil {
		logCommandError(h.log, cmd.event, err)
		res = failureAck(cmd.event, err)
	}

	cmd.client.ack(cmd.ack, res)
}

func decode(cmd command, v any) error {
	if err := json.Unmarshal(cmd.data, v); err != nil {
		return errBadRequest
	}
	return nil
}

// player returns the acting player: the payload's name, or the name the
// connection joined with.
func (h *Hub) player(cmd command, name string) (string, error) {
	if name = strings.TrimSpace(name); name != "" {
		return name, nil
	}
	if bound, joined := cmd.client.binding(); bound == h && joined != "" {
		return joined, nil
	}
	return "", errBadRequest
}

func (h *Hub) joinRoom(ctx context.Context, cmd command) (any, error) {
	var req joinRoomRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errBadRequest
	}

	player, created, err := h.m.store.FindOrCreatePlayer(ctx, h.code, name, req.Hardcore)
	if err != nil {
		return nil, err
	}

	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}

	c := cmd.client
	if prev := c.bind(h, name); prev != nil && prev != h {
		go prev.release(c)
	}
	h.clients[c] = name
	h.updatePresence()
	h.session.enroll(name)

	h.log.Info("Player joined",
		zap.String("player", name),
		zap.String("client_id", c.id),
		zap.Bool("created", created),
		zap.Bool("hardcore", player.Hardcore))

	// The joiner gets the full state before any live event.
	c.emit(evRoomData, h.roomPayload(room))
	c.emit(evRevealedSongs, revealedSongsPayload{SongIDs: h.session.revealedSongs()})

	if id, ok := h.session.activeSong(); ok {
		c.emit(evSongChanged, songChangedPayload{SongID: &id})

		counts, err := h.m.rounds.LockCounts(h.code, id)
		if err != nil {
			return nil, err
		}
		names, err := h.m.rounds.LockedPlayers(h.code, id)
		if err != nil {
			return nil, err
		}
		c.emit(evLockSnapshot, lockSnapshotPayload{SongID: id, LockedNames: names, LockCount: counts})
	}

	if scores, ok := h.m.rounds.FinalScores(h.code); ok {
		c.emit(evGameOver, gameOverPayload{Scores: scores, ThemeScores: h.m.themes.Points(h.code)})
	}

	c.emit(evThemeState, themeStatePayload{
		Solved:   h.m.themes.SolvedList(h.code),
		Revealed: h.m.themes.IsRevealed(h.code),
		Hint:     h.m.themes.Hint(h.code),
	})

	if created {
		h.broadcast(evPlayerJoined, player)
	}

	return true, nil
}

func (h *Hub) handleLeave(c *Client) {
	name, ok := h.clients[c]
	if !ok {
		return
	}
	delete(h.clients, c)
	c.unbind(h)
	h.updatePresence()

	h.log.Info("Player left", zap.String("player", name), zap.String("client_id", c.id))

	ctx, cancel := context.WithTimeout(context.Background(), h.m.cfg.storeTimeout)
	defer cancel()

	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn("Refreshing room after disconnect failed", zap.Error(err))
		}
		return
	}

	h.broadcast(evRoomData, h.roomPayload(room))
}

func (h *Hub) addSong(ctx context.Context, cmd command) (any, error) {
	var req addSongRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Submitter = strings.TrimSpace(req.Submitter)
	if req.URL == "" || req.Submitter == "" {
		return nil, errBadRequest
	}

	song, err := h.m.store.AddSong(ctx, h.code, req.URL, strings.TrimSpace(req.Title), req.Submitter)
	if err != nil {
		return nil, err
	}

	if h.session.started() {
		room, err := h.m.store.GetRoom(ctx, h.code)
		if err != nil {
			return nil, err
		}
		h.session.register(room, song)
	}

	h.broadcast(evSongAdded, song)

	return result{Success: true, Song: &song}, nil
}

func (h *Hub) removeSong(ctx context.Context, cmd command) (any, error) {
	var req songRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	if h.session.isActive(req.SongID) {
		return nil, errActiveSong
	}

	if err := h.m.store.RemoveSong(ctx, h.code, req.SongID); err != nil {
		return nil, err
	}

	h.broadcast(evSongRemoved, songRemovedPayload{SongID: req.SongID})

	return result{Success: true}, nil
}

func (h *Hub) startGame(ctx context.Context, _ command) (any, error) {
	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}

	if err := h.session.start(room); err != nil {
		return nil, err
	}

	h.log.Info("Game started", zap.Int("songs", len(room.Songs)), zap.Int("players", len(room.Players)))

	h.broadcast(evGameStarted, h.roomPayload(room))

	return true, nil
}

func (h *Hub) nextSong(ctx context.Context, _ command) (any, error) {
	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}

	t, err := h.session.advance(room)
	if err != nil {
		return nil, err
	}

	if t.finalized != nil {
		h.broadcast(evSongFinalized, t.finalized)
	}
	h.broadcast(evSongChanged, songChangedPayload{SongID: t.next})
	h.broadcast(evThemeRoundReset, struct{}{})
	if t.hintReady {
		h.broadcast(evThemeHintReady, hintPayload{Hint: t.hint})
	}

	h.log.Debug("Song changed", zap.Int64p("song_id", t.next))

	return true, nil
}

func (h *Hub) playSong(ctx context.Context, cmd command) (any, error) {
	var req songRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}

	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}
	song, ok := room.Song(req.SongID)
	if !ok {
		return nil, errUnknownSong
	}

	revealed := h.session.reveal(song.ID)

	h.broadcast(evPlaySong, playSongPayload{SongID: song.ID, URL: song.URL, Title: song.Title})
	h.broadcast(evRevealedSongs, revealedSongsPayload{SongIDs: revealed})

	return result{Success: true}, nil
}

func (h *Hub) selectOrder(cmd command) (any, error) {
	var req selectOrderRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	name, err := h.player(cmd, req.PlayerName)
	if err != nil {
		return nil, err
	}

	if !h.session.isActive(req.SongID) {
		return nil, errNotActive
	}
	if h.m.rounds.IsLocked(h.code, req.SongID, name) {
		return nil, errAlreadyLocked
	}

	if err := h.m.rounds.StoreOrder(h.code, req.SongID, name, req.Order); err != nil {
		return nil, err
	}

	return true, nil
}

// submitAllOrders is the bulk path. It is not gated on the active song.
func (h *Hub) submitAllOrders(cmd command) (any, error) {
	var req submitAllOrdersRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	name, err := h.player(cmd, req.PlayerName)
	if err != nil {
		return nil, err
	}

	ids := slices.Sorted(maps.Keys(req.Guesses))
	for _, id := range ids {
		if !h.m.rounds.HasRound(h.code, id) {
			return nil, errUnknownSong
		}
	}
	for _, id := range ids {
		if err := h.m.rounds.StoreOrder(h.code, id, name, req.Guesses[id]); err != nil {
			return nil, err
		}
	}

	h.broadcast(evPlayerSubmitted, playerPayload{PlayerName: name})

	return true, nil
}

func (h *Hub) lockAnswer(cmd command) (any, error) {
	return h.toggleLock(cmd, true)
}

func (h *Hub) undoLock(cmd command) (any, error) {
	return h.toggleLock(cmd, false)
}

func (h *Hub) toggleLock(cmd command, lock bool) (any, error) {
	var req songRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	name, err := h.player(cmd, req.PlayerName)
	if err != nil {
		return nil, err
	}
	if !h.session.isActive(req.SongID) {
		return nil, errNotActive
	}

	var (
		ok    bool
		event string
	)
	if lock {
		ok, err = h.m.rounds.ManualLock(h.code, req.SongID, name)
		event = evPlayerGuessLocked
	} else {
		ok, err = h.m.rounds.UndoManualLock(h.code, req.SongID, name)
		event = evPlayerGuessUndo
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return false, nil
	}

	counts, err := h.m.rounds.LockCounts(h.code, req.SongID)
	if err != nil {
		return nil, err
	}

	h.broadcast(event, lockPayload{SongID: req.SongID, PlayerName: name, LockCount: counts})

	return true, nil
}

func (h *Hub) showResults() (any, error) {
	scores, err := h.session.finish()
	if err != nil {
		return nil, err
	}

	h.log.Info("Game over", zap.Int("players", len(scores)))

	h.broadcast(evGameOver, gameOverPayload{Scores: scores, ThemeScores: h.m.themes.Points(h.code)})

	return true, nil
}

func (h *Hub) themeEdit(ctx context.Context, cmd command) (any, error) {
	var req themeEditRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}

	if err := h.m.store.UpdateTheme(ctx, h.code, req.Theme); err != nil {
		return nil, err
	}
	h.session.resetTheme()

	h.broadcast(evThemeUpdated, themePayload{Theme: req.Theme})

	return true, nil
}

func (h *Hub) themeGuess(ctx context.Context, cmd command) (any, error) {
	var req themeGuessRequest
	if err := decode(cmd, &req); err != nil {
		return nil, err
	}
	name, err := h.player(cmd, req.PlayerName)
	if err != nil {
		return nil, err
	}

	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}
	var text string
	if room.Theme != nil {
		text = *room.Theme
	}

	res := h.m.themes.Guess(h.code, name, req.Guess, text)
	cmd.client.emit(evThemeGuessResult, res)

	if res.Consumed {
		h.broadcast(evThemeGuessedThisRound, playerPayload{PlayerName: name})
	}
	if res.Correct && !res.AlreadySolved {
		h.log.Info("Theme solved", zap.String("player", name))
		h.broadcast(evThemeSolved, themeSolvedPayload{PlayerName: name, Solved: h.m.themes.SolvedList(h.code)})
		h.broadcast(evScoreUpdated, scoreUpdatedPayload{ThemeScores: h.m.themes.Points(h.code)})
	}

	return true, nil
}

func (h *Hub) themeReveal(ctx context.Context) (any, error) {
	room, err := h.m.store.GetRoom(ctx, h.code)
	if err != nil {
		return nil, err
	}
	var text string
	if room.Theme != nil {
		text = *room.Theme
	}

	h.m.themes.SetRevealed(h.code)

	h.broadcast(evThemeRevealed, themePayload{Theme: text})

	return true, nil
}
