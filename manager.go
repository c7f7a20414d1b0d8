/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
	"github.com/Seednode/songsleuth/theme"
)

// RoomManager holds a hub per room code and the engines they share.
type RoomManager struct {
	cfg    *Config
	log    *zap.Logger
	store  store.Store
	rounds *rounds.Engine
	themes *theme.Engine

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newRoomManager(cfg *Config, logger *zap.Logger, st store.Store, r *rounds.Engine, t *theme.Engine) *RoomManager {
	return &RoomManager{
		cfg:    cfg,
		log:    logger,
		store:  st,
		rounds: r,
		themes: t,
		hubs:   make(map[string]*Hub),
	}
}

// hub returns the hub for code, starting one if needed.
func (m *RoomManager) hub(code string) *Hub {
	code = strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.hubs[code]; ok {
		return h
	}

	h := newHub(code, m)
	m.hubs[code] = h
	go h.run()

	m.log.Debug("Hub started", zap.String("room_code", code))

	return h
}

// connections returns the number of live connections in the room.
func (m *RoomManager) connections(code string) int {
	m.mu.Lock()
	h, ok := m.hubs[code]
	m.mu.Unlock()

	if !ok {
		return 0
	}
	return h.connections()
}

// online returns the names connected to the room.
func (m *RoomManager) online(code string) []string {
	m.mu.Lock()
	h, ok := m.hubs[code]
	m.mu.Unlock()

	if !ok {
		return []string{}
	}
	return h.onlineNames()
}

// codes returns the room codes that currently have a hub.
func (m *RoomManager) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.hubs))
	for code := range m.hubs {
		out = append(out, code)
	}
	return out
}

// retire stops the hub of code and forgets the room's in-memory state.
func (m *RoomManager) retire(code string) {
	m.mu.Lock()
	h, ok := m.hubs[code]
	delete(m.hubs, code)
	m.mu.Unlock()

	if ok {
		h.stop()
	}

	m.rounds.Forget(code)
	m.themes.Forget(code)
}

// shutdown stops every hub.
func (m *RoomManager) shutdown() {
	for _, code := range m.codes() {
		m.retire(code)
	}
}

// createRoom handles createRoom. The creator is not joined yet, so the room
// snapshot goes to the creator alone.
func (m *RoomManager) createRoom(c *Client, msg inbound) {
	var req createRoomRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.ack(msg.Ack, failureAck(cmdCreateRoom, errBadRequest))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.storeTimeout)
	defer cancel()

	room, err := m.store.CreateRoom(ctx, req.Theme, req.BackgroundURL)
	if err != nil {
		logCommandError(c.log, cmdCreateRoom, err)
		c.ack(msg.Ack, failureAck(cmdCreateRoom, err))
		return
	}

	c.log.Info("Room created", zap.String("room_code", room.Code))

	c.ack(msg.Ack, createRoomResult{
		Code:          room.Code,
		Theme:         room.Theme,
		BackgroundURL: room.BackgroundURL,
	})
	c.emit(evRoomData, roomPayload{Room: room, Online: []string{}})
}
