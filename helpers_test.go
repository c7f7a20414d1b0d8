/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
	"github.com/Seednode/songsleuth/theme"
)

const testWait = 5 * time.Second

func testConfig() *Config {
	return &Config{
		bind:            "127.0.0.1",
		cleanupInterval: time.Minute,
		databaseDriver:  "sqlite",
		port:            8080,
		storeTimeout:    5 * time.Second,
	}
}

func newTestManager(t *testing.T) *RoomManager {
	t.Helper()

	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "songsleuth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	m := newRoomManager(testConfig(), zap.NewNop(), st, rounds.New(), theme.New())
	t.Cleanup(m.shutdown)

	return m
}

type testServer struct {
	t   *testing.T
	m   *RoomManager
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	m := newTestManager(t)
	errs := make(chan error, 64)

	srv := httptest.NewServer(newRouter(m.cfg, m.log, m, errs))
	t.Cleanup(srv.Close)

	return &testServer{t: t, m: m, url: srv.URL}
}

type frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

// testConn is a websocket client that keeps frames it has read but not
// yet consumed.
type testConn struct {
	t       *testing.T
	conn    *websocket.Conn
	nextAck int64
	pending []frame
}

func (s *testServer) dial() *testConn {
	s.t.Helper()

	url := "ws" + strings.TrimPrefix(s.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		s.t.Fatalf("dial: %v", err)
	}
	s.t.Cleanup(func() { _ = conn.Close() })

	return &testConn{t: s.t, conn: conn}
}

func (tc *testConn) read() frame {
	tc.t.Helper()

	_ = tc.conn.SetReadDeadline(time.Now().Add(testWait))

	var f frame
	if err := tc.conn.ReadJSON(&f); err != nil {
		tc.t.Fatalf("read: %v", err)
	}
	return f
}

func (tc *testConn) write(event string, ack *int64, data any) {
	tc.t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		tc.t.Fatalf("marshal %s: %v", event, err)
	}

	msg := map[string]any{"event": event, "data": json.RawMessage(raw)}
	if ack != nil {
		msg["ack"] = *ack
	}
	if err := tc.conn.WriteJSON(msg); err != nil {
		tc.t.Fatalf("write %s: %v", event, err)
	}
}

// call sends a command and reads until its ack. It returns the ack data
// and every frame that arrived before it.
func (tc *testConn) call(event string, data any) (json.RawMessage, []frame) {
	tc.t.Helper()

	tc.nextAck++
	id := tc.nextAck
	tc.write(event, &id, data)

	before := tc.pending
	tc.pending = nil

	for {
		f := tc.read()
		if f.Event == evAck && f.Ack != nil && *f.Ack == id {
			return f.Data, before
		}
		before = append(before, f)
	}
}

// wait returns the first frame with the given event, reading more frames
// if none is pending.
func (tc *testConn) wait(event string) frame {
	tc.t.Helper()

	for i, f := range tc.pending {
		if f.Event == event {
			tc.pending = append(tc.pending[:i], tc.pending[i+1:]...)
			return f
		}
	}

	for {
		f := tc.read()
		if f.Event == event {
			return f
		}
		tc.pending = append(tc.pending, f)
	}
}

// join joins a room and fails the test unless it is acknowledged.
func (tc *testConn) join(code, name string, hardcore bool) []frame {
	tc.t.Helper()

	ack, frames := tc.call(cmdJoinRoom, joinRoomRequest{Code: code, Name: name, Hardcore: hardcore})
	if !ackOK(tc.t, ack) {
		tc.t.Fatalf("join %s as %s was rejected", code, name)
	}
	return frames
}

func (tc *testConn) createRoom(theme string) string {
	tc.t.Helper()

	ack, _ := tc.call(cmdCreateRoom, createRoomRequest{Theme: &theme})

	var res createRoomResult
	if err := json.Unmarshal(ack, &res); err != nil || res.Code == "" {
		tc.t.Fatalf("createRoom ack = %s (%v)", ack, err)
	}
	return res.Code
}

func ackOK(t *testing.T, raw json.RawMessage) bool {
	t.Helper()

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var res result
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unexpected ack %s", raw)
	}
	return res.Success
}

func find(frames []frame, event string) (frame, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return frame{}, false
}

func decodeFrame[T any](t *testing.T, f frame) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
	return v
}
