/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/songsleuth/store"
)

const qrSize = 320

// serveRoom returns a read-only snapshot of a room.
func serveRoom(cfg *Config, m *RoomManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		code := strings.ToUpper(p.ByName("code"))

		ctx, cancel := context.WithTimeout(r.Context(), cfg.storeTimeout)
		defer cancel()

		room, err := m.store.GetRoom(ctx, code)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			m.log.Warn("Room lookup failed", zap.String("room_code", code), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		data, err := json.Marshal(roomPayload{Room: room, Online: m.online(code)})
		if err != nil {
			errs <- err

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		m.log.Debug("Served room",
			zap.String("room_code", code),
			zap.String("size", humanize.Bytes(uint64(written))),
			zap.String("remote", realIP(r)),
			zap.Duration("took", time.Since(startTime)))
	}
}

// serveRoomQR returns a PNG QR code pointing at the join URL of a room.
func serveRoomQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := strings.ToUpper(p.ByName("code"))

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		target := scheme + "://" + r.Host + cfg.prefix + "/?room=" + url.QueryEscape(code)

		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}
