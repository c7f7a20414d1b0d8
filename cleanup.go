/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Seednode/songsleuth/store"
)

// Cleaner periodically deletes rooms nobody is connected to. A room is
// deleted once it has been seen empty at two consecutive sweeps.
type Cleaner struct {
	m        *RoomManager
	interval time.Duration
	log      *zap.Logger

	once  sync.Once
	empty map[string]bool
}

func newCleaner(m *RoomManager, interval time.Duration) *Cleaner {
	return &Cleaner{
		m:        m,
		interval: interval,
		log:      m.log.Named("cleanup"),
		empty:    make(map[string]bool),
	}
}

// Start launches the sweep loop. Later calls do nothing.
func (c *Cleaner) Start(ctx context.Context) {
	c.once.Do(func() {
		c.log.Info("Cleanup scheduled", zap.String("interval", c.interval.String()))
		go c.loop(ctx)
	})
}

func (c *Cleaner) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()

			deleted, err := c.sweep(ctx)
			if err != nil {
				c.log.Error("Sweep failed", zap.Error(err))
			}
			if deleted > 0 {
				c.log.Info("Sweep finished",
					zap.String("deleted", humanize.Comma(int64(deleted))+" rooms"),
					zap.Duration("took", time.Since(started)))
			}
		}
	}
}

// sweep runs one pass and returns the number of rooms deleted. Errors for
// single rooms are collected and do not stop the pass.
func (c *Cleaner) sweep(ctx context.Context) (int, error) {
	sctx, cancel := context.WithTimeout(ctx, c.m.cfg.storeTimeout)
	codes, err := c.m.store.RoomCodes(sctx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}

	var (
		errs    []error
		deleted int
		durable = make(map[string]bool, len(codes))
	)

	for _, code := range codes {
		durable[code] = true

		if c.m.connections(code) > 0 {
			delete(c.empty, code)
			continue
		}

		if !c.empty[code] {
			c.empty[code] = true
			continue
		}

		c.m.retire(code)

		dctx, cancel := context.WithTimeout(ctx, c.m.cfg.storeTimeout)
		err := c.m.store.DeleteRoom(dctx, code)
		cancel()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete room %s: %w", code, err))
			continue
		}

		delete(c.empty, code)
		deleted++

		c.log.Info("Room deleted (empty)", zap.String("room_code", code))
	}

	for code := range c.empty {
		if !durable[code] {
			delete(c.empty, code)
		}
	}

	// Hubs for codes that never existed, or whose room is gone.
	for _, code := range c.m.codes() {
		if !durable[code] && c.m.connections(code) == 0 {
			c.m.retire(code)
			c.log.Debug("Orphan hub retired", zap.String("room_code", code))
		}
	}

	return deleted, errors.Join(errs...)
}
