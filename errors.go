/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Seednode/songsleuth/rounds"
	"github.com/Seednode/songsleuth/store"
)

func newLogger(cfg *Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logDate)

	if cfg.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zcfg.Build()
}

// logCommandError logs a failed command at a level matching its cause.
// Unknown rounds mean the caller broke the engine contract.
func logCommandError(logger *zap.Logger, event string, err error) {
	var precondition *preconditionError

	switch {
	case errors.Is(err, rounds.ErrUnknownRound):
		logger.Error("Engine contract violation", zap.String("event", event), zap.Error(err))
	case errors.As(err, &precondition), errors.Is(err, store.ErrNotFound):
		logger.Debug("Command rejected", zap.String("event", event), zap.Error(err))
	default:
		logger.Warn("Command failed", zap.String("event", event), zap.Error(err))
	}
}

// userMessage turns err into text that is safe to show to players.
func userMessage(err error) string {
	var precondition *preconditionError

	switch {
	case errors.As(err, &precondition):
		return precondition.msg
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
