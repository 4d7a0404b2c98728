/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/groupthink/game"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body, href string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"%s\">%s</a></body></html>", href, body))

	return htmlBody.String()
}

// statusFor maps a game error to the HTTP status a REST caller sees.
func statusFor(err error) int {
	switch game.Kind(err) {
	case "room_not_found", "player_not_found":
		return http.StatusNotFound
	case "invalid_phase", "duplicate_join", "room_full", "not_enough_players":
		return http.StatusConflict
	case "invalid_name":
		return http.StatusBadRequest
	case "not_host":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusFor(err))

	_ = json.NewEncoder(w).Encode(ErrorMessage{
		Type:    "error",
		Kind:    game.Kind(err),
		Message: err.Error(),
	})
}
