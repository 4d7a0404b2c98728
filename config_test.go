/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"tls pair", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 65536 }, false},
		{"no min players", func(c *Config) { c.minPlayers = 0 }, false},
		{"unlimited max players", func(c *Config) { c.maxPlayers = 0 }, true},
		{"max below min", func(c *Config) { c.maxPlayers = 2 }, false},
		{"negative rounds", func(c *Config) { c.rounds = -1 }, false},
		{"negative round timeout", func(c *Config) { c.roundTimeout = -time.Second }, false},
		{"negative grace", func(c *Config) { c.emptyGrace = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			err := cfg.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmd_Flags(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{
		"--min_players", "4",
		"--rounds=5",
		"--round-timeout", "30s",
		"--fold-plurals",
	}))

	assert.Equal(t, 4, cfg.minPlayers)
	assert.Equal(t, 5, cfg.rounds)
	assert.Equal(t, 30*time.Second, cfg.roundTimeout)
	assert.True(t, cfg.foldPlurals)
	assert.Equal(t, 16, cfg.maxPlayers)
	assert.True(t, cfg.uniqueNames)
	assert.NoError(t, cfg.validate())
}
