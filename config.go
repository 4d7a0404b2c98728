/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	emptyGrace     time.Duration
	foldPlurals    bool
	maxPlayers     int
	metrics        bool
	minPlayers     int
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	prompts        string
	roundTimeout   time.Duration
	rounds         int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	uniqueNames    bool
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < 1 {
		return fmt.Errorf("invalid --min-players (must be at least 1): %d", c.minPlayers)
	}
	if c.maxPlayers != 0 && c.maxPlayers < c.minPlayers {
		return fmt.Errorf("--max-players (%d) must be 0 or at least --min-players (%d)", c.maxPlayers, c.minPlayers)
	}
	if c.rounds < 0 {
		return fmt.Errorf("invalid --rounds (must be 0 or more): %d", c.rounds)
	}
	if c.roundTimeout < 0 || c.emptyGrace < 0 || c.playerTimeout < 0 || c.sessionTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GROUPTHINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "groupthink",
		Short:         "A party game where everyone tries to write the same synonym as everyone else.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GROUPTHINK_BIND)")
	fs.DurationVar(&cfg.emptyGrace, "empty-grace", 2*time.Minute, "time before rooms without players are removed (env: GROUPTHINK_EMPTY_GRACE)")
	fs.BoolVar(&cfg.foldPlurals, "fold-plurals", false, "treat singular and plural answers as the same word (env: GROUPTHINK_FOLD_PLURALS)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 16, "maximum players per room, 0 for unlimited (env: GROUPTHINK_MAX_PLAYERS)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "serve prometheus metrics at /metrics (env: GROUPTHINK_METRICS)")
	fs.IntVar(&cfg.minPlayers, "min-players", 3, "connected players required to start a game (env: GROUPTHINK_MIN_PLAYERS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 10*time.Minute, "time before disconnected players are removed (env: GROUPTHINK_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GROUPTHINK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GROUPTHINK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GROUPTHINK_PROFILE)")
	fs.StringVar(&cfg.prompts, "prompts", "", "newline-delimited prompt file, instead of the built-in list (env: GROUPTHINK_PROMPTS)")
	fs.DurationVar(&cfg.roundTimeout, "round-timeout", 60*time.Second, "time before a round is revealed without waiting for everyone, 0 to wait forever (env: GROUPTHINK_ROUND_TIMEOUT)")
	fs.IntVar(&cfg.rounds, "rounds", 0, "rounds per game, 0 for unlimited (env: GROUPTHINK_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended (env: GROUPTHINK_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GROUPTHINK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GROUPTHINK_TLS_KEY)")
	fs.BoolVar(&cfg.uniqueNames, "unique-names", true, "reject players whose name is already taken in the room (env: GROUPTHINK_UNIQUE_NAMES)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GROUPTHINK_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GROUPTHINK_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("groupthink v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
