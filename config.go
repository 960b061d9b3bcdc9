/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Seednode/gamenight/internal/calendar"
	"github.com/Seednode/gamenight/internal/signup"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var storeKinds = []string{"memory", "redis", "sqlite", "badger", "s3"}

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	roster                string
	timezone              string
	openDay               string
	openTime              string
	closeDay              string
	closeTime             string
	maxSlots              int
	minPlayers            int
	priorityCarryover     bool
	allowClosedUnregister bool
	rolloverInterval      time.Duration

	store         string
	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	sqlitePath    string
	badgerDir     string
	s3Bucket      string
	s3Key         string
	s3Region      string
	s3Endpoint    string
	s3AccessKey   string
	s3SecretKey   string

	adminToken string
	metrics    bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roster == "" {
		return errors.New("a roster file must be provided with --roster")
	}
	if c.maxSlots < 1 {
		return fmt.Errorf("invalid max slots (must be at least 1): %d", c.maxSlots)
	}
	if c.minPlayers < 1 || c.minPlayers > c.maxSlots {
		return fmt.Errorf("invalid min players (must be between 1-%d inclusive): %d", c.maxSlots, c.minPlayers)
	}
	if c.rolloverInterval < 0 {
		return fmt.Errorf("invalid rollover interval: %s", c.rolloverInterval)
	}

	if !slices.Contains(storeKinds, c.store) {
		return fmt.Errorf("invalid store (must be one of %s): %s", strings.Join(storeKinds, ", "), c.store)
	}
	switch {
	case c.store == "redis" && c.redisAddr == "":
		return errors.New("--redis-addr is required when --store=redis")
	case c.store == "s3" && c.s3Bucket == "":
		return errors.New("--s3-bucket is required when --store=s3")
	case c.store == "s3" && (c.s3AccessKey == "") != (c.s3SecretKey == ""):
		return errors.New("both --s3-access-key and --s3-secret-key must be provided together")
	}

	if _, err := c.window(); err != nil {
		return err
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// window builds the weekly sign-up window from the day, time and timezone flags.
func (c *Config) window() (calendar.Window, error) {
	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		return calendar.Window{}, fmt.Errorf("invalid timezone: %w", err)
	}

	openDay, err := calendar.ParseWeekday(c.openDay)
	if err != nil {
		return calendar.Window{}, err
	}
	closeDay, err := calendar.ParseWeekday(c.closeDay)
	if err != nil {
		return calendar.Window{}, err
	}
	openHour, openMinute, err := calendar.ParseClock(c.openTime)
	if err != nil {
		return calendar.Window{}, err
	}
	closeHour, closeMinute, err := calendar.ParseClock(c.closeTime)
	if err != nil {
		return calendar.Window{}, err
	}

	w := calendar.Window{
		OpenDay:     openDay,
		OpenHour:    openHour,
		OpenMinute:  openMinute,
		CloseDay:    closeDay,
		CloseHour:   closeHour,
		CloseMinute: closeMinute,
		Location:    loc,
	}

	return w, w.Validate()
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GAMENIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gamenight",
		Short:         "Weekly sign-up sheet for a capacity-limited game night.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GAMENIGHT_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GAMENIGHT_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GAMENIGHT_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GAMENIGHT_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GAMENIGHT_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GAMENIGHT_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GAMENIGHT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GAMENIGHT_VERSION)")

	fs.StringVarP(&cfg.roster, "roster", "r", "", "path to the yaml player roster (env: GAMENIGHT_ROSTER)")
	fs.StringVar(&cfg.timezone, "timezone", "Asia/Jerusalem", "timezone the sign-up window is defined in (env: GAMENIGHT_TIMEZONE)")
	fs.StringVar(&cfg.openDay, "open-day", "friday", "weekday registration opens (env: GAMENIGHT_OPEN_DAY)")
	fs.StringVar(&cfg.openTime, "open-time", "18:00", "time of day registration opens (env: GAMENIGHT_OPEN_TIME)")
	fs.StringVar(&cfg.closeDay, "close-day", "monday", "weekday registration closes (env: GAMENIGHT_CLOSE_DAY)")
	fs.StringVar(&cfg.closeTime, "close-time", "22:00", "time of day registration closes (env: GAMENIGHT_CLOSE_TIME)")
	fs.IntVar(&cfg.maxSlots, "max-slots", signup.DefaultMaxSlots, "number of seats at the table (env: GAMENIGHT_MAX_SLOTS)")
	fs.IntVar(&cfg.minPlayers, "min-players", signup.DefaultMinPlayers, "players needed for a game to happen (env: GAMENIGHT_MIN_PLAYERS)")
	fs.BoolVar(&cfg.priorityCarryover, "priority-carryover", true, "pre-seat players who missed the previous game (env: GAMENIGHT_PRIORITY_CARRYOVER)")
	fs.BoolVar(&cfg.allowClosedUnregister, "allow-closed-unregister", false, "allow players to drop out while registration is closed (env: GAMENIGHT_ALLOW_CLOSED_UNREGISTER)")
	fs.DurationVar(&cfg.rolloverInterval, "rollover-interval", 0, "also check for a new cycle on this interval, 0 to only check on requests (env: GAMENIGHT_ROLLOVER_INTERVAL)")

	fs.StringVar(&cfg.store, "store", "memory", "storage backend, one of "+strings.Join(storeKinds, ", ")+" (env: GAMENIGHT_STORE)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis server address (env: GAMENIGHT_REDIS_ADDR)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: GAMENIGHT_REDIS_PASSWORD)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: GAMENIGHT_REDIS_DB)")
	fs.StringVar(&cfg.redisPrefix, "redis-prefix", "", "prefix for redis keys (env: GAMENIGHT_REDIS_PREFIX)")
	fs.StringVar(&cfg.sqlitePath, "sqlite-path", "gamenight.db", "path to the sqlite database (env: GAMENIGHT_SQLITE_PATH)")
	fs.StringVar(&cfg.badgerDir, "badger-dir", "gamenight.badger", "directory for the badger database (env: GAMENIGHT_BADGER_DIR)")
	fs.StringVar(&cfg.s3Bucket, "s3-bucket", "", "s3 bucket holding the state object (env: GAMENIGHT_S3_BUCKET)")
	fs.StringVar(&cfg.s3Key, "s3-key", "", "object key for the state object (env: GAMENIGHT_S3_KEY)")
	fs.StringVar(&cfg.s3Region, "s3-region", "us-east-1", "s3 region (env: GAMENIGHT_S3_REGION)")
	fs.StringVar(&cfg.s3Endpoint, "s3-endpoint", "", "custom s3 endpoint, for s3-compatible services (env: GAMENIGHT_S3_ENDPOINT)")
	fs.StringVar(&cfg.s3AccessKey, "s3-access-key", "", "s3 access key id (env: GAMENIGHT_S3_ACCESS_KEY)")
	fs.StringVar(&cfg.s3SecretKey, "s3-secret-key", "", "s3 secret access key (env: GAMENIGHT_S3_SECRET_KEY)")

	fs.StringVar(&cfg.adminToken, "admin-token", "", "bearer token for the credential reset endpoint, empty to disable (env: GAMENIGHT_ADMIN_TOKEN)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "serve prometheus metrics at /metrics (env: GAMENIGHT_METRICS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamenight v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
