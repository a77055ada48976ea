package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// serverConfig is resolved from flags first, then overridden by CH_* environment variables.
type serverConfig struct {
	Addr      string `env:"CH_ADDR"`
	WorldID   string `env:"CH_WORLD_ID"`
	DataDir   string `env:"CH_DATA_DIR"`
	ConfigDir string `env:"CH_CONFIG_DIR"`

	TuningPath string `env:"CH_TUNING"`
	LayoutPath string `env:"CH_LAYOUT"`

	SnapshotPath       string `env:"CH_SNAPSHOT"`
	LoadLatestSnapshot bool   `env:"CH_LOAD_LATEST_SNAPSHOT"`

	DisableDB       bool `env:"CH_DISABLE_DB"`
	EnableAdminHTTP bool `env:"CH_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool `env:"CH_ENABLE_PPROF_HTTP"`
}

func parseConfig(args []string) (serverConfig, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var (
		envFile = fs.String("env_file", ".env", "optional .env file loaded before reading CH_* variables")
		cfg     serverConfig
	)
	fs.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	fs.StringVar(&cfg.WorldID, "world", "hold_1", "world id")
	fs.StringVar(&cfg.DataDir, "data", "./data", "runtime data directory")
	fs.StringVar(&cfg.ConfigDir, "configs", "./configs", "config directory")
	fs.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.LayoutPath, "layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", "", "path to snapshot to load (optional)")
	fs.BoolVar(&cfg.LoadLatestSnapshot, "load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", false, "disable the sqlite index")
	fs.BoolVar(&cfg.EnableAdminHTTP, "admin_http", defaultEnableAdminHTTP(), "serve loopback-only admin endpoints")
	fs.BoolVar(&cfg.EnablePprofHTTP, "pprof_http", false, "serve /debug/pprof")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}

	if err := loadDotEnv(*envFile); err != nil {
		return serverConfig{}, fmt.Errorf("load %s: %w", *envFile, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	if strings.TrimSpace(cfg.LayoutPath) == "" {
		cfg.LayoutPath = filepath.Join(cfg.ConfigDir, "layout.yaml")
	}
	if strings.TrimSpace(cfg.WorldID) == "" {
		return serverConfig{}, errors.New("world id is empty")
	}
	return cfg, nil
}

func (c serverConfig) worldDir() string { return filepath.Join(c.DataDir, "worlds", c.WorldID) }

func (c serverConfig) snapshotDir() string { return filepath.Join(c.worldDir(), "snapshots") }

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
