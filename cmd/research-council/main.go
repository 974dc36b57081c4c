// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-council CLI. It drives
// idea generation runs, gate decisions, council auto-revision and
// resubmission, and serves the same operations over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/schema"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

var rootCmd = &cobra.Command{
	Use:   "research-council",
	Short: "Generate, gate and revise research idea dossiers",
	Long: `research-council drafts research idea dossiers with an LLM provider,
checks each pitch against its required header block (Gate 1), scores the
review council's memos (Gate 4), and manages auto-revision, resubmission
and dossier snapshots.

Everything is stored in a workspace directory: a SQLite database, exported
Markdown dossiers under ideas/, snapshots under ideas/<id>/versions/ and
agent mailboxes under mail/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cfg.Log, os.Stderr))

		s, err := secrets.Load(cfg.SecretsDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-council.yaml or ~/.config/research-council/config.yaml)")
	rootCmd.PersistentFlags().String("workspace", "", "workspace directory (default .)")
	rootCmd.PersistentFlags().String("passphrase", "", "passphrase for stored credentials (or RESEARCH_COUNCIL_PASSPHRASE)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	rootCmd.PersistentFlags().Bool("yaml", false, "print results as YAML")

	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("passphrase", rootCmd.PersistentFlags().Lookup("passphrase"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("yaml", rootCmd.PersistentFlags().Lookup("yaml"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-council")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-council"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_COUNCIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	viper.SetDefault("workspace", ".")
	viper.SetDefault("secrets_dir", ".secrets/")
	viper.SetDefault("provider.timeout", 120*time.Second)
	viper.SetDefault("provider.rate_limit_retries", 3)
	viper.SetDefault("provider.max_tokens", 1024)
	viper.SetDefault("council.mode", "ideation")
	viper.SetDefault("server.addr", "127.0.0.1:8080")
	viper.SetDefault("server.base_path", "/api")
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func loadConfig() (types.AppConfig, error) {
	var cfg types.AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	return cfg, nil
}

func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app bundles the opened workspace for one command.
type app struct {
	cfg       types.AppConfig
	store     *store.Store
	workspace *artifacts.Workspace
	providers *provider.Registry
	svc       *pipeline.Service
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := schema.Default()
	if cfg.Council.SchemaFile != "" {
		if s, err = schema.Load(cfg.Council.SchemaFile); err != nil {
			return nil, err
		}
	}

	st, err := store.OpenWorkspace(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	ws := artifacts.New(cfg.Workspace)
	reg := provider.NewRegistry(provider.OptionsFromConfig(cfg.Provider))
	svc, err := pipeline.New(pipeline.Options{
		Store:     st,
		Workspace: ws,
		Providers: reg,
		Schema:    s,
		Mode:      cfg.Council.Mode,
		Keys:      loadedSecrets,
		Logger:    slog.Default(),
		Progress:  os.Stdout,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: st, workspace: ws, providers: reg, svc: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// session returns a session for the configured passphrase, or nil when none
// was given. Operations that need a stored credential report the lock.
func session() (*secrets.Session, error) {
	pass := viper.GetString("passphrase")
	if pass == "" {
		return nil, nil
	}
	return secrets.NewSession(pass)
}

// printResult writes v as JSON or YAML when requested and otherwise calls
// table to render it for a terminal.
func printResult(v any, table func()) error {
	switch {
	case viper.GetBool("json"):
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case viper.GetBool("yaml"):
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		table()
		return nil
	}
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// truncate shortens s to n runes for table cells.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
