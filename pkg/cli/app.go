package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mchmarny/fairaudit/pkg/config"
	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "fairaudit"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	homeFlag = &urfave.StringFlag{
		Name:    "home",
		Usage:   "Directory for config, token and history (default: $HOME/.fairaudit)",
		Sources: urfave.EnvVars("FAIRAUDIT_HOME"),
	}

	dbFilePathFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Path to the Sqlite history file or a postgres:// DSN",
		Sources: urfave.EnvVars("FAIRAUDIT_DB"),
	}

	configFlag = &urfave.StringFlag{
		Name:  "config",
		Usage: "Path to the audit profile YAML (default: <home>/config.yaml)",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [text, json, yaml]",
		Value: formatText,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	HomeDir string
	DBPath  string
	Debug   bool
	Format  string
	Profile *config.Config

	db *sql.DB
}

// getDB opens the history store on first use.
func (c *appConfig) getDB() (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	if err := data.Init(c.DBPath); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	db, err := data.GetDB(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	c.db = db
	return db, nil
}

// dbName is the store location safe to print.
func (c *appConfig) dbName() string {
	if !data.IsPostgres(c.DBPath) {
		return c.DBPath
	}
	u, err := url.Parse(c.DBPath)
	if err != nil {
		return "postgres"
	}
	return u.Redacted()
}

func (c *appConfig) close() {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Audit classifier outcomes for group fairness across a protected attribute",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			debugFlag,
			homeFlag,
			dbFilePathFlag,
			configFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			auditCmd,
			columnsCmd,
			fetchCmd,
			authCmd,
			historyCmd,
			serverCmd,
			resetCmd,
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			debug := cmd.Bool(debugFlag.Name)
			if debug {
				initLogging(true)
			}

			home := cmd.String(homeFlag.Name)
			if home == "" {
				home = getHomeDir()
			}

			dbPath := cmd.String(dbFilePathFlag.Name)
			if dbPath == "" {
				dbPath = filepath.Join(home, data.DataFileName)
			}

			profile, err := loadProfile(home, cmd.String(configFlag.Name))
			if err != nil {
				return ctx, err
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				HomeDir: home,
				DBPath:  dbPath,
				Debug:   debug,
				Format:  parseFormat(cmd.String(formatFlag.Name)),
				Profile: profile,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok {
				cfg.close()
			}
			return nil
		},
	}
}

func loadProfile(home, path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	c, err := config.ReadOrCreate(home)
	if err != nil {
		return nil, fmt.Errorf("reading audit profile: %w", err)
	}
	return c, nil
}

func parseFormat(f string) string {
	switch f {
	case formatYAML, "yml":
		return formatYAML
	case formatJSON:
		return formatJSON
	default:
		return formatText
	}
}

func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func getHomeDir() string {
	dir, created, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	if created {
		slog.Debug("created home dir", "path", dir)
	}
	return dir
}

// textWriter is implemented by values with a human readable rendering.
type textWriter interface {
	writeText(w io.Writer) error
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	case formatText:
		if t, ok := v.(textWriter); ok {
			return t.writeText(w)
		}
	}
	e := yaml.NewEncoder(w)
	defer e.Close()
	return e.Encode(v)
}
