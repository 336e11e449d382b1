// Command scenectl runs one-shot scene searches and inspects the agent's
// library from the terminal.
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/scenelocate/scenelocate-agent/internal/config"
	"github.com/scenelocate/scenelocate-agent/internal/db"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/logging"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "scenectl",
		Usage:   "Find scenes in local videos and drive the player to them",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Agent data directory (database, config.yaml, mpv socket)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Scene search backend base URL",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for diagnostics on stderr",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			jumpCommand(),
			pingCommand(),
			libraryCommand(),
			historyCommand(),
			exportCommand(),
			formatCommand(),
			parseCommand(),
		},
	}
}

// env is the agent state a command works against.
type env struct {
	cfg    *config.EnvConfig
	logger *slog.Logger
	db     *db.DB
	repo   library.Repository
}

func loadConfig(cmd *cli.Command) (*config.EnvConfig, error) {
	return config.NewWithOverrides(config.Overrides{
		DataDir:    cmd.String("data-dir"),
		BackendURL: cmd.String("backend"),
		MPVSocket:  cmd.String("mpv-socket"),
		MPVPath:    cmd.String("mpv-path"),
	})
}

func newLogger(cmd *cli.Command) *slog.Logger {
	return logging.NewLoggerTo(stderr(cmd), cmd.String("log-level"))
}

// openEnv opens the agent database, creating the data dir if needed.
func openEnv(cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, err
	}
	logger := newLogger(cmd)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		db:     database,
		repo:   library.NewRepository(database),
	}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
