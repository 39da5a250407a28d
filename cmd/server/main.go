// Command server runs the recipe API.
//
//	server [--config recipe.toml] serve
//	server [--config recipe.toml] createuser --email a@b.c --password secret [--name Ann]
//
// Settings come from the optional TOML file, a .env file and the
// environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/server"
	"github.com/sakif/recipe-api/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Recipe API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				Sources: cli.EnvVars("RECIPE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			createUserCmd(),
		},
	}
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(cmd *cli.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, cfg.Log.NewLogger(), nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set; generate one with: openssl rand -hex 32")
			}

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Start(ctx)
		},
	}
}

func createUserCmd() *cli.Command {
	return &cli.Command{
		Name:  "createuser",
		Usage: "Create a password account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true, Usage: "login email"},
			&cli.StringFlag{Name: "password", Required: true, Usage: "password (at least 5 characters)"},
			&cli.StringFlag{Name: "name", Usage: "display name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
			db, err := sqliteRepo.New(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			// Registration never issues a token, so no token service is needed.
			users := service.NewAuthService(db, nil, auth.NewPasswordService(), logger)
			user, err := users.Register(ctx, cmd.String("email"), cmd.String("password"), cmd.String("name"))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
}
