package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlibekovAA/taskforge/backend/internal/common/bootstrap"
	"github.com/AlibekovAA/taskforge/backend/internal/common/config"
	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	srv "github.com/AlibekovAA/taskforge/backend/internal/common/server"
)

const usage = `usage: taskforge <command> [flags]

commands:
  serve     run the HTTP API (default)
  migrate   apply pending database migrations and exit
  cleanup   delete expired refresh tokens; -every repeats until interrupted
`

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	log, err := bootstrap.NewLogger(os.Getenv("LOG_DIR"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log)
	case "cleanup":
		err = cleanup(ctx, cfg, log, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func serve(ctx context.Context, cfg config.AppConfig, log *logger.Logger) error {
	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, app.Pool, log); err != nil {
			return err
		}
	}

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	app.StartBackground(bgCtx)

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), app.Handler())

	return srv.Run(ctx, server, log, func(context.Context) error {
		cancelBackground()
		return nil
	})
}

func migrate(ctx context.Context, cfg config.AppConfig, log *logger.Logger) error {
	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return db.Migrate(ctx, app.Pool, log)
}

func cleanup(ctx context.Context, cfg config.AppConfig, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	every := fs.Duration("every", 0, "repeat the purge at this interval instead of exiting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if *every > 0 {
		app.Purger.Run(ctx, *every)
		return nil
	}

	_, err = app.Purger.PurgeExpired(ctx)
	return err
}
