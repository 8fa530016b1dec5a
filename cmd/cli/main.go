package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/async-research/youtube-scraper/internal/cli"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/database"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		altPath := filepath.Join(execDir, path)

		if _, err := os.Stat(altPath); err == nil {
			path = altPath
		} else {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	return config.Load(path)
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// initDatabase opens the run store when one is configured. Without database.url
// the scraper runs without recording anything.
func initDatabase(cfg *config.Config) (*database.Repository, error) {
	if cfg.Database.URL == "" {
		log.Debug("No database configured, runs will not be recorded")
		return nil, nil
	}

	err := database.Initialize(database.Config{
		Driver:             cfg.Database.Driver,
		URL:                cfg.Database.URL,
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdle:            cfg.Database.MaxIdle,
		ConnectionLifetime: cfg.Database.ConnectionLifetime,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}
	return database.NewRepository(), nil
}

func startInteractiveMode(ctx context.Context, commander *cli.Commander, cfg *config.Config) error {
	commander.PrintWelcome()

	scanner := bufio.NewScanner(os.Stdin)
	prompt := cfg.App.CLI.Prompt
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for {
		fmt.Print(yellow("\n" + prompt + " "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		command := strings.ToLower(parts[0])
		args := parts[1:]

		err := commander.ExecuteCommand(ctx, command, args)
		if errors.Is(err, cli.ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Printf("%s %v\n", red("✗"), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
