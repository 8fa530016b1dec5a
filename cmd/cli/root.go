package main

import (
	"strings"
	"time"

	"github.com/async-research/youtube-scraper/internal/cli"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	headless   bool
	timeout    time.Duration

	commander *cli.Commander
)

var rootCmd = &cobra.Command{
	Use:           "ytscrape",
	Short:         "ytscrape searches YouTube and scrapes video metadata and comments into CSV tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(configFile); err != nil {
			log.WithError(err).Warn("Could not load config file, using default configuration")
			config.LoadDefault()
		}
		cfg := config.Get()

		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = headless
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Browser.Timeout = timeout
		}

		setupLogging(cfg)

		repo, err := initDatabase(cfg)
		if err != nil {
			return err
		}

		commander = cli.NewCommanderWithConfig(repo, cfg)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return database.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run Chrome without a window")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Maximum wait for a page element")

	searchCmd.Flags().Bool("ids-only", false, "Only list the video ids of the results")
	searchCmd.Flags().Bool("comments", false, "Also collect the comments of every video")
	searchCmd.Flags().Int("scroll", 0, "Scroll the results page this many times before reading it")
	searchCmd.Flags().Duration("every", 0, "Repeat the search at this interval until interrupted")
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")

	// bare ytscrape opens the shell
	rootCmd.RunE = shellCmd.RunE
	rootCmd.AddCommand(searchCmd, videoCmd, commentsCmd, analyzeCmd, historyCmd, exportCmd, shellCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search YouTube and scrape every result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		req := cli.SearchRequest{
			Query:       strings.Join(args, " "),
			Comments:    cfg.Scrape.Comments,
			ScrollDepth: cfg.Scrape.ScrollDepth,
		}
		req.IDsOnly, _ = cmd.Flags().GetBool("ids-only")
		if cmd.Flags().Changed("comments") {
			req.Comments, _ = cmd.Flags().GetBool("comments")
		}
		if cmd.Flags().Changed("scroll") {
			req.ScrollDepth, _ = cmd.Flags().GetInt("scroll")
		}

		if every, _ := cmd.Flags().GetDuration("every"); every > 0 {
			return commander.Watch(cmd.Context(), req, every)
		}
		return commander.WithProgress(true).Search(cmd.Context(), req)
	},
}

var videoCmd = &cobra.Command{
	Use:   "video <id>",
	Short: "Scrape the metadata of one video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commander.Video(cmd.Context(), args[0])
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <id>",
	Short: "Collect the comments of one video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commander.Comments(cmd.Context(), args[0])
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [results.csv]",
	Short: "Print statistics of a saved results table or of the stored videos",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return commander.Analyze(path)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return commander.History(limit)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored video to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return commander.Export()
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startInteractiveMode(cmd.Context(), commander.WithProgress(true), config.Get())
	},
}
