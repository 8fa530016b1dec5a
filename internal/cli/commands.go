package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/async-research/youtube-scraper/internal/analyzer"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/database"
	"github.com/async-research/youtube-scraper/internal/export"
	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/async-research/youtube-scraper/internal/scraper"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrQuit is returned by ExecuteCommand when the user asks to leave the shell.
var ErrQuit = errors.New("quit")

var errNoStore = errors.New("run store is not configured, set database.url")

// ScrapeFunc acquires a scraper for the duration of fn.
type ScrapeFunc func(ctx context.Context, fn func(ctx context.Context, s *scraper.Scraper) error) error

type Commander struct {
	repo     *database.Repository
	config   *config.Config
	scrape   ScrapeFunc
	out      io.Writer
	progress bool
	last     *scraper.SearchResult

	// color
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	blue   func(a ...interface{}) string
}

// NewCommanderWithConfig builds a Commander that drives Chrome. repo may be nil, in
// which case runs are not recorded and history/export are unavailable.
func NewCommanderWithConfig(repo *database.Repository, cfg *config.Config) *Commander {
	c := &Commander{
		repo:   repo,
		config: cfg,
		out:    os.Stdout,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		blue:   color.New(color.FgBlue).SprintFunc(),
	}
	c.scrape = func(ctx context.Context, fn func(ctx context.Context, s *scraper.Scraper) error) error {
		var store scraper.RunStore
		if c.repo != nil {
			store = c.repo
		}
		return scraper.Run(ctx, c.config, store, fn)
	}
	return c
}

func (c *Commander) WithScrapeFunc(fn ScrapeFunc) *Commander {
	c.scrape = fn
	return c
}

func (c *Commander) WithOutput(w io.Writer) *Commander {
	c.out = w
	return c
}

// WithProgress toggles the live progress bars drawn during a search.
func (c *Commander) WithProgress(on bool) *Commander {
	c.progress = on
	return c
}

// LastResult returns the result of the latest search run in this session.
func (c *Commander) LastResult() *scraper.SearchResult {
	return c.last
}

func (c *Commander) ExecuteCommand(ctx context.Context, command string, args []string) error {
	switch command {
	case "help", "h":
		c.showHelp()
	case "search", "s":
		req, err := ParseSearchArgs(args, c.config.Scrape)
		if err != nil {
			return err
		}
		return c.Search(ctx, req)
	case "video", "v":
		if len(args) != 1 {
			return errors.New("usage: video <id>")
		}
		return c.Video(ctx, args[0])
	case "comments", "c":
		if len(args) != 1 {
			return errors.New("usage: comments <id>")
		}
		return c.Comments(ctx, args[0])
	case "analyze", "analyse", "a":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return c.Analyze(path)
	case "history":
		limit := 10
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		return c.History(limit)
	case "export", "e":
		return c.Export()
	case "clear":
		c.clearScreen()
	case "quit", "exit", "q":
		fmt.Fprintf(c.out, "%s Goodbye!\n", c.green("✓"))
		return ErrQuit
	default:
		return errors.Errorf("unknown command: %s (type 'help' for available commands)", command)
	}
	return nil
}

func (c *Commander) showHelp() {
	fmt.Fprintln(c.out, c.blue("\nAvailable Commands:"))
	fmt.Fprintln(c.out, "\n"+c.cyan("Basic:"))
	fmt.Fprintln(c.out, "  help                       - Show this help message")
	fmt.Fprintln(c.out, "  clear                      - Clear screen")
	fmt.Fprintln(c.out, "  quit                       - Exit program")

	fmt.Fprintln(c.out, "\n"+c.cyan("Scraping:"))
	fmt.Fprintln(c.out, "  search <query> [flags]     - Search and scrape every result")
	fmt.Fprintln(c.out, "      --ids-only             - Only list the video ids")
	fmt.Fprintln(c.out, "      --comments             - Also collect comments")
	fmt.Fprintln(c.out, "      --scroll=N             - Scroll the results page N times")
	fmt.Fprintln(c.out, "  video <id>                 - Scrape metadata of one video")
	fmt.Fprintln(c.out, "  comments <id>              - Collect comments of one video")

	fmt.Fprintln(c.out, "\n"+c.cyan("Analysis:"))
	fmt.Fprintln(c.out, "  analyze [file.csv]         - Statistics of the last search or a saved table")

	fmt.Fprintln(c.out, "\n"+c.cyan("Data:"))
	fmt.Fprintln(c.out, "  history [n]                - Show the n latest runs")
	fmt.Fprintln(c.out, "  export                     - Export stored videos to CSV")
}

type SearchRequest struct {
	Query       string
	IDsOnly     bool
	Comments    bool
	ScrollDepth int
}

// ParseSearchArgs reads a shell search line. Words starting with "--" are flags,
// every other word is part of the query.
func ParseSearchArgs(args []string, defaults config.ScrapeConfig) (SearchRequest, error) {
	req := SearchRequest{
		Comments:    defaults.Comments,
		ScrollDepth: defaults.ScrollDepth,
	}

	var words []string
	for _, arg := range args {
		switch {
		case arg == "--ids-only":
			req.IDsOnly = true
		case arg == "--comments":
			req.Comments = true
		case arg == "--no-comments":
			req.Comments = false
		case strings.HasPrefix(arg, "--scroll="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "--scroll="))
			if err != nil || n < 0 {
				return req, errors.Errorf("invalid scroll depth %q", arg)
			}
			req.ScrollDepth = n
		case strings.HasPrefix(arg, "--"):
			return req, errors.Errorf("unknown flag %s", arg)
		default:
			words = append(words, arg)
		}
	}

	req.Query = strings.Join(words, " ")
	if req.Query == "" {
		return req, errors.New("usage: search <query> [--ids-only] [--comments] [--scroll=N]")
	}
	return req, nil
}

// Search runs a query and saves the result tables under the configured directories.
func (c *Commander) Search(ctx context.Context, req SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.New("search query is required")
	}

	fmt.Fprintf(c.out, "%s\n", c.cyan(fmt.Sprintf("Searching YouTube for %q...", req.Query)))

	var result *scraper.SearchResult
	err := c.scrape(ctx, func(ctx context.Context, s *scraper.Scraper) error {
		opts := scraper.SearchOptions{
			ScrollDepth: req.ScrollDepth,
			Metadata:    !req.IDsOnly,
			Comments:    req.Comments && !req.IDsOnly,
		}
		if c.progress {
			view := newProgressView(c.out)
			defer view.Stop()
			opts.Progress = view.Update
		}

		var err error
		result, err = s.Search(ctx, req.Query, opts)
		return err
	})
	if err != nil {
		return err
	}
	c.last = result

	if req.IDsOnly {
		for _, id := range result.VideoIDs {
			fmt.Fprintln(c.out, id)
		}
		fmt.Fprintf(c.out, "%s Found %d videos\n", c.green("✓"), len(result.VideoIDs))
		return nil
	}

	files, err := c.saveResult(result)
	c.printSearchResult(result, files)
	return err
}

// Watch repeats a search every interval until ctx is cancelled. Each round opens a
// fresh browser session and overwrites the results table of the query.
func (c *Commander) Watch(ctx context.Context, req SearchRequest, every time.Duration) error {
	if every <= 0 {
		return errors.Errorf("invalid interval %s", every)
	}

	fmt.Fprintf(c.out, "%s Repeating search %q every %s, interrupt to stop\n", c.cyan("↻"), req.Query, every)
	scheduler := scraper.NewScheduler(every, func(ctx context.Context) error {
		return c.Search(ctx, req)
	})
	if err := scheduler.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s Stopped after %d runs (%d failed)\n", c.green("✓"), scheduler.Runs(), scheduler.Failures())
	return nil
}

func (c *Commander) saveResult(result *scraper.SearchResult) ([]string, error) {
	var files []string

	path, err := export.NewVideoTable(result.Videos).Save(c.config.Export.ResultsDir, export.QueryFilename(result.Query))
	if err != nil {
		return files, err
	}
	if path != "" {
		files = append(files, path)
	}

	for _, vc := range result.Comments {
		path, err := export.NewCommentTable(vc.Comments).Save(c.config.Export.CommentsDir, export.VideoFilename(vc.VideoID))
		if err != nil {
			return files, err
		}
		if path != "" {
			files = append(files, path)
		}
	}
	return files, nil
}

func (c *Commander) printSearchResult(result *scraper.SearchResult, files []string) {
	fmt.Fprintln(c.out, c.green("\n✓ Search Complete!"))
	fmt.Fprintln(c.out, strings.Repeat("─", 40))
	fmt.Fprintf(c.out, "Query:          %s\n", result.Query)
	fmt.Fprintf(c.out, "Duration:       %.2f seconds\n", result.Duration.Seconds())
	fmt.Fprintf(c.out, "Videos found:   %d\n", len(result.VideoIDs))
	fmt.Fprintf(c.out, "Videos scraped: %s\n", c.green(strconv.Itoa(len(result.Videos))))

	comments := 0
	for _, vc := range result.Comments {
		comments += len(vc.Comments)
	}
	if comments > 0 {
		fmt.Fprintf(c.out, "Comments:       %d\n", comments)
	}
	if len(result.Failures) > 0 {
		fmt.Fprintf(c.out, "Failures:       %s\n", c.red(strconv.Itoa(len(result.Failures))))
	}

	if len(result.Videos) > 0 {
		c.renderVideos(result.Videos)
	}

	for _, f := range result.Failures {
		fmt.Fprintf(c.out, "%s %s\n", c.red("✗"), f.Error())
	}
	for _, f := range files {
		fmt.Fprintf(c.out, "%s Saved %s\n", c.green("✓"), f)
	}
}

// Video scrapes the metadata of a single video.
func (c *Commander) Video(ctx context.Context, videoID string) error {
	var previous *models.Video
	if c.repo != nil {
		var err error
		if previous, err = c.repo.GetVideo(videoID); err != nil {
			log.WithError(err).Warn("Failed to load stored video")
		}
	}

	var video models.Video
	err := c.scrape(ctx, func(ctx context.Context, s *scraper.Scraper) error {
		var err error
		video, err = s.VideoMetadata(ctx, videoID)
		return err
	})
	if err != nil {
		return err
	}

	if c.repo != nil {
		if err := c.repo.SaveVideo(&video); err != nil {
			log.WithError(err).Warn("Failed to store video")
		}
	}

	fmt.Fprintf(c.out, "\n%s %s\n", c.green("+"), video.Title)
	fmt.Fprintf(c.out, "  %s\n", video.URL())
	fmt.Fprintf(c.out, "  views:      %s\n", formatViews(video.ViewCount))
	if change, ok := viewChange(previous, video); ok {
		fmt.Fprintf(c.out, "  change:     %s since %s\n", change, humanize.Time(previous.ScrapedAt))
	}
	fmt.Fprintf(c.out, "  likes:      %s\n", formatCount(video.Likes))
	fmt.Fprintf(c.out, "  dislikes:   %s\n", formatCount(video.Dislikes))
	fmt.Fprintf(c.out, "  category:   %s\n", video.Category)
	fmt.Fprintf(c.out, "  published:  %s\n", video.PublishDate.Format("2006-01-02"))
	if len(video.Keywords) > 0 {
		fmt.Fprintf(c.out, "  keywords:   %s\n", strings.Join(video.Keywords, ", "))
	}
	if video.IsUnlisted {
		fmt.Fprintf(c.out, "  %s\n", c.yellow("unlisted"))
	}
	return nil
}

// Comments collects the comments of a single video and saves them.
func (c *Commander) Comments(ctx context.Context, videoID string) error {
	var comments []models.Comment
	err := c.scrape(ctx, func(ctx context.Context, s *scraper.Scraper) error {
		var err error
		comments, err = s.VideoComments(ctx, videoID)
		return err
	})
	if err != nil {
		c.renderStoredComments(videoID)
		return err
	}

	if c.repo != nil {
		if err := c.repo.SaveComments(videoID, comments); err != nil {
			log.WithError(err).Warn("Failed to store comments")
		}
	}

	c.renderComments(comments, 10)

	path, err := export.NewCommentTable(comments).Save(c.config.Export.CommentsDir, export.VideoFilename(videoID))
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintf(c.out, "%s No comments loaded for %s\n", c.yellow("⚠"), videoID)
		return nil
	}
	fmt.Fprintf(c.out, "%s Saved %d comments to %s\n", c.green("✓"), len(comments), path)
	return nil
}

// renderStoredComments shows what an earlier run kept for videoID.
func (c *Commander) renderStoredComments(videoID string) {
	if c.repo == nil {
		return
	}
	stored, err := c.repo.GetComments(videoID)
	if err != nil || len(stored) == 0 {
		return
	}
	fmt.Fprintf(c.out, "%s Live collection failed, showing %d stored comments\n", c.yellow("⚠"), len(stored))
	c.renderComments(stored, 10)
}

func viewChange(previous *models.Video, current models.Video) (string, bool) {
	if previous == nil || previous.ScrapedAt.IsZero() {
		return "", false
	}
	before, err := strconv.ParseInt(previous.ViewCount, 10, 64)
	if err != nil {
		return "", false
	}
	after, err := strconv.ParseInt(current.ViewCount, 10, 64)
	if err != nil {
		return "", false
	}
	diff := after - before
	if diff >= 0 {
		return "+" + humanize.Comma(diff), true
	}
	return humanize.Comma(diff), true
}

// Analyze prints statistics of the videos in path, or of the last search, or of
// everything in the run store, in that order of preference.
func (c *Commander) Analyze(path string) error {
	videos, source, err := c.analysisVideos(path)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		return errors.New("no videos to analyze, run a search first")
	}

	descriptive := analyzer.NewDescriptiveAnalyzer(videos)
	inferential := analyzer.NewInferentialAnalyzer(videos)

	fmt.Fprintln(c.out, c.blue(fmt.Sprintf("\nStatistics of %s", source)))
	fmt.Fprintln(c.out, strings.Repeat("─", 50))

	stats := descriptive.BasicStatistics()
	fmt.Fprintf(c.out, "Total videos:      %d\n", stats["total_videos"])
	fmt.Fprintf(c.out, "Categories:        %d\n", stats["unique_categories"])
	fmt.Fprintf(c.out, "Unlisted:          %d\n", stats["unlisted"])
	fmt.Fprintf(c.out, "Average views:     %s\n", humanize.Commaf(round1(stats["avg_views"].(float64))))
	fmt.Fprintf(c.out, "Average likes:     %.1f (%d videos)\n", stats["avg_likes"], stats["with_likes"])
	fmt.Fprintf(c.out, "Average dislikes:  %.1f (%d videos)\n", stats["avg_dislikes"], stats["with_dislikes"])
	fmt.Fprintf(c.out, "Max views:         %s\n", humanize.Commaf(stats["max_views"].(float64)))

	dist := descriptive.GetViewsDistribution()
	fmt.Fprintf(c.out, "Views median:      %s (IQR %s - %s)\n",
		humanize.Commaf(dist.Median), humanize.Commaf(dist.Percentile25), humanize.Commaf(dist.Percentile75))

	fmt.Fprintln(c.out, c.blue("\nTop 5 Videos by Views:"))
	c.renderVideos(descriptive.GetTopVideos(5))

	fmt.Fprintln(c.out, c.blue("\nCategories:"))
	for _, cat := range descriptive.GetCategoryBreakdown() {
		fmt.Fprintf(c.out, "  %-20s %d videos, %s avg views\n",
			cat.Category, cat.VideoCount, humanize.Commaf(round1(cat.AvgViews)))
	}

	fmt.Fprintln(c.out, c.cyan("\nCORRELATION ANALYSIS"))
	correlations := inferential.CorrelationAnalysis()
	names := make([]string, 0, len(correlations))
	for name := range correlations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := correlations[name]
		fmt.Fprintf(c.out, "%s: %.3f\n", strings.ReplaceAll(name, "_", " "), value)
		fmt.Fprintf(c.out, "   → %s\n", interpretCorrelation(value))
	}

	fmt.Fprintln(c.out, c.cyan("\nT-TEST ANALYSIS"))
	if cutoff, ok := medianUpload(videos); ok {
		fmt.Fprintln(c.out, "\nRecent vs older uploads:")
		c.printTTestResult(inferential.RecentVsOlderTTest(cutoff))
	}
	fmt.Fprintln(c.out, "\nListed vs unlisted:")
	c.printTTestResult(inferential.ListedVsUnlistedTTest())

	return nil
}

func (c *Commander) analysisVideos(path string) ([]models.Video, string, error) {
	if path != "" {
		table, err := export.ReadCSV(path)
		if err != nil {
			return nil, "", err
		}
		videos, err := table.Videos()
		return videos, path, err
	}
	if c.last != nil && len(c.last.Videos) > 0 {
		return c.last.Videos, fmt.Sprintf("search %q", c.last.Query), nil
	}
	if c.repo != nil {
		videos, err := c.repo.GetAllVideos()
		return videos, "the run store", err
	}
	return nil, "", nil
}

// medianUpload splits the videos into two halves by upload date.
func medianUpload(videos []models.Video) (time.Time, bool) {
	var dates []time.Time
	for _, v := range videos {
		if !v.UploadDate.IsZero() {
			dates = append(dates, v.UploadDate)
		}
	}
	if len(dates) < 4 {
		return time.Time{}, false
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates[len(dates)/2], true
}

func interpretCorrelation(value float64) string {
	absVal := value
	if absVal < 0 {
		absVal = -absVal
	}

	strength := ""
	switch {
	case absVal < 0.1:
		strength = "no"
	case absVal < 0.3:
		strength = "weak"
	case absVal < 0.5:
		strength = "moderate"
	case absVal < 0.7:
		strength = "strong"
	default:
		strength = "very strong"
	}

	direction := "positive"
	if value < 0 {
		direction = "negative"
	}

	return fmt.Sprintf("%s %s correlation", strength, direction)
}

func (c *Commander) printTTestResult(result *analyzer.TTestResult) {
	fmt.Fprintf(c.out, "  %s: n=%d, mean=%.2f, std=%.2f\n",
		result.Group1Name, result.Group1Count, result.Group1Mean, result.Group1StdDev)
	fmt.Fprintf(c.out, "  %s: n=%d, mean=%.2f, std=%.2f\n",
		result.Group2Name, result.Group2Count, result.Group2Mean, result.Group2StdDev)
	fmt.Fprintf(c.out, "  T-test: %.3f\n", result.TStatistic)
	fmt.Fprintf(c.out, "  Degrees of freedom: %.1f\n", result.DegreesOfFreedom)

	if result.Significant {
		fmt.Fprintf(c.out, "  Result: %s\n", c.green(result.Interpretation))
	} else {
		fmt.Fprintf(c.out, "  Result: %s\n", result.Interpretation)
	}
}

func (c *Commander) History(limit int) error {
	if c.repo == nil {
		return errNoStore
	}

	runs, err := c.repo.GetRecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "No runs recorded yet")
		return nil
	}

	c.renderRuns(runs)

	if count, err := c.repo.GetVideoCount(); err == nil {
		fmt.Fprintf(c.out, "Stored videos: %d\n", count)
	}

	latest := runs[0]
	if latest.Failures > 0 {
		failures, err := c.repo.GetRunFailures(latest.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "\nFailures of run %d:\n", latest.ID)
		for _, f := range failures {
			fmt.Fprintf(c.out, "  %s %s\n", c.red("✗"), f)
		}
	}
	return nil
}

func (c *Commander) Export() error {
	if c.repo == nil {
		return errNoStore
	}

	filename, err := export.NewExporter(c.repo).ExportToCSV(c.config.Export.ResultsDir)
	if err != nil {
		return err
	}
	if filename == "" {
		fmt.Fprintf(c.out, "%s Nothing to export\n", c.yellow("⚠"))
		return nil
	}

	if info, err := os.Stat(filename); err == nil {
		fmt.Fprintf(c.out, "%s Exported data to %s (%s)\n", c.green("✓"), filename, humanize.Bytes(uint64(info.Size())))
	} else {
		fmt.Fprintf(c.out, "%s Exported data to %s\n", c.green("✓"), filename)
	}
	return nil
}

func (c *Commander) clearScreen() {
	fmt.Fprint(c.out, "\033[H\033[2J")
	c.PrintWelcome()
}

func (c *Commander) PrintWelcome() {
	fmt.Fprintln(c.out, c.cyan("╔══════════════════════════════════════════╗"))
	fmt.Fprintln(c.out, c.cyan("║        YouTube Scraper & Analyzer        ║"))
	fmt.Fprintln(c.out, c.cyan("╚══════════════════════════════════════════╝"))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Type 'help' for available commands")
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
