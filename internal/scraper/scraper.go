package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	StageMetadata = "metadata"
	StageComments = "comments"
)

// RunStore records scraping runs. It is optional; a nil store disables recording.
type RunStore interface {
	CreateRun(query string) (int, error)
	SaveVideo(video *models.Video) error
	SaveComments(videoID string, comments []models.Comment) error
	CompleteRun(runID int, result *SearchResult) error
	FailRun(runID int, err error) error
}

type Scraper struct {
	nav     Navigator
	parser  *Parser
	config  config.ScrapeConfig
	limiter *rate.Limiter
	store   RunStore
}

func New(nav Navigator, scrapeConfig config.ScrapeConfig) *Scraper {
	return &Scraper{
		nav:     nav,
		parser:  NewParser(scrapeConfig.Selectors),
		config:  scrapeConfig,
		limiter: rate.NewLimiter(rate.Every(scrapeConfig.ItemPause), 1),
	}
}

// WithStore attaches a run store to the scraper.
func (s *Scraper) WithStore(store RunStore) *Scraper {
	s.store = store
	return s
}

func (s *Scraper) Close() error {
	return s.nav.Close()
}

// newNavigator opens the browser session Run hands to its Scraper.
var newNavigator = func(browser config.BrowserConfig, scrape config.ScrapeConfig) (Navigator, error) {
	return NewChromeSession(browser, scrape)
}

// Run acquires a Chrome session, hands a Scraper to fn and releases the session on
// every exit path.
func Run(ctx context.Context, cfg *config.Config, store RunStore, fn func(ctx context.Context, s *Scraper) error) (err error) {
	session, err := newNavigator(cfg.Browser, cfg.Scrape)
	if err != nil {
		return err
	}

	s := New(session, cfg.Scrape)
	if store != nil {
		s.WithStore(store)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, s)
}

type SearchOptions struct {
	ScrollDepth int
	Metadata    bool
	Comments    bool
	// Progress, when set, is called after every item of a stage.
	Progress func(stage string, done, total int)
}

type ItemFailure struct {
	VideoID string
	Stage   string
	Err     error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.VideoID, f.Err)
}

type VideoComments struct {
	VideoID  string
	Comments []models.Comment
}

type SearchResult struct {
	Query     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	VideoIDs  []string
	Videos    []models.Video
	Comments  []VideoComments
	Failures  []ItemFailure
}

func (s *Scraper) SearchURL(query string) string {
	return s.config.BaseURL + "/results?search_query=" + url.QueryEscape(query)
}

func (s *Scraper) WatchURL(videoID string) string {
	return s.config.BaseURL + "/watch?v=" + videoID
}

// Search lists the videos a query returns and, when asked, scrapes each one. Item
// failures are logged and recorded in the result; only a failure on the listing
// page itself is returned as an error.
func (s *Scraper) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	result := &SearchResult{
		Query:     query,
		StartTime: time.Now(),
	}

	runID := 0
	if s.store != nil {
		id, err := s.store.CreateRun(query)
		if err != nil {
			log.WithError(err).Warn("Failed to create run")
		} else {
			runID = id
		}
	}

	log.WithFields(log.Fields{"query": query, "scroll": opts.ScrollDepth}).Info("Searching")

	ids, err := s.listVideoIDs(ctx, query, opts.ScrollDepth)
	if err != nil {
		if runID > 0 {
			if ferr := s.store.FailRun(runID, err); ferr != nil {
				log.WithError(ferr).WithField("run", runID).Warn("Failed to record failed run")
			}
		}
		return nil, errors.Wrapf(err, "search %q", query)
	}
	result.VideoIDs = ids

	if opts.Metadata {
		s.scrapeMetadata(ctx, result, opts)
		if opts.Comments {
			s.scrapeComments(ctx, result, opts)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if runID > 0 {
		if err := s.store.CompleteRun(runID, result); err != nil {
			log.WithError(err).Warn("Failed to complete run")
		}
	}

	log.WithFields(log.Fields{
		"query":    query,
		"found":    len(result.VideoIDs),
		"scraped":  len(result.Videos),
		"failures": len(result.Failures),
		"duration": result.Duration.Round(time.Millisecond),
	}).Info("Search finished")

	return result, nil
}

func (s *Scraper) listVideoIDs(ctx context.Context, query string, scrollDepth int) ([]string, error) {
	if err := s.nav.Open(ctx, s.SearchURL(query)); err != nil {
		return nil, err
	}
	if err := s.nav.Scroll(ctx, scrollDepth); err != nil {
		return nil, err
	}
	if err := s.nav.WaitFor(ctx, s.config.Selectors.VideoTitle); err != nil {
		return nil, err
	}
	doc, err := s.nav.Document(ctx)
	if err != nil {
		return nil, err
	}
	return s.parser.ParseVideoIDs(doc), nil
}

func (s *Scraper) scrapeMetadata(ctx context.Context, result *SearchResult, opts SearchOptions) {
	for i, id := range result.VideoIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			result.Failures = append(result.Failures, ItemFailure{VideoID: id, Stage: StageMetadata, Err: err})
			continue
		}

		video, err := s.VideoMetadata(ctx, id)
		if err != nil {
			log.WithError(err).WithField("video_id", id).Error("Failed to scrape metadata")
			result.Failures = append(result.Failures, ItemFailure{VideoID: id, Stage: StageMetadata, Err: err})
		} else {
			log.WithFields(log.Fields{"video_id": id, "title": video.Title}).Debug("Scraped metadata")
			result.Videos = append(result.Videos, video)
			if s.store != nil {
				if err := s.store.SaveVideo(&video); err != nil {
					log.WithError(err).WithField("video_id", id).Warn("Failed to store video")
				}
			}
		}

		if opts.Progress != nil {
			opts.Progress(StageMetadata, i+1, len(result.VideoIDs))
		}
	}
}

func (s *Scraper) scrapeComments(ctx context.Context, result *SearchResult, opts SearchOptions) {
	for i, video := range result.Videos {
		id := video.VideoID
		if err := s.limiter.Wait(ctx); err != nil {
			result.Failures = append(result.Failures, ItemFailure{VideoID: id, Stage: StageComments, Err: err})
			continue
		}

		comments, err := s.VideoComments(ctx, id)
		if err != nil {
			log.WithError(err).WithField("video_id", id).Error("Failed to collect comments")
			result.Failures = append(result.Failures, ItemFailure{VideoID: id, Stage: StageComments, Err: err})
		} else {
			result.Comments = append(result.Comments, VideoComments{VideoID: id, Comments: comments})
			if s.store != nil {
				if err := s.store.SaveComments(id, comments); err != nil {
					log.WithError(err).WithField("video_id", id).Warn("Failed to store comments")
				}
			}
		}

		if opts.Progress != nil {
			opts.Progress(StageComments, i+1, len(result.Videos))
		}
	}
}

// VideoMetadata opens the watch page of one video and maps its embedded player
// response into a record.
func (s *Scraper) VideoMetadata(ctx context.Context, videoID string) (models.Video, error) {
	if err := s.nav.Open(ctx, s.WatchURL(videoID)); err != nil {
		return models.Video{}, err
	}
	if err := s.nav.WaitFor(ctx, s.config.Selectors.PlayerScript); err != nil {
		return models.Video{}, err
	}
	doc, err := s.nav.Document(ctx)
	if err != nil {
		return models.Video{}, err
	}

	likes, dislikes := s.parser.WatchLabels(doc)

	script, err := s.parser.PlayerScript(doc)
	if err != nil {
		return models.Video{}, err
	}
	player, err := ExtractPlayerResponse(script)
	if err != nil {
		return models.Video{}, err
	}
	return s.parser.MapVideo(player, likes, dislikes)
}

// VideoComments opens the watch page of one video, scrolls the comment section into
// view and collects the loaded comments.
func (s *Scraper) VideoComments(ctx context.Context, videoID string) ([]models.Comment, error) {
	if err := s.nav.Open(ctx, s.WatchURL(videoID)); err != nil {
		return nil, err
	}
	if err := s.nav.WaitFor(ctx, s.config.Selectors.CommentSection); err != nil {
		return nil, err
	}
	if err := s.nav.Scroll(ctx, s.config.CommentScrolls); err != nil {
		return nil, err
	}
	if err := s.nav.WaitFor(ctx, s.config.Selectors.CommentBlock); err != nil {
		return nil, err
	}
	doc, err := s.nav.Document(ctx)
	if err != nil {
		return nil, err
	}

	comments, err := s.parser.CollectComments(doc.Find(s.config.Selectors.CommentBlock))
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].VideoID = videoID
	}
	return comments, nil
}
