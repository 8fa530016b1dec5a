package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/database"
	"github.com/async-research/youtube-scraper/internal/export"
	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/async-research/youtube-scraper/internal/scraper"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type pageNavigator struct {
	pages   map[string]string
	current string
}

func (p *pageNavigator) Open(ctx context.Context, url string) error {
	page, ok := p.pages[url]
	if !ok {
		return errors.Errorf("no page for %s", url)
	}
	p.current = page
	return nil
}

func (p *pageNavigator) WaitFor(ctx context.Context, selector string) error {
	doc, err := p.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return errors.Wrapf(scraper.ErrNavigationTimeout, "wait for %s", selector)
	}
	return nil
}

func (p *pageNavigator) Scroll(ctx context.Context, times int) error { return nil }

func (p *pageNavigator) Document(ctx context.Context) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.current))
}

func (p *pageNavigator) Close() error { return nil }

func watchHTML(id, title, views, date string, comments ...string) string {
	return fmt.Sprintf(`<html><body><script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":%q,"title":%q,"shortDescription":"d"},`+
		`"microformat":{"playerMicroformatRenderer":{"viewCount":%q,"category":"Music","publishDate":%q,"uploadDate":%q,"isUnlisted":false}}};`+
		`var meta = document.createElement('meta');</script>`+
		`<div id="likes" aria-label="42 likes"></div>`+
		`<ytd-comments id="comments">%s</ytd-comments></body></html>`, id, title, views, date, date, strings.Join(comments, ""))
}

func commentHTML(author, content string) string {
	return `<ytd-comment-thread-renderer><a id="author-text"><span>` + author + `</span></a>` +
		`<yt-formatted-string id="content-text">` + content + `</yt-formatted-string>` +
		`<span id="vote-count-middle">7</span></ytd-comment-thread-renderer>`
}

type harness struct {
	cmd *Commander
	out *bytes.Buffer
	cfg *config.Config
}

func newHarness(t *testing.T, repo *database.Repository) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Scrape.ItemPause = 0
	cfg.Scrape.ScrollPause = 0
	cfg.Scrape.Selectors.Likes = "#likes"
	cfg.Scrape.Selectors.Dislikes = "#dislikes"
	cfg.Export.ResultsDir = filepath.Join(t.TempDir(), "results")
	cfg.Export.CommentsDir = filepath.Join(t.TempDir(), "comments")

	nav := &pageNavigator{pages: map[string]string{
		cfg.Scrape.BaseURL + "/results?search_query=rick+roll": `<html><body>` +
			`<a id="video-title" href="/watch?v=aaa">A</a>` +
			`<a id="video-title" href="/watch?v=bbb">B</a>` +
			`<a id="video-title" href="/watch?v=ccc">C</a></body></html>`,
		cfg.Scrape.BaseURL + "/watch?v=aaa": watchHTML("aaa", "Never Gonna", "1500", "2009-10-24", commentHTML("Rick", "classic")),
		cfg.Scrape.BaseURL + "/watch?v=bbb": `<html><body><script>var x = 1;</script></body></html>`,
		cfg.Scrape.BaseURL + "/watch?v=ccc": watchHTML("ccc", "Give You Up", "30", "2012-01-01", commentHTML("Astley", "again")),
	}}

	out := &bytes.Buffer{}
	cmd := NewCommanderWithConfig(repo, cfg).
		WithOutput(out).
		WithScrapeFunc(func(ctx context.Context, fn func(ctx context.Context, s *scraper.Scraper) error) error {
			s := scraper.New(nav, cfg.Scrape)
			if repo != nil {
				s.WithStore(repo)
			}
			return fn(ctx, s)
		})

	return &harness{cmd: cmd, out: out, cfg: cfg}
}

func newStore(t *testing.T) *database.Repository {
	t.Helper()
	conn, err := database.Open(database.Config{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "runs.db"), MaxIdle: 1})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return database.NewRepositoryWithDB(conn)
}

func TestParseSearchArgs(t *testing.T) {
	defaults := config.Default().Scrape

	tests := []struct {
		name    string
		args    []string
		want    SearchRequest
		wantErr bool
	}{
		{
			name: "plain query",
			args: []string{"never", "gonna"},
			want: SearchRequest{Query: "never gonna"},
		},
		{
			name: "flags anywhere",
			args: []string{"--ids-only", "rickroll", "--scroll=3", "--comments"},
			want: SearchRequest{Query: "rickroll", IDsOnly: true, Comments: true, ScrollDepth: 3},
		},
		{name: "no query", args: []string{"--comments"}, wantErr: true},
		{name: "bad scroll", args: []string{"x", "--scroll=-1"}, wantErr: true},
		{name: "unknown flag", args: []string{"x", "--fast"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSearchArgs(tt.args, defaults)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchSavesTables(t *testing.T) {
	h := newHarness(t, nil)

	err := h.cmd.Search(context.Background(), SearchRequest{Query: "rick roll", Comments: true})
	require.NoError(t, err)

	table, err := export.ReadCSV(filepath.Join(h.cfg.Export.ResultsDir, "query_rick-roll_results.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc"}, table.Column("videoID"))
	assert.Equal(t, []string{"42", "42"}, table.Column("likes"))

	comments, err := export.ReadCSV(filepath.Join(h.cfg.Export.CommentsDir, "videoID_aaa.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Rick"}, comments.Column("author"))
	assert.FileExists(t, filepath.Join(h.cfg.Export.CommentsDir, "videoID_ccc.csv"))

	output := h.out.String()
	assert.Contains(t, output, "Videos found:   3")
	assert.Contains(t, output, "Videos scraped: 2")
	assert.Contains(t, output, "metadata bbb")
	assert.Contains(t, output, "1,500")
	assert.Len(t, h.cmd.LastResult().Videos, 2)
}

func TestSearchIDsOnly(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "search", []string{"rick", "roll", "--ids-only"}))

	assert.Contains(t, h.out.String(), "aaa\nbbb\nccc\n")
	_, err := os.Stat(h.cfg.Export.ResultsDir)
	assert.True(t, os.IsNotExist(err))
}

func TestSearchListingFailure(t *testing.T) {
	h := newHarness(t, nil)

	err := h.cmd.Search(context.Background(), SearchRequest{Query: "nothing"})
	assert.Error(t, err)
	assert.Nil(t, h.cmd.LastResult())
}

func TestCommentsCommand(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "comments", []string{"ccc"}))

	assert.FileExists(t, filepath.Join(h.cfg.Export.CommentsDir, "videoID_ccc.csv"))
	assert.Contains(t, h.out.String(), "Astley")
	assert.Contains(t, h.out.String(), "Saved 1 comments")
}

func TestVideoCommand(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "video", []string{"aaa"}))
	assert.Contains(t, h.out.String(), "Never Gonna")
	assert.Contains(t, h.out.String(), "https://www.youtube.com/watch?v=aaa")

	assert.Error(t, h.cmd.ExecuteCommand(context.Background(), "video", []string{"bbb"}))
	assert.Error(t, h.cmd.ExecuteCommand(context.Background(), "video", nil))
}

func TestVideoAndCommentsUseStoredCopies(t *testing.T) {
	repo := newStore(t)
	h := newHarness(t, repo)

	stale := &models.Video{VideoID: "aaa", Title: "Never Gonna", ViewCount: "1000", Likes: 1, Dislikes: models.Unavailable}
	require.NoError(t, repo.SaveVideo(stale))
	require.NoError(t, repo.SaveComments("bbb", []models.Comment{{VideoID: "bbb", Author: "Kept", Content: "from before"}}))

	require.NoError(t, h.cmd.Video(context.Background(), "aaa"))
	assert.Contains(t, h.out.String(), "+500 since")

	h.out.Reset()
	assert.Error(t, h.cmd.Comments(context.Background(), "bbb"))
	assert.Contains(t, h.out.String(), "showing 1 stored comments")
	assert.Contains(t, h.out.String(), "from before")
}

func TestViewChange(t *testing.T) {
	_, ok := viewChange(nil, models.Video{ViewCount: "5"})
	assert.False(t, ok)

	previous := &models.Video{ViewCount: "500", ScrapedAt: time.Now()}
	change, ok := viewChange(previous, models.Video{ViewCount: "1200"})
	assert.True(t, ok)
	assert.Equal(t, "+700", change)

	change, _ = viewChange(previous, models.Video{ViewCount: "400"})
	assert.Equal(t, "-100", change)

	_, ok = viewChange(previous, models.Video{ViewCount: "n/a"})
	assert.False(t, ok)
}

func TestStoreCommandsNeedStore(t *testing.T) {
	h := newHarness(t, nil)

	assert.True(t, errors.Is(h.cmd.History(10), errNoStore))
	assert.True(t, errors.Is(h.cmd.Export(), errNoStore))
}

func TestHistoryAndExportWithStore(t *testing.T) {
	repo := newStore(t)
	h := newHarness(t, repo)

	require.NoError(t, h.cmd.Search(context.Background(), SearchRequest{Query: "rick roll"}))
	h.out.Reset()

	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "history", nil))
	assert.Contains(t, h.out.String(), "rick roll")
	assert.Contains(t, h.out.String(), "completed")
	assert.Contains(t, h.out.String(), "Stored videos: 2")
	assert.Contains(t, h.out.String(), "metadata bbb")

	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "export", nil))
	assert.Contains(t, h.out.String(), "Exported data to")

	entries, err := os.ReadDir(h.cfg.Export.ResultsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAnalyzeSavedTable(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.cmd.Search(context.Background(), SearchRequest{Query: "rick roll"}))
	h.out.Reset()

	path := filepath.Join(h.cfg.Export.ResultsDir, "query_rick-roll_results.csv")
	require.NoError(t, h.cmd.ExecuteCommand(context.Background(), "analyze", []string{path}))

	output := h.out.String()
	assert.Contains(t, output, "Total videos:      2")
	assert.Contains(t, output, "Never Gonna")
	assert.Contains(t, output, "Listed vs unlisted")
}

func TestAnalyzeWithoutVideos(t *testing.T) {
	h := newHarness(t, nil)
	assert.Error(t, h.cmd.Analyze(""))
}

func TestExecuteCommandQuitAndUnknown(t *testing.T) {
	h := newHarness(t, nil)

	assert.True(t, errors.Is(h.cmd.ExecuteCommand(context.Background(), "quit", nil), ErrQuit))
	assert.Error(t, h.cmd.ExecuteCommand(context.Background(), "dance", nil))
	assert.NoError(t, h.cmd.ExecuteCommand(context.Background(), "help", nil))
	assert.Contains(t, h.out.String(), "search <query>")
}

func TestInterpretCorrelation(t *testing.T) {
	assert.Equal(t, "no positive correlation", interpretCorrelation(0.05))
	assert.Equal(t, "moderate negative correlation", interpretCorrelation(-0.4))
	assert.Equal(t, "very strong positive correlation", interpretCorrelation(0.95))
}

func TestWatchRepeatsSearch(t *testing.T) {
	repo := newStore(t)
	h := newHarness(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rounds := 0
	inner := h.cmd.scrape
	h.cmd.WithScrapeFunc(func(ctx context.Context, fn func(ctx context.Context, s *scraper.Scraper) error) error {
		rounds++
		if rounds == 2 {
			defer cancel()
		}
		return inner(ctx, fn)
	})

	require.NoError(t, h.cmd.Watch(ctx, SearchRequest{Query: "rick roll"}, time.Millisecond))
	assert.Equal(t, 2, rounds)
	assert.Contains(t, h.out.String(), "Stopped after 2 runs (0 failed)")

	runs, err := repo.GetRecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	assert.Error(t, h.cmd.Watch(ctx, SearchRequest{Query: "x"}, 0))
}
