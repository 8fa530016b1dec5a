package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	titleWidth   = 48
	contentWidth = 60
)

func (c *Commander) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(c.out)
	return t
}

func (c *Commander) renderVideos(videos []models.Video) {
	t := c.newTable()
	t.AppendHeader(table.Row{"#", "Video", "Title", "Views", "Likes", "Dislikes", "Category"})
	for i, v := range videos {
		t.AppendRow(table.Row{
			i + 1,
			v.VideoID,
			text.Trim(v.Title, titleWidth),
			formatViews(v.ViewCount),
			formatCount(v.Likes),
			formatCount(v.Dislikes),
			v.Category,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}

func (c *Commander) renderComments(comments []models.Comment, limit int) {
	if len(comments) == 0 {
		return
	}

	t := c.newTable()
	t.AppendHeader(table.Row{"Author", "Likes", "Comment"})
	for i, cm := range comments {
		if i == limit {
			t.AppendFooter(table.Row{"", "", "+" + strconv.Itoa(len(comments)-limit) + " more"})
			break
		}
		t.AppendRow(table.Row{cm.Author, cm.Likes, text.Trim(cm.Content, contentWidth)})
	}
	t.Render()
}

func (c *Commander) renderRuns(runs []models.Run) {
	t := c.newTable()
	t.AppendHeader(table.Row{"Run", "Query", "Started", "Status", "Found", "Scraped", "Failures"})
	for _, run := range runs {
		status := c.green(run.Status)
		switch run.Status {
		case "failed":
			status = c.red(run.Status)
		case "running":
			status = c.yellow(run.Status)
		}
		t.AppendRow(table.Row{
			run.ID,
			run.Query,
			humanize.Time(run.StartedAt),
			status,
			run.VideosFound,
			run.VideosScraped,
			run.Failures,
		})
		if run.ErrorMessage != nil {
			t.AppendRow(table.Row{"", c.red(text.Trim(*run.ErrorMessage, contentWidth))})
		}
	}
	t.Render()
}

func formatViews(viewCount string) string {
	n, err := strconv.ParseInt(viewCount, 10, 64)
	if err != nil {
		return viewCount
	}
	return humanize.Comma(n)
}

func formatCount(n int) string {
	if n == models.Unavailable {
		return "n/a"
	}
	return humanize.Comma(int64(n))
}

// progressView draws one bar per search stage.
type progressView struct {
	pw       progress.Writer
	trackers map[string]*progress.Tracker
}

func newProgressView(w io.Writer) *progressView {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	go pw.Render()

	return &progressView{
		pw:       pw,
		trackers: make(map[string]*progress.Tracker),
	}
}

func (p *progressView) Update(stage string, done, total int) {
	tracker, ok := p.trackers[stage]
	if !ok {
		tracker = &progress.Tracker{Message: stage, Total: int64(total), Units: progress.UnitsDefault}
		p.pw.AppendTracker(tracker)
		p.trackers[stage] = tracker
	}
	tracker.SetValue(int64(done))
	if done >= total {
		tracker.MarkAsDone()
	}
}

func (p *progressView) Stop() {
	for _, tracker := range p.trackers {
		if !tracker.IsDone() {
			tracker.MarkAsDone()
		}
	}
	// let the renderer flush the final frame
	for i := 0; i < 10 && p.pw.LengthActive() > 0; i++ {
		time.Sleep(50 * time.Millisecond)
	}
	p.pw.Stop()
}
