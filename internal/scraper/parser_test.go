package scraper

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  int
	}{
		{"thousands separator", "12,345 likes", 12345},
		{"plain number", "42 dislikes", 42},
		{"no unit", "7", 7},
		{"leading spaces", "   1,000,000 likes", 1000000},
		{"abbreviated", "1.2K likes", models.Unavailable},
		{"word", "like this video", models.Unavailable},
		{"empty", "", models.Unavailable},
		{"only commas", ",,, likes", models.Unavailable},
		{"negative", "-5 likes", models.Unavailable},
		{"non ascii digits", "١٢٣ likes", models.Unavailable},
		{"overflow", "99999999999999999999999 likes", models.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.label))
		})
	}
}

func playerResponse() map[string]interface{} {
	doc, err := ExtractPlayerResponse(playerScript("dQw4w9WgXcQ", "Never Gonna Give You Up", `["rick","astley"]`, "2009-10-24"))
	if err != nil {
		panic(err)
	}
	return doc
}

func TestMapVideo(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	video, err := p.MapVideo(playerResponse(), "12,345 likes", "Dislike")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", video.VideoID)
	assert.Equal(t, "Never Gonna Give You Up", video.Title)
	assert.Equal(t, 12345, video.Likes)
	assert.Equal(t, models.Unavailable, video.Dislikes)
	assert.Equal(t, "1500000000", video.ViewCount)
	assert.Equal(t, "Music", video.Category)
	assert.Equal(t, []string{"rick", "astley"}, video.Keywords)
	assert.Equal(t, "The official video", video.ShortDescription)
	assert.False(t, video.IsUnlisted)
	assert.Equal(t, time.Date(2009, 10, 24, 0, 0, 0, 0, time.UTC), video.PublishDate)
	assert.Equal(t, time.Date(2009, 10, 24, 0, 0, 0, 0, time.UTC), video.UploadDate)
}

func TestMapVideoKeywordsOptional(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := playerResponse()
	delete(doc["videoDetails"].(map[string]interface{}), "keywords")

	video, err := p.MapVideo(doc, "", "")
	require.NoError(t, err)
	assert.Nil(t, video.Keywords)
	assert.Equal(t, models.Unavailable, video.Likes)
	assert.Equal(t, models.Unavailable, video.Dislikes)
}

func TestMapVideoTitleOptional(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := playerResponse()
	delete(doc["videoDetails"].(map[string]interface{}), "title")

	video, err := p.MapVideo(doc, "3 likes", "")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", video.VideoID)
	assert.Empty(t, video.Title)
	assert.Equal(t, 3, video.Likes)
	assert.Equal(t, "Music", video.Category)
}

func TestMapVideoUnlistedNotBoolean(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := playerResponse()
	micro := doc["microformat"].(map[string]interface{})["playerMicroformatRenderer"].(map[string]interface{})
	micro["isUnlisted"] = "true"

	_, err := p.MapVideo(doc, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "isUnlisted")
}

func TestMapVideoMissingField(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := playerResponse()
	micro := doc["microformat"].(map[string]interface{})["playerMicroformatRenderer"].(map[string]interface{})
	delete(micro, "category")

	_, err := p.MapVideo(doc, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldMissing))
	assert.Contains(t, err.Error(), "microformat.playerMicroformatRenderer.category")
}

func TestMapVideoMissingSection(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := playerResponse()
	delete(doc, "microformat")

	_, err := p.MapVideo(doc, "", "")
	assert.True(t, errors.Is(err, ErrFieldMissing))
}

func TestMapVideoEmptyID(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc, err := ExtractPlayerResponse(playerScript("", "t", `[]`, "2020-01-01"))
	require.NoError(t, err)

	_, err = p.MapVideo(doc, "", "")
	assert.True(t, errors.Is(err, ErrFieldMissing))
}

func TestMapVideoMalformedDate(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc, err := ExtractPlayerResponse(playerScript("abc", "t", `[]`, "24/10/2009"))
	require.NoError(t, err)

	_, err = p.MapVideo(doc, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func commentsDoc(t *testing.T, blocks string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + blocks + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func TestCollectComments(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := commentsDoc(t, commentBlock("Rick", "", "Classic", "1.2K")+
		commentBlock("", "Anonymous123", "Got me again", "15"))

	comments, err := p.CollectComments(doc.Find("ytd-comment-thread-renderer"))
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, models.Comment{Author: "Rick", Likes: "1.2K", Content: "Classic"}, comments[0])
	assert.Equal(t, "Anonymous123", comments[1].Author)
	assert.Equal(t, "15", comments[1].Likes)
}

func TestCollectCommentsAbortsOnUnreadableBlock(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc := commentsDoc(t, commentBlock("Rick", "", "Classic", "3")+
		`<ytd-comment-thread-renderer><div id="author-text"><span>Broken</span></div></ytd-comment-thread-renderer>`)

	comments, err := p.CollectComments(doc.Find("ytd-comment-thread-renderer"))
	assert.Nil(t, comments)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldMissing))
	assert.Contains(t, err.Error(), "comment #2")
}

func TestCollectCommentsEmpty(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	comments, err := p.CollectComments(commentsDoc(t, "").Find("ytd-comment-thread-renderer"))
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestParseVideoIDs(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage(
		`<a id="video-title" href="/watch?v=aaa&amp;pp=xyz">A</a>`,
		`<a id="video-title">no link</a>`,
		`<a id="video-title" href="https://www.youtube.com/watch?v=bbb">B</a>`,
		`<a id="video-title" href="/shorts/ccc">C</a>`,
	)))
	require.NoError(t, err)

	assert.Equal(t, []string{"aaa", "bbb"}, p.ParseVideoIDs(doc))
}

func TestWatchLabelsMissing(t *testing.T) {
	p := NewParser(config.DefaultSelectors())

	likes, dislikes := p.WatchLabels(commentsDoc(t, ""))
	assert.Empty(t, likes)
	assert.Empty(t, dislikes)
}
