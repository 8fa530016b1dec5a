package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type Parser struct {
	selectors config.ScrapeSelectors
}

func NewParser(selectors config.ScrapeSelectors) *Parser {
	return &Parser{selectors: selectors}
}

// ParseVideoIDs lists the ids linked from the result titles of a listing page, in
// page order. Titles without an href are skipped.
func (p *Parser) ParseVideoIDs(doc *goquery.Document) []string {
	var ids []string

	doc.Find(p.selectors.VideoTitle).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		id := videoIDFromHref(href)
		if id == "" {
			log.WithField("href", href).Debug("Skipping result without video id")
			return
		}
		ids = append(ids, id)
	})

	log.WithField("count", len(ids)).Info("Parsed video ids")
	return ids
}

func videoIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return strings.TrimPrefix(href, "https://www.youtube.com/watch?v=")
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	return ""
}

// WatchLabels reads the aria-labels of the like and dislike buttons. Missing
// elements yield empty labels.
func (p *Parser) WatchLabels(doc *goquery.Document) (likes, dislikes string) {
	likes, _ = doc.Find(p.selectors.Likes).First().Attr("aria-label")
	dislikes, _ = doc.Find(p.selectors.Dislikes).First().Attr("aria-label")
	return likes, dislikes
}

// PlayerScript returns the text of the first inline script of the page body.
func (p *Parser) PlayerScript(doc *goquery.Document) (string, error) {
	script := doc.Find(p.selectors.PlayerScript).First()
	if script.Length() == 0 {
		return "", errors.Wrapf(ErrFieldMissing, "no element matches %q", p.selectors.PlayerScript)
	}
	return script.Text(), nil
}

// ParseCount turns a display label such as "12,345 likes" into 12345. Anything
// whose first token is not made of decimal digits maps to models.Unavailable.
func ParseCount(label string) int {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return models.Unavailable
	}

	token := strings.ReplaceAll(fields[0], ",", "")
	if token == "" {
		return models.Unavailable
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return models.Unavailable
		}
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return models.Unavailable
	}
	return n
}

// MapVideo builds a video record from a decoded player response and the raw
// like/dislike labels of the watch page.
func (p *Parser) MapVideo(doc map[string]interface{}, likesLabel, dislikesLabel string) (models.Video, error) {
	var video models.Video

	id, err := lookupString(doc, "videoDetails", "videoId")
	if err != nil {
		return video, err
	}
	if id == "" {
		return video, errors.Wrap(ErrFieldMissing, "videoDetails.videoId is empty")
	}
	video.VideoID = id

	video.Likes = ParseCount(likesLabel)
	video.Dislikes = ParseCount(dislikesLabel)

	// optional
	if raw, err := lookup(doc, "videoDetails", "title"); err == nil && raw != nil {
		video.Title = fmt.Sprint(raw)
	}

	if video.ShortDescription, err = lookupString(doc, "videoDetails", "shortDescription"); err != nil {
		return video, err
	}

	// optional
	if raw, err := lookup(doc, "videoDetails", "keywords"); err == nil {
		video.Keywords = stringList(raw)
	}

	micro := []string{"microformat", "playerMicroformatRenderer"}

	if video.ViewCount, err = lookupString(doc, append(micro, "viewCount")...); err != nil {
		return video, err
	}
	if video.Category, err = lookupString(doc, append(micro, "category")...); err != nil {
		return video, err
	}

	unlisted, err := lookup(doc, append(micro, "isUnlisted")...)
	if err != nil {
		return video, err
	}
	isUnlisted, ok := unlisted.(bool)
	if !ok {
		return video, errors.Wrapf(ErrParse, "microformat.playerMicroformatRenderer.isUnlisted: not a boolean: %v", unlisted)
	}
	video.IsUnlisted = isUnlisted

	if video.PublishDate, err = lookupDate(doc, append(micro, "publishDate")...); err != nil {
		return video, err
	}
	if video.UploadDate, err = lookupDate(doc, append(micro, "uploadDate")...); err != nil {
		return video, err
	}

	video.ScrapedAt = time.Now()
	return video, nil
}

// CollectComments maps every comment block to a record. A block that cannot be read
// fails the whole collection.
func (p *Parser) CollectComments(blocks *goquery.Selection) ([]models.Comment, error) {
	comments := make([]models.Comment, 0, blocks.Length())

	var failed error
	blocks.EachWithBreak(func(i int, s *goquery.Selection) bool {
		comment, err := p.parseComment(s)
		if err != nil {
			failed = errors.Wrapf(err, "comment #%d", i+1)
			return false
		}
		comments = append(comments, comment)
		return true
	})
	if failed != nil {
		return nil, failed
	}

	log.WithField("count", len(comments)).Debug("Collected comments")
	return comments, nil
}

func (p *Parser) parseComment(s *goquery.Selection) (models.Comment, error) {
	var comment models.Comment

	content := s.Find(p.selectors.CommentContent).First()
	if content.Length() == 0 {
		return comment, errors.Wrapf(ErrFieldMissing, "no element matches %q", p.selectors.CommentContent)
	}
	comment.Content = strings.TrimSpace(content.Text())

	comment.Author = strings.TrimSpace(s.Find(p.selectors.CommentAuthor).First().Text())
	if comment.Author == "" {
		comment.Author = strings.TrimSpace(s.Find(p.selectors.AuthorFallback).First().Text())
	}

	comment.Likes = strings.TrimSpace(s.Find(p.selectors.CommentLikes).First().Text())

	return comment, nil
}

func lookup(doc map[string]interface{}, path ...string) (interface{}, error) {
	var current interface{} = doc
	for i, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrFieldMissing, "%s is not an object", strings.Join(path[:i], "."))
		}
		current, ok = obj[key]
		if !ok {
			return nil, errors.Wrapf(ErrFieldMissing, "%s", strings.Join(path[:i+1], "."))
		}
	}
	return current, nil
}

func lookupString(doc map[string]interface{}, path ...string) (string, error) {
	raw, err := lookup(doc, path...)
	if err != nil {
		return "", err
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

func lookupDate(doc map[string]interface{}, path ...string) (time.Time, error) {
	raw, err := lookupString(doc, path...)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrParse, "%s: invalid date %q", strings.Join(path, "."), raw)
	}
	return t, nil
}

func stringList(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}
