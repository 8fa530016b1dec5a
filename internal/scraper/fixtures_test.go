package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

func playerScript(id, title, keywords, date string) string {
	return fmt.Sprintf(`var ytInitialPlayerResponse = {"videoDetails":{"videoId":%q,"title":%q,"keywords":%s,"shortDescription":"The official video"},`+
		`"microformat":{"playerMicroformatRenderer":{"viewCount":"1500000000","category":"Music","publishDate":%q,"uploadDate":%q,"isUnlisted":false}}};`+
		`var meta = document.createElement('meta');`, id, title, keywords, date, date)
}

func commentBlock(author, fallback, content, likes string) string {
	return fmt.Sprintf(`<ytd-comment-thread-renderer>`+
		`<div id="header-author"><a id="author-text"><span>%s</span></a><yt-formatted-string>%s</yt-formatted-string></div>`+
		`<yt-formatted-string id="content-text">%s</yt-formatted-string>`+
		`<span id="vote-count-middle"> %s </span>`+
		`</ytd-comment-thread-renderer>`, author, fallback, content, likes)
}

func listingPage(links ...string) string {
	return "<html><body><div id=\"contents\">" + strings.Join(links, "\n") + "</div></body></html>"
}

func watchPage(script string, likes string, comments ...string) string {
	return fmt.Sprintf(`<html><body><script>%s</script>`+
		`<div id="likes" aria-label=%q></div>`+
		`<ytd-comments id="comments">%s</ytd-comments>`+
		`</body></html>`, script, likes, strings.Join(comments, ""))
}

// fakeNavigator serves canned pages by URL.
type fakeNavigator struct {
	pages   map[string]string
	current string
	opened  []string
	scrolls int
	closed  int
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{pages: make(map[string]string)}
}

func (f *fakeNavigator) Open(ctx context.Context, url string) error {
	f.opened = append(f.opened, url)
	page, ok := f.pages[url]
	if !ok {
		return errors.Errorf("no page for %s", url)
	}
	f.current = page
	return nil
}

func (f *fakeNavigator) WaitFor(ctx context.Context, selector string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.current))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return errors.Wrapf(ErrNavigationTimeout, "wait for %s", selector)
	}
	return nil
}

func (f *fakeNavigator) Scroll(ctx context.Context, times int) error {
	f.scrolls += times
	return nil
}

func (f *fakeNavigator) Document(ctx context.Context) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(f.current))
}

func (f *fakeNavigator) Close() error {
	f.closed++
	return nil
}
