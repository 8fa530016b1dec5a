package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/pkg/errors"
)

const (
	dateLayout       = "2006-01-02"
	keywordSeparator = '|'
	keywordEscape    = '\\'
)

var (
	VideoColumns = []string{
		"videoID", "title", "likes", "dislikes", "viewCount", "category",
		"keywords", "shortDescription", "isUnlisted", "publishDate", "uploadDate",
	}
	CommentColumns = []string{"author", "likes", "content"}
)

// Table is an immutable set of rows sharing one column schema.
type Table struct {
	columns []string
	rows    [][]string
}

func newTable(columns []string, rows [][]string) *Table {
	return &Table{
		columns: append([]string(nil), columns...),
		rows:    rows,
	}
}

func NewVideoTable(videos []models.Video) *Table {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, VideoRow(v))
	}
	return newTable(VideoColumns, rows)
}

func NewCommentTable(comments []models.Comment) *Table {
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{c.Author, c.Likes, c.Content})
	}
	return newTable(CommentColumns, rows)
}

// VideoRow renders a video in VideoColumns order.
func VideoRow(v models.Video) []string {
	return []string{
		v.VideoID,
		v.Title,
		strconv.Itoa(v.Likes),
		strconv.Itoa(v.Dislikes),
		v.ViewCount,
		v.Category,
		joinKeywords(v.Keywords),
		v.ShortDescription,
		strconv.FormatBool(v.IsUnlisted),
		v.PublishDate.Format(dateLayout),
		v.UploadDate.Format(dateLayout),
	}
}

func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Column returns the cells of the named column, or nil when the table has no such column.
func (t *Table) Column(name string) []string {
	idx := -1
	for i, c := range t.columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	cells := make([]string, len(t.rows))
	for i, row := range t.rows {
		if idx < len(row) {
			cells[i] = row[idx]
		}
	}
	return cells
}

// Videos converts the rows of a video table back into records. Unparseable counts
// become models.Unavailable; missing dates stay zero.
func (t *Table) Videos() ([]models.Video, error) {
	index := make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		index[c] = i
	}
	if _, ok := index["videoID"]; !ok {
		return nil, errors.Wrap(ErrIO, "table has no videoID column")
	}

	cell := func(row []string, name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	videos := make([]models.Video, 0, len(t.rows))
	for _, row := range t.rows {
		v := models.Video{
			VideoID:          cell(row, "videoID"),
			Title:            cell(row, "title"),
			Likes:            atoiOr(cell(row, "likes"), models.Unavailable),
			Dislikes:         atoiOr(cell(row, "dislikes"), models.Unavailable),
			ViewCount:        cell(row, "viewCount"),
			Category:         cell(row, "category"),
			ShortDescription: cell(row, "shortDescription"),
		}
		if kw := cell(row, "keywords"); kw != "" {
			v.Keywords = splitKeywords(kw)
		}
		v.IsUnlisted, _ = strconv.ParseBool(cell(row, "isUnlisted"))
		v.PublishDate, _ = time.Parse(dateLayout, cell(row, "publishDate"))
		v.UploadDate, _ = time.Parse(dateLayout, cell(row, "uploadDate"))
		videos = append(videos, v)
	}
	return videos, nil
}

// joinKeywords packs keywords into one cell. Separators and escapes inside a
// keyword are backslash-escaped.
func joinKeywords(keywords []string) string {
	var b strings.Builder
	for i, kw := range keywords {
		if i > 0 {
			b.WriteRune(keywordSeparator)
		}
		for _, r := range kw {
			if r == keywordSeparator || r == keywordEscape {
				b.WriteRune(keywordEscape)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitKeywords(cell string) []string {
	var (
		keywords []string
		current  strings.Builder
		escaped  bool
	)
	for _, r := range cell {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == keywordEscape:
			escaped = true
		case r == keywordSeparator:
			keywords = append(keywords, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(keywords, current.String())
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
