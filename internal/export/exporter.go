package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrIO is returned when a directory or file cannot be created, written or read.
var ErrIO = errors.New("io failure")

// QueryFilename names the results file of a search query.
func QueryFilename(query string) string {
	return fmt.Sprintf("query_%s_results.csv", strings.ReplaceAll(query, " ", "-"))
}

// VideoFilename names the comments file of a video.
func VideoFilename(videoID string) string {
	return fmt.Sprintf("videoID_%s.csv", videoID)
}

// Save writes the table as CSV to dir/name and returns the path written. An empty
// table is not written and yields an empty path.
func (t *Table) Save(dir, name string) (string, error) {
	if t.Empty() {
		log.WithField("file", name).Debug("Nothing to save")
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(ErrIO, "failed to create directory %s: %v", dir, err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(ErrIO, "failed to create file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(t.columns); err != nil {
		return "", errors.Wrapf(ErrIO, "failed to write header: %v", err)
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return "", errors.Wrapf(ErrIO, "failed to write record: %v", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", errors.Wrapf(ErrIO, "failed to flush %s: %v", path, err)
	}

	log.WithFields(log.Fields{"file": path, "rows": t.Len()}).Info("Saved table")
	return path, nil
}

// ReadCSV loads a table previously written by Save.
func ReadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "failed to open %s: %v", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "failed to read %s: %v", path, err)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrIO, "%s has no header", path)
	}

	return newTable(records[0], records[1:]), nil
}

// VideoSource lists the videos kept by the run store.
type VideoSource interface {
	GetAllVideos() ([]models.Video, error)
}

type Exporter struct {
	repo VideoSource
}

func NewExporter(repo VideoSource) *Exporter {
	return &Exporter{
		repo: repo,
	}
}

// ExportToCSV dumps every stored video into a timestamped file under dir.
func (e *Exporter) ExportToCSV(dir string) (string, error) {
	videos, err := e.repo.GetAllVideos()
	if err != nil {
		return "", errors.Wrap(err, "failed to query videos")
	}

	filename := fmt.Sprintf("videos_export_%s.csv", time.Now().Format("20060102_150405"))
	return NewVideoTable(videos).Save(dir, filename)
}
