package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/async-research/youtube-scraper/internal/models"
	"github.com/async-research/youtube-scraper/internal/scraper"
	"github.com/pkg/errors"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	dateLayout = "2006-01-02"
)

// timestamps come back as time.Time from postgres and as text from sqlite
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Repository keeps runs, videos and comments. It satisfies scraper.RunStore.
type Repository struct {
	db *sql.DB
}

var _ scraper.RunStore = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		db: GetDB(),
	}
}

func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// run operations

func (r *Repository) CreateRun(query string) (int, error) {
	var runID int
	err := r.db.QueryRow(`
		INSERT INTO runs (query, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id`, query, time.Now().UTC(), StatusRunning).Scan(&runID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create run")
	}
	return runID, nil
}

type runFailure struct {
	VideoID string `json:"video_id"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

type runDetails struct {
	DurationMS int64        `json:"duration_ms"`
	VideoIDs   []string     `json:"video_ids"`
	Comments   int          `json:"comments"`
	Failures   []runFailure `json:"failures,omitempty"`
}

func (r *Repository) CompleteRun(runID int, result *scraper.SearchResult) error {
	details := runDetails{
		DurationMS: result.Duration.Milliseconds(),
		VideoIDs:   result.VideoIDs,
	}
	for _, vc := range result.Comments {
		details.Comments += len(vc.Comments)
	}
	for _, f := range result.Failures {
		details.Failures = append(details.Failures, runFailure{VideoID: f.VideoID, Stage: f.Stage, Error: f.Err.Error()})
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE runs
		SET status = $1, completed_at = $2, videos_found = $3, videos_scraped = $4,
		    failures = $5, details = $6
		WHERE id = $7`,
		StatusCompleted, time.Now().UTC(), len(result.VideoIDs), len(result.Videos),
		len(result.Failures), string(detailsJSON), runID)
	return errors.Wrapf(err, "failed to complete run %d", runID)
}

func (r *Repository) FailRun(runID int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := r.db.Exec(`
		UPDATE runs
		SET status = $1, completed_at = $2, error_message = NULLIF($3, '')
		WHERE id = $4`, StatusFailed, time.Now().UTC(), msg, runID)
	return errors.Wrapf(err, "failed to mark run %d as failed", runID)
}

func (r *Repository) GetRecentRuns(limit int) ([]models.Run, error) {
	rows, err := r.db.Query(`
		SELECT id, query, started_at, completed_at, status, videos_found, videos_scraped,
		       failures, error_message
		FROM runs
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		var startedAt string
		var completedAt, errorMessage sql.NullString

		err := rows.Scan(&run.ID, &run.Query, &startedAt, &completedAt, &run.Status,
			&run.VideosFound, &run.VideosScraped, &run.Failures, &errorMessage)
		if err != nil {
			return nil, err
		}

		run.StartedAt = parseTime(startedAt)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			run.CompletedAt = &t
		}
		if errorMessage.Valid {
			msg := errorMessage.String
			run.ErrorMessage = &msg
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRunFailures returns the per-item failures recorded with a completed run.
func (r *Repository) GetRunFailures(runID int) ([]string, error) {
	var details sql.NullString
	err := r.db.QueryRow(`SELECT details FROM runs WHERE id = $1`, runID).Scan(&details)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil || !details.Valid {
		return nil, err
	}

	var d runDetails
	if err := json.Unmarshal([]byte(details.String), &d); err != nil {
		return nil, errors.Wrapf(err, "run %d has malformed details", runID)
	}

	failures := make([]string, 0, len(d.Failures))
	for _, f := range d.Failures {
		failures = append(failures, fmt.Sprintf("%s %s: %s", f.Stage, f.VideoID, f.Error))
	}
	return failures, nil
}

// video operations

func (r *Repository) SaveVideo(video *models.Video) error {
	var keywords sql.NullString
	if video.Keywords != nil {
		kw, err := json.Marshal(video.Keywords)
		if err != nil {
			return err
		}
		keywords = sql.NullString{String: string(kw), Valid: true}
	}

	if video.ScrapedAt.IsZero() {
		video.ScrapedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO videos (video_id, title, likes, dislikes, view_count, category, keywords,
			short_description, is_unlisted, publish_date, upload_date, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (video_id) DO UPDATE SET
			title = EXCLUDED.title,
			likes = EXCLUDED.likes,
			dislikes = EXCLUDED.dislikes,
			view_count = EXCLUDED.view_count,
			category = EXCLUDED.category,
			keywords = EXCLUDED.keywords,
			short_description = EXCLUDED.short_description,
			is_unlisted = EXCLUDED.is_unlisted,
			publish_date = EXCLUDED.publish_date,
			upload_date = EXCLUDED.upload_date,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`

	err := r.db.QueryRow(query,
		video.VideoID, video.Title, video.Likes, video.Dislikes, video.ViewCount,
		video.Category, keywords, video.ShortDescription, video.IsUnlisted,
		video.PublishDate.Format(dateLayout), video.UploadDate.Format(dateLayout),
		video.ScrapedAt.UTC(),
	).Scan(&video.ID)

	return errors.Wrapf(err, "failed to save video %s", video.VideoID)
}

const videoColumns = `id, video_id, title, likes, dislikes, view_count, category, keywords,
	short_description, is_unlisted, publish_date, upload_date, scraped_at`

func (r *Repository) GetAllVideos() ([]models.Video, error) {
	return r.queryVideos(`SELECT ` + videoColumns + ` FROM videos ORDER BY id`)
}

// GetVideo returns the stored video with the given id, or nil when it was never scraped.
func (r *Repository) GetVideo(videoID string) (*models.Video, error) {
	videos, err := r.queryVideos(`SELECT `+videoColumns+` FROM videos WHERE video_id = $1`, videoID)
	if err != nil || len(videos) == 0 {
		return nil, err
	}
	return &videos[0], nil
}

func (r *Repository) GetVideoCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

func (r *Repository) queryVideos(query string, args ...interface{}) ([]models.Video, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		var keywords sql.NullString
		var publishDate, uploadDate, scrapedAt string

		err := rows.Scan(&v.ID, &v.VideoID, &v.Title, &v.Likes, &v.Dislikes, &v.ViewCount,
			&v.Category, &keywords, &v.ShortDescription, &v.IsUnlisted,
			&publishDate, &uploadDate, &scrapedAt)
		if err != nil {
			return nil, err
		}

		if keywords.Valid {
			if err := json.Unmarshal([]byte(keywords.String), &v.Keywords); err != nil {
				return nil, errors.Wrapf(err, "video %s has malformed keywords", v.VideoID)
			}
		}
		v.PublishDate, _ = time.Parse(dateLayout, publishDate)
		v.UploadDate, _ = time.Parse(dateLayout, uploadDate)
		v.ScrapedAt = parseTime(scrapedAt)

		videos = append(videos, v)
	}

	return videos, rows.Err()
}

// comment operations

// SaveComments replaces the stored comments of a video.
func (r *Repository) SaveComments(videoID string, comments []models.Comment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comments WHERE video_id = $1`, videoID); err != nil {
		return errors.Wrapf(err, "failed to clear comments of %s", videoID)
	}

	for _, c := range comments {
		_, err := tx.Exec(`
			INSERT INTO comments (video_id, author, likes, content)
			VALUES ($1, $2, $3, $4)`, videoID, c.Author, c.Likes, c.Content)
		if err != nil {
			return errors.Wrapf(err, "failed to save comment of %s", videoID)
		}
	}

	return tx.Commit()
}

func (r *Repository) GetComments(videoID string) ([]models.Comment, error) {
	rows, err := r.db.Query(`
		SELECT video_id, author, likes, content
		FROM comments
		WHERE video_id = $1
		ORDER BY id`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.VideoID, &c.Author, &c.Likes, &c.Content); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
