package models

import (
	"time"
)

// Unavailable marks a like or dislike count the page did not expose.
const Unavailable = -999

type Video struct {
	ID               int       `db:"id"`
	VideoID          string    `db:"video_id"`
	Title            string    `db:"title"`
	Likes            int       `db:"likes"`
	Dislikes         int       `db:"dislikes"`
	ViewCount        string    `db:"view_count"`
	Category         string    `db:"category"`
	Keywords         []string  `db:"keywords"`
	ShortDescription string    `db:"short_description"`
	IsUnlisted       bool      `db:"is_unlisted"`
	PublishDate      time.Time `db:"publish_date"`
	UploadDate       time.Time `db:"upload_date"`
	ScrapedAt        time.Time `db:"scraped_at"`
}

// URL returns the watch page address of the video.
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

type Comment struct {
	VideoID string `db:"video_id"`
	Author  string `db:"author"`
	Likes   string `db:"likes"`
	Content string `db:"content"`
}

type Run struct {
	ID            int        `db:"id"`
	Query         string     `db:"query"`
	StartedAt     time.Time  `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	Status        string     `db:"status"`
	VideosFound   int        `db:"videos_found"`
	VideosScraped int        `db:"videos_scraped"`
	Failures      int        `db:"failures"`
	ErrorMessage  *string    `db:"error_message"`
}
