package scraper

import "github.com/pkg/errors"

var (
	// ErrNavigationTimeout is returned when an element does not appear within the
	// configured wait window.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrParse is returned when the embedded player response or a date cannot be parsed.
	ErrParse = errors.New("parse error")
	// ErrFieldMissing is returned when a required metadata path or comment field is absent.
	ErrFieldMissing = errors.New("field missing")
)
