package domain

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxQuestionLength = 4000

// ValidateQuestion checks a user question before it enters the query
// pipeline.
func ValidateQuestion(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	if utf8.RuneCountInString(q) > maxQuestionLength {
		return NewValidationError("question", q[:32]+"...", ErrQuestionTooLong)
	}
	return nil
}

// ValidateScrapeURL checks that a scrape target is an absolute http(s) URL.
func ValidateScrapeURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewValidationError("url", raw, ErrInvalidURL)
	}
	return nil
}

// ValidateFilename rejects empty names and path traversal in uploads.
func ValidateFilename(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return NewValidationError("filename", name, ErrInvalidFilename)
	}
	return nil
}
