package enrich

import (
	"errors"
	"fmt"
)

// Outcome is the per-article result of an enrichment attempt.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotFound         Outcome = "not_found"
)

type ArticleResult struct {
	ArticleID int64    `json:"article_id"`
	Outcome   Outcome  `json:"status"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Language  string   `json:"language,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type BatchResult struct {
	Selected  int             `json:"selected"`
	Processed int             `json:"processed"`
	Skipped   int             `json:"skipped"`
	Articles  []ArticleResult `json:"articles,omitempty"`
}

// RetryableError marks a failure outside the per-article scope. The enclosing
// transaction has been rolled back and the whole operation may be retried.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// ContentError is a deterministic failure of the text pipeline on one article.
// Retrying the same content fails the same way.
type ContentError struct {
	ArticleID int64
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("enrich article %d: %v", e.ArticleID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}
