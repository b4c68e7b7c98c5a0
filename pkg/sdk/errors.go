package ipregistry

import "github.com/kailas-cloud/ipregistry/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrDuplicateFound    = domain.ErrDuplicateFound
	ErrCorpusUnavailable = domain.ErrCorpusUnavailable
	ErrNotFound          = domain.ErrNotFound
)

// DuplicateError carries the matched record index and its score.
// It matches ErrDuplicateFound with errors.Is.
type DuplicateError = domain.DuplicateError
