// Package provkg re-exports the errs taxonomy at the root so callers of
// Engine never need to import the errs package directly, while keeping
// the category machinery (errs.Is, the request-handler envelope) in one
// place shared by store/resolver/graph/retrieval/ai.
package provkg

import (
	"errors"

	"github.com/danvers-labs/provkg/errs"
)

// Category is the closed set of error categories surfaced in the
// request-handler envelope's {ok:false, error:{category, message}} shape.
type Category = errs.Category

const (
	CategoryValidation = errs.CategoryValidation
	CategoryNotFound    = errs.CategoryNotFound
	CategoryIntegrity   = errs.CategoryIntegrity
	CategoryExternal    = errs.CategoryExternal
	CategoryInternal    = errs.CategoryInternal
)

// IsCategory reports whether err (or anything it wraps) belongs to category.
func IsCategory(err error, category Category) bool {
	return errs.Is(err, category)
}

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("provkg: document not found")

	// ErrNoResults reports that retrieval yielded no matching chunks.
	// Engine.Search does not return it: an empty search returns an empty
	// result slice and a nil error.
	ErrNoResults = errors.New("provkg: no results found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("provkg: invalid configuration")

	// ErrAIProviderRequired is returned when an AI-tier operation (synthesis,
	// resolver mode=ai) is requested but no ai.Provider key is configured.
	// Absence of the key is only fatal when such an operation is actually
	// requested.
	ErrAIProviderRequired = errors.New("provkg: AI provider required for this operation")

	// ErrNoClusteringRun reports that no clustering run has been recorded.
	// Engine.Reassign does not return it: with no run recorded it returns
	// the store's errs not-found error.
	ErrNoClusteringRun = errors.New("provkg: no clustering run exists yet")
)
