// Package apperr defines the failure taxonomy shared by the generation
// pipeline and the layers that present its errors.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrEmptyPrompt is returned before any model or classifier call when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrClassificationUnavailable means the style classifier could not produce a ranking.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrModelUnavailable means the backing model could not be loaded or did not answer.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrResourceExhausted means the backend ran out of memory, compute or quota.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrInvalidParameters means count or resolution is outside the supported bounds.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrStageUnavailable means the refinement stage could not be acquired.
	ErrStageUnavailable = errors.New("refinement stage unavailable")
)

// Code returns a stable machine readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyPrompt):
		return "empty_prompt"
	case errors.Is(err, ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, ErrClassificationUnavailable):
		return "classification_unavailable"
	case errors.Is(err, ErrStageUnavailable):
		return "stage_unavailable"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	default:
		return "internal"
	}
}

var codeToHTTPStatus = map[string]int{
	"empty_prompt":               http.StatusBadRequest,
	"invalid_parameters":         http.StatusBadRequest,
	"classification_unavailable": http.StatusServiceUnavailable,
	"stage_unavailable":          http.StatusServiceUnavailable,
	"model_unavailable":          http.StatusServiceUnavailable,
	"resource_exhausted":         http.StatusInsufficientStorage,
}

// HTTPStatus maps err to the status code the web handlers answer with.
func HTTPStatus(err error) int {
	if status, ok := codeToHTTPStatus[Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsRecoverable reports whether the orchestrator may degrade instead of failing.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrClassificationUnavailable) || errors.Is(err, ErrStageUnavailable)
}
