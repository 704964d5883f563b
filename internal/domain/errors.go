package domain

import (
	"fmt"
	"strings"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError is returned when a candidate batch cannot be used at all.
type ValidationError struct {
	Outcome ValidationOutcome
}

func (e ValidationError) Error() string {
	if len(e.Outcome.BatchErrors) > 0 {
		return "validation failed: " + strings.Join(e.Outcome.BatchErrors, "; ")
	}
	reasons := make([]string, 0, len(e.Outcome.InvalidFiles))
	for _, f := range e.Outcome.InvalidFiles {
		reasons = append(reasons, f.Name+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(reasons, "; ")
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// MergeConflictError means the merged attachment set breaks batch limits.
type MergeConflictError struct {
	Reason string
}

func (e MergeConflictError) Error() string {
	return "merged attachments rejected: " + e.Reason
}

func (e MergeConflictError) Is(target error) bool {
	_, ok := target.(MergeConflictError)
	return ok
}

var ErrMergeConflict = MergeConflictError{}

// UploadError is returned when every upload of a batch failed.
type UploadError struct {
	Failures []UploadFailure
}

func (e UploadError) Error() string {
	return fmt.Sprintf("all %d uploads failed", len(e.Failures))
}

func (e UploadError) Is(target error) bool {
	_, ok := target.(UploadError)
	return ok
}

var ErrUpload = UploadError{}

// ConflictError means the current revision is not the one the caller edited.
type ConflictError struct {
	Expected string
	Current  string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("revision conflict: expected %s, current is %s", e.Expected, e.Current)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// PublishError means no relay accepted the revision.
type PublishError struct {
	Results []RelayResult
}

func (e PublishError) Error() string {
	details := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		details = append(details, fmt.Sprintf("%s: %s %s", r.Relay, r.Outcome, r.ErrorDetail))
	}
	return "no relay accepted the event: " + strings.Join(details, "; ")
}

func (e PublishError) Is(target error) bool {
	_, ok := target.(PublishError)
	return ok
}

var ErrPublish = PublishError{}

// PermissionError means the signer does not own the addressed record.
type PermissionError struct {
	PubKey string
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("signer %s does not own this record", e.PubKey)
}

func (e PermissionError) Is(target error) bool {
	_, ok := target.(PermissionError)
	return ok
}

var ErrPermission = PermissionError{}
