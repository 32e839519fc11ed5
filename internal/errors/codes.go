// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Contribution errors
	CodeContributionInvalidHue        Code = "CONTRIBUTION_INVALID_HUE"
	CodeContributionInvalidSaturation Code = "CONTRIBUTION_INVALID_SATURATION"
	CodeContributionInvalidLightness  Code = "CONTRIBUTION_INVALID_LIGHTNESS"
	CodeContributionEmptySubmitter    Code = "CONTRIBUTION_EMPTY_SUBMITTER"

	// Aggregation errors
	CodeSubmissionFailed Code = "SUBMISSION_FAILED"
	CodeUserEmptyID      Code = "USER_EMPTY_ID"

	// Archive errors
	CodeArchiveFailed Code = "ARCHIVE_FAILED"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeTxConflict     Code = "TX_CONFLICT"
	CodeSchemaMismatch Code = "SCHEMA_MISMATCH"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeContributionInvalidHue,
		CodeContributionInvalidSaturation,
		CodeContributionInvalidLightness,
		CodeContributionEmptySubmitter,
		CodeUserEmptyID:
		return http.StatusBadRequest

	// Not found
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - concurrent writers exhausted the retry budget
	case CodeSubmissionFailed, CodeTxConflict:
		return http.StatusConflict

	// Internal - storage shape or archive failures
	case CodeSchemaMismatch, CodeArchiveFailed:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
