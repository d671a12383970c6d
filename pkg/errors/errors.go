// Package errors provides the domain error types for the recognizer.
//
// Sentinel errors mark the conditions callers branch on with errors.Is.
// Fatal conditions (missing dictionary, knowledge base not ready, version
// mismatch, malformed matcher output) abort a run; a malformed confidence
// value is surfaced to the caller together with its diagnostic context.
//
// Usage:
//
//	import pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
//
//	if pferrors.IsKBNotReady(err) {
//	    // knowledge base never came up
//	}
package errors

import "errors"

// Domain errors.
var (
	// ErrDictionaryMissing indicates the matcher dictionary could not be loaded.
	ErrDictionaryMissing = errors.New("matcher dictionary missing")

	// ErrKBNotReady indicates the knowledge base did not report ready in time.
	ErrKBNotReady = errors.New("knowledge base not ready")

	// ErrKBVersionMismatch indicates the knowledge base and dictionary were built from different versions.
	ErrKBVersionMismatch = errors.New("knowledge base version mismatch")

	// ErrMalformedRecord indicates a raw matcher record with the wrong field count.
	ErrMalformedRecord = errors.New("malformed matcher record")

	// ErrInvalidScoreFormat indicates a non-numeric knowledge base confidence value.
	ErrInvalidScoreFormat = errors.New("invalid score format")

	// ErrAliasCycle indicates a coreference chain that points back at itself.
	ErrAliasCycle = errors.New("coreference alias cycle")

	// ErrUnknownLanguage indicates a language code with no registered implementation.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or configuration.
	ErrValidation = errors.New("validation error")
)

// IsDictionaryMissing reports whether any error in err's chain is ErrDictionaryMissing.
func IsDictionaryMissing(err error) bool {
	return errors.Is(err, ErrDictionaryMissing)
}

// IsKBNotReady reports whether any error in err's chain is ErrKBNotReady.
func IsKBNotReady(err error) bool {
	return errors.Is(err, ErrKBNotReady)
}

// IsKBVersionMismatch reports whether any error in err's chain is ErrKBVersionMismatch.
func IsKBVersionMismatch(err error) bool {
	return errors.Is(err, ErrKBVersionMismatch)
}

// IsMalformedRecord reports whether any error in err's chain is ErrMalformedRecord.
func IsMalformedRecord(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

// IsInvalidScoreFormat reports whether any error in err's chain is ErrInvalidScoreFormat.
func IsInvalidScoreFormat(err error) bool {
	return errors.Is(err, ErrInvalidScoreFormat)
}

// IsAliasCycle reports whether any error in err's chain is ErrAliasCycle.
func IsAliasCycle(err error) bool {
	return errors.Is(err, ErrAliasCycle)
}

// IsUnknownLanguage reports whether any error in err's chain is ErrUnknownLanguage.
func IsUnknownLanguage(err error) bool {
	return errors.Is(err, ErrUnknownLanguage)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
