package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a classified recognizer error.
type ErrorCode string

const (
	CodeDictionaryMissing  ErrorCode = "dictionary_missing"
	CodeKBNotReady         ErrorCode = "kb_not_ready"
	CodeKBVersionMismatch  ErrorCode = "kb_version_mismatch"
	CodeMalformedRecord    ErrorCode = "malformed_record"
	CodeInvalidScoreFormat ErrorCode = "invalid_score_format"
	CodeAliasCycle         ErrorCode = "alias_cycle"
	CodeUnknownLanguage    ErrorCode = "unknown_language"
	CodeContextCancelled   ErrorCode = "context_cancelled"
	CodeTimeout            ErrorCode = "timeout"
	CodeProcessingError    ErrorCode = "processing_error"
)

// PassError is a structured error for a failed recognition pass.
type PassError struct {
	Code    ErrorCode
	Pass    string
	Message string
	Cause   error
}

func (e *PassError) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Pass, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PassError) Unwrap() error {
	return e.Cause
}

// ClassifyError wraps err in a *PassError carrying the code that matches its chain.
// Errors that match no known sentinel get CodeProcessingError.
func ClassifyError(err error, pass string) *PassError {
	if err == nil {
		return nil
	}

	pe := &PassError{
		Pass:    pass,
		Cause:   err,
		Message: err.Error(),
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Code = CodeTimeout
		pe.Message = "operation timed out"
	case errors.Is(err, context.Canceled):
		pe.Code = CodeContextCancelled
		pe.Message = "operation cancelled"
	case errors.Is(err, ErrDictionaryMissing):
		pe.Code = CodeDictionaryMissing
	case errors.Is(err, ErrKBNotReady):
		pe.Code = CodeKBNotReady
	case errors.Is(err, ErrKBVersionMismatch):
		pe.Code = CodeKBVersionMismatch
	case errors.Is(err, ErrMalformedRecord):
		pe.Code = CodeMalformedRecord
	case errors.Is(err, ErrInvalidScoreFormat):
		pe.Code = CodeInvalidScoreFormat
	case errors.Is(err, ErrAliasCycle):
		pe.Code = CodeAliasCycle
	case errors.Is(err, ErrUnknownLanguage):
		pe.Code = CodeUnknownLanguage
	default:
		pe.Code = CodeProcessingError
	}
	return pe
}

// IsFatal returns true if the error should abort the whole run.
func IsFatal(err error) bool {
	var pe *PassError
	if !errors.As(err, &pe) {
		pe = ClassifyError(err, "")
		if pe == nil {
			return false
		}
	}
	if info, ok := ErrorCodeRegistry[pe.Code]; ok {
		return info.Fatal
	}
	return true
}
