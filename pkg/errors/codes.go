package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Fatal           bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeDictionaryMissing: {
		Code:            CodeDictionaryMissing,
		Fatal:           true,
		Description:     "Matcher dictionary is missing or unreadable",
		SuggestedAction: "Check matcher.dictionary in the config or pass --dictionary",
	},
	CodeKBNotReady: {
		Code:            CodeKBNotReady,
		Fatal:           true,
		Description:     "Knowledge base did not report ready within the connect timeout",
		SuggestedAction: "Check the backend with: penf-ner kb status, or raise kb.connect_timeout",
	},
	CodeKBVersionMismatch: {
		Code:            CodeKBVersionMismatch,
		Fatal:           true,
		Description:     "Knowledge base version differs from the dictionary build",
		SuggestedAction: "Rebuild the dictionary for this knowledge base or set kb.expected_version",
	},
	CodeMalformedRecord: {
		Code:            CodeMalformedRecord,
		Fatal:           true,
		Description:     "Matcher produced a record with the wrong field count",
		SuggestedAction: "Inspect the matcher output for the failing document",
	},
	CodeInvalidScoreFormat: {
		Code:            CodeInvalidScoreFormat,
		Fatal:           false,
		Description:     "Knowledge base confidence value is not numeric",
		SuggestedAction: "Fix the CONFIDENCE column of the reported entity row",
	},
	CodeAliasCycle: {
		Code:            CodeAliasCycle,
		Fatal:           true,
		Description:     "Coreference chain points back at itself",
		SuggestedAction: "Report the input document; this is an internal resolution bug",
	},
	CodeUnknownLanguage: {
		Code:            CodeUnknownLanguage,
		Fatal:           true,
		Description:     "No language implementation for the configured code",
		SuggestedAction: "Use one of the supported languages: en, cs",
	},
	CodeContextCancelled: {
		Code:            CodeContextCancelled,
		Fatal:           true,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional",
	},
	CodeTimeout: {
		Code:            CodeTimeout,
		Fatal:           true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Raise kb.connect_timeout or check the backend health",
	},
	CodeProcessingError: {
		Code:            CodeProcessingError,
		Fatal:           true,
		Description:     "Unclassified processing error",
		SuggestedAction: "Re-run with --log-level debug and inspect the pass that failed",
	},
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check logs for more details: penf-ner --log-level debug"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
