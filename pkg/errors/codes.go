package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Backoff         bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata. Retryable marks codes
// worth another attempt within the same run; Backoff marks codes that must
// wait before that attempt.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrInput: {
		Code:            ErrInput,
		Retryable:       false,
		Description:     "Audio payload missing, empty, or below the minimum size",
		SuggestedAction: "Re-upload the recording; files under 1KB are treated as corrupt",
	},
	ErrRateLimited: {
		Code:            ErrRateLimited,
		Retryable:       true,
		Backoff:         true,
		Description:     "Provider rate limit exceeded",
		SuggestedAction: "Retried automatically with exponential backoff; check provider quota if persistent",
	},
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Provider request exceeded its time limit",
		SuggestedAction: "Retried automatically; consider a shorter recording if persistent",
	},
	ErrConnection: {
		Code:            ErrConnection,
		Retryable:       true,
		Description:     "Network-level failure reaching the provider",
		SuggestedAction: "Retried automatically; check outbound connectivity if persistent",
	},
	ErrMalformedResponse: {
		Code:            ErrMalformedResponse,
		Retryable:       false,
		Description:     "Provider returned 200 with unusable content",
		SuggestedAction: "Not retried; inspect the stored error message for the provider payload",
	},
	ErrPayloadTooLarge: {
		Code:            ErrPayloadTooLarge,
		Retryable:       false,
		Description:     "Audio file exceeds the provider's size limit",
		SuggestedAction: "Split or re-encode the recording before re-running",
	},
	ErrConfiguration: {
		Code:            ErrConfiguration,
		Retryable:       false,
		Description:     "Required API credential or endpoint is not configured",
		SuggestedAction: "Set the missing environment variable or config key and restart",
	},
	ErrPersistence: {
		Code:            ErrPersistence,
		Retryable:       false,
		Description:     "Database write failed; the transaction was rolled back",
		SuggestedAction: "Check database health, then re-run the meeting",
	},
	ErrProvider: {
		Code:            ErrProvider,
		Retryable:       false,
		Description:     "Unclassified provider-side failure",
		SuggestedAction: "Inspect the stored error message; re-run once the provider recovers",
	},
}

// IsRetryable returns true if the given error code represents a transient,
// retryable failure.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// NeedsBackoff returns true if retries of the given code must wait before the
// next attempt.
func NeedsBackoff(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Backoff
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check the service logs for details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
