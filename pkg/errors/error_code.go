package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidDateRange     ErrorCode = 101
	ErrCodeInvalidCapital       ErrorCode = 102
	ErrCodeUnknownStrategy      ErrorCode = 103
	ErrCodeIncompatibleVersion  ErrorCode = 104
	ErrCodeInvalidParameter     ErrorCode = 105

	// Data errors (200-299)
	ErrCodeDataOrder        ErrorCode = 200
	ErrCodeMalformedBar     ErrorCode = 201
	ErrCodeDataNotFound     ErrorCode = 202
	ErrCodeDataSourceFailed ErrorCode = 203
	ErrCodeQueryFailed      ErrorCode = 204

	// Execution errors (300-399): local and recoverable, the order is
	// rejected and the run continues.
	ErrCodeInvalidOrder      ErrorCode = 300
	ErrCodeInsufficientFunds ErrorCode = 301
	ErrCodeInvalidLimitPrice ErrorCode = 302

	// Strategy errors (400-499): fatal to the run.
	ErrCodeStrategyInit    ErrorCode = 400
	ErrCodeStrategyRuntime ErrorCode = 401
	ErrCodeStrategyConfig  ErrorCode = 402

	// Run/engine errors (500-599)
	ErrCodeRunNotIdle       ErrorCode = 500
	ErrCodeRunFailed        ErrorCode = 501
	ErrCodeRecorderFailed   ErrorCode = 502
	ErrCodeSnapshotFailed   ErrorCode = 503
	ErrCodeInsufficientData ErrorCode = 504
)
