package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidMarket        ErrorCode = 101
	ErrCodeInvalidEndpoint      ErrorCode = 102
	ErrCodeMissingCredentials   ErrorCode = 103
	ErrCodeMonthWithoutYear     ErrorCode = 104

	// Range and format errors (200-299)
	ErrCodeYearOutOfRange   ErrorCode = 200
	ErrCodeMonthOutOfRange  ErrorCode = 201
	ErrCodeDayOutOfRange    ErrorCode = 202
	ErrCodeInvalidDateRange ErrorCode = 203
	ErrCodeUnparsableDate   ErrorCode = 204

	// Storage errors (300-399)
	ErrCodeObjectNotFound   ErrorCode = 300
	ErrCodeObjectForbidden  ErrorCode = 301
	ErrCodeStorageTransport ErrorCode = 302
	ErrCodeListingFailed    ErrorCode = 303

	// Data errors (400-499)
	ErrCodeDecompressFailed ErrorCode = 400
	ErrCodeParseFailed      ErrorCode = 401
	ErrCodeCleanerNotFound  ErrorCode = 402
	ErrCodeMissingColumn    ErrorCode = 403
	ErrCodeInvalidEpoch     ErrorCode = 404
	ErrCodeSchemaMismatch   ErrorCode = 405
	ErrCodeEmptyResult      ErrorCode = 406

	// Writer errors (500-599)
	ErrCodeWriterNotInitialized ErrorCode = 500
	ErrCodeWriteFailed          ErrorCode = 501
	ErrCodeExportFailed         ErrorCode = 502

	// Provider errors (600-699)
	ErrCodeProviderFetchFailed ErrorCode = 600
	ErrCodeInvalidTimespan     ErrorCode = 601
)
