package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeIO              ErrorCode = "COMMON_017"
	ErrCodeStorage         ErrorCode = "COMMON_018"
)

// Table Error Codes
const (
	ErrCodeTableRead      ErrorCode = "TBL_001"
	ErrCodeTableWrite     ErrorCode = "TBL_002"
	ErrCodeColumnNotFound ErrorCode = "TBL_003"
	ErrCodeRowMismatch    ErrorCode = "TBL_004"
)

// EC Number Error Codes
const (
	ErrCodeECInvalid      ErrorCode = "EC_001"
	ErrCodeECDepthInvalid ErrorCode = "EC_002"
	ErrCodeNoScorableRows ErrorCode = "EC_003"
)

// Chemistry Error Codes
const (
	ErrCodeInvalidSMILES         ErrorCode = "CHEM_001"
	ErrCodeInvalidReaction       ErrorCode = "CHEM_002"
	ErrCodeFingerprintFailed     ErrorCode = "CHEM_003"
	ErrCodeEquationFormatInvalid ErrorCode = "CHEM_004"
)

// Remote Tool Error Codes
const (
	ErrCodeToolUnavailable ErrorCode = "TOOL_001"
	ErrCodeToolRejected    ErrorCode = "TOOL_002"
	ErrCodeToolParseError  ErrorCode = "TOOL_003"
	ErrCodeToolExecFailed  ErrorCode = "TOOL_004"
)

// Aliases used across packages.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:        "internal error",
	ErrCodeBadRequest:      "bad request",
	ErrCodeNotFound:        "resource not found",
	ErrCodeTimeout:         "operation timed out",
	ErrCodeValidation:      "validation failed",
	ErrCodeSerialization:   "serialization failed",
	ErrCodeCacheError:      "cache operation failed",
	ErrCodeExternalService: "external service failed",
	ErrCodeIO:              "i/o failure",
	ErrCodeStorage:         "object storage failure",

	ErrCodeTableRead:      "failed to read table",
	ErrCodeTableWrite:     "failed to write table",
	ErrCodeColumnNotFound: "column not found",
	ErrCodeRowMismatch:    "row count mismatch",

	ErrCodeECInvalid:      "invalid EC number",
	ErrCodeECDepthInvalid: "invalid EC depth",
	ErrCodeNoScorableRows: "no rows with a scorable ground truth",

	ErrCodeInvalidSMILES:         "invalid SMILES",
	ErrCodeInvalidReaction:       "invalid reaction",
	ErrCodeFingerprintFailed:     "fingerprint generation failed",
	ErrCodeEquationFormatInvalid: "invalid reaction equation",

	ErrCodeToolUnavailable: "prediction tool unavailable",
	ErrCodeToolRejected:    "prediction tool rejected the request",
	ErrCodeToolParseError:  "prediction tool response could not be parsed",
	ErrCodeToolExecFailed:  "prediction tool execution failed",
}

// DefaultMessage returns the default message registered for code, or the code
// itself when none is registered.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return string(code)
}

// IsRetryable reports whether a failure with this code may succeed on retry.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeTimeout, ErrCodeToolUnavailable, ErrCodeExternalService, ErrCodeCacheError:
		return true
	default:
		return false
	}
}
