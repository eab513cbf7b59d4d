package conference

import "fmt"

// Code is a result code returned by the conferencing SDK. Zero is success;
// every other value is an error.
type Code int

// Result codes, numbered as the vendor SDK numbers them.
const (
	CodeSuccess          Code = 0
	CodeNoImpl           Code = 1
	CodeWrongUsage       Code = 2
	CodeInvalidParameter Code = 3
	CodeModuleLoadFailed Code = 4
	CodeMemoryFailed     Code = 5
	CodeServiceFailed    Code = 6
	CodeUninitialized    Code = 7
	CodeUnauthenticated  Code = 8
	CodeUnknown          Code = 13
	CodeOtherInstance    Code = 14
	CodeInternalError    Code = 15
	CodeTooFrequentCall  Code = 18
	CodeNotInMeeting     Code = 31
	CodeTimeout          Code = 1000 // local: call not acknowledged in time
)

// Sentinel errors for the taxonomy callers branch on.
var (
	ErrUninitialized    error = CodeUninitialized
	ErrInvalidParameter error = CodeInvalidParameter
	ErrTimeout          error = CodeTimeout
)

var codeNames = map[Code]string{
	CodeSuccess:          "success",
	CodeNoImpl:           "not implemented",
	CodeWrongUsage:       "wrong usage",
	CodeInvalidParameter: "invalid parameter",
	CodeModuleLoadFailed: "module load failed",
	CodeMemoryFailed:     "memory failed",
	CodeServiceFailed:    "service failed",
	CodeUninitialized:    "uninitialized",
	CodeUnauthenticated:  "unauthenticated",
	CodeUnknown:          "unknown",
	CodeOtherInstance:    "other sdk instance running",
	CodeInternalError:    "internal error",
	CodeTooFrequentCall:  "too frequent call",
	CodeNotInMeeting:     "not in meeting",
	CodeTimeout:          "timed out",
}

func (c Code) Error() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("sdk: %s (%d)", name, int(c))
	}
	return fmt.Sprintf("sdk: error code %d", int(c))
}

// AsError converts a raw result code into an error, nil on success.
func AsError(code int) error {
	if Code(code) == CodeSuccess {
		return nil
	}
	return Code(code)
}
