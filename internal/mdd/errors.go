package mdd

import "fmt"

// Stable serialization and container error codes. Serialization
// failures indicate internal inconsistency, not authoring mistakes,
// and are always fatal.
const (
	CodeIndexOverflow = "E500"
	CodeOversized     = "E501"
	CodeBadMagic      = "E502"
	CodeBadContainer  = "E503"
	CodeChunkCount    = "E504"
	CodeCompression   = "E505"
	CodeBadBlob       = "E506"
)

// Error is a serialization or container failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func serErr(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
