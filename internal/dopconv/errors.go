package dopconv

import "fmt"

// Stable conversion error codes. These surface in reports and must
// not be renumbered.
const (
	CodeUnknownType       = "E300"
	CodeMissingEndianness = "E301"
	CodeMissingLength     = "E302"
	CodeLengthFieldUnres  = "E303"
	CodeEnumBase          = "E304"
	CodeBadConstraints    = "E305"
	CodeNestedVariable    = "E306"
)

// Error is a conversion failure with a stable code and the document
// path of the offending type.
type Error struct {
	Code    string
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

func convErr(code, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}
