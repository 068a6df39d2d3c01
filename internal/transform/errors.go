package transform

import "fmt"

// Stable transformation error codes.
const (
	CodeRequiredComparam = "E400"
	CodeUnknownPattern   = "E401"
	CodeBadSeverity      = "E402"
	CodeBadParamOrder    = "E403"
)

// Error is a fatal transformation failure for the current variant.
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

func transErr(code, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Skipped records an entry excluded under the skip-and-report policy.
type Skipped struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Reason returns the human-readable exclusion cause.
func (s Skipped) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
