package variant

import "fmt"

// Stable resolution error codes.
const (
	CodeUnknownVariant  = "E103"
	CodeExtendsCycle    = "E102"
	CodeNoFallback      = "E106"
	CodeNullOverride    = "E110"
	CodeSectionMissing  = "E111"
	CodeMergeConflict   = "E112"
	CodeBadRegex        = "E113"
	CodeUnknownIdentRef = "E104"
)

// Error is a resolution failure for one variant. Sibling variants are
// unaffected.
type Error struct {
	Code    string
	Variant string
	Path    string
	Message string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: variant %q", e.Code, e.Variant)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	return msg + ": " + e.Message
}

func resErr(code, variant, path, format string, args ...any) *Error {
	return &Error{Code: code, Variant: variant, Path: path, Message: fmt.Sprintf(format, args...)}
}
