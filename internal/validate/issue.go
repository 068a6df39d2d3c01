package validate

import "fmt"

// Severity classifies an issue. Only errors block compilation; callers
// decide whether warnings do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Stable issue codes. The numbering groups follow the authoring tool's
// error catalog: E0xx dangling references, E1xx variant configuration,
// E2xx type consistency, W0xx advisory.
const (
	CodeUndefinedType          = "E001"
	CodeUndefinedSession       = "E002"
	CodeUndefinedSecurity      = "E003"
	CodeUndefinedAccessPattern = "E004"
	CodeUndefinedAuthRole      = "E005"

	CodeUnknownDetectionEntry = "E100"
	CodeUnknownFallback       = "E101"
	CodeExtendsCycle          = "E102"
	CodeUnknownExtendsBase    = "E103"
	CodeUnknownIdentRef       = "E104"
	CodeUnresolvableProbe     = "E105"
	CodeNoFallback            = "E106"

	CodeOverlappingRanges = "E200"
	CodeMissingEndianness = "E201"
	CodeMissingLength     = "E202"

	CodeUnusedType          = "W001"
	CodeUnusedAccessPattern = "W002"
)

// Issue is one classified validation finding with a document path.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	Path       string   `json:"path"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("[%s] %s %s at %s", i.Code, i.Severity, i.Message, i.Path)
	if i.Suggestion != "" {
		s += fmt.Sprintf(" (hint: %s)", i.Suggestion)
	}
	return s
}

// Result is an ordered list of issues.
type Result struct {
	Issues []Issue `json:"issues"`
}

// HasErrors reports whether any error-severity issue is present.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

func (r *Result) addError(code, path, message, suggestion string) {
	r.Issues = append(r.Issues, Issue{
		Severity: SeverityError, Code: code, Path: path,
		Message: message, Suggestion: suggestion,
	})
}

func (r *Result) addWarning(code, path, message, suggestion string) {
	r.Issues = append(r.Issues, Issue{
		Severity: SeverityWarning, Code: code, Path: path,
		Message: message, Suggestion: suggestion,
	})
}
