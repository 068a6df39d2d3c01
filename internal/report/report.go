// Package report assembles the compilation report: what compiled, what
// was filtered or skipped, and why. Every degradation anywhere in the
// pipeline lands here; nothing is dropped silently.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/opensovd/mddc/internal/audience"
	"github.com/opensovd/mddc/internal/transform"
	"github.com/opensovd/mddc/internal/validate"
)

// Outcome classifies how one variant's compile ended.
type Outcome string

const (
	OutcomeSelected Outcome = "selected"
	OutcomeFallback Outcome = "fallback"
	OutcomeCompiled Outcome = "compiled"
	OutcomeFailed   Outcome = "failed"
)

// VariantResult is the per-variant section of the report.
type VariantResult struct {
	Name     string  `json:"name"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	Services int     `json:"services,omitempty"`
	DOPs     int     `json:"dops,omitempty"`

	Audience *audience.Summary `json:"audience,omitempty"`
	Skipped  []SkippedEntry    `json:"skipped,omitempty"`
	Artifact *ArtifactManifest `json:"artifact,omitempty"`
}

// SkippedEntry records one entry excluded under skip-and-report.
type SkippedEntry struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ChunkInfo describes one chunk of a written artifact.
type ChunkInfo struct {
	ContentType string `json:"content_type"`
	Name        string `json:"name,omitempty"`
	Compression string `json:"compression,omitempty"`
	Size        int    `json:"size"`
}

// ArtifactManifest describes a written artifact file.
type ArtifactManifest struct {
	Path   string      `json:"path"`
	Size   int         `json:"size"`
	Chunks []ChunkInfo `json:"chunks"`
}

// Issue mirrors a validator issue in report form.
type Issue struct {
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Path       string `json:"path,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Report is the complete record of one compiler invocation.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Input     string    `json:"input,omitempty"`
	Revision  string    `json:"revision,omitempty"`

	Issues   []Issue         `json:"issues,omitempty"`
	Variants []VariantResult `json:"variants,omitempty"`

	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// New starts a report for one invocation.
func New(input string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Input:     input,
	}
}

// AddIssues copies validator issues into the report and updates the
// severity counters.
func (r *Report) AddIssues(result *validate.Result) {
	for _, issue := range result.Issues {
		r.Issues = append(r.Issues, Issue{
			Severity:   string(issue.Severity),
			Code:       issue.Code,
			Path:       issue.Path,
			Message:    issue.Message,
			Suggestion: issue.Suggestion,
		})
		switch issue.Severity {
		case validate.SeverityError:
			r.Errors++
		case validate.SeverityWarning:
			r.Warnings++
		}
	}
}

// AddVariant appends one variant outcome.
func (r *Report) AddVariant(v VariantResult) {
	if v.Outcome == OutcomeFailed {
		r.Errors++
	}
	r.Variants = append(r.Variants, v)
}

// SkippedEntries converts transformer skip records to report form.
func SkippedEntries(skipped []transform.Skipped) []SkippedEntry {
	if len(skipped) == 0 {
		return nil
	}
	out := make([]SkippedEntry, len(skipped))
	for i, s := range skipped {
		out[i] = SkippedEntry{
			Kind:   s.Kind,
			Name:   s.Name,
			Path:   s.Path,
			Reason: s.Reason(),
		}
	}
	return out
}

// Succeeded reports whether the invocation finished without errors.
func (r *Report) Succeeded() bool { return r.Errors == 0 }
