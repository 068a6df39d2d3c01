package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opensovd/mddc/internal/audience"
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/mdd"
	"github.com/opensovd/mddc/internal/model"
	"github.com/opensovd/mddc/internal/report"
	"github.com/opensovd/mddc/internal/schema"
	"github.com/opensovd/mddc/internal/transform"
	"github.com/opensovd/mddc/internal/validate"
	"github.com/opensovd/mddc/internal/variant"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output      string // output file, or directory with --all-variants
	Compression string
	Audience    string
	Variant     string
	AllVariants bool
	Strict      bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <document.yaml>",
		Short: "Compile a diagnostic description into an MDD artifact",
		Long: `Compile a YAML diagnostic description into a binary MDD artifact.

The compiler validates the document, optionally materializes a variant
and applies an audience filter, then writes the deduplicated table
graph into an MDD container.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (directory with --all-variants)")
	cmd.Flags().StringVar(&opts.Compression, "compression", "none", "chunk compression (none|gzip|zstd|lzma)")
	cmd.Flags().StringVar(&opts.Audience, "audience", "", "audience tag to filter for")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "compile a single named variant")
	cmd.Flags().BoolVar(&opts.AllVariants, "all-variants", false, "compile the base document and every declared variant")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "abort on the first bad entry instead of skipping")

	return cmd
}

// compileTarget is one effective document to lower and serialize.
type compileTarget struct {
	name string // variant name; empty for the base document
	doc  *model.Document
}

func runCompile(opts *CompileOptions, input string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	compression, err := mdd.ParseCompression(opts.Compression)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid compression", err)
	}
	if opts.Variant != "" && opts.AllVariants {
		msg := "--variant and --all-variants are mutually exclusive"
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	rep := report.New(input)

	load, err := schema.Load(input)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading document", err)
	}
	if len(load.Structural) > 0 {
		addStructural(rep, load.Structural)
		return outputReport(formatter, rep)
	}

	doc := load.Document
	rep.Revision = doc.Meta.Revision
	formatter.VerboseLog("Loaded %s (ecu %s, revision %s)", input, doc.Ecu.Name, doc.Meta.Revision)

	rep.AddIssues(validate.Document(doc))
	if rep.Errors > 0 {
		return outputReport(formatter, rep)
	}

	targets, err := collectTargets(opts, rep, doc, load.Tree)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolving variants", err)
	}

	policy := transform.SkipAndReport
	if opts.Strict {
		policy = transform.AbortOnFirst
	}

	for _, target := range targets {
		formatter.VerboseLog("Compiling %s", displayName(target.name))
		result := compileTargetDoc(opts, doc, target, policy, compression, input)
		rep.AddVariant(result)
	}

	return outputReport(formatter, rep)
}

// collectTargets decides which effective documents this run compiles:
// the base document, one materialized variant, or base plus all
// declared variants.
func collectTargets(opts *CompileOptions, rep *report.Report, doc *model.Document, tree map[string]any) ([]compileTarget, error) {
	if opts.Variant != "" {
		res, err := variant.NewResolver(doc, tree).Materialize(opts.Variant)
		if err != nil {
			return nil, err
		}
		return []compileTarget{{name: res.Name, doc: res.Document}}, nil
	}

	targets := []compileTarget{{doc: doc}}
	if !opts.AllVariants || doc.Variants == nil {
		return targets, nil
	}

	results, errs := variant.NewResolver(doc, tree).MaterializeAll()
	for _, res := range results {
		targets = append(targets, compileTarget{name: res.Name, doc: res.Document})
	}
	for _, err := range errs {
		name := ""
		var verr *variant.Error
		if errors.As(err, &verr) {
			name = verr.Variant
		}
		rep.AddVariant(report.VariantResult{
			Name:    name,
			Outcome: report.OutcomeFailed,
			Reason:  err.Error(),
		})
	}
	return targets, nil
}

// compileTargetDoc runs filter, transform, and serialization for one
// target and returns its report entry.
func compileTargetDoc(opts *CompileOptions, base *model.Document, target compileTarget, policy transform.Policy, compression mdd.Compression, input string) report.VariantResult {
	result := report.VariantResult{Name: target.name, Outcome: report.OutcomeCompiled}

	effective := target.doc
	if opts.Audience != "" {
		var summary *audience.Summary
		effective, summary = audience.Filter(effective, opts.Audience)
		result.Audience = summary
	}

	tr := transform.New(effective, transform.Options{
		VariantName:    target.name,
		Variants:       base.Variants,
		Identification: base.Identification,
		Policy:         policy,
	})
	db, skipped, err := tr.Build()
	if err != nil {
		result.Outcome = report.OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	result.Services = len(db.Services)
	result.DOPs = len(db.DOPs)
	result.Skipped = report.SkippedEntries(skipped)

	file, err := mdd.BuildFile(db, compression, map[string]string{
		"source": filepath.Base(input),
	})
	if err != nil {
		result.Outcome = report.OutcomeFailed
		result.Reason = err.Error()
		return result
	}

	path := artifactPath(opts, db)
	var buf bytes.Buffer
	if err := mdd.Write(&buf, file); err != nil {
		result.Outcome = report.OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		result.Outcome = report.OutcomeFailed
		result.Reason = fmt.Sprintf("writing artifact: %v", err)
		return result
	}

	manifest := &report.ArtifactManifest{Path: path, Size: buf.Len()}
	for i := range file.Chunks {
		c := &file.Chunks[i]
		manifest.Chunks = append(manifest.Chunks, report.ChunkInfo{
			ContentType: c.ContentType.String(),
			Name:        c.Name,
			Compression: string(c.Compression),
			Size:        len(c.Payload),
		})
	}
	result.Artifact = manifest
	return result
}

// artifactPath picks the output file for one compiled database.
func artifactPath(opts *CompileOptions, db *ir.Database) string {
	name := db.EcuName
	if db.VariantName != "" {
		name += "." + db.VariantName
	}
	name += ".mdd"

	if opts.Output == "" {
		return name
	}
	if opts.AllVariants {
		return filepath.Join(opts.Output, name)
	}
	return opts.Output
}

func displayName(variantName string) string {
	if variantName == "" {
		return "base document"
	}
	return "variant " + variantName
}

// outputReport emits the report and converts it into the process exit
// status.
func outputReport(formatter *OutputFormatter, rep *report.Report) error {
	if formatter.Format == "json" {
		if err := formatter.Success(rep); err != nil {
			return err
		}
		if !rep.Succeeded() {
			return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", rep.Errors))
		}
		return nil
	}

	printReport(formatter, rep)
	if !rep.Succeeded() {
		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", rep.Errors))
	}
	return nil
}

func printReport(formatter *OutputFormatter, rep *report.Report) {
	w := formatter.Writer

	for _, issue := range rep.Issues {
		fmt.Fprintf(w, "[%s] %s %s", issue.Code, issue.Severity, issue.Message)
		if issue.Path != "" {
			fmt.Fprintf(w, " at %s", issue.Path)
		}
		fmt.Fprintln(w)
		if issue.Suggestion != "" {
			fmt.Fprintf(w, "  hint: %s\n", issue.Suggestion)
		}
	}
	if len(rep.Issues) > 0 {
		fmt.Fprintln(w)
	}

	for _, v := range rep.Variants {
		label := displayName(v.Name)
		switch v.Outcome {
		case report.OutcomeFailed:
			fmt.Fprintf(w, "✗ %s: %s\n", label, v.Reason)
			continue
		default:
			fmt.Fprintf(w, "✓ %s: %d service(s), %d type(s)\n", label, v.Services, v.DOPs)
		}
		if v.Audience != nil && v.Audience.Total() > 0 {
			fmt.Fprintf(w, "  audience %q removed %d item(s)\n", v.Audience.Tag, v.Audience.Total())
		}
		for _, s := range v.Skipped {
			fmt.Fprintf(w, "  skipped %s %s: %s\n", s.Kind, s.Name, s.Reason)
		}
		if v.Artifact != nil {
			fmt.Fprintf(w, "  wrote %s (%d bytes)\n", v.Artifact.Path, v.Artifact.Size)
		}
	}

	if rep.Succeeded() {
		fmt.Fprintf(w, "\nDone: %d error(s), %d warning(s)\n", rep.Errors, rep.Warnings)
	} else {
		fmt.Fprintf(w, "\nFailed: %d error(s), %d warning(s)\n", rep.Errors, rep.Warnings)
	}
}

// addStructural folds schema-level errors into the report using the
// structural error code.
func addStructural(rep *report.Report, errs []*schema.StructuralError) {
	for _, e := range errs {
		rep.Issues = append(rep.Issues, report.Issue{
			Severity: "error",
			Code:     "E001",
			Path:     e.Path,
			Message:  e.Message,
		})
		rep.Errors++
	}
}
