package cli

import (
	"github.com/spf13/cobra"

	"github.com/opensovd/mddc/internal/report"
	"github.com/opensovd/mddc/internal/schema"
	"github.com/opensovd/mddc/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <document.yaml>",
		Short: "Validate a diagnostic description without compiling it",
		Long: `Validate a YAML diagnostic description.

Structural validation checks the document against the schema; semantic
validation checks cross-references, identifier ranges, and variant
inheritance. No artifact is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, input string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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

	rep.Revision = load.Document.Meta.Revision
	rep.AddIssues(validate.Document(load.Document))

	return outputReport(formatter, rep)
}
