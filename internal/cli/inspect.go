package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opensovd/mddc/internal/mdd"
	"github.com/opensovd/mddc/internal/report"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Services bool
}

// InspectResult is the decoded view of one MDD artifact.
type InspectResult struct {
	Path          string             `json:"path"`
	FormatVersion uint32             `json:"format_version"`
	EcuName       string             `json:"ecu_name"`
	Revision      string             `json:"revision,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty"`
	Chunks        []report.ChunkInfo `json:"chunks"`
	Database      *DatabaseSummary   `json:"database,omitempty"`
}

// DatabaseSummary counts the tables of a decoded database.
type DatabaseSummary struct {
	Variant        string   `json:"variant,omitempty"`
	Services       int      `json:"services"`
	DOPs           int      `json:"dops"`
	Sessions       int      `json:"sessions"`
	SecurityLevels int      `json:"security_levels"`
	ReadDIDs       int      `json:"read_dids"`
	WriteDIDs      int      `json:"write_dids"`
	Routines       int      `json:"routines"`
	DTCs           int      `json:"dtcs"`
	Variants       int      `json:"variants"`
	Comparams      int      `json:"comparams"`
	ServiceNames   []string `json:"service_names,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <artifact.mdd>",
		Short: "Inspect an MDD artifact",
		Long: `Read an MDD artifact and print its container manifest and a
summary of the decoded diagnostic database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Services, "services", false, "list every service by name")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	f, err := os.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening artifact", err)
	}
	defer f.Close()

	db, file, err := mdd.ReadDatabase(f)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "reading artifact", err)
	}

	result := &InspectResult{
		Path:          path,
		FormatVersion: file.FormatVersion,
		EcuName:       file.EcuName,
		Revision:      file.Revision,
		Metadata:      file.Metadata,
		Database: &DatabaseSummary{
			Variant:        db.VariantName,
			Services:       len(db.Services),
			DOPs:           len(db.DOPs),
			Sessions:       len(db.Sessions),
			SecurityLevels: len(db.SecurityLevels),
			ReadDIDs:       len(db.DIDReadServices),
			WriteDIDs:      len(db.DIDWriteServices),
			Routines:       len(db.RoutineServices),
			DTCs:           len(db.DTCs),
			Variants:       len(db.Variants),
			Comparams:      len(db.Comparams),
		},
	}
	for i := range file.Chunks {
		c := &file.Chunks[i]
		result.Chunks = append(result.Chunks, report.ChunkInfo{
			ContentType: c.ContentType.String(),
			Name:        c.Name,
			Compression: string(c.Compression),
			Size:        len(c.Payload),
		})
	}
	if opts.Services {
		names := make([]string, 0, len(db.Services))
		for name := range db.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		result.Database.ServiceNames = names
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	printInspect(formatter, result)
	return nil
}

func printInspect(formatter *OutputFormatter, r *InspectResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "%s: ecu %s", r.Path, r.EcuName)
	if r.Revision != "" {
		fmt.Fprintf(w, ", revision %s", r.Revision)
	}
	fmt.Fprintf(w, " (format %d)\n", r.FormatVersion)

	if len(r.Metadata) > 0 {
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, r.Metadata[k])
		}
	}

	fmt.Fprintln(w, "\nChunks:")
	for _, c := range r.Chunks {
		fmt.Fprintf(w, "  %s", c.ContentType)
		if c.Name != "" {
			fmt.Fprintf(w, " %q", c.Name)
		}
		if c.Compression != "" {
			fmt.Fprintf(w, " (%s)", c.Compression)
		}
		fmt.Fprintf(w, " %d bytes\n", c.Size)
	}

	d := r.Database
	fmt.Fprintln(w, "\nDatabase:")
	if d.Variant != "" {
		fmt.Fprintf(w, "  variant: %s\n", d.Variant)
	}
	fmt.Fprintf(w, "  services: %d (read DIDs %d, write DIDs %d, routines %d)\n",
		d.Services, d.ReadDIDs, d.WriteDIDs, d.Routines)
	fmt.Fprintf(w, "  data types: %d\n", d.DOPs)
	fmt.Fprintf(w, "  sessions: %d, security levels: %d\n", d.Sessions, d.SecurityLevels)
	fmt.Fprintf(w, "  dtcs: %d, variants: %d, comparams: %d\n", d.DTCs, d.Variants, d.Comparams)

	for _, name := range d.ServiceNames {
		fmt.Fprintf(w, "    %s\n", name)
	}
}
