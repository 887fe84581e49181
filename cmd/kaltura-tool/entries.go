package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Sternrassler/kaltura-client/pkg/client"
	"github.com/Sternrassler/kaltura-client/pkg/export"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/report"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <referenceId>...",
		Short: "Print the entry id of each referenceId",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			var failed int
			for _, ref := range args {
				id, err := c.LookupReferenceID(cmd.Context(), ref)
				if err != nil {
					if !errors.Is(err, kaltura.ErrNotFound) && !errors.Is(err, kaltura.ErrRemoteRejected) {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ref, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", ref, id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d referenceIds not resolved", failed, len(args))
			}
			return nil
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		idsFile    string
		exportFile string
		entryIDs   bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [id]...",
		Short: "Map referenceIds to entry ids, or entry ids to referenceIds",
		Long: `resolve maps referenceIds to entry ids in bulk. With --entry-ids the
direction is reversed. Identifiers come from the arguments, --ids-file
(one per line, "-" for stdin) and --export-file (ids of a JSON lines export).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIDs(args, idsFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if exportFile != "" {
				exported, err := readExportFile(exportFile)
				if err != nil {
					return err
				}
				ids = append(ids, exported...)
			}
			if len(ids) == 0 {
				return fmt.Errorf("%w: no identifiers given", kaltura.ErrConfiguration)
			}

			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var res client.Resolution
			if entryIDs {
				res, err = c.ResolveEntryIDs(cmd.Context(), ids)
			} else {
				res, err = c.ResolveReferenceIDs(cmd.Context(), ids)
			}
			if err != nil {
				return err
			}
			return printResolution(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().StringVar(&idsFile, "ids-file", "", "File with one identifier per line")
	cmd.Flags().StringVar(&exportFile, "export-file", "", "JSON lines export whose entry ids are resolved")
	cmd.Flags().BoolVar(&entryIDs, "entry-ids", false, "Resolve entry ids to referenceIds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the mapping as a JSON object")
	return cmd
}

func printResolution(w io.Writer, res client.Resolution, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Mapping map[string]string `json:"mapping"`
			Missing []string          `json:"missing,omitempty"`
		}{res.Mapping, res.Missing})
	}

	keys := make([]string, 0, len(res.Mapping))
	for k := range res.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, res.Mapping[k])
	}
	for _, k := range res.Missing {
		fmt.Fprintf(w, "%s\t\n", k)
	}
	return nil
}

func newCountCmd(opts *rootOptions) *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			n, err := c.Count(cmd.Context(), service, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", client.ServiceMedia, "Entry service (media, baseEntry)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out        string
		service    string
		lowerBound int64
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry as JSON lines",
		Long: `export walks the entries in creation order and writes each one as a JSON
document per line. The result window ceiling of the service is escaped by
re-anchoring on the creation time, so the export is complete regardless of
the library size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := export.CreateFile[kaltura.Entry](out)
			if err != nil {
				return err
			}
			counting := export.NewCounting[kaltura.Entry](sink)

			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				sink.Close()
				return err
			}
			defer release()

			stats, exportErr := c.ExportEntries(cmd.Context(), client.ExportRequest{
				Service:    service,
				LowerBound: lowerBound,
			}, counting)
			if err := sink.Close(); err != nil && exportErr == nil {
				exportErr = err
			}
			if exportErr != nil {
				return fmt.Errorf("export aborted after %d entries: %w", counting.Count(), exportErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s (%d pages, %d re-anchors, %d duplicates suppressed)\n",
				counting.Count(), out, stats.Pages, len(stats.Anchors), stats.Suppressed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "entries.jsonl", "Output file")
	cmd.Flags().StringVar(&service, "service", client.ServiceMedia, "Entry service (media, baseEntry)")
	cmd.Flags().Int64Var(&lowerBound, "lower-bound", 0, "Only export entries created at or after this unix time")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return entryActionCmd(opts, "delete", "Delete an entry", func(cmd *cobra.Command, c *client.Client, id string) (bool, error) {
		return c.DeleteEntry(cmd.Context(), id)
	})
}

func newBlockCmd(opts *rootOptions) *cobra.Command {
	return entryActionCmd(opts, "block", "Reject an entry in moderation", func(cmd *cobra.Command, c *client.Client, id string) (bool, error) {
		return c.BlockEntry(cmd.Context(), id)
	})
}

func entryActionCmd(opts *rootOptions, name, short string, action func(*cobra.Command, *client.Client, string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <entryId>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			for _, id := range args {
				done, err := action(cmd, c, id)
				if err != nil {
					return fmt.Errorf("%s %s: %w", name, id, err)
				}
				if !done {
					return fmt.Errorf("%s %s: not acknowledged", name, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, name)
			}
			return nil
		},
	}
}

func readExportFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()
	return report.ReadExportIDs(f)
}
