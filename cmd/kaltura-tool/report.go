package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/client"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/report"
	"github.com/spf13/cobra"
)

const dayLayout = "2006-01-02"

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		idsFile    string
		exportFile string
		from       string
		to         string
		domain     string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "report [entryId]...",
		Short: "Write the top content report of entries as CSV",
		Long: `report queries the top content report (plays, view time, drop off) for the
given entry ids and writes it as CSV. Ids come from the arguments, --ids-file
and --export-file. Dates use the YYYY-MM-DD format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseReportFilter(from, to, domain)
			if err != nil {
				return err
			}
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
				return fmt.Errorf("%w: no entry ids given", kaltura.ErrConfiguration)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				defer f.Close()
				w = f
			}

			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			rows, err := c.ReportFromIDs(cmd.Context(), ids, filter, report.NewCSVWriter(w))
			if err != nil {
				return fmt.Errorf("report aborted after %d rows: %w", rows, err)
			}
			opts.logger.Info().Int("rows", rows).Str("out", out).Msg("Report written")
			return nil
		},
	}

	cmd.Flags().StringVar(&idsFile, "ids-file", "", "File with one entry id per line")
	cmd.Flags().StringVar(&exportFile, "export-file", "", "JSON lines export whose entries are reported on")
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVar(&domain, "domain", "", "Only count plays from this referring domain")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "CSV output file")
	return cmd
}

func parseReportFilter(from, to, domain string) (client.ReportFilter, error) {
	filter := client.ReportFilter{Domain: domain}
	if from == "" {
		return filter, fmt.Errorf("%w: --from is required", kaltura.ErrConfiguration)
	}
	var err error
	if filter.From, err = time.Parse(dayLayout, from); err != nil {
		return filter, fmt.Errorf("%w: invalid --from: %v", kaltura.ErrConfiguration, err)
	}
	if to == "" {
		filter.To = time.Now()
	} else if filter.To, err = time.Parse(dayLayout, to); err != nil {
		return filter, fmt.Errorf("%w: invalid --to: %v", kaltura.ErrConfiguration, err)
	}
	if filter.To.Before(filter.From) {
		return filter, fmt.Errorf("%w: --to is before --from", kaltura.ErrConfiguration)
	}
	return filter, nil
}
