package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newAppTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apptoken",
		Short: "Manage app tokens (requires the admin secret)",
		Long: `apptoken creates, lists and deletes app tokens. App tokens are created
with the partner admin secret, then used instead of it for every other
command.`,
	}
	cmd.AddCommand(newAppTokenAddCmd(opts), newAppTokenListCmd(opts), newAppTokenDeleteCmd(opts))
	return cmd
}

func newAppTokenAddCmd(opts *rootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an app token and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			token, err := c.AddAppToken(cmd.Context(), description)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(token)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Token description")
	return cmd
}

func newAppTokenListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List app tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			tokens, err := c.ListAppTokens(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tHASH\tDESCRIPTION")
			for _, t := range tokens {
				created := ""
				if t.CreatedAt > 0 {
					created = time.Unix(t.CreatedAt, 0).UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, created, t.HashType, t.Description)
			}
			return tw.Flush()
		},
	}
}

func newAppTokenDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tokenId>...",
		Short: "Delete app tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			for _, id := range args {
				if err := c.DeleteAppToken(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete app token %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tdeleted\n", id)
			}
			return nil
		},
	}
}
