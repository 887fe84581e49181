package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Negotiate a session and print what the service reports about it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			info, err := c.SessionInfo(cmd.Context())
			if err != nil {
				return err
			}
			cred := c.Session()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "partner:     %d\n", info.PartnerID)
			fmt.Fprintf(out, "user:        %s\n", info.UserID)
			fmt.Fprintf(out, "type:        %d\n", info.SessionType)
			if info.Expiry > 0 {
				fmt.Fprintf(out, "expires:     %s\n", time.Unix(info.Expiry, 0).UTC().Format(time.RFC3339))
			}
			if info.Privileges != "" {
				fmt.Fprintf(out, "privileges:  %s\n", info.Privileges)
			}
			fmt.Fprintf(out, "issued:      %s\n", cred.IssuedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "renews:      %s\n", cred.IssuedAt.Add(cred.Timing.KeepAlive()).UTC().Format(time.RFC3339))
			return nil
		},
	}
}
