// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDNSStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dns-status",
		Short: "Show the health and latency of the configured DNS servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.checker()

			names := make(map[string]string)
			for _, s := range c.Servers() {
				names[s.Address] = s.Name
			}

			statuses, err := c.DNSStatus(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SERVER\tNAME\tSTATUS\tLATENCY\tERROR")
			for _, s := range statuses {
				state, latency, reason := "offline", "-", ""
				if s.Online {
					state = "online"
					latency = fmt.Sprintf("%dms", s.LatencyMs)
				}
				if s.Error != nil {
					reason = s.Error.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Server, names[s.Server], state, latency, reason)
			}
			return tw.Flush()
		},
	}
}
