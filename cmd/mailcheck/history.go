// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixrowen/mail-checker/src/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		user   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the stored checks of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListByUser(ctx, user)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tSPF\tDKIM\tDMARC\tMX\tUPDATED\tID")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Domain,
					r.Result.SPF.Status,
					r.Result.DKIM.Status,
					r.Result.DMARC.Status,
					r.Result.MailEcho.Status,
					r.UpdatedAt.Format(time.RFC3339),
					r.ID,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose history is listed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var user, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored checks of a user to an XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListByUser(ctx, user)
			if err != nil {
				return err
			}
			if err := report.WriteFile(out, report.FromRecords(records)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose history is exported")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output XLSX file")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
