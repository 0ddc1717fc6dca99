// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/report"
)

// batchEntry is one domain in the output of a multi-domain check.
type batchEntry struct {
	Domain string                     `json:"domain"`
	Result *mailcheck.CheckResultData `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		xlsxPath string
		user     string
	)

	cmd := &cobra.Command{
		Use:   "check <domain>...",
		Short: "Run the SPF, DKIM, DMARC and MX checks",
		Long: `Run the SPF, DKIM, DMARC and MX checks for each domain.

With one domain the report is printed as a single JSON object. With
several, an array of {domain, result, error} objects is printed and the
command fails if any domain could not be checked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reports, err := a.checker().Check(ctx, args...)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := report.WriteFile(xlsxPath, report.FromReports(reports, time.Now())); err != nil {
					return err
				}
			}

			if user != "" {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()

				for _, r := range reports {
					if r.Error != nil {
						continue
					}
					if _, err := st.Save(ctx, user, r.Domain, r.Result); err != nil {
						return err
					}
					a.logger.Debug("check saved", slog.String("domain", r.Domain), slog.String("user", user))
				}
			}

			if len(reports) == 1 {
				if reports[0].Error != nil {
					return reports[0].Error
				}
				return writeJSON(cmd.OutOrStdout(), reports[0].Result)
			}

			failed := 0
			entries := make([]batchEntry, 0, len(reports))
			for _, r := range reports {
				entry := batchEntry{Domain: r.Domain}
				if r.Error != nil {
					entry.Error = r.Error.Error()
					failed++
				} else {
					result := r.Result
					entry.Result = &result
				}
				entries = append(entries, entry)
			}
			if err := writeJSON(cmd.OutOrStdout(), entries); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d domains could not be checked", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the reports to this XLSX file")
	cmd.Flags().StringVar(&user, "user", "", "store successful results in the history of this user")
	return cmd
}

func newEchoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "echo <domain>",
		Short: "Open an SMTP session with the primary mail exchanger",
		Long: `Open an SMTP session with the primary mail exchanger of the domain and
print {"mail_echo": result}. Network failures are reported in the result;
the command only fails for invalid input or when DNS is unavailable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.checker().MailEcho(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				MailEcho mailcheck.MailEchoResult `json:"mail_echo"`
			}{result})
		},
	}
}
