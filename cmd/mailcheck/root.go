// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/felixrowen/mail-checker/src/config"
	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/store"
)

// app holds what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mailcheck",
		Short:         "Check the email authentication setup of domains",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")

	root.AddCommand(
		newCheckCmd(a),
		newEchoCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newDNSStatusCmd(a),
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(logOut)
	return nil
}

// checker builds an in-process checker. The CLI never delegates to an
// external program, since it usually is that program.
func (a *app) checker() *mailcheck.Checker {
	return mailcheck.New(a.cfg.CheckerOptions(a.logger)...)
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.Store.Path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
