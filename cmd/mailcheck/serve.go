// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/felixrowen/mail-checker/src/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the check API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			gin.SetMode(a.cfg.Server.Mode)

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			engine := a.cfg.NewEngine(a.logger)
			a.logger.Info("starting server",
				slog.String("addr", addr),
				slog.String("store", a.cfg.Store.Path),
				slog.String("engine", engineName(a.cfg.Engine.Program)),
			)

			srv := server.New(engine, st, a.cfg.ServerOptions(a.logger)...)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func engineName(program string) string {
	if program == "" {
		return "in-process"
	}
	return program
}
