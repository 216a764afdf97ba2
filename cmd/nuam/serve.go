package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/nuam/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the intake, records and report API.

Requests are authenticated by the fronting proxy, which must pass the
username in the X-Remote-User header.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			srv := server.New(store, cfg.Uploads.Dir, server.Options{
				Logger:         slog.Default(),
				MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
			})
			return srv.ListenAndServe(cmd.Context(), cfg.Server.ListenAddr)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.listen_addr", cmd.Flags().Lookup("addr"))

	return cmd
}
