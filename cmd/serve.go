package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/constellation/internal/render"
	"github.com/0x0BSoD/constellation/internal/server"
	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the constellation API and run the feed importer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		style, err := render.LoadStyle(cfg.StyleFile)
		if err != nil {
			return err
		}

		rep, err := newReporter(cfg)
		if err != nil {
			return err
		}

		imp, err := newImporter(cfg, db, rep)
		if err != nil {
			return err
		}

		if cfg.AdminToken == "" {
			log.Printf("[INFO] admin_token is empty, admin API disabled")
		}

		srv := server.New(
			storage.NewPostStorage(db),
			storage.NewSettingsStorage(db),
			timeline.NewCache(timeline.New(cfg.Location())),
			style,
			cfg.AdminToken,
			rep,
		)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return stopped("http server", srv.Run(gctx, cfg.ListenAddr, cfg.ShutdownGrace))
		})

		if len(cfg.ImportFeeds) > 0 {
			g.Go(func() error {
				return stopped("importer", imp.Start(gctx))
			})
		}

		return g.Wait()
	},
}

// stopped treats cancellation as a clean shutdown.
func stopped(name string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		log.Printf("[INFO] %s stopped", name)
		return nil
	}
	log.Printf("[ERROR] failed to run %s: %v", name, err)
	return err
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides listen_addr)")
}
