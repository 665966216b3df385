package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Fetch the configured feeds once and store new items as posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if feeds, _ := cmd.Flags().GetStringSlice("feed"); len(feeds) > 0 {
			cfg.ImportFeeds = feeds
		}
		if len(cfg.ImportFeeds) == 0 {
			return errors.New("no feeds configured")
		}

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		rep, err := newReporter(cfg)
		if err != nil {
			return err
		}

		imp, err := newImporter(cfg, db, rep)
		if err != nil {
			return err
		}

		n := imp.Import(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d posts\n", n)

		return nil
	},
}

func init() {
	importCmd.Flags().StringSlice("feed", nil, "feed URL to import (repeatable, overrides import_feeds)")
}
