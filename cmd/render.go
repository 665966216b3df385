package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/0x0BSoD/constellation/internal/render"
	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw the constellation of all posts as SVG",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("style"); path != "" {
			cfg.StyleFile = path
		}

		style, err := render.LoadStyle(cfg.StyleFile)
		if err != nil {
			return err
		}

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		posts, err := storage.NewPostStorage(db).Posts(cmd.Context(), true)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if out, _ := cmd.Flags().GetString("output"); out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}

		return render.SVG(w, timeline.New(cfg.Location()).ComputeLayout(posts), style)
	},
}

func init() {
	renderCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	renderCmd.Flags().String("style", "", "YAML style file (overrides style_file)")
}
