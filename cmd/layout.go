package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/timeline"
)

type layoutPoint struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the star coordinates of all posts as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
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

		engine := timeline.New(cfg.Location())

		if cmd.Flags().Changed("year-at") {
			fraction, _ := cmd.Flags().GetFloat64("year-at")
			if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
				return errors.New("--year-at must be between 0 and 1")
			}
			year, ok := engine.EstimateYearAtPosition(posts, fraction)
			if !ok {
				return errors.New("no posts")
			}
			fmt.Fprintln(cmd.OutOrStdout(), year)
			return nil
		}

		points := make([]layoutPoint, 0, len(posts))
		for _, p := range engine.ComputeLayout(posts) {
			points = append(points, layoutPoint{ID: p.ID, Title: p.Title, X: p.X, Y: p.Y})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	},
}

func init() {
	layoutCmd.Flags().Float64("year-at", 0, "print the year at this horizontal fraction (0..1) instead")
}
