// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/0x0BSoD/constellation/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "constellation",
	Short: "A blog that draws its posts as a constellation of stars.",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "HCL config file (default ./config.hcl, ./config.local.hcl, $HOME/.config/constellation/config.hcl)")

	rootCmd.AddCommand(serveCmd, importCmd, renderCmd, layoutCmd)
}

// loadConfig prefers the file given with --config over the default lookup.
func loadConfig() (config.Config, error) {
	if configFile == "" {
		return config.Get(), nil
	}
	return config.Load(configFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}
