package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if infoJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}
		fmt.Printf("mode:          %s\n", cfg.Mode)
		fmt.Printf("store path:    %s\n", cfg.Store.Path)
		fmt.Printf("api url:       %s\n", cfg.API.URL)
		fmt.Printf("api listen:    %s\n", cfg.API.ListenAddr)
		fmt.Printf("project:       %s\n", cfg.Project.Prefix)
		fmt.Printf("log level:     %s\n", cfg.Log.Level)
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "machine-readable output")
}
