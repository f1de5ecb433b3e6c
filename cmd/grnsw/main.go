// Command grnsw is the thin CLI collaborator for grnsd: every
// subcommand except export and import is a direct call against the
// HTTP/JSON surface, with no engine logic of its own; export and
// import open the configured store directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/config"
)

var (
	cfgFile    string
	projectOpt string
	cfg        *config.Config
	client     *apiClient
)

var rootCmd = &cobra.Command{
	Use:   "grnsw",
	Short: "grnsw talks to a running grnsd over its HTTP/JSON API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}
		prefix := cfg.Project.Prefix
		if projectOpt != "" {
			prefix = projectOpt
		}
		client = newAPIClient(cfg.API.URL, prefix)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: discovered under .grns/)")
	rootCmd.PersistentFlags().StringVar(&projectOpt, "project", "", "project prefix (default: configured default project)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(reopenCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(staleCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(srvCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "grnsw: %v\n", err)
		os.Exit(1)
	}
}

func printTaskLine(id, status, title string) {
	fmt.Printf("%-16s %-12s %s\n", id, status, title)
}
