package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jobharvest/harvester/internal/config"
	"github.com/jobharvest/harvester/internal/sources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the sources a run will scrape",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		srcs, err := sources.Load(cfg.SourcesFile)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLISTING URL")
		for _, s := range srcs {
			fmt.Fprintf(w, "%s\t%s\n", s.Name, s.ListingURL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
