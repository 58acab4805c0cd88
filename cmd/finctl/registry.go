package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsight/analyst/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the document registry",
}

var registryCompanyFilter string

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry entries, optionally filtered by company",
	RunE:  runRegistryList,
}

var registryShowCmd = &cobra.Command{
	Use:   "show <accessionNumber>",
	Short: "Show one registry entry by accession number",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryShow,
}

var registryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize registry contents",
	RunE:  runRegistryStats,
}

func init() {
	registryListCmd.Flags().StringVar(&registryCompanyFilter, "company", "", "only entries matching this company name")
	registryCmd.AddCommand(registryListCmd, registryShowCmd, registryStatsCmd)
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	var filter *registry.Filter
	if registryCompanyFilter != "" {
		filter = &registry.Filter{CompanyFilter: registryCompanyFilter}
	}
	entries, err := reg.ListAll(filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%s\n", e.Metadata.AccessionNumber, e.Metadata.CompanyName, e.Metadata.FormType, e.Metadata.FilingDate)
	}
	return nil
}

func runRegistryShow(cmd *cobra.Command, args []string) error {
	entry, ok := reg.LookupByAccession(args[0])
	if !ok {
		return fmt.Errorf("no registry entry for accession %q", args[0])
	}
	return printJSON(entry)
}

func runRegistryStats(cmd *cobra.Command, args []string) error {
	stats, err := reg.Stats()
	if err != nil {
		return err
	}
	return printJSON(stats)
}
