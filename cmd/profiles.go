package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/local-job-scraper/internal/config"
	"github.com/JakeFAU/local-job-scraper/internal/crawler"
)

func newProfilesCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			profiles, err := appInstance.Config().SelectProfiles(config.AllProfiles)
			if err != nil {
				return err
			}
			if asYAML {
				return writeProfilesYAML(cmd, profiles)
			}
			return writeProfilesTable(cmd, profiles)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print profiles as a YAML profiles block")
	return cmd
}

func writeProfilesTable(cmd *cobra.Command, profiles []crawler.Profile) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSEARCHES\tKEYWORDS\tOUTPUT")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.Key, p.Name, len(p.PlaceSearches), len(p.JobKeywords), p.OutputFile)
	}
	return tw.Flush()
}

func writeProfilesYAML(cmd *cobra.Command, profiles []crawler.Profile) error {
	block := map[string]map[string]crawler.Profile{"profiles": {}}
	for _, p := range profiles {
		block["profiles"][p.Key] = p
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(block); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	return enc.Close()
}
