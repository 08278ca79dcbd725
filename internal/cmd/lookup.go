package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/output"
)

var lookupDomain int

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Reference data used by profile activities",
}

var lookupDomainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		domains, err := svc.Lookups.Domains(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Domains", formatter.DomainTable(domains))
	},
}

var lookupFunctionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List functions, optionally within one domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		fns, err := svc.Lookups.Functions(cmd.Context(), lookupDomain)
		if err != nil {
			return err
		}
		return output.PrintList("Functions", formatter.FunctionTable(fns))
	},
}

var lookupOccupationsCmd = &cobra.Command{
	Use:   "occupations",
	Short: "List occupations",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		occs, err := svc.Lookups.Occupations(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Occupations", formatter.OccupationTable(occs))
	},
}

func init() {
	lookupFunctionsCmd.Flags().IntVar(&lookupDomain, "domain", 0, "Only functions of this domain")

	lookupCmd.AddCommand(lookupDomainsCmd)
	lookupCmd.AddCommand(lookupFunctionsCmd)
	lookupCmd.AddCommand(lookupOccupationsCmd)
}
