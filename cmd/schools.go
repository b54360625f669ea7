package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"districtfinder/internal/browse"
)

var (
	schoolPage  int
	schoolQuery string
)

var schoolsCmd = &cobra.Command{
	Use:   "schools [leaid]",
	Short: "List the schools in a district",
	Long: `List the schools of the district with the given LEAID, 10 per page.
Results are returned as JSON.

Examples:
  districtfinder schools 0622500
  districtfinder schools --page 2 0622500
  districtfinder schools --page 0 --query elementary 0622500`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		districtID := args[0]
		if schoolPage < 0 {
			HandleError(fmt.Errorf("page must be 0 or greater"), "Invalid page")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		svc, cleanup, err := InitService(cfg)
		if err != nil {
			HandleError(err, "Failed to initialize lookup service")
		}
		defer cleanup()

		schools, err := svc.SearchSchools(context.Background(), schoolQuery, districtID)
		if err != nil {
			HandleError(err, "School lookup failed")
		}

		printJSON(browse.NewSchoolPage(districtID, schools, schoolPage))
	},
}

func init() {
	schoolsCmd.Flags().IntVarP(&schoolPage, "page", "p", 1, "Page of 10 schools to show (0 for all)")
	schoolsCmd.Flags().StringVarP(&schoolQuery, "query", "q", "", "Filter schools by name")
	rootCmd.AddCommand(schoolsCmd)
}
