package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var districtLimit int

var districtsCmd = &cobra.Command{
	Use:   "districts [query]",
	Short: "Search school districts by name",
	Long: `Search school districts whose name contains the query (case-insensitive).
Results are returned as JSON.

Examples:
  districtfinder districts "Lincoln"
  districtfinder districts --backend local "Unified"
  districtfinder districts --limit 5 "County"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		svc, cleanup, err := InitService(cfg)
		if err != nil {
			HandleError(err, "Failed to initialize lookup service")
		}
		defer cleanup()

		districts, err := svc.SearchSchoolDistricts(context.Background(), query)
		if err != nil {
			HandleError(err, "District lookup failed")
		}
		if districtLimit > 0 && len(districts) > districtLimit {
			districts = districts[:districtLimit]
		}

		printJSON(map[string]interface{}{
			"query":     query,
			"count":     len(districts),
			"districts": districts,
		})
	},
}

func init() {
	districtsCmd.Flags().IntVarP(&districtLimit, "limit", "l", 0, "Maximum number of results (0 for no limit)")
	rootCmd.AddCommand(districtsCmd)
}
