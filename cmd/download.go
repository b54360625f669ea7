package cmd

import (
	"github.com/spf13/cobra"
)

var forceDownload bool

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the CCD school directory for the local backend",
	Long: `Download and extract the NCES Common Core of Data school directory
into the data directory. The local backend answers district and school
lookups from this file instead of the ArcGIS services.

Examples:
  districtfinder download
  districtfinder download --force --data-dir /var/lib/districtfinder`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		if err := DownloadData(cfg, forceDownload); err != nil {
			HandleError(err, "Failed to download directory data")
		}
	},
}

func init() {
	downloadCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Download even if the file is already present")
	rootCmd.AddCommand(downloadCmd)
}
