package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"districtfinder/internal/config"
	"districtfinder/internal/nces"
)

// These variables will be set by main package
var (
	LaunchTUI    func(cfg *config.Config)
	InitService  func(cfg *config.Config) (nces.Service, func(), error)
	StartServer  func(cfg *config.Config) error
	DownloadData func(cfg *config.Config, force bool) error
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		HandleError(err, "Failed to encode JSON")
	}
	fmt.Println(string(output))
}
