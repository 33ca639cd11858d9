package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/platform"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List the available page drivers",
	Long:  "List the drivers a routine can run on, and the one --url or --html would pick.",
	Args:  cobra.NoArgs,
	RunE:  runDrivers,
}

func init() {
	rootCmd.AddCommand(driversCmd)
}

// driverEntry is one line of the drivers output.
type driverEntry struct {
	Name    string `yaml:"name"              json:"name"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

var driverDefaults = map[string]string{
	"html":     "--html",
	"chromedp": "--url",
}

func runDrivers(cmd *cobra.Command, args []string) error {
	names := platform.Drivers()
	entries := make([]driverEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, driverEntry{Name: name, Default: driverDefaults[name]})
	}
	return output.Fprint(cmd.OutOrStdout(), entries)
}
