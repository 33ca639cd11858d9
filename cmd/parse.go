package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/routine"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Check a routine without running it",
	Long: `Parse every action of a routine and print the command it becomes, or why
it is invalid. No page is opened.

Examples:
  user-routine parse checkout.txt
  user-routine parse -e "click button Save" -e "wait soon"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	addRoutineFlags(parseCmd)
	parseCmd.Flags().String("separator", "", "Field separator (default: the separator option, or space)")
}

func runParse(cmd *cobra.Command, args []string) error {
	actions, fileOptions, err := readActions(cmd, args)
	if err != nil {
		return err
	}
	options, err := routineOptions(cmd, fileOptions)
	if err != nil {
		return err
	}
	cfg, _, err := routine.NewConfig(options)
	if err != nil {
		return err
	}
	if sep, _ := cmd.Flags().GetString("separator"); sep != "" {
		cfg.Separator = sep
	}
	return output.Fprint(cmd.OutOrStdout(), output.ParseActions(actions, cfg))
}
