package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/user-routine/internal/model"
	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/routine"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <selector>",
	Short: "Show the elements a selector matches",
	Long: `Snapshot the elements matching a CSS selector as a tree. With --text, nodes
containing the text are flagged and the one a click would land on is marked
specific.

Examples:
  user-routine inspect --html page.html "form >> button"
  user-routine inspect --url https://example.com nav --text Pricing --matches --flat`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addTargetFlags(inspectCmd)
	inspectCmd.Flags().String("text", "", "Text to look for, case-insensitive")
	inspectCmd.Flags().Int("depth", 0, "Levels below each match to include (0 = unlimited)")
	inspectCmd.Flags().Bool("flat", false, "Print a flat list with paths instead of a tree")
	inspectCmd.Flags().Bool("matches", false, "Only keep nodes containing --text")
	inspectCmd.Flags().Bool("clickable", false, "Drop subtrees without a clickable node")
}

func runInspect(cmd *cobra.Command, args []string) error {
	selector := args[0]
	text, _ := cmd.Flags().GetString("text")
	depth, _ := cmd.Flags().GetInt("depth")
	flat, _ := cmd.Flags().GetBool("flat")
	matches, _ := cmd.Flags().GetBool("matches")
	clickable, _ := cmd.Flags().GetBool("clickable")

	ctx := cmd.Context()
	provider, err := openTarget(ctx, appConfig.Browser)
	if err != nil {
		return err
	}
	defer provider.Close()

	elements, err := routine.Inspect(ctx, provider.Document, selector, text, depth)
	if err != nil {
		return err
	}
	if matches && text != "" {
		elements = model.FilterMatches(elements)
	}
	if clickable {
		elements = model.PruneUnclickable(elements)
	}

	ts := time.Now().Unix()
	if flat {
		return output.Fprint(cmd.OutOrStdout(), output.InspectFlatResult{
			Target:   provider.Target,
			Selector: selector,
			Text:     text,
			TS:       ts,
			Elements: model.FlattenElements(elements),
		})
	}
	return output.Fprint(cmd.OutOrStdout(), output.InspectResult{
		Target:   provider.Target,
		Selector: selector,
		Text:     text,
		TS:       ts,
		Elements: elements,
	})
}
