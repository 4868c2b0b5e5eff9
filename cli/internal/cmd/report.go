package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zhaobenny/timeslice/cli/internal/output"
	"github.com/zhaobenny/timeslice/internal/pipeline"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest buckets and totals from data.json",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringP("input", "i", "", "Path of the document to read")
	reportCmd.Flags().String("by", "type", "Totals to print: type, project or group")
	reportCmd.Flags().Int("limit", 10, "Rows of totals to print (0 = all)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
	reportCmd.Flags().Bool("compact", false, "Force compact table output")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.OutputPath = v
	}
	by, _ := cmd.Flags().GetString("by")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	compact, _ := cmd.Flags().GetBool("compact")

	doc, err := pipeline.ReadDocument(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("%w (run 'timeslice build' first)", err)
	}

	var title string
	var totals map[string]int64
	switch by {
	case "type":
		title, totals = "Type", doc.ByType.Totals
	case "project":
		title, totals = "Project", doc.ByProject.Totals
	case "group":
		title, totals = "Project|Description", doc.ByGroup.Totals
	default:
		return fmt.Errorf("invalid --by %q: want type, project or group", by)
	}

	if jsonOutput {
		return output.PrintJSON(os.Stdout, map[string]any{
			"top":    doc.ByTime.Top,
			"totals": totals,
		})
	}

	opts := output.TableOptions{ForceCompact: compact, Limit: limit}
	output.PrintTop(os.Stdout, doc, opts)
	fmt.Println()
	output.PrintTotals(os.Stdout, title, totals, opts)

	if missing := doc.Missing(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: document is missing %v\n", missing)
	}
	return nil
}
