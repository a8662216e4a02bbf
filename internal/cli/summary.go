package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/telemetry"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize spend over a trailing window",
	Long: `Roll the spend ledger up into totals, per-agent and per-workflow
breakdowns, a daily trend, and spike detection.`,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringP("customer", "c", "", "Customer ID (empty for all customers)")
	summaryCmd.Flags().IntP("days", "d", telemetry.DefaultWindowDays, "Trailing window in days")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	customer, _ := cmd.Flags().GetString("customer")
	days, _ := cmd.Flags().GetInt("days")

	logger := newLogger(cfg)
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	aggregator := telemetry.NewAggregator(store, logger)
	summary, err := aggregator.Summarize(cmd.Context(), customer, days)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	fmt.Printf("=== Spend Summary (last %d days) ===\n", days)
	fmt.Printf("Total cost:          $%s\n", summary.TotalCost.StringFixed(4))
	fmt.Printf("Total executions:    %d\n", summary.TotalExecutions)
	fmt.Printf("Avg cost/execution:  $%s\n", summary.AvgCostPerExecution.StringFixed(4))
	fmt.Printf("Total tokens:        %d\n", summary.TotalTokens)
	if summary.SpikeDetected {
		fmt.Printf("Spike detected:      YES\n")
	}

	if len(summary.CostByAgent) > 0 {
		fmt.Printf("\nBy agent:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  AGENT\tCOST\n")
		for name, cost := range summary.CostByAgent {
			fmt.Fprintf(w, "  %s\t$%s\n", name, cost.StringFixed(4))
		}
		w.Flush()
	}

	if len(summary.CostByWorkflow) > 0 {
		fmt.Printf("\nBy workflow:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  WORKFLOW\tCOST\n")
		for name, cost := range summary.CostByWorkflow {
			fmt.Fprintf(w, "  %s\t$%s\n", name, cost.StringFixed(4))
		}
		w.Flush()
	}

	fmt.Printf("\nDaily trend:\n")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  DATE\tCOST\n")
	for _, point := range summary.CostTrend {
		fmt.Fprintf(w, "  %s\t$%s\n", point.Date, point.Cost.StringFixed(4))
	}
	w.Flush()

	return nil
}
