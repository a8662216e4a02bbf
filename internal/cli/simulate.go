package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/forecast"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Forecast workflow cost before execution",
	Long: `Compute a deterministic cost breakdown and monthly projection for a
workflow shape without touching the spend ledger.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Int64("agents", 1, "Number of agents in the workflow")
	simulateCmd.Flags().Int64("steps", 1, "Average steps per agent")
	simulateCmd.Flags().Int64("tokens", 0, "Tokens per step")
	simulateCmd.Flags().String("cost-per-1k", "", "Model cost per 1k tokens in USD")
	simulateCmd.Flags().StringP("model", "m", "", "Resolve cost per 1k tokens from the pricing table")
	simulateCmd.Flags().Int64("tool-calls", 0, "Tool calls per step")
	simulateCmd.Flags().String("tool-cost", "0", "Cost per tool call in USD")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	agents, _ := cmd.Flags().GetInt64("agents")
	steps, _ := cmd.Flags().GetInt64("steps")
	tokens, _ := cmd.Flags().GetInt64("tokens")
	costPer1kRaw, _ := cmd.Flags().GetString("cost-per-1k")
	modelName, _ := cmd.Flags().GetString("model")
	toolCalls, _ := cmd.Flags().GetInt64("tool-calls")
	toolCostRaw, _ := cmd.Flags().GetString("tool-cost")

	var costPer1k decimal.Decimal
	switch {
	case modelName != "":
		table, err := initPricing(cfg)
		if err != nil {
			return err
		}
		if costPer1k, err = table.CostPer1k(modelName); err != nil {
			return err
		}
	case costPer1kRaw != "":
		if costPer1k, err = decimal.NewFromString(costPer1kRaw); err != nil {
			return fmt.Errorf("parse --cost-per-1k: %w", err)
		}
	default:
		return fmt.Errorf("either --model or --cost-per-1k is required")
	}

	toolCost, err := decimal.NewFromString(toolCostRaw)
	if err != nil {
		return fmt.Errorf("parse --tool-cost: %w", err)
	}

	breakdown, err := forecast.Forecast(forecast.Request{
		NumAgents:            agents,
		AvgStepsPerAgent:     steps,
		TokensPerStep:        tokens,
		ModelCostPer1kTokens: costPer1k,
		ToolCallsPerStep:     toolCalls,
		ToolCostPerCall:      toolCost,
	})
	if err != nil {
		return fmt.Errorf("simulate workflow cost: %w", err)
	}

	fmt.Printf("Cost breakdown:\n")
	fmt.Printf("  Token cost per step:  $%s\n", breakdown.TokenCostPerStep.StringFixed(6))
	fmt.Printf("  Tool cost per step:   $%s\n", breakdown.ToolCostPerStep.StringFixed(6))
	fmt.Printf("  Cost per step:        $%s\n", breakdown.CostPerStep.StringFixed(6))
	fmt.Printf("  Cost per agent:       $%s\n", breakdown.CostPerAgent.StringFixed(6))
	fmt.Printf("  Cost per workflow:    $%s\n", breakdown.CostPerWorkflow.StringFixed(6))
	fmt.Printf("  Monthly projection:   $%s (at 10 runs/day, 30 days)\n", breakdown.MonthlyProjection.StringFixed(2))

	return nil
}
