package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/guardrail"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a prospective execution against the guardrails",
	Long: `Ask the guardrail evaluator for a PASS/WARN/BLOCK verdict. Evaluation is
side-effect-free: use 'spendguard record' to record the execution's actual
cost afterwards.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringP("customer", "c", "", "Customer ID")
	evaluateCmd.Flags().StringP("workflow", "w", "", "Workflow ID")
	evaluateCmd.Flags().StringP("agent", "a", "", "Agent ID")
	evaluateCmd.Flags().String("cost", "", "Execution cost in USD")
	evaluateCmd.Flags().Int64("steps", 1, "Step count for the execution")
	_ = evaluateCmd.MarkFlagRequired("customer")
	_ = evaluateCmd.MarkFlagRequired("workflow")
	_ = evaluateCmd.MarkFlagRequired("cost")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	customer, _ := cmd.Flags().GetString("customer")
	workflow, _ := cmd.Flags().GetString("workflow")
	agent, _ := cmd.Flags().GetString("agent")
	costRaw, _ := cmd.Flags().GetString("cost")
	steps, _ := cmd.Flags().GetInt64("steps")

	cost, err := decimal.NewFromString(costRaw)
	if err != nil {
		return fmt.Errorf("parse --cost: %w", err)
	}

	logger := newLogger(cfg)
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	evaluator := initEvaluator(cfg, store, logger)
	verdict, err := evaluator.Evaluate(cmd.Context(), guardrail.Request{
		CustomerID:    customer,
		WorkflowID:    workflow,
		AgentID:       agent,
		ExecutionCost: cost,
		StepCount:     steps,
	})
	if err != nil {
		return fmt.Errorf("evaluate guardrail: %w", err)
	}

	fmt.Printf("Verdict: %s\n", verdict.Status)
	fmt.Printf("  Reason:          %s\n", verdict.Reason)
	fmt.Printf("  Daily spend:     $%s\n", verdict.DailySpend.StringFixed(4))
	fmt.Printf("  Daily limit:     $%s\n", verdict.DailyBudgetLimit.StringFixed(2))
	fmt.Printf("  Workflow limit:  $%s\n", verdict.WorkflowBudgetLimit.StringFixed(2))
	fmt.Printf("  Cost pressure:   %s\n", verdict.CostPressure)
	fmt.Printf("  Spend velocity:  $%s/hour\n", verdict.SpendVelocity.StringFixed(4))

	return nil
}
