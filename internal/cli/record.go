package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/model"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an executed workflow's cost in the spend ledger",
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringP("customer", "c", "", "Customer ID")
	recordCmd.Flags().StringP("workflow", "w", "", "Workflow ID")
	recordCmd.Flags().StringP("agent", "a", "", "Agent ID")
	recordCmd.Flags().StringP("model", "m", "", "Model name")
	recordCmd.Flags().String("cost", "", "Execution cost in USD")
	recordCmd.Flags().Int64("tokens", 0, "Token count")
	recordCmd.Flags().Int64("steps", 1, "Step count")
	_ = recordCmd.MarkFlagRequired("customer")
	_ = recordCmd.MarkFlagRequired("workflow")
	_ = recordCmd.MarkFlagRequired("agent")
	_ = recordCmd.MarkFlagRequired("cost")
}

func runRecord(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	customer, _ := cmd.Flags().GetString("customer")
	workflow, _ := cmd.Flags().GetString("workflow")
	agent, _ := cmd.Flags().GetString("agent")
	modelName, _ := cmd.Flags().GetString("model")
	costRaw, _ := cmd.Flags().GetString("cost")
	tokens, _ := cmd.Flags().GetInt64("tokens")
	steps, _ := cmd.Flags().GetInt64("steps")

	cost, err := decimal.NewFromString(costRaw)
	if err != nil {
		return fmt.Errorf("parse --cost: %w", err)
	}

	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	record := &model.SpendRecord{
		CustomerID: customer,
		WorkflowID: workflow,
		AgentID:    agent,
		ModelName:  modelName,
		Cost:       cost,
		TokenCount: tokens,
		StepCount:  steps,
	}
	if err := store.Append(cmd.Context(), record); err != nil {
		return fmt.Errorf("record spend: %w", err)
	}

	fmt.Printf("Recorded spend:\n")
	fmt.Printf("  ID:        %s\n", record.ID)
	fmt.Printf("  Customer:  %s\n", record.CustomerID)
	fmt.Printf("  Workflow:  %s\n", record.WorkflowID)
	fmt.Printf("  Agent:     %s\n", record.AgentID)
	fmt.Printf("  Cost:      $%s\n", record.Cost.StringFixed(6))
	fmt.Printf("  Tokens:    %d\n", record.TokenCount)
	fmt.Printf("  Steps:     %d\n", record.StepCount)

	return nil
}
