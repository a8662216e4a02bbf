package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/model"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage budget policies",
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a budget policy for a customer",
	Long: `Create a new budget policy. Policies are never updated in place; the most
recently created policy for a customer is the active one.`,
	RunE: runPolicyCreate,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a customer's policies, newest first",
	RunE:  runPolicyList,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCreateCmd)
	policyCmd.AddCommand(policyListCmd)

	policyCreateCmd.Flags().StringP("customer", "c", "", "Customer ID")
	policyCreateCmd.Flags().String("daily-limit", "", "Daily budget limit in USD")
	policyCreateCmd.Flags().String("workflow-limit", "", "Per-workflow budget limit in USD")
	policyCreateCmd.Flags().Int64("step-limit", 0, "Step limit per agent")
	_ = policyCreateCmd.MarkFlagRequired("customer")
	_ = policyCreateCmd.MarkFlagRequired("daily-limit")
	_ = policyCreateCmd.MarkFlagRequired("workflow-limit")
	_ = policyCreateCmd.MarkFlagRequired("step-limit")

	policyListCmd.Flags().StringP("customer", "c", "", "Customer ID")
	_ = policyListCmd.MarkFlagRequired("customer")
}

func runPolicyCreate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	customer, _ := cmd.Flags().GetString("customer")
	dailyRaw, _ := cmd.Flags().GetString("daily-limit")
	workflowRaw, _ := cmd.Flags().GetString("workflow-limit")
	stepLimit, _ := cmd.Flags().GetInt64("step-limit")

	daily, err := decimal.NewFromString(dailyRaw)
	if err != nil {
		return fmt.Errorf("parse --daily-limit: %w", err)
	}
	workflow, err := decimal.NewFromString(workflowRaw)
	if err != nil {
		return fmt.Errorf("parse --workflow-limit: %w", err)
	}

	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	policy, err := store.CreatePolicy(cmd.Context(), model.PolicyCreate{
		CustomerID:          customer,
		DailyBudgetLimit:    daily,
		WorkflowBudgetLimit: workflow,
		StepLimitPerAgent:   stepLimit,
	})
	if err != nil {
		return fmt.Errorf("create policy: %w", err)
	}

	fmt.Printf("Policy created:\n")
	fmt.Printf("  ID:              %s\n", policy.PolicyID)
	fmt.Printf("  Customer:        %s\n", policy.CustomerID)
	fmt.Printf("  Daily limit:     $%s\n", policy.DailyBudgetLimit.StringFixed(2))
	fmt.Printf("  Workflow limit:  $%s\n", policy.WorkflowBudgetLimit.StringFixed(2))
	fmt.Printf("  Step limit:      %d per agent\n", policy.StepLimitPerAgent)

	return nil
}

func runPolicyList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	customer, _ := cmd.Flags().GetString("customer")

	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	policies, err := store.ListPolicies(cmd.Context(), customer)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}

	if len(policies) == 0 {
		fmt.Printf("No policies for customer %s. Use 'spendguard policy create' to add one.\n", customer)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "POLICY ID\tDAILY LIMIT\tWORKFLOW LIMIT\tSTEP LIMIT\tCREATED\tACTIVE\n")
	for i, p := range policies {
		active := ""
		if i == 0 {
			active = "yes"
		}
		fmt.Fprintf(w, "%s\t$%s\t$%s\t%d\t%s\t%s\n",
			p.PolicyID,
			p.DailyBudgetLimit.StringFixed(2),
			p.WorkflowBudgetLimit.StringFixed(2),
			p.StepLimitPerAgent,
			p.CreatedAt.Format("2006-01-02 15:04"),
			active,
		)
	}
	w.Flush()

	return nil
}
