package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/pkg/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load synthetic demo data into the spend ledger",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int64("seed", 0, "Random seed for reproducible data (0 for time-based)")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	table, err := initPricing(cfg)
	if err != nil {
		return err
	}

	var opts []seed.Option
	if randSeed, _ := cmd.Flags().GetInt64("seed"); randSeed != 0 {
		opts = append(opts, seed.WithSeed(randSeed))
	}

	seeder := seed.NewSeeder(store, table, logger, opts...)
	result, err := seeder.Seed(cmd.Context())
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	fmt.Println(result.Message)
	if result.Seeded {
		fmt.Printf("Wrote %d records for customer %s.\n", result.Records, seed.DefaultCustomer)
	}

	return nil
}
