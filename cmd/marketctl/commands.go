package main

import (
	"fmt"
	"marketplace-handoff/internal/app"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/middleware"
	"marketplace-handoff/internal/payout"
	"marketplace-handoff/internal/worker"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App, _ *config.Config) error {
				if err := client.Migrate(a.DB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func payoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Inspect and retry vendor payouts",
	}
	cmd.AddCommand(payoutsRetryCmd())
	return cmd
}

func payoutsRetryCmd() *cobra.Command {
	var (
		batch       int
		concurrency int
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry failed payouts once",
		Long: `Retry failed payouts whose handoff is still confirmed.

Each failed payout is re-attempted as a new payout row. A failed payout whose
item or pickup was rolled back is voided instead.

Examples:
  marketctl payouts retry
  marketctl payouts retry --batch 200 --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App, cfg *config.Config) error {
				wcfg := cfg.Worker
				if cmd.Flags().Changed("batch") {
					wcfg.RetryBatch = batch
				}
				if cmd.Flags().Changed("concurrency") {
					wcfg.RetryConcurrency = concurrency
				}
				if cmd.Flags().Changed("max-attempts") {
					wcfg.MaxAttempts = maxAttempts
				}

				summary, err := worker.NewPayoutRetrier(a.Payouts, wcfg, app.NewLogger(cfg.Log)).RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d succeeded=%d failed=%d voided=%d\n",
					summary.Attempted, summary.Succeeded, summary.Failed, summary.Voided)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 50, "maximum payouts to retry")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel transfers")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 5, "skip payouts that already failed this many times")
	return cmd
}

func feesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Vendor fee balances",
	}
	cmd.AddCommand(feesBalanceCmd())
	cmd.AddCommand(feesChargeCmd())
	return cmd
}

func feesBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [vendor-profile-id]",
		Short: "Show a vendor's outstanding fee balance and recent entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App, _ *config.Config) error {
				summary, err := a.FeeLedger.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "vendor %s owes %s\n", summary.VendorProfileID, summary.Balance)
				for _, e := range summary.RecentEntries {
					fmt.Fprintf(out, "  %s  %-6s %10s  %s\n",
						e.CreatedAt.Format(time.RFC3339), e.Kind, payout.FormatCents(e.AmountCents), e.Reason)
				}
				return nil
			})
		},
	}
}

func feesChargeCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "charge [vendor-profile-id] [amount-cents]",
		Short: "Add a charge to a vendor's outstanding fee balance",
		Long: `Add a charge to a vendor's outstanding fee balance.

The balance is withheld from the vendor's next payouts.

Examples:
  marketctl fees charge 6f1c... 300 --reason "unpaid subscription fee"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive number of cents, got %q", args[1])
			}

			return withApp(cmd.Context(), func(a *app.App, _ *config.Config) error {
				if err := a.FeeLedger.RecordFeeCharge(cmd.Context(), args[0], amount, reason); err != nil {
					return err
				}
				balance, err := a.FeeLedger.OutstandingBalance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "charged %s, balance now %s\n",
					payout.FormatCents(amount), payout.FormatCents(balance))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual charge", "ledger entry reason")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		vendorID string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}

			token, err := middleware.SignToken(cfg.Auth.JWTSecret, args[0], vendorID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&vendorID, "vendor", "", "vendor profile id to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
