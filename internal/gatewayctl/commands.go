// Package gatewayctl holds the operator commands behind the gatewayctl binary.
package gatewayctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/domain/reference"
	vservice "github.com/vendweave-gateway/internal/verification/service"
)

const dateLayout = "2006-01-02"

// App is what the commands operate on
type App struct {
	References  vservice.ReferenceLedger
	Financials  vservice.FinancialLedger
	Settlements vservice.SettlementEngine
	Close       func()
}

// AppFactory opens the stores for one command run
type AppFactory func(ctx context.Context) (*App, error)

// NewRootCmd builds the gatewayctl command tree
func NewRootCmd(factory AppFactory, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "gatewayctl - operator tooling for the VendWeave payment gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(expireReferencesCmd(factory))
	rootCmd.AddCommand(settleCmd(factory))
	rootCmd.AddCommand(reconcileCmd(factory))
	rootCmd.AddCommand(statsCmd(factory))
	rootCmd.AddCommand(refundCmd(factory))
	rootCmd.AddCommand(cancelRecordCmd(factory))

	return rootCmd
}

// withApp opens the app, runs fn and closes the app again
func withApp(cmd *cobra.Command, factory AppFactory, fn func(ctx context.Context, app *App, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("failed to open gateway stores: %w", err)
	}
	if app.Close != nil {
		defer app.Close()
	}

	return fn(ctx, app, cmd.OutOrStdout())
}

func expireReferencesCmd(factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-references",
		Short: "Expire every reserved reference whose TTL has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				expired, err := app.References.ExpireOverdue(ctx)
				if err != nil {
					return fmt.Errorf("failed to expire references: %w", err)
				}
				fmt.Fprintf(out, "Expired %d reference(s)\n", expired)
				return nil
			})
		},
	}
}

func settleCmd(factory AppFactory) *cobra.Command {
	var store, gateway, date string

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Batch unsettled confirmed, partial and overpaid records into a settlement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := financial.Filter{
				StoreSlug: strings.TrimSpace(store),
				Gateway:   strings.ToLower(strings.TrimSpace(gateway)),
			}
			if date != "" {
				day, err := time.Parse(dateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
				filter.Date = &day
			}

			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				settlement, err := app.Settlements.GenerateSettlement(ctx, filter)
				if err != nil {
					if errors.Is(err, financial.ErrNothingToSettle) {
						fmt.Fprintln(out, "No unsettled records match the filter")
						return nil
					}
					return fmt.Errorf("failed to generate settlement: %w", err)
				}

				fmt.Fprintf(out, "Settlement %s\n", settlement.SettlementID)
				fmt.Fprintf(out, "  Records:        %d\n", settlement.RecordCount)
				fmt.Fprintf(out, "  Total expected: %s\n", settlement.TotalExpected.StringFixed(financial.MoneyScale))
				fmt.Fprintf(out, "  Total paid:     %s\n", settlement.TotalPaid.StringFixed(financial.MoneyScale))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&store, "store", "", "Only settle records of this store slug")
	cmd.Flags().StringVar(&gateway, "gateway", "", "Only settle records of this gateway (bkash, nagad, ...)")
	cmd.Flags().StringVar(&date, "date", "", "Only settle records created on this UTC day (YYYY-MM-DD)")

	return cmd
}

func reconcileCmd(factory AppFactory) *cobra.Command {
	var orderID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Total every gateway's payments for an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				reconciliation, err := app.Financials.ReconcileOrder(ctx, strings.TrimSpace(orderID))
				if err != nil {
					return fmt.Errorf("failed to reconcile order %s: %w", orderID, err)
				}

				if asJSON {
					return writeJSON(out, reconciliation)
				}

				fmt.Fprintf(out, "Order %s (%d record(s), base %s)\n", reconciliation.OrderID, reconciliation.RecordCount, reconciliation.BaseCurrency)
				gateways := make([]string, 0, len(reconciliation.Gateways))
				for gateway := range reconciliation.Gateways {
					gateways = append(gateways, gateway)
				}
				sort.Strings(gateways)
				for _, gateway := range gateways {
					fmt.Fprintf(out, "  %-10s %s\n", gateway, reconciliation.Gateways[gateway].String())
				}
				fmt.Fprintf(out, "  %-10s %s\n", "total", reconciliation.TotalPaid.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orderID, "order", "", "Order ID to reconcile")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func statsCmd(factory AppFactory) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reference and financial record counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				references, err := referenceCounts(ctx, app.References)
				if err != nil {
					return err
				}
				records, err := financialCounts(ctx, app.Financials)
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(out, map[string]interface{}{
						"references":        references,
						"financial_records": records,
					})
				}

				fmt.Fprintln(out, "References:")
				printCounts(out, references, referenceNames())
				fmt.Fprintln(out, "Financial records:")
				printCounts(out, records, financialNames())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func refundCmd(factory AppFactory) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Mark the financial record of a reference as refunded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				record, err := app.Financials.MarkRefunded(ctx, strings.TrimSpace(ref))
				if err != nil {
					return fmt.Errorf("failed to refund %s: %w", ref, err)
				}
				fmt.Fprintf(out, "Record %s is now %s\n", record.Reference, record.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ref, "reference", "", "Payment reference")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func cancelRecordCmd(factory AppFactory) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "cancel-record",
		Short: "Cancel the financial record of a reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App, out io.Writer) error {
				record, err := app.Financials.Cancel(ctx, strings.TrimSpace(ref))
				if err != nil {
					return fmt.Errorf("failed to cancel %s: %w", ref, err)
				}
				fmt.Fprintf(out, "Record %s is now %s\n", record.Reference, record.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ref, "reference", "", "Payment reference")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

// referenceCounts lower-cases statuses and treats disabled governance as no data
func referenceCounts(ctx context.Context, ledger vservice.ReferenceLedger) (map[string]int64, error) {
	counts, err := ledger.Stats(ctx)
	if err != nil {
		if errors.Is(err, reference.ErrGovernanceDisabled) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reference stats: %w", err)
	}

	result := make(map[string]int64, len(reference.AllStatuses))
	for _, status := range reference.AllStatuses {
		result[status.Lower()] = counts[status]
	}
	return result, nil
}

func financialCounts(ctx context.Context, ledger vservice.FinancialLedger) (map[string]int64, error) {
	counts, err := ledger.Stats(ctx)
	if err != nil {
		if errors.Is(err, financial.ErrFinancialDisabled) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get financial stats: %w", err)
	}

	result := make(map[string]int64, len(financial.AllStatuses))
	for _, status := range financial.AllStatuses {
		result[strings.ToLower(string(status))] = counts[status]
	}
	return result, nil
}

func referenceNames() []string {
	names := make([]string, len(reference.AllStatuses))
	for i, status := range reference.AllStatuses {
		names[i] = status.Lower()
	}
	return names
}

func financialNames() []string {
	names := make([]string, len(financial.AllStatuses))
	for i, status := range financial.AllStatuses {
		names[i] = strings.ToLower(string(status))
	}
	return names
}

func printCounts(out io.Writer, counts map[string]int64, order []string) {
	if counts == nil {
		fmt.Fprintln(out, "  disabled")
		return
	}
	for _, name := range order {
		fmt.Fprintf(out, "  %-10s %d\n", name, counts[name])
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
