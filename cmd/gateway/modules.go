package main

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fincore/gateway/internal/gateway"
	"github.com/fincore/gateway/pkg/integration/banking"
	"github.com/fincore/gateway/pkg/integration/crm"
	"github.com/fincore/gateway/pkg/integration/erp"
	"github.com/fincore/gateway/pkg/integration/pm"
	"github.com/fincore/gateway/pkg/models"
)

const dateLayout = "2006-01-02"

// period holds the --from/--to flags. Zero values let the module pick
// its default window.
type period struct {
	from, to string
}

func (p *period) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.to, "to", "", "End date (YYYY-MM-DD)")
}

func (p *period) parse() (from, to time.Time, err error) {
	if p.from != "" {
		if from, err = time.Parse(dateLayout, p.from); err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if p.to != "" {
		if to, err = time.Parse(dateLayout, p.to); err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

func newBankingCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banking",
		Short: "Banking operations on a banking connector",
	}

	// run wraps fn in a banking module for the connector named by args[0].
	run := func(cmd *cobra.Command, name string, fn func(ctx context.Context, m *banking.Module) error) error {
		return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
			return svc.Banking(ctx, name, fn)
		})
	}

	var txAccounts []string
	var txPeriod period
	transactions := &cobra.Command{
		Use:   "transactions NAME",
		Short: "Sync transactions for one or more accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := txPeriod.parse()
			if err != nil {
				return err
			}
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				res := m.SyncTransactions(ctx, txAccounts, from, to)
				return printJSON(res, res.TotalSynced == len(res.Results))
			})
		},
	}
	transactions.Flags().StringSliceVar(&txAccounts, "accounts", nil, "Account numbers")
	_ = transactions.MarkFlagRequired("accounts")
	txPeriod.bind(transactions)

	var balAccounts []string
	balances := &cobra.Command{
		Use:   "balances NAME",
		Short: "Sync balances for one or more accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				res := m.SyncBalances(ctx, balAccounts)
				return printJSON(res, res.TotalSynced == len(res.Results))
			})
		},
	}
	balances.Flags().StringSliceVar(&balAccounts, "accounts", nil, "Account numbers")
	_ = balances.MarkFlagRequired("accounts")

	var recAccount string
	var recPeriod period
	reconcile := &cobra.Command{
		Use:   "reconcile NAME",
		Short: "Build a reconciliation report for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := recPeriod.parse()
			if err != nil {
				return err
			}
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				report := m.ReconciliationReport(ctx, recAccount, from, to)
				return printJSON(report, report.Status != "error")
			})
		},
	}
	reconcile.Flags().StringVar(&recAccount, "account", "", "Account number")
	_ = reconcile.MarkFlagRequired("account")
	recPeriod.bind(reconcile)

	methods := &cobra.Command{
		Use:   "payment-methods NAME",
		Short: "List the payment methods the bank offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				res := m.SyncPaymentMethods(ctx)
				return printJSON(res, res.Status != "error")
			})
		},
	}

	var payPayload string
	pay := &cobra.Command{
		Use:   "pay NAME",
		Short: "Initiate a payment",
		Long: `Pay validates and submits a payment.

Example:
  gateway banking pay rbc --payload '{"payment_type":"interac_etransfer","amount":"25.00","recipient_email":"a@b.ca"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parsePayload(payPayload)
			if err != nil {
				return err
			}
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				res := m.InitiatePayment(ctx, input)
				return printJSON(res, res.Status != "error")
			})
		},
	}
	pay.Flags().StringVar(&payPayload, "payload", "", `Payment JSON object, or "-" to read stdin`)
	_ = pay.MarkFlagRequired("payload")

	paymentStatus := &cobra.Command{
		Use:   "payment-status NAME PAYMENT_ID",
		Short: "Check the status of a payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], func(ctx context.Context, m *banking.Module) error {
				res := m.CheckPaymentStatus(ctx, args[1])
				return printJSON(res, res.Status != "error")
			})
		},
	}

	cmd.AddCommand(transactions, balances, reconcile, methods, pay, paymentStatus)
	return cmd
}

func newERPCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erp",
		Short: "Financial data operations on an ERP connector",
	}

	var filters map[string]string
	sync := &cobra.Command{
		Use:   "sync NAME [TYPE...]",
		Short: "Sync financial data types",
		Long: fmt.Sprintf(`Sync pulls the given financial data types from the ERP, or every
supported type when none is given.

Supported types: %v`, erp.SupportedDataTypes),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types := args[1:]
			if len(types) == 0 {
				types = erp.SupportedDataTypes
			}
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				return svc.ERP(ctx, args[0], func(ctx context.Context, m *erp.Module) error {
					res := m.SyncFinancialData(ctx, types, toFilters(filters))
					return printJSON(res, res.TotalSynced == len(res.Results))
				})
			})
		},
	}
	sync.Flags().StringToStringVar(&filters, "filter", nil, "Filter as key=value (repeatable)")

	var dataType, records string
	send := &cobra.Command{
		Use:   "send NAME",
		Short: "Send financial records to the ERP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var batch []models.Record
			if err := json.Unmarshal([]byte(records), &batch); err != nil {
				return fmt.Errorf("--records must be a JSON array of objects: %w", err)
			}
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				return svc.ERP(ctx, args[0], func(ctx context.Context, m *erp.Module) error {
					res := m.SendFinancialData(ctx, dataType, batch)
					return printJSON(res, res.Status != "error")
				})
			})
		},
	}
	send.Flags().StringVar(&dataType, "type", "", "Financial data type")
	send.Flags().StringVar(&records, "records", "[]", "JSON array of records")
	_ = send.MarkFlagRequired("type")

	cmd.AddCommand(sync, send)
	return cmd
}

func newCRMCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crm",
		Short: "Read customers and leads from a CRM connector",
	}

	read := func(use, short string, fn func(ctx context.Context, m *crm.Module, filters map[string]any) error) *cobra.Command {
		var filters map[string]string
		c := &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
					return svc.CRM(ctx, args[0], func(ctx context.Context, m *crm.Module) error {
						return fn(ctx, m, toFilters(filters))
					})
				})
			},
		}
		c.Flags().StringToStringVar(&filters, "filter", nil, "Filter as key=value (repeatable)")
		return c
	}

	cmd.AddCommand(
		read("customers", "List customers as canonical records", func(ctx context.Context, m *crm.Module, filters map[string]any) error {
			res := m.Customers(ctx, filters)
			return printJSON(res, res.OK())
		}),
		read("leads", "List leads as canonical records", func(ctx context.Context, m *crm.Module, filters map[string]any) error {
			res := m.Leads(ctx, filters)
			return printJSON(res, res.OK())
		}),
	)
	return cmd
}

func newPMCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pm",
		Short: "Read projects and tasks from a project management connector",
	}

	var projectFilters map[string]string
	projects := &cobra.Command{
		Use:   "projects NAME",
		Short: "List projects as canonical records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				return svc.PM(ctx, args[0], func(ctx context.Context, m *pm.Module) error {
					res := m.Projects(ctx, toFilters(projectFilters))
					return printJSON(res, res.OK())
				})
			})
		},
	}
	projects.Flags().StringToStringVar(&projectFilters, "filter", nil, "Filter as key=value (repeatable)")

	var project string
	var taskFilters map[string]string
	tasks := &cobra.Command{
		Use:   "tasks NAME",
		Short: "List tasks as canonical records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				return svc.PM(ctx, args[0], func(ctx context.Context, m *pm.Module) error {
					res := m.Tasks(ctx, project, toFilters(taskFilters))
					return printJSON(res, res.OK())
				})
			})
		},
	}
	tasks.Flags().StringVar(&project, "project", "", "Only tasks of this project")
	tasks.Flags().StringToStringVar(&taskFilters, "filter", nil, "Filter as key=value (repeatable)")

	cmd.AddCommand(projects, tasks)
	return cmd
}
