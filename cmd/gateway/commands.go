package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fincore/gateway/internal/gateway"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

var stdout io.Writer = os.Stdout

// printJSON writes v as indented JSON and returns errFailed when ok is false.
func printJSON(v any, ok bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	if !ok {
		return errFailed
	}
	return nil
}

// parsePayload decodes a JSON object given on the command line. A value of
// "-" reads it from stdin.
func parsePayload(raw string) (models.Record, error) {
	data := []byte(raw)
	if raw == "-" {
		var err error
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}
	var payload models.Record
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if payload == nil {
		payload = models.Record{}
	}
	return payload, nil
}

func toFilters(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List available connector types",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := registry.ListConnectorInfo()
			sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
			return printJSON(infos, true)
		},
	}
}

func newImportCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create or update connector configurations from a YAML file",
		Long: `Import reads a YAML file with a top-level "connectors" list and saves every
entry. ${VAR} references are replaced with environment values.

Example:
  gateway import connectors.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				summary, err := svc.Import(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(summary, true)
			})
		},
	}
}

func newConnectorsCommand(flags *globalFlags) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "List stored connector configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				cfgs, err := svc.Connectors(ctx, activeOnly)
				if err != nil {
					return err
				}
				return printJSON(cfgs, true)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active connectors")
	cmd.AddCommand(newConnectorUpdateCommand(flags), newConnectorDeleteCommand(flags))
	return cmd
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status NAME",
		Short: "Show connector status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				st, err := svc.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(st, true)
			})
		},
	}
}

func newTestCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test NAME",
		Short: "Test a connector's connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				res, err := svc.Test(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(res, res.OK())
			})
		},
	}
}

func newSyncCommand(flags *globalFlags) *cobra.Command {
	var filters map[string]string
	cmd := &cobra.Command{
		Use:   "sync NAME DATA_TYPE",
		Short: "Pull data through a connector",
		Long: `Sync pulls one data type through the named connector.

Example:
  gateway sync hubspot customers --filter status=active`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				res, err := svc.Sync(ctx, args[0], args[1], toFilters(filters))
				if err != nil {
					return err
				}
				return printJSON(res, res.OK())
			})
		},
	}
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Filter as key=value (repeatable)")
	return cmd
}

func newSendCommand(flags *globalFlags) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "send NAME DATA_TYPE",
		Short: "Push data through a connector",
		Long: `Send pushes a JSON object through the named connector.

Example:
  gateway send rbc payment --payload '{"amount":"10.00","recipient_email":"a@b.ca"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parsePayload(payload)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				res, err := svc.Send(ctx, args[0], args[1], record)
				if err != nil {
					return err
				}
				return printJSON(res, res.OK())
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "{}", `JSON object to send, or "-" to read stdin`)
	return cmd
}

func newLogsCommand(flags *globalFlags) *cobra.Command {
	var q oplog.Query
	var status string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent operation log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Status = oplog.Status(status)
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				entries, err := svc.Logs(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(entries, true)
			})
		},
	}
	cmd.Flags().StringVar(&q.Connector, "connector", "", "Only entries for this connector")
	cmd.Flags().StringVar(&status, "status", "", "Only entries with this status (success, error, warning)")
	cmd.Flags().IntVar(&q.Limit, "limit", oplog.DefaultQueryLimit, "Maximum number of entries")
	return cmd
}
