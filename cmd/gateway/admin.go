package main

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fincore/gateway/internal/gateway"
	"github.com/fincore/gateway/pkg/store"
)

// parseSettings turns key=value flags into config values. Values are read
// as YAML scalars, so "true" and "30" become a bool and a number.
func parseSettings(in map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, raw := range in {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", k, err)
		}
		if v == nil {
			v = raw
		}
		out[k] = v
	}
	return out, nil
}

func newConnectorUpdateCommand(flags *globalFlags) *cobra.Command {
	var set map[string]string
	var unset []string
	var active bool
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change a stored connector configuration",
		Long: `Update edits one stored connector configuration in place.

Example:
  gateway connectors update hubspot --active --set sandbox=false --unset legacy_token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSettings(set)
			if err != nil {
				return err
			}
			patch := gateway.ConnectorPatch{Set: values, Unset: unset}
			if cmd.Flags().Changed("active") {
				patch.Active = &active
			}
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				cfg, err := svc.UpdateConnector(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSON(cfg, true)
			})
		},
	}
	cmd.Flags().StringToStringVar(&set, "set", nil, "Config value as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&unset, "unset", nil, "Config keys to remove")
	cmd.Flags().BoolVar(&active, "active", true, "Mark the connector active (--active=false deactivates it)")
	return cmd
}

func newConnectorDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored connector configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				if err := svc.DeleteConnector(ctx, args[0]); err != nil {
					return err
				}
				return printJSON(map[string]string{"deleted": args[0]}, true)
			})
		},
	}
}

func newJobsCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage stored integration jobs",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs ordered by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				jobs, err := svc.Jobs(ctx, store.JobStatus(status))
				if err != nil {
					return err
				}
				return printJSON(jobs, true)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only jobs with this status (active, paused, disabled)")

	var job store.Job
	var jobType, jobConfig string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		Long: `Create stores a job for a connector. Sync jobs read data_type and filters
from --config, send jobs read data_type and payload.

Example:
  gateway jobs create --name nightly-ap --connector sap --type sync \
    --config '{"data_type":"AP_INVOICE","filters":{"status":"open"}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job.Type = store.JobType(jobType)
			if err := json.Unmarshal([]byte(jobConfig), &job.Config); err != nil {
				return fmt.Errorf("--config must be a JSON object: %w", err)
			}
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				if err := svc.CreateJob(ctx, &job); err != nil {
					return err
				}
				return printJSON(job, true)
			})
		},
	}
	create.Flags().StringVar(&job.Name, "name", "", "Job name")
	create.Flags().StringVar(&job.Connector, "connector", "", "Connector the job runs against")
	create.Flags().StringVar(&jobType, "type", string(store.JobSync), "Job type (sync, send, scheduled)")
	create.Flags().StringVar(&job.Schedule, "schedule", "", "Schedule expression, required for scheduled jobs")
	create.Flags().StringVar(&jobConfig, "config", "{}", "Job configuration as a JSON object")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("connector")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				job, err := svc.Job(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(job, true)
			})
		},
	}

	run := &cobra.Command{
		Use:   "run ID",
		Short: "Run an active job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				res, err := svc.RunJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(res, res.OK)
			})
		},
	}

	setStatus := func(use, short string, status store.JobStatus) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
					job, err := svc.SetJobStatus(ctx, args[0], status)
					if err != nil {
						return err
					}
					return printJSON(job, true)
				})
			},
		}
	}

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), flags, func(ctx context.Context, svc *gateway.Service) error {
				if err := svc.DeleteJob(ctx, args[0]); err != nil {
					return err
				}
				return printJSON(map[string]string{"deleted": args[0]}, true)
			})
		},
	}

	cmd.AddCommand(list, create, show, run,
		setStatus("pause", "Pause a job", store.JobPaused),
		setStatus("resume", "Resume a paused job", store.JobActive),
		setStatus("disable", "Disable a job", store.JobDisabled),
		remove)
	return cmd
}
