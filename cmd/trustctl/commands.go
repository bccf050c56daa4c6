package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/feyza/backend/internal/app"
	"github.com/feyza/backend/internal/jobs"
	"github.com/feyza/backend/internal/settings"
	"github.com/feyza/backend/internal/version"
	"github.com/spf13/cobra"
)

type settingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// env is what every command needs once connected.
type env struct {
	services *app.Services
	settings settingsSource
	migrate  func(ctx context.Context) error
	close    func()
}

type opener func(ctx context.Context) (*env, error)

var timeout time.Duration

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "trustctl",
		Short:         "Feyza trust maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall deadline for the command")

	root.AddCommand(migrateCmd(open))
	root.AddCommand(backfillCmd(open))
	root.AddCommand(reconcileCmd(open))
	root.AddCommand(recalcCmd(open))
	root.AddCommand(tierCmd(open))
	root.AddCommand(expireRequestsCmd(open))
	root.AddCommand(versionCmd())
	return root
}

// run opens the environment under the command deadline and closes it after fn.
func run(cmd *cobra.Command, open opener, fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	e, err := open(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if e.close != nil {
		defer e.close()
	}
	return fn(ctx, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, e *env) error {
				if err := e.migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func backfillCmd(open opener) *cobra.Command {
	var selected string
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-derive tiers, vouch strengths and trust scores",
		Long: `Recomputes stored trust state from source rows. Jobs run in the order
tiers, vouches, scores. Every job is convergent, so the command can be
re-run after a partial failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := jobs.ParseJobs(selected)
			if err != nil {
				return err
			}
			return run(cmd, open, func(ctx context.Context, e *env) error {
				res, err := e.services.Backfill.Run(ctx, list)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if len(res.Errors) > 0 {
					return fmt.Errorf("backfill finished with %d errors", len(res.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&selected, "jobs", "", "comma separated subset of tiers,vouches,scores (default all)")
	return cmd
}

func reconcileCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Replay recently paid installments through the payment hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, e *env) error {
				res, err := e.services.Reconciler.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func recalcCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <user-id>",
		Short: "Recalculate one user's tier and trust score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			return run(cmd, open, func(ctx context.Context, e *env) error {
				update, err := e.services.Tiers.CalculateSimpleTrustTier(ctx, userID)
				if err != nil {
					return fmt.Errorf("tier: %w", err)
				}
				score, err := e.services.Scores.Recalculate(ctx, userID)
				if err != nil {
					return fmt.Errorf("score: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"tier": update, "trust_score": score})
			})
		},
	}
}

func tierCmd(open opener) *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "tier <user-id>",
		Short: "Show a user's tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			return run(cmd, open, func(ctx context.Context, e *env) error {
				if stored {
					info, updatedAt, err := e.services.Tiers.GetStoredTier(ctx, userID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"tier": info, "updated_at": updatedAt})
				}
				current, _ := e.settings.Get(ctx)
				info, err := e.services.Tiers.GetTier(ctx, userID, current.TierFreshness)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"tier": info})
			})
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "read the cached vouch count without recounting")
	return cmd
}

func expireRequestsCmd(open opener) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "expire-requests",
		Short: "Expire pending vouch requests older than the request TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, e *env) error {
				olderThan := ttl
				if olderThan <= 0 {
					current, _ := e.settings.Get(ctx)
					olderThan = current.VouchRequestTTL
				}
				n, err := e.services.Vouches.ExpireRequests(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d vouch requests older than %s\n", n, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "override the configured request TTL")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}
