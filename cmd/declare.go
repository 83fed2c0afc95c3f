package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/declaranet/declara-cli/internal/browser"
	"github.com/declaranet/declara-cli/internal/config"
	"github.com/declaranet/declara-cli/internal/credentials"
	"github.com/declaranet/declara-cli/internal/engine"
	"github.com/declaranet/declara-cli/internal/observability"
	"github.com/declaranet/declara-cli/internal/outcome"
	"github.com/declaranet/declara-cli/internal/portal"
	"github.com/declaranet/declara-cli/internal/workbook"
)

// newDeclareCmd creates the `declare` command: one full declaration run for
// one company and branch from one workpaper.
func newDeclareCmd() *cobra.Command {
	var (
		workbookPath string
		companyID    int
		branchID     int
	)

	declareCmd := &cobra.Command{
		Use:   "declare",
		Short: "Fill and submit one provisional declaration from a workpaper",
		Long: `Reads the tax workpaper, signs into the SAT portal with the company's
e.firma, fills the declaration form, reconciles the portal's computed totals
against the workpaper and sends only when every total matches within the
configured tolerance. A mismatch leaves the declaration unsent.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			if workbookPath == "" {
				return &usageError{err: fmt.Errorf("--workbook is required")}
			}
			if _, err := os.Stat(workbookPath); err != nil {
				return &usageError{err: fmt.Errorf("workbook not readable: %w", err)}
			}
			if cfg.Database.DSN == "" {
				return &usageError{err: fmt.Errorf("database.dsn must be configured to resolve e.firma credentials")}
			}

			pool, err := pgxpool.New(ctx, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to create database pool: %w", err)
			}
			defer pool.Close()

			// The workpaper parse and the credential lookup are independent;
			// load them in parallel before any browser work starts.
			var (
				wp   *workbook.Workpaper
				cred *credentials.EFirma
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				reader := workbook.NewReader(cfg.Workbook, logger)
				var err error
				wp, err = reader.Load(workbookPath)
				return err
			})
			g.Go(func() error {
				provider, err := credentials.NewProvider(gctx, pool, cfg.Database, logger)
				if err != nil {
					return err
				}
				cred, err = provider.Lookup(gctx, companyID, branchID)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			mapping, err := loadMapping(cfg.Portal.MappingFile, logger)
			if err != nil {
				return err
			}
			plan, err := portal.BuildPlan(mapping, wp, cfg.Engine.Tolerance)
			if err != nil {
				return err
			}
			values := portal.BuildValues(wp)

			logger.Info("Declaration run prepared.",
				zap.String("workbook", workbookPath),
				zap.String("period", wp.Period.String()),
				zap.Int("company_id", companyID),
				zap.Int("branch_id", branchID),
				zap.Int("isr_values", wp.ISR.Len()),
				zap.Int("iva_values", wp.IVA.Len()))

			resolver := engine.NewResolver(logger)
			gate := engine.NewWaitGate(resolver, cfg.Engine.PollInterval, logger)
			executor := engine.NewStepExecutor(gate, cfg.Engine.FieldTimeout, logger)
			popups := engine.NewPopupHandler(executor, gate, cfg.Engine.PollInterval, cfg.Engine.PopupTimeout, logger)
			controller := engine.NewFormController(executor, popups, cfg.Engine.MaxRetries, cfg.Engine.RetryBackoff, logger)
			reconcile := engine.NewReconcileGate(gate, cfg.Engine.FieldTimeout, logger)
			auth := browser.NewAuthenticator(cfg.Portal, mapping, cred, gate, executor, logger)
			nav := browser.NewNavigator(mapping, gate, executor, cfg.Portal.NavigationTimeout, logger)
			sub := engine.NewSubmissionController(auth, nav, controller, reconcile, executor, logger)

			// Each attempt gets its own browser; a crashed or wedged Chrome
			// never leaks into the re-attempt.
			runOnce := func(ctx context.Context) (engine.RunOutcome, error) {
				br, err := browser.Launch(ctx, cfg.Portal, logger)
				if err != nil {
					return engine.RunOutcome{Status: engine.StatusFailed}, err
				}
				defer br.Close()
				return sub.Run(ctx, br.Page(), plan, values)
			}
			out, runErr := runWithRetry(ctx, cfg.Engine.RunRetries, cfg.Engine.RunRetryWait, logger, runOnce)

			recorder := outcome.NewRecorder(pool, logger)
			if recErr := recorder.Record(context.WithoutCancel(ctx), companyID, branchID, wp.Period.String(), out); recErr != nil {
				logger.Error("Failed to record run outcome.", zap.Error(recErr))
			}

			switch out.Status {
			case engine.StatusSent:
				return nil
			case engine.StatusMismatchBlocked:
				return fmt.Errorf("declaration left unsent: portal totals deviate beyond tolerance %v", out.Deltas)
			default:
				return runErr
			}
		},
	}

	declareCmd.Flags().StringVarP(&workbookPath, "workbook", "w", "", "path to the YYYYMM_ prefixed tax workpaper (.xlsx)")
	declareCmd.Flags().IntVar(&companyID, "company-id", 0, "company whose e.firma signs the declaration")
	declareCmd.Flags().IntVar(&branchID, "branch-id", 0, "branch of the company")
	_ = declareCmd.MarkFlagRequired("workbook")
	return declareCmd
}

// runWithRetry executes run and re-attempts it after a pause when it fails
// outright. Portal 500s and session hiccups routinely clear on a fresh
// attempt. A failed run sent nothing, so repeating it is safe; mismatch
// verdicts are final because the numbers will not change on a retry.
func runWithRetry(ctx context.Context, retries int, wait time.Duration, logger *zap.Logger, run func(context.Context) (engine.RunOutcome, error)) (engine.RunOutcome, error) {
	out, err := run(ctx)
	for attempt := 2; attempt <= retries+1; attempt++ {
		if out.Status != engine.StatusFailed || ctx.Err() != nil {
			return out, err
		}
		logger.Warn("Run failed, retrying on a fresh browser session.",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if wait > 0 {
			select {
			case <-ctx.Done():
				return out, err
			case <-time.After(wait):
			}
		}
		out, err = run(ctx)
	}
	return out, err
}

// loadMapping prefers the configured mapping file and falls back to the
// built-in map when none exists on disk.
func loadMapping(path string, logger *zap.Logger) (*portal.Mapping, error) {
	if path == "" {
		return portal.DefaultMapping(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("Mapping file not found, using built-in selector map.", zap.String("path", path))
		return portal.DefaultMapping(), nil
	}
	return portal.LoadMapping(path)
}
