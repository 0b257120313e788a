/*
main.go - Application entry point

PURPOSE:
  The auto-office binary drives the reconciliation pipeline end to end:
  schema creation and reference import, batch ingestion with the operator
  decision loop, currency-rate loading, and the HTTP read surface.

COMMANDS:
  init    Create the schema and load the reference workbooks
          (customers, companies, suppliers, box types, flower types,
          drivers, cars, markings) from a starter directory.
  import  Ingest one or more XLSX batch files of one kind, run the link
          rules, then open the operator passes (skipped with --no-input).
  rates   Load a (date, rate) sheet into the currency table.
  serve   Start the HTTP API with graceful shutdown.

CONFIGURATION:
  Flags first, environment second (loaded from .env via godotenv):
    OFFICE_DB_PATH      SQLite database path       (default office.db)
    OFFICE_HISTORY_LOG  export-log path            (default log_history.txt)
    OFFICE_HTTP_PORT    serve port                 (default 8080)

EXAMPLES:
  auto-office init --reference ./starter
  auto-office import --kind expenses_forever ./inbox/balance_week34.xlsx
  auto-office import --kind sales --no-input ./inbox/sales.xlsx
  auto-office rates --currency usd ./inbox/usd_rates.xlsx
  auto-office serve --port 3000

SEE ALSO:
  - api/server.go: Router configuration
  - reconcile/run.go: What one import run does
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evaigen/auto-office/api"
	"github.com/evaigen/auto-office/console"
	"github.com/evaigen/auto-office/ingest"
	"github.com/evaigen/auto-office/reconcile"
	"github.com/evaigen/auto-office/store/sqlite"
)

var logger = logrus.New()

func main() {
	// Missing .env is fine, flags and defaults cover everything.
	_ = godotenv.Load()

	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "auto-office",
		Short:         "Logistics record reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db",
		envOr("OFFICE_DB_PATH", "office.db"), "SQLite database path")

	root.AddCommand(
		newInitCmd(&dbPath),
		newImportCmd(&dbPath),
		newRatesCmd(&dbPath),
		newServeCmd(&dbPath),
	)
	return root
}

// =============================================================================
// INIT
// =============================================================================

func newInitCmd(dbPath *string) *cobra.Command {
	var refDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and load the reference workbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			ref, err := ingest.ReadReference(refDir)
			if err != nil {
				return err
			}

			for _, c := range ref.Customers {
				if _, err := store.InsertCustomer(ctx, c); err != nil {
					return err
				}
			}
			for _, c := range ref.Companies {
				if err := store.InsertCompany(ctx, c); err != nil {
					return err
				}
			}
			for _, s := range ref.Suppliers {
				if err := store.InsertSupplier(ctx, s); err != nil {
					return err
				}
			}
			for _, b := range ref.BoxTypes {
				if err := store.InsertBoxType(ctx, b); err != nil {
					return err
				}
			}
			for _, f := range ref.FlowerTypes {
				if err := store.InsertFlowerType(ctx, f); err != nil {
					return err
				}
			}
			for _, d := range ref.Drivers {
				if err := store.InsertDriver(ctx, d); err != nil {
					return err
				}
			}
			for _, c := range ref.Cars {
				if err := store.InsertCar(ctx, c); err != nil {
					return err
				}
			}

			// Markings go through the engine so existing aliases are not
			// duplicated and known customers resolve immediately.
			runner := &reconcile.Runner{Store: store, Logger: logger}
			summary, err := runner.Run(ctx, reconcile.Batch{
				Kind:     reconcile.KindMarking,
				Markings: ref.Markings,
			})
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"customers": len(ref.Customers),
				"markings":  summary.Inserted,
				"db":        *dbPath,
			}).Info("reference data loaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&refDir, "reference", "./reference", "starter workbook directory")
	return cmd
}

// =============================================================================
// IMPORT
// =============================================================================

func newImportCmd(dbPath *string) *cobra.Command {
	var (
		kind    string
		noInput bool
		logPath string
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Ingest XLSX batches of one kind and reconcile links",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := &reconcile.Runner{
				Store:  store,
				Port:   console.New(os.Stdin, os.Stdout),
				Log:    reconcile.NewExportLog(logPath, logger),
				Logger: logger,
			}

			ctx := cmd.Context()
			for _, path := range args {
				batch, err := ingest.ReadBatch(reconcile.RecordKind(kind), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				summary, err := runner.Run(ctx, batch)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				logger.WithFields(logrus.Fields{
					"file":       path,
					"run_id":     summary.RunID,
					"inserted":   summary.Inserted,
					"duplicates": summary.Duplicates,
				}).Info("batch imported")
			}

			if noInput {
				return nil
			}
			if _, err := runner.Resolve(ctx); err != nil {
				if reconcile.IsAborted(err) {
					logger.Info("run aborted by operator, applied links kept")
					return nil
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(reconcile.KindExpenseForever),
		"record kind: shipments, expenses_forever, expenses_iphandlers, sales, markings")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "deterministic phase only, no operator prompts")
	cmd.Flags().StringVar(&logPath, "history-log",
		envOr("OFFICE_HISTORY_LOG", "log_history.txt"), "export-log path")
	return cmd
}

// =============================================================================
// RATES
// =============================================================================

func newRatesCmd(dbPath *string) *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "rates [file]",
		Short: "Load a daily currency-rate sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rates, err := ingest.ReadCurrencyRates(args[0], currency)
			if err != nil {
				return err
			}
			for _, r := range rates {
				if err := store.UpsertCurrencyRate(cmd.Context(), r); err != nil {
					return err
				}
			}
			logger.WithFields(logrus.Fields{
				"currency": currency,
				"days":     len(rates),
			}).Info("currency rates loaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", reconcile.CurrencyUSD, "usd or eur")
	return cmd
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(dbPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(store, logger)
			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      api.NewRouter(handler),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.WithField("addr", server.Addr).Info("server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Fatal("server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
	defaultPort := 8080
	if v, err := strconv.Atoi(envOr("OFFICE_HTTP_PORT", "")); err == nil && v > 0 {
		defaultPort = v
	}
	cmd.Flags().IntVar(&port, "port", defaultPort, "HTTP server port")
	return cmd
}
