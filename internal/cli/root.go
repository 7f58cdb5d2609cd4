// Package cli implements the earnly command tree.
package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/earnly/earnly/internal/api"
	"github.com/earnly/earnly/internal/app/ledger"
	"github.com/earnly/earnly/internal/daemon"
	"github.com/earnly/earnly/internal/infra/observability"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "earnly.toml", "Path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

var rootCmd = &cobra.Command{
	Use:   "earnly",
	Short: "Account ledger daemon for the earnly rewards platform",
	Long: `earnly runs the balance and ledger consistency engine behind the
rewards platform: accounts, the append-only transaction log, the referral
graph, and task subscriptions, exposed over an HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openLedger loads config and wires the storage + service stack.
func openLedger() (*daemon.Config, *sqlite.DB, *ledger.Service, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	return &cfg, db, ledger.New(db, ledgerCfg, metrics), nil
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, svc, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}

	server := api.NewServer(svc, db, ttl)
	if cfg.API.EnableMetrics {
		server.EnableMetrics()
	}

	log.Printf("earnly listening on %s (db=%s)", cfg.API.Addr(), cfg.Database.Path)
	return http.ListenAndServe(cfg.API.Addr(), server.Handler())
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and report the resulting tables",
	Long: `Opens the configured database, which applies any missing schema
statements, and lists the tables that exist afterwards. Safe to run
repeatedly; every statement is idempotent.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.SQL().QueryContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s: %d statements applied, %d tables\n",
		cfg.Database.Path, len(sqlite.Migrations()), len(tables))
	for _, name := range tables {
		fmt.Fprintf(os.Stdout, "  %s\n", name)
	}
	return nil
}

// ─── reconcile ──────────────────────────────────────────────────────────────

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check every account's balance against its transaction log",
	Long: `Recomputes each account's balance as the signed sum of its confirmed
ledger entries and compares it to the stored balance. Exits non-zero when any
account has drifted.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	_, db, svc, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := svc.ReconcileAll(context.Background())
	if err != nil {
		return err
	}

	drifted := 0
	for _, r := range reports {
		if r.Balanced() {
			continue
		}
		drifted++
		fmt.Fprintf(os.Stdout, "account %d: stored=%s log_sum=%s\n", r.AccountID, r.Stored, r.LogSum)
	}

	if drifted > 0 {
		return fmt.Errorf("%d of %d accounts out of balance", drifted, len(reports))
	}
	fmt.Fprintf(os.Stdout, "%d accounts reconciled, no drift\n", len(reports))
	return nil
}

// ─── hash-password ──────────────────────────────────────────────────────────

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password PASSWORD",
	Short: "Print the bcrypt hash of a password",
	Long:  `Utility for seeding accounts by hand: prints the bcrypt hash the signup path would store.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(hash))
		return nil
	},
}
