package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"library-ledger/config"
	"library-ledger/library"
)

// app carries what every command needs once the root command has run.
type app struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	manager  *library.LibraryManager
	printer  *printer

	// flags
	dbPath      string
	driver      string
	dsn         string
	output      string
	metricsFile string
	logLevel    string
	envFile     string
}

// run executes one command line and always releases the database afterwards.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Lending library loan ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides LIBRARY_DB_PATH)")
	pf.StringVar(&a.driver, "driver", "", "storage driver: sqlite or postgres (overrides LIBRARY_DB_DRIVER)")
	pf.StringVar(&a.dsn, "dsn", "", "PostgreSQL connection string (overrides LIBRARY_DB_DSN)")
	pf.StringVarP(&a.output, "output", "o", "table", "output format: table or json")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LIBRARY_LOG_LEVEL)")
	pf.StringVar(&a.envFile, "env-file", "", "load variables from this file instead of .env")

	root.AddCommand(
		newInitCmd(a),
		newBookCmd(a),
		newUserCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoansCmd(a),
		newAvailableCmd(a),
		newDebtCmd(a),
		newReportCmd(a),
		newShellCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
		return nil
	}

	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = a.dbPath
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = a.driver
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = a.dsn
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.output != "table" && a.output != "json" {
		return usagef("unknown output format %q", a.output)
	}

	a.cfg = cfg
	a.logger = newLogger(a.errOut, cfg.Log)
	a.registry = prometheus.NewRegistry()
	a.printer = newPrinter(a.out, a.output)

	policy, err := policyFromConfig(cfg.Policy)
	if err != nil {
		return err
	}

	dbOpts := []library.Option{
		library.WithLockTimeout(cfg.Database.LockTimeout),
		library.WithLogger(a.logger),
	}

	var db *library.Database
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dbOpts = append(dbOpts, library.WithMaxOpenConns(cfg.Database.MaxOpenConns))
		db, err = library.NewPostgresDatabase(cmd.Context(), cfg.Database.DSN, dbOpts...)
	default:
		db, err = library.NewDatabase(cfg.Database.Path, dbOpts...)
	}
	if err != nil {
		return err
	}

	a.manager, err = library.NewManager(db, library.ManagerOptions{
		Policy:  &policy,
		Logger:  a.logger,
		Metrics: library.NewMetrics(a.registry),
	})
	if err != nil {
		db.Close()
		return err
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.cfg != nil && a.cfg.MetricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
		a.manager = nil
	}
	return errors.Join(errs...)
}

func policyFromConfig(pc config.PolicyConfig) (library.Policy, error) {
	rate, err := library.CentsFromDecimal(pc.DailyRate)
	if err != nil {
		return library.Policy{}, err
	}
	p := library.Policy{
		LoanPeriodDays: pc.LoanPeriodDays,
		DailyRate:      rate,
		MaxActiveLoans: pc.MaxActiveLoans,
	}
	return p, p.Validate()
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ------------------ Argument helpers ------------------

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func parseCount(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, usagef("count must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

func parseLoanID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, usagef("loan id must be a UUID, got %q", raw)
	}
	return id, nil
}

// dateOrToday parses a YYYY-MM-DD flag value, falling back to the ledger's today.
func (a *app) dateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		return a.manager.Ledger().Today(), nil
	}
	d, err := library.ParseDate(raw)
	if err != nil {
		return time.Time{}, usagef("date must be YYYY-MM-DD, got %q", raw)
	}
	return d, nil
}

func optionalString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func optionalInt(cmd *cobra.Command, name string, value int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, err := a.manager.Database().SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Schema at version %d (%s)\n", version, a.manager.Database().Dialect())
			return nil
		},
	}
}
