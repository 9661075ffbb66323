package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-ledger/config"
	"library-ledger/library"
)

// importRow is one line of a catalog CSV: title,author[,year[,copies]].
type importRow struct {
	line   int
	title  string
	author string
	year   *int
	copies int
}

func main() {
	var (
		dbPath, driver, dsn string
		reset               bool
	)
	cmd := &cobra.Command{
		Use:          "import_books CSV_FILE",
		Short:        "Load a catalog from a CSV file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = dbPath
			}
			if cmd.Flags().Changed("driver") {
				cfg.Database.Driver = driver
			}
			if cmd.Flags().Changed("dsn") {
				cfg.Database.DSN = dsn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if reset {
				if cfg.Database.Driver != config.DriverSQLite {
					return fmt.Errorf("--reset only applies to the sqlite driver, not %q", cfg.Database.Driver)
				}
				removeDatabase(cmd.OutOrStdout(), cfg.Database.Path)
			}
			return importFile(cmd.Context(), cmd.OutOrStdout(), cfg.Database, args[0])
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides LIBRARY_DB_PATH)")
	cmd.Flags().StringVar(&driver, "driver", "", "store driver: sqlite or postgres (overrides LIBRARY_DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (overrides LIBRARY_DB_DSN)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing database first")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func removeDatabase(out io.Writer, dbPath string) {
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

// openManager opens the store the configuration selects.
func openManager(ctx context.Context, cfg config.DatabaseConfig) (*library.LibraryManager, error) {
	opts := []library.Option{library.WithLockTimeout(cfg.LockTimeout)}

	var (
		db  *library.Database
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		opts = append(opts, library.WithMaxOpenConns(cfg.MaxOpenConns))
		db, err = library.NewPostgresDatabase(ctx, cfg.DSN, opts...)
	case config.DriverSQLite:
		db, err = library.NewDatabase(cfg.Path, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	manager, err := library.NewManager(db, library.ManagerOptions{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return manager, nil
}

func importFile(ctx context.Context, out io.Writer, cfg config.DatabaseConfig, csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", csvPath, err)
	}

	manager, err := openManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer manager.Close()

	fmt.Fprintf(out, "Importing %d books from %s...\n", len(rows), csvPath)
	successCount, errorCount := 0, 0
	for _, r := range rows {
		fmt.Fprintf(out, "Importing: %s by %s... ", r.title, r.author)
		id, err := manager.AddBook(ctx, r.title, r.author, r.year, r.copies)
		if err != nil {
			fmt.Fprintf(out, "ERROR (line %d) - %v\n", r.line, err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)
	return nil
}

// readRows parses the CSV. A first row whose first cell is "title" is a header.
func readRows(r io.Reader) ([]importRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []importRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		row, err := parseRow(line, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func parseRow(line int, rec []string) (importRow, error) {
	if len(rec) < 2 {
		return importRow{}, fmt.Errorf("line %d: want title,author[,year[,copies]]", line)
	}
	row := importRow{
		line:   line,
		title:  strings.TrimSpace(rec[0]),
		author: strings.TrimSpace(rec[1]),
		copies: 1,
	}
	if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
		y, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return importRow{}, fmt.Errorf("line %d: invalid year %q", line, rec[2])
		}
		row.year = &y
	}
	if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return importRow{}, fmt.Errorf("line %d: invalid copies %q", line, rec[3])
		}
		row.copies = n
	}
	return row, nil
}
