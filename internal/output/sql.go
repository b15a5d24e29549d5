// internal/output/sql.go
package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/StoreScrapexter/internal/store"
)

// dialect captures what differs between the supported SQL databases.
type dialect struct {
	driver      string
	keyType     string
	textType    string
	floatType   string
	timeType    string
	quote       func(string) string
	placeholder func(n int) string
	upsert      func(conflict, update []string) string
}

func doubleQuote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func backQuote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// excludedUpsert is the ON CONFLICT form shared by PostgreSQL and SQLite.
func excludedUpsert(conflict, update []string) string {
	sets := make([]string, len(update))
	for i, c := range update {
		q := doubleQuote(c)
		sets[i] = q + " = EXCLUDED." + q
	}
	quoted := make([]string, len(conflict))
	for i, c := range conflict {
		quoted[i] = doubleQuote(c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(quoted, ", "), strings.Join(sets, ", "))
}

var dialects = map[OutputFormat]dialect{
	FormatSQLite: {
		driver:      "sqlite3",
		keyType:     "VARCHAR(191)",
		textType:    "TEXT",
		floatType:   "REAL",
		timeType:    "DATETIME",
		quote:       doubleQuote,
		placeholder: func(int) string { return "?" },
		upsert:      excludedUpsert,
	},
	FormatPostgres: {
		driver:      "postgres",
		keyType:     "VARCHAR(191)",
		textType:    "TEXT",
		floatType:   "DOUBLE PRECISION",
		timeType:    "TIMESTAMP",
		quote:       doubleQuote,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		upsert:      excludedUpsert,
	},
	FormatMySQL: {
		driver:      "mysql",
		keyType:     "VARCHAR(191)",
		textType:    "TEXT",
		floatType:   "DOUBLE",
		timeType:    "DATETIME",
		quote:       backQuote,
		placeholder: func(int) string { return "?" },
		upsert: func(_, update []string) string {
			sets := make([]string, len(update))
			for i, c := range update {
				q := backQuote(c)
				sets[i] = q + " = VALUES(" + q + ")"
			}
			return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
	},
}

// Key columns prepended to store.Columns; raw and updated_at are appended.
var (
	sqlKeyColumns   = []string{"spider", "store_key"}
	sqlExtraColumns = []string{"raw", "updated_at"}
)

// SQLWriter upserts stores into one table keyed by (spider, store_key), so
// re-running a spider refreshes its rows instead of duplicating them.
type SQLWriter struct {
	ctx     context.Context
	db      *sql.DB
	dialect dialect
	format  OutputFormat
	table   string
	spider  string
	batch   int
	columns []string
	now     func() time.Time
}

// NewSQLWriter opens the database for cfg.Format and creates the table if needed.
func NewSQLWriter(ctx context.Context, cfg Config) (*SQLWriter, error) {
	d, ok := dialects[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL format: %s", cfg.Format)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := ValidateIdentifier(cfg.Table, cfg.Format); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Spider == "" {
		return nil, fmt.Errorf("spider name is required for SQL output")
	}

	dsn, err := sqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Format, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Format, err)
	}
	if cfg.Format == FormatSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	columns := append(append(append([]string{}, sqlKeyColumns...), store.Columns...), sqlExtraColumns...)
	w := &SQLWriter{
		ctx:     ctx,
		db:      db,
		dialect: d,
		format:  cfg.Format,
		table:   cfg.Table,
		spider:  cfg.Spider,
		batch:   cfg.BatchSize,
		columns: columns,
		now:     time.Now,
	}
	if err := w.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func sqlDSN(cfg Config) (string, error) {
	if cfg.Format == FormatSQLite {
		if cfg.File == "" {
			return "", fmt.Errorf("SQLite database path is required")
		}
		if err := ensureDir(cfg.File); err != nil {
			return "", err
		}
		return cfg.File + "?_busy_timeout=5000&_journal_mode=WAL", nil
	}
	if cfg.DSN == "" {
		return "", fmt.Errorf("%s connection string is required", cfg.Format)
	}
	return cfg.DSN, nil
}

func (w *SQLWriter) columnType(column string) string {
	switch column {
	case "spider", "store_key":
		return w.dialect.keyType + " NOT NULL"
	case "latitude", "longitude":
		return w.dialect.floatType
	case "updated_at":
		return w.dialect.timeType
	default:
		return w.dialect.textType
	}
}

func (w *SQLWriter) createTable() error {
	defs := make([]string, 0, len(w.columns)+1)
	for _, c := range w.columns {
		defs = append(defs, w.dialect.quote(c)+" "+w.columnType(c))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s, %s)", w.dialect.quote("spider"), w.dialect.quote("store_key")))

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", w.dialect.quote(w.table), strings.Join(defs, ",\n\t"))
	if _, err := w.db.ExecContext(w.ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	return nil
}

// Write upserts stores in batches inside one transaction.
func (w *SQLWriter) Write(stores []store.Store) error {
	if w.db == nil {
		return fmt.Errorf("sql writer is closed")
	}
	stores = lastByKey(stores)
	if len(stores) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(w.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i := 0; i < len(stores); i += w.batch {
		end := i + w.batch
		if end > len(stores) {
			end = len(stores)
		}
		if err := w.insertBatch(tx, stores[i:end]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end-1, err)
		}
	}
	return tx.Commit()
}

func (w *SQLWriter) insertBatch(tx *sql.Tx, batch []store.Store) error {
	placeholders := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*len(w.columns))
	n := 1
	now := w.now().UTC()

	for i, s := range batch {
		row := make([]string, len(w.columns))
		for j := range w.columns {
			row[j] = w.dialect.placeholder(n)
			n++
		}
		placeholders[i] = "(" + strings.Join(row, ", ") + ")"

		args = append(args, w.spider, s.Key())
		args = append(args, s.Values()...)
		args = append(args, rawJSON(s.Raw), now)
	}

	quoted := make([]string, len(w.columns))
	for i, c := range w.columns {
		quoted[i] = w.dialect.quote(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
		w.dialect.quote(w.table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		w.dialect.upsert(sqlKeyColumns, w.columns[len(sqlKeyColumns):]),
	)
	_, err := tx.ExecContext(w.ctx, query, args...)
	return err
}

// lastByKey drops earlier stores that share a key with a later one. A single
// upsert statement may not touch the same row twice.
func lastByKey(stores []store.Store) []store.Store {
	index := make(map[string]int, len(stores))
	out := make([]store.Store, 0, len(stores))
	for _, s := range stores {
		key := s.Key()
		if i, ok := index[key]; ok {
			out[i] = s
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}
	return out
}

func rawJSON(raw map[string]interface{}) interface{} {
	if len(raw) == 0 {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return string(data)
}

// Close closes the database connection
func (w *SQLWriter) Close() error {
	if w.db != nil {
		err := w.db.Close()
		w.db = nil
		return err
	}
	return nil
}
