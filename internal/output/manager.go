// internal/output/manager.go
package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Manager creates writers for the configured format, one per spider run.
type Manager struct {
	config config.OutputConfig
	format OutputFormat
	now    func() time.Time
}

// NewManager creates a new output manager
func NewManager(cfg *config.OutputConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("output configuration is required")
	}
	format := OutputFormat(strings.ToLower(cfg.Format))
	if !format.IsValid() {
		return nil, fmt.Errorf("unsupported output format: %s", cfg.Format)
	}
	return &Manager{
		config: *cfg,
		format: format,
		now:    time.Now,
	}, nil
}

// Format returns the configured output format
func (m *Manager) Format() OutputFormat {
	return m.format
}

// Path returns the file a spider's stores go to, or "" for server databases.
// Without an explicit file the name is <spider>-YYYYMMDD.<ext> inside Dir;
// sqlite uses one stores.db shared by all spiders so upserts span runs.
func (m *Manager) Path(spider string) string {
	if m.format != FormatSQLite && !m.format.IsFile() {
		return ""
	}
	if m.config.File != "" {
		return strings.ReplaceAll(m.config.File, "{spider}", spider)
	}
	dir := m.config.Dir
	if dir == "" {
		dir = "."
	}
	if m.format == FormatSQLite {
		return filepath.Join(dir, "stores.db")
	}
	return filepath.Join(dir, utils.GenerateOutputFileName(spider, m.format.GetFileExtension(), m.now()))
}

// Target describes where a spider's stores go, for logs and run results.
func (m *Manager) Target(spider string) string {
	if path := m.Path(spider); path != "" {
		return path
	}
	switch m.format {
	case FormatMongoDB:
		return fmt.Sprintf("mongodb:%s.%s", orDefault(m.config.Database, DefaultDatabase), orDefault(m.config.Collection, DefaultCollection))
	default:
		return fmt.Sprintf("%s:%s", m.format, orDefault(m.config.Table, DefaultTable))
	}
}

// GetWriter returns the appropriate writer for the configured format
func (m *Manager) GetWriter(ctx context.Context, spider string) (Writer, error) {
	cfg := Config{
		Format:     m.format,
		File:       m.Path(spider),
		DSN:        m.config.DSN,
		Table:      m.config.Table,
		Database:   m.config.Database,
		Collection: m.config.Collection,
		BatchSize:  m.config.BatchSize,
		Spider:     spider,
	}

	switch m.format {
	case FormatJSON:
		return NewJSONWriter(cfg.File)
	case FormatJSONL:
		return NewJSONLWriter(cfg.File)
	case FormatCSV:
		return NewCSVWriter(cfg.File)
	case FormatYAML:
		return NewYAMLWriter(cfg.File)
	case FormatExcel:
		return NewExcelWriter(cfg.File)
	case FormatSQLite, FormatPostgres, FormatMySQL:
		return NewSQLWriter(ctx, cfg)
	case FormatMongoDB:
		return NewMongoDBWriter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", m.format)
	}
}

// Write writes stores for one spider in a single writer session.
func (m *Manager) Write(ctx context.Context, spider string, stores []store.Store) error {
	writer, err := m.GetWriter(ctx, spider)
	if err != nil {
		return fmt.Errorf("failed to get writer: %w", err)
	}
	if err := writer.Write(stores); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
