// internal/output/types.go
package output

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/valpere/StoreScrapexter/internal/store"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatJSONL    OutputFormat = "jsonl"
	FormatCSV      OutputFormat = "csv"
	FormatYAML     OutputFormat = "yaml"
	FormatExcel    OutputFormat = "excel"
	FormatSQLite   OutputFormat = "sqlite"
	FormatPostgres OutputFormat = "postgres"
	FormatMySQL    OutputFormat = "mysql"
	FormatMongoDB  OutputFormat = "mongodb"
)

// ValidOutputFormats returns all valid output format values
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{
		FormatJSON, FormatJSONL, FormatCSV, FormatYAML, FormatExcel,
		FormatSQLite, FormatPostgres, FormatMySQL, FormatMongoDB,
	}
}

// IsValid checks if the output format is valid
func (of OutputFormat) IsValid() bool {
	for _, valid := range ValidOutputFormats() {
		if of == valid {
			return true
		}
	}
	return false
}

// IsFile reports whether the format writes a local file rather than a database.
func (of OutputFormat) IsFile() bool {
	switch of {
	case FormatJSON, FormatJSONL, FormatCSV, FormatYAML, FormatExcel:
		return true
	}
	return false
}

// GetFileExtension returns the appropriate file extension for the format
func (of OutputFormat) GetFileExtension() string {
	switch of {
	case FormatJSON:
		return ".json"
	case FormatJSONL:
		return ".jsonl"
	case FormatCSV:
		return ".csv"
	case FormatYAML:
		return ".yaml"
	case FormatExcel:
		return ".xlsx"
	case FormatSQLite:
		return ".db"
	default:
		return ""
	}
}

// Config is the resolved configuration of one writer.
type Config struct {
	Format     OutputFormat
	File       string // target file for file formats and sqlite
	DSN        string // connection string for postgres, mysql and mongodb
	Table      string
	Database   string
	Collection string
	BatchSize  int
	Spider     string // stored alongside each row so several spiders can share a table
}

// Writer writes batches of stores. Writers may buffer until Close.
type Writer interface {
	Write(stores []store.Store) error
	Close() error
}

// Defaults applied by the database writers.
const (
	DefaultTable      = "stores"
	DefaultDatabase   = "storescrapexter"
	DefaultCollection = "stores"
	DefaultBatchSize  = 500
)

var sqlIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Keywords that cannot be used unquoted as a table name in any supported dialect.
var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "BY": true, "CASE": true, "CHECK": true,
	"COLUMN": true, "CONSTRAINT": true, "CREATE": true, "DEFAULT": true, "DELETE": true,
	"DESC": true, "DISTINCT": true, "DROP": true, "ELSE": true, "FROM": true, "GROUP": true,
	"HAVING": true, "IN": true, "INDEX": true, "INSERT": true, "INTO": true, "IS": true,
	"JOIN": true, "KEY": true, "LIMIT": true, "NOT": true, "NULL": true, "ON": true,
	"OR": true, "ORDER": true, "PRIMARY": true, "SELECT": true, "SET": true, "TABLE": true,
	"UNION": true, "UNIQUE": true, "UPDATE": true, "USER": true, "VALUES": true,
	"WHERE": true, "WITH": true,
}

// Maximum identifier lengths per SQL dialect.
var maxIdentifierLength = map[OutputFormat]int{
	FormatPostgres: 63,
	FormatMySQL:    64,
	FormatSQLite:   999,
}

// ValidateIdentifier checks that identifier is safe to splice into SQL for the
// given dialect.
func ValidateIdentifier(identifier string, dialect OutputFormat) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if max, ok := maxIdentifierLength[dialect]; ok && len(identifier) > max {
		return fmt.Errorf("identifier too long (max %d characters): %s", max, identifier)
	}
	if !sqlIdentifierRegex.MatchString(identifier) {
		return fmt.Errorf("invalid identifier format: %s", identifier)
	}
	if reservedWords[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier is a reserved SQL keyword: %s", identifier)
	}
	return nil
}
