package devhub

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteOptions tunes the DSN of the development database. The zero value
// (or nil) opens the file with the driver defaults.
type SQLiteOptions struct {
	// Mode can be ro | rw | rwc | memory.
	Mode string
	// Cache can be shared | private.
	Cache string
	// JournalMode can be DELETE | TRUNCATE | PERSIST | MEMORY | WAL | OFF.
	JournalMode string
}

func (o *SQLiteOptions) dsn(file string) string {
	var sb strings.Builder
	sb.WriteString("file:")
	sb.WriteString(file)
	if o == nil {
		return sb.String()
	}

	params := url.Values{}
	if o.Mode != "" {
		params.Set("mode", o.Mode)
	}
	if o.Cache != "" {
		params.Set("cache", o.Cache)
	}
	if o.JournalMode != "" {
		params.Set("_journal_mode", o.JournalMode)
	}
	if enc := params.Encode(); enc != "" {
		sb.WriteString("?")
		sb.WriteString(enc)
	}
	return sb.String()
}

// SQLiteDB is the development hub's message database plus the location of
// its migrations.
type SQLiteDB struct {
	*sql.DB
	migrationDir string
}

func NewSQLiteDB(file, migrationDir string, opts *SQLiteOptions) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", opts.dsn(file))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteDB{DB: db, migrationDir: migrationDir}, nil
}

// Migrate applies the goose migrations in the configured directory.
func (db *SQLiteDB) Migrate() error {
	goose.SetBaseFS(os.DirFS(db.migrationDir))
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("SetDialect: %w", err)
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("Up: %w", err)
	}
	return nil
}
