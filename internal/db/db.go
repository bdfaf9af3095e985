package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/helper"
)

func NewDB(sqldb *sql.DB, dialect schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, dialect)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured database. SQLite runs on a single connection
// so an in-memory database survives between queries.
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
		return NewDB(sqldb, pgdialect.New(), cfg.Debug), nil
	case "sqlite":
		if dir := sqliteDir(cfg.DSN); dir != "" {
			if err := helper.CreateFolder(dir); err != nil {
				return nil, err
			}
		}
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		return NewDB(sqldb, sqlitedialect.New(), cfg.Debug), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDir is the directory holding a file-backed SQLite database, or "" for
// in-memory databases and bare file names.
func sqliteDir(dsn string) string {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}

// InitDB creates the documents and chat history tables.
func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Document)(nil), (*ChatHistory)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	indexes := []struct{ name, table string }{
		{"documents_owner_idx", "documents"},
		{"chat_history_owner_idx", "chat_history"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Table(idx.table).
			Index(idx.name).
			Column("owner_id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropTables removes everything InitDB created.
func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Document)(nil), (*ChatHistory)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Store is the relational persistence for documents and conversation turns.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}
