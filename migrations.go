package livechat

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// MigrationFiles contains the SQL schema for every supported driver, under
// migrations/<driver>/*.sql. Tables use the default "livechat_" prefix.
//
// Apply them with ApplyMigrations or with a migration tool of your choice:
//
//	sub, _ := fs.Sub(livechat.MigrationFiles, "migrations/postgres")
//	goose.SetBaseFS(sub)
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS

// SupportedDrivers lists the database/sql driver names with bundled migrations.
var SupportedDrivers = []string{"mysql", "postgres", "sqlite3"}

// ApplyMigrations runs the bundled schema for driverName against db.
// Files run in lexical order; every statement is idempotent
// (CREATE ... IF NOT EXISTS), so running it on an existing schema is safe.
func ApplyMigrations(ctx context.Context, db *sql.DB, driverName string) error {
	dir := path.Join("migrations", driverName)
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return NewErrorWithCause(ErrCodeConfiguration,
			fmt.Sprintf("no migrations for driver %q (supported: %s)", driverName, strings.Join(SupportedDrivers, ", ")), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := MigrationFiles.ReadFile(path.Join(dir, name))
		if err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to read migration "+name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, "failed to apply migration "+name, err)
			}
		}
	}
	return nil
}

// splitStatements splits a migration file on semicolons.
// The bundled files contain no semicolons inside literals.
func splitStatements(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
