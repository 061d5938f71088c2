// Package migrations embeds the SQL schema so binaries and tests apply the same files.
package migrations

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"sort"

	"cinema-order-engine/internal/pkg/errs"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed *.sql
var files embed.FS

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Files lists the embedded migrations in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every embedded migration. Statements are idempotent, so it is safe
// to call on an already migrated database.
func Apply(ctx context.Context, db execer) error {
	names, err := Files()
	if err != nil {
		return errs.Wrap(err, "failed to list migrations")
	}

	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return errs.Wrapf(err, "failed to read migration %s", name)
		}
		if _, err := db.Exec(ctx, string(content)); err != nil {
			return errs.Wrapf(err, "failed to execute migration %s", name)
		}
		slog.Debug("migration applied", "file", name)
	}

	return nil
}
