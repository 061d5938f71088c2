//go:build unit || e2e

package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func CreateUser(t *testing.T, db DBLike, userName string, balance int64) {
	t.Helper()

	_, err := db.Exec(context.Background(),
		"INSERT INTO users (user_name, display_name, balance) VALUES ($1, $1, $2)", userName, balance)
	require.NoError(t, err)
}

func CreateMovie(t *testing.T, db DBLike, title string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(),
		"INSERT INTO movies (title, duration) VALUES ($1, 120) RETURNING id", title).Scan(&id)
	require.NoError(t, err)
	return id
}

func CreateShowing(t *testing.T, db DBLike, movieID int64, studio string, startsAt time.Time, price int64) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(),
		"INSERT INTO showings (movie_id, studio_name, starts_at, price) VALUES ($1, $2, $3, $4) RETURNING id",
		movieID, studio, startsAt, price).Scan(&id)
	require.NoError(t, err)
	return id
}

func CreateProduct(t *testing.T, db DBLike, name, category string, price int64, available bool) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(),
		"INSERT INTO products (name, category, price, is_available) VALUES ($1, $2, $3, $4) RETURNING id",
		name, category, price, available).Scan(&id)
	require.NoError(t, err)
	return id
}

func Balance(t *testing.T, db DBLike, userName string) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(context.Background(),
		"SELECT balance FROM users WHERE user_name = $1", userName).Scan(&balance)
	require.NoError(t, err)
	return balance
}

// CountRows counts rows of a fixed table name; never pass user input.
func CountRows(t *testing.T, db DBLike, table string) int {
	t.Helper()

	var n int
	err := db.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n)
	require.NoError(t, err)
	return n
}

var (
	buildTruncateOnce sync.Once
	truncateSQL       atomic.Value // string
)

// truncates all tables
func ResetDB(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buildTruncateOnce.Do(func() {
		rows, err := pool.Query(ctx, `
		  SELECT 'public.' || quote_ident(tablename)
		  FROM pg_tables
		  WHERE schemaname = 'public'
		    AND tablename NOT IN ('schema_migrations')`)
		if err != nil {
			truncateSQL.Store("")
			return
		}
		defer rows.Close()
		var tables []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				truncateSQL.Store("")
				return
			}
			tables = append(tables, t)
		}
		if rows.Err() != nil {
			truncateSQL.Store("")
			return
		}
		if len(tables) == 0 {
			truncateSQL.Store("SELECT 1")
			return
		}
		truncateSQL.Store("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;")
	})
	sqlAny := truncateSQL.Load()
	if sqlAny == nil || sqlAny.(string) == "" {
		return fmt.Errorf("failed to build TRUNCATE SQL")
	}
	_, err := pool.Exec(ctx, sqlAny.(string))
	return err
}
